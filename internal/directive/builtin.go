package directive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	caller "github.com/foyez/graphql/internal/caller"
	gqlerr "github.com/foyez/graphql/internal/gqlerr"
	reqid "github.com/foyez/graphql/internal/reqid"
	schema "github.com/foyez/graphql/internal/schema"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Definition pairs a directive declaration with its behavior.
type Definition struct {
	Directive *schema.Directive
	Behavior  Behavior
}

// Builtins returns the directives every engine understands.
func Builtins(logger *zap.Logger, cache *gocache.Cache) []Definition {
	return []Definition{
		{
			Directive: schema.NewDirective("log", "Logs each resolution of the field.").
				AddArgument(schema.NewInputValue("message", "", schema.NamedType("String"))).
				AddLocation("FIELD_DEFINITION"),
			Behavior: Log(logger),
		},
		{
			Directive: schema.NewDirective("auth", "Requires an identified caller. With matchArg, the named argument must equal the caller identity.").
				AddArgument(schema.NewInputValue("matchArg", "", schema.NamedType("String"))).
				AddLocation("FIELD_DEFINITION"),
			Behavior: Auth(),
		},
		{
			Directive: schema.NewDirective("upper", "Upper-cases string results.").
				AddLocation("FIELD_DEFINITION"),
			Behavior: Upper(),
		},
		{
			Directive: schema.NewDirective("cached", "Caches successful results for ttl seconds.").
				AddArgument(schema.NewInputValue("ttl", "", schema.NamedType("Int")).SetDefault(60)).
				AddLocation("FIELD_DEFINITION"),
			Behavior: Cached(cache),
		},
	}
}

// Log logs each invocation and passes the outcome through unchanged.
func Log(logger *zap.Logger) Behavior {
	fields := func(ctx context.Context, inv *Invocation) []zap.Field {
		fs := []zap.Field{
			zap.String("object", inv.ObjectType),
			zap.String("field", inv.Field),
		}
		if rid, ok := reqid.FromContext(ctx); ok {
			fs = append(fs, zap.String("request_id", rid))
		}
		if msg := inv.Use.StringArg("message"); msg != "" {
			fs = append(fs, zap.String("message", msg))
		}
		return fs
	}
	return Behavior{
		Before: func(ctx context.Context, inv *Invocation) (any, bool, error) {
			logger.Info("resolving field", fields(ctx, inv)...)
			return nil, false, nil
		},
		After: func(ctx context.Context, inv *Invocation, value any, err error) (any, error) {
			fs := append(fields(ctx, inv), zap.Duration("duration", time.Since(inv.Started)))
			if err != nil {
				logger.Warn("field failed", append(fs, zap.Error(err))...)
			} else {
				logger.Info("resolved field", fs...)
			}
			return value, err
		},
	}
}

// Auth fails with an unauthorized ResolverError before the field resolves
// when the caller is anonymous, or when matchArg names an argument whose
// value is not the caller identity.
func Auth() Behavior {
	return Behavior{
		Before: func(ctx context.Context, inv *Invocation) (any, bool, error) {
			c := caller.FromContext(ctx)
			if !c.Authenticated() {
				return nil, false, gqlerr.Unauthorizedf("not authenticated")
			}
			if arg := inv.Use.StringArg("matchArg"); arg != "" {
				if v, _ := inv.Args[arg].(string); v != c.Identity() {
					return nil, false, gqlerr.Unauthorizedf("not authorized")
				}
			}
			return nil, false, nil
		},
	}
}

// Upper transforms string results to upper case.
func Upper() Behavior {
	return Behavior{
		After: func(_ context.Context, _ *Invocation, value any, err error) (any, error) {
			if err != nil {
				return value, err
			}
			switch s := value.(type) {
			case string:
				return strings.ToUpper(s), nil
			case *string:
				if s != nil {
					u := strings.ToUpper(*s)
					return &u, nil
				}
			}
			return value, nil
		},
	}
}

// Cached answers from cache when the same caller resolved the same field with
// the same parent and arguments within ttl seconds.
func Cached(cache *gocache.Cache) Behavior {
	return Behavior{
		Before: func(ctx context.Context, inv *Invocation) (any, bool, error) {
			key, ok := cacheKey(ctx, inv)
			if !ok {
				return nil, false, nil
			}
			if v, found := cache.Get(key); found {
				return v, true, nil
			}
			return nil, false, nil
		},
		After: func(ctx context.Context, inv *Invocation, value any, err error) (any, error) {
			if err != nil {
				return value, err
			}
			if key, ok := cacheKey(ctx, inv); ok {
				cache.Set(key, value, ttlOf(inv.Use))
			}
			return value, nil
		},
	}
}

func cacheKey(ctx context.Context, inv *Invocation) (string, bool) {
	args, err := json.Marshal(inv.Args)
	if err != nil {
		return "", false
	}
	source, err := json.Marshal(inv.Source)
	if err != nil {
		return "", false
	}
	identity := caller.FromContext(ctx).Identity()
	return fmt.Sprintf("%s.%s:%q:%s:%s", inv.ObjectType, inv.Field, identity, args, source), true
}

func ttlOf(use *schema.DirectiveUse) time.Duration {
	v, ok := use.Arg("ttl")
	if !ok {
		return gocache.DefaultExpiration
	}
	switch n := v.(type) {
	case int:
		return time.Duration(n) * time.Second
	case int64:
		return time.Duration(n) * time.Second
	case float64:
		return time.Duration(n * float64(time.Second))
	}
	return gocache.DefaultExpiration
}
