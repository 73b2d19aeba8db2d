// Package directive composes a field's base resolver with the behaviors of
// the directives declared on it.
//
// Composition is an onion: for a field declared with @a @b, a's Before runs
// first and a's After runs last.
package directive

import (
	"context"
	"sync"
	"time"

	gqlerr "github.com/foyez/graphql/internal/gqlerr"
	resolver "github.com/foyez/graphql/internal/resolver"
	schema "github.com/foyez/graphql/internal/schema"
)

// Invocation describes one pass through a directive layer.
type Invocation struct {
	ObjectType string
	Field      string
	Use        *schema.DirectiveUse
	Source     any
	Args       map[string]any
	Started    time.Time
}

// Behavior is the runtime contribution of a directive. Either hook may be
// nil; a zero Behavior is metadata only.
type Behavior struct {
	// Before runs ahead of the wrapped resolver. Returning an error or
	// handled=true skips the wrapped resolver and this layer's After; the
	// returned value and error become the layer's result.
	Before func(ctx context.Context, inv *Invocation) (value any, handled bool, err error)
	// After sees the wrapped resolver's outcome and may replace it.
	After func(ctx context.Context, inv *Invocation, value any, err error) (any, error)
}

func (b Behavior) IsZero() bool { return b.Before == nil && b.After == nil }

// Registry maps directive names to behaviors.
type Registry struct {
	mu        sync.RWMutex
	behaviors map[string]Behavior
}

func NewRegistry() *Registry {
	return &Registry{behaviors: make(map[string]Behavior)}
}

// Register binds a behavior to a directive name. Binding a name twice is a
// SchemaError.
func (r *Registry) Register(name string, b Behavior) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.behaviors[name]; ok {
		return gqlerr.NewSchemaError("behavior for directive @%s is registered twice", name)
	}
	r.behaviors[name] = b
	return nil
}

func (r *Registry) Lookup(name string) (Behavior, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.behaviors[name]
	return b, ok
}

// Wrap returns the effective resolver of field: base wrapped by each
// declared directive, the first declared being outermost. Directives without
// a registered behavior contribute nothing.
func Wrap(objectType string, field *schema.Field, base resolver.Func, reg *Registry) resolver.Func {
	effective := base
	for i := len(field.Directives) - 1; i >= 0; i-- {
		use := field.Directives[i]
		b, ok := reg.Lookup(use.Name)
		if !ok || b.IsZero() {
			continue
		}
		effective = layer(objectType, field.Name, use, b, effective)
	}
	return effective
}

func layer(objectType, fieldName string, use *schema.DirectiveUse, b Behavior, next resolver.Func) resolver.Func {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		inv := &Invocation{
			ObjectType: objectType,
			Field:      fieldName,
			Use:        use,
			Source:     source,
			Args:       args,
			Started:    time.Now(),
		}
		if b.Before != nil {
			v, handled, err := b.Before(ctx, inv)
			if err != nil || handled {
				return v, err
			}
		}
		v, err := next(ctx, source, args)
		if b.After != nil {
			return b.After(ctx, inv, v, err)
		}
		return v, err
	}
}
