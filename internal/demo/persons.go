package demo

import (
	"context"
	"errors"
	"fmt"

	gqlerr "github.com/foyez/graphql/internal/gqlerr"
	resolver "github.com/foyez/graphql/internal/resolver"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TopicPersonAdded carries every Person created by addPerson.
const TopicPersonAdded = "PERSON_ADDED"

type persons struct {
	store  Store
	broker Publisher
	logger *zap.Logger
}

func (r *persons) count(ctx context.Context, _ any, _ map[string]any) (any, error) {
	return r.store.Count(ctx)
}

func (r *persons) all(ctx context.Context, _ any, _ map[string]any) (any, error) {
	return r.store.All(ctx)
}

func (r *persons) findByName(ctx context.Context, _ any, args map[string]any) (any, error) {
	p, ok, err := r.store.FindByName(ctx, args["name"].(string))
	if err != nil || !ok {
		return nil, err
	}
	return p, nil
}

// address composes the nested object from the flat record. Relayed events
// arrive as maps, so the parent is read generically.
func address(_ context.Context, source any, _ map[string]any) (any, error) {
	street, _ := resolver.Property(source, "street")
	city, _ := resolver.Property(source, "city")
	return map[string]any{"street": street, "city": city}, nil
}

func (r *persons) add(ctx context.Context, _ any, args map[string]any) (any, error) {
	input := args["input"].(map[string]any)
	p := Person{
		ID:     uuid.NewString(),
		Name:   input["name"].(string),
		Street: input["street"].(string),
		City:   input["city"].(string),
	}
	if ph, ok := input["phone"].(string); ok {
		p.Phone = &ph
	}

	if err := r.store.Insert(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, gqlerr.Conflictf("Name must be unique").WithDetail("invalidArgs", p.Name)
		}
		return nil, fmt.Errorf("insert person: %w", err)
	}

	if err := r.broker.Publish(ctx, TopicPersonAdded, p); err != nil {
		r.logger.Warn("publish failed", zap.String("topic", TopicPersonAdded), zap.Error(err))
	}
	return p, nil
}

// editPhone relies on @auth to reject callers editing someone else's entry
// before it runs.
func (r *persons) editPhone(ctx context.Context, _ any, args map[string]any) (any, error) {
	name := args["name"].(string)
	phone := args["phone"].(string)

	p, ok, err := r.store.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, gqlerr.NotFoundf("Provide correct args").
			WithDetail("invalidArgs", map[string]any{"name": name, "phone": phone})
	}
	p.Phone = &phone
	if err := r.store.Update(ctx, p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, gqlerr.NotFoundf("person %q was removed", name)
		}
		return nil, fmt.Errorf("update person: %w", err)
	}
	return p, nil
}

func (r *persons) added(_ context.Context, _ any, _ map[string]any) (any, error) {
	return r.broker.Subscribe(TopicPersonAdded), nil
}
