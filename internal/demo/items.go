package demo

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TopicNewItem carries every Item created by createItem.
const TopicNewItem = "NEW_ITEM"

type Item struct {
	ID   string `json:"id"`
	Task string `json:"task"`
}

type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"createdAt"`
}

type Settings struct {
	User  string `json:"user"`
	Theme string `json:"theme"`
}

var defaultUser = User{ID: "1", Username: "foyez", CreatedAt: "3749584958"}

type items struct {
	mu     sync.RWMutex
	list   []Item
	broker Publisher
	logger *zap.Logger
}

func (r *items) all(context.Context, any, map[string]any) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Item, len(r.list))
	copy(out, r.list)
	return out, nil
}

func (r *items) create(ctx context.Context, _ any, args map[string]any) (any, error) {
	item := Item{ID: uuid.NewString(), Task: args["task"].(string)}
	r.mu.Lock()
	r.list = append(r.list, item)
	r.mu.Unlock()

	if err := r.broker.Publish(ctx, TopicNewItem, item); err != nil {
		r.logger.Warn("publish failed", zap.String("topic", TopicNewItem), zap.Error(err))
	}
	return item, nil
}

func (r *items) created(context.Context, any, map[string]any) (any, error) {
	return r.broker.Subscribe(TopicNewItem), nil
}

func me(context.Context, any, map[string]any) (any, error) {
	return defaultUser, nil
}

func settingsFor(_ context.Context, _ any, args map[string]any) (any, error) {
	return Settings{User: args["user"].(string), Theme: "Light"}, nil
}

func saveSettings(_ context.Context, _ any, args map[string]any) (any, error) {
	input := args["input"].(map[string]any)
	return Settings{User: input["user"].(string), Theme: input["theme"].(string)}, nil
}

func settingsUser(_ context.Context, source any, _ map[string]any) (any, error) {
	u := defaultUser
	if s, ok := source.(Settings); ok && s.User != "" {
		u.ID = s.User
	}
	return u, nil
}

func userError(context.Context, any, map[string]any) (any, error) {
	return "error", nil
}
