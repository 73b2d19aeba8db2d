// Package demo wires the sample phonebook and item board onto an engine.
package demo

import (
	_ "embed"
	"encoding/json"

	engine "github.com/foyez/graphql/internal/engine"
	pubsub "github.com/foyez/graphql/internal/pubsub"
	resolver "github.com/foyez/graphql/internal/resolver"
	"go.uber.org/zap"
)

//go:embed schema.graphql
var SDL string

// Publisher is the hub capability the resolvers need: a hub or a relay.
type Publisher = pubsub.Broker

type Deps struct {
	Store  Store
	Broker Publisher
	Logger *zap.Logger
}

type registration struct {
	objectType, field string
	fn                resolver.Func
	opts              []resolver.Option
}

// Register loads the demo schema into eng and binds its resolvers.
func Register(eng *engine.Engine, deps Deps) error {
	if deps.Store == nil {
		deps.Store = NewMemoryStore(SeedPersons()...)
	}
	if deps.Broker == nil {
		deps.Broker = pubsub.NewHub()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if err := eng.LoadSDL("schema.graphql", SDL); err != nil {
		return err
	}

	p := &persons{store: deps.Store, broker: deps.Broker, logger: deps.Logger}
	it := &items{broker: deps.Broker, logger: deps.Logger}
	pure := []resolver.Option{resolver.Pure()}

	for _, r := range []registration{
		{"Query", "personCount", p.count, pure},
		{"Query", "allPersons", p.all, pure},
		{"Query", "findPersonByName", p.findByName, pure},
		{"Query", "me", me, pure},
		{"Query", "settings", settingsFor, pure},
		{"Query", "items", it.all, pure},
		{"Person", "address", address, pure},
		{"Settings", "user", settingsUser, pure},
		{"User", "error", userError, pure},
		{"Mutation", "addPerson", p.add, nil},
		{"Mutation", "editPhone", p.editPhone, nil},
		{"Mutation", "settings", saveSettings, nil},
		{"Mutation", "createItem", it.create, nil},
		{"Subscription", "personAdded", p.added, nil},
		{"Subscription", "newItem", it.created, nil},
	} {
		if err := eng.RegisterResolver(r.objectType, r.field, r.fn, r.opts...); err != nil {
			return err
		}
	}
	return nil
}

// DecodeEvent restores relayed events to the types the resolvers publish.
func DecodeEvent(topic string, data []byte) (any, error) {
	switch topic {
	case TopicPersonAdded:
		var p Person
		err := json.Unmarshal(data, &p)
		return p, err
	case TopicNewItem:
		var it Item
		err := json.Unmarshal(data, &it)
		return it, err
	}
	var v any
	err := json.Unmarshal(data, &v)
	return v, err
}
