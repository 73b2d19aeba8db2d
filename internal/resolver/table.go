// Package resolver holds the table mapping (type, field) pairs to resolver
// functions.
package resolver

import (
	"context"
	"sort"
	"sync"

	gqlerr "github.com/foyez/graphql/internal/gqlerr"
)

// Func resolves one field. source is the parent value (nil for root fields)
// and args are the validated argument values.
type Func func(ctx context.Context, source any, args map[string]any) (any, error)

// Entry is the resolver registered for one (type, field) pair.
type Entry struct {
	ObjectType string
	Field      string
	Resolve    Func
	// Pure marks resolvers without side effects outside the hub and the
	// operation context; siblings of a pure field may run concurrently.
	Pure bool
	// Default is set on entries synthesized for unregistered fields.
	Default bool
}

type Option func(*Entry)

// Pure declares the resolver side-effect free.
func Pure() Option { return func(e *Entry) { e.Pure = true } }

type key struct{ objectType, field string }

// Table is written during startup and read concurrently afterwards.
type Table struct {
	mu      sync.RWMutex
	entries map[key]*Entry
}

func NewTable() *Table {
	return &Table{entries: make(map[key]*Entry)}
}

// Register adds a resolver. Registering the same pair twice is a SchemaError.
func (t *Table) Register(objectType, field string, fn Func, opts ...Option) error {
	if fn == nil {
		return gqlerr.NewSchemaError("resolver for %s.%s is nil", objectType, field)
	}
	e := &Entry{ObjectType: objectType, Field: field, Resolve: fn}
	for _, opt := range opts {
		opt(e)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key{objectType, field}
	if _, ok := t.entries[k]; ok {
		return gqlerr.NewSchemaError("resolver for %s.%s is registered twice", objectType, field)
	}
	t.entries[k] = e
	return nil
}

// Lookup returns the registered entry, if any.
func (t *Table) Lookup(objectType, field string) (*Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[key{objectType, field}]
	return e, ok
}

// ResolverFor returns the registered entry or the default property reader.
func (t *Table) ResolverFor(objectType, field string) *Entry {
	if e, ok := t.Lookup(objectType, field); ok {
		return e
	}
	return &Entry{
		ObjectType: objectType,
		Field:      field,
		Resolve:    PropertyResolver(field),
		Pure:       true,
		Default:    true,
	}
}

// Entries returns registered entries ordered by type and field name.
func (t *Table) Entries() []*Entry {
	t.mu.RLock()
	out := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ObjectType != out[j].ObjectType {
			return out[i].ObjectType < out[j].ObjectType
		}
		return out[i].Field < out[j].Field
	})
	return out
}
