package demo

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrDuplicate = errors.New("demo: person already exists")
	ErrNotFound  = errors.New("demo: person not found")
)

type Person struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Phone  *string `json:"phone,omitempty"`
	Street string  `json:"street"`
	City   string  `json:"city"`
}

// Store is the persistence capability the phonebook resolvers depend on.
type Store interface {
	Count(ctx context.Context) (int, error)
	All(ctx context.Context) ([]Person, error)
	FindByName(ctx context.Context, name string) (Person, bool, error)
	// Insert fails with ErrDuplicate when the name is taken, leaving the
	// store unchanged.
	Insert(ctx context.Context, p Person) error
	// Update replaces the record with the same ID, or fails with ErrNotFound.
	Update(ctx context.Context, p Person) error
}

// MemoryStore keeps persons in insertion order.
type MemoryStore struct {
	mu      sync.RWMutex
	persons []Person
}

func NewMemoryStore(seed ...Person) *MemoryStore {
	return &MemoryStore{persons: append([]Person(nil), seed...)}
}

func phone(s string) *string { return &s }

// SeedPersons returns the phonebook's initial records.
func SeedPersons() []Person {
	return []Person{
		{
			ID:     "3d594650-3436-11e9-bc57-8b80ba54c431",
			Name:   "Arto Hellas",
			Phone:  phone("040-123543"),
			Street: "Tapiolankatu 5 A",
			City:   "Espoo",
		},
		{
			ID:     "3d599470-3436-11e9-bc57-8b80ba54c431",
			Name:   "Matti Luukkainen",
			Phone:  phone("040-432342"),
			Street: "Malminkaari 10 A",
			City:   "Helsinki",
		},
		{
			ID:     "3d599471-3436-11e9-bc57-8b80ba54c431",
			Name:   "Venla Ruuska",
			Street: "Nallemäentie 22 C",
			City:   "Helsinki",
		},
	}
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.persons), nil
}

func (s *MemoryStore) All(context.Context) ([]Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Person, len(s.persons))
	copy(out, s.persons)
	return out, nil
}

func (s *MemoryStore) FindByName(_ context.Context, name string) (Person, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.persons {
		if p.Name == name {
			return p, true, nil
		}
	}
	return Person{}, false, nil
}

func (s *MemoryStore) Insert(_ context.Context, p Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.persons {
		if cur.Name == p.Name {
			return ErrDuplicate
		}
	}
	s.persons = append(s.persons, p)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, p Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.persons {
		if cur.ID == p.ID {
			s.persons[i] = p
			return nil
		}
	}
	return ErrNotFound
}
