// Package savedencounter stores named encounter snapshots for later reload.
package savedencounter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cory-johannsen/tracker/internal/game/encounter"
)

// ErrNotFound is returned when no saved encounter has the requested name.
var ErrNotFound = errors.New("saved encounter not found")

// Entry is a named snapshot.
type Entry struct {
	Name    string          `json:"Name"`
	State   encounter.State `json:"State"`
	SavedAt time.Time       `json:"SavedAt"`
}

// Store persists saved encounters keyed by name.
type Store interface {
	// Save inserts or replaces the entry called name.
	Save(ctx context.Context, name string, state encounter.State) error
	// Get returns the entry called name, or an error wrapping ErrNotFound.
	Get(ctx context.Context, name string) (*Entry, error)
	// List returns every entry ordered by name.
	List(ctx context.Context) ([]Entry, error)
}

// ValidateName reports an error for names that cannot key a saved encounter.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("saved encounter name must not be empty")
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry), now: time.Now}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, name string, state encounter.State) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	state.Name = name
	state.Combatants = append([]encounter.CombatantState(nil), state.Combatants...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = Entry{Name: name, State: state, SavedAt: s.now().UTC()}
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, name string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	e.State.Combatants = append([]encounter.CombatantState(nil), e.State.Combatants...)
	return &e, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
