package persistent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. All methods are safe for concurrent use.
//
// Characters are copied on the way in and out so callers never alias stored state.
type MemoryStore struct {
	mu    sync.RWMutex
	chars map[string]*Character
	now   func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chars: make(map[string]*Character), now: time.Now}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*Character, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chars[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	cp := *c
	return &cp, nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context) ([]*Character, error) {
	m.mu.RLock()
	out := make([]*Character, 0, len(m.chars))
	for _, c := range m.chars {
		cp := *c
		out = append(out, &cp)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AddNewPersistentCharacter implements Store.
func (m *MemoryStore) AddNewPersistentCharacter(_ context.Context, c *Character) error {
	if c == nil {
		return fmt.Errorf("AddNewPersistentCharacter: character must not be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, exists := m.chars[c.ID]; exists {
		return fmt.Errorf("%w: %q", ErrExists, c.ID)
	}
	cp := *c
	m.chars[c.ID] = &cp
	return nil
}

// UpdatePersistentCharacter implements Updater.
func (m *MemoryStore) UpdatePersistentCharacter(_ context.Context, id string, u Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chars[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	u.Apply(c, m.now())
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chars[id]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(m.chars, id)
	return nil
}
