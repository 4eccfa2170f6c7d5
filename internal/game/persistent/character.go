// Package persistent defines player characters that outlive a single
// encounter and the library that stores them.
package persistent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/tracker/internal/game/statblock"
)

// ErrNotFound is returned when a library lookup yields no character.
var ErrNotFound = errors.New("persistent character not found")

// ErrExists is returned when adding a character whose ID is already stored.
var ErrExists = errors.New("persistent character already exists")

// Character is a durable, player-owned character record.
//
// The library holds the authoritative copy; combatants and saved encounters
// only carry snapshots keyed by ID.
type Character struct {
	ID        string              `json:"Id"`
	Version   string              `json:"Version"`
	Name      string              `json:"Name"`
	Path      string              `json:"Path"`
	CurrentHP int                 `json:"CurrentHP"`
	Notes     string              `json:"Notes"`
	StatBlock statblock.StatBlock `json:"StatBlock"`
	UpdatedAt time.Time           `json:"UpdatedAt"`
}

// CurrentVersion is stamped on newly initialized characters.
const CurrentVersion = "1"

// Initialize builds a new library entry from sb.
//
// Postcondition: ID is a fresh UUID; Name == sb.Name; CurrentHP == sb.HP.Value.
func Initialize(sb statblock.StatBlock) *Character {
	return &Character{
		ID:        uuid.NewString(),
		Version:   CurrentVersion,
		Name:      sb.Name,
		CurrentHP: sb.HP.Value,
		StatBlock: sb,
		UpdatedAt: time.Now(),
	}
}

// Update is a partial change to a character. Nil fields are left untouched.
type Update struct {
	CurrentHP *int
	Notes     *string
	StatBlock *statblock.StatBlock
}

// Apply writes the non-nil fields of u onto c.
//
// Postcondition: A StatBlock update also renames the character.
func (u Update) Apply(c *Character, now time.Time) {
	if u.CurrentHP != nil {
		c.CurrentHP = *u.CurrentHP
	}
	if u.Notes != nil {
		c.Notes = *u.Notes
	}
	if u.StatBlock != nil {
		c.StatBlock = *u.StatBlock
		c.Name = u.StatBlock.Name
	}
	c.UpdatedAt = now
}

// Updater receives changes a live combatant makes to its persistent character.
type Updater interface {
	UpdatePersistentCharacter(ctx context.Context, id string, u Update) error
}

// UpdaterFunc adapts a function to Updater.
type UpdaterFunc func(ctx context.Context, id string, u Update) error

// UpdatePersistentCharacter calls f.
func (f UpdaterFunc) UpdatePersistentCharacter(ctx context.Context, id string, u Update) error {
	return f(ctx, id, u)
}

// NopUpdater discards updates.
var NopUpdater Updater = UpdaterFunc(func(context.Context, string, Update) error { return nil })

// Store is the persistent character library.
type Store interface {
	Updater
	// Get returns the current character for id or ErrNotFound.
	Get(ctx context.Context, id string) (*Character, error)
	// List returns all characters ordered by name.
	List(ctx context.Context) ([]*Character, error)
	// AddNewPersistentCharacter stores c, returning ErrExists on an ID collision.
	// An empty ID is replaced with a fresh UUID.
	AddNewPersistentCharacter(ctx context.Context, c *Character) error
	// Delete removes the character or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}
