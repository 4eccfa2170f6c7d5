package commander

import (
	"context"

	"github.com/cory-johannsen/tracker/internal/game/encounter"
)

// Confirmer asks the operator to approve a destructive command.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, prompt string) bool

// Confirm calls f.
func (f ConfirmerFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// AlwaysConfirm approves every prompt.
var AlwaysConfirm Confirmer = ConfirmerFunc(func(context.Context, string) bool { return true })

// NeverConfirm rejects every prompt.
var NeverConfirm Confirmer = ConfirmerFunc(func(context.Context, string) bool { return false })

// Event types published after a command changes the encounter.
const (
	EventEncounterStarted = "encounter.started"
	EventEncounterEnded   = "encounter.ended"
	EventEncounterLoaded  = "encounter.loaded"
	EventEncounterCleared = "encounter.cleared"
	EventTurnChanged      = "turn.changed"
	EventRosterChanged    = "roster.changed"
	EventCombatantChanged = "combatant.changed"
	// EventSnapshot is sent once to a display when it connects.
	EventSnapshot = "encounter.snapshot"
)

// Event is one notification to the player view.
type Event struct {
	Type string               `json:"Type"`
	View encounter.PlayerView `json:"View"`
}

// Notifier delivers events to connected displays.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event) error

// Publish calls f.
func (f NotifierFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

// NopNotifier drops every event.
var NopNotifier Notifier = NotifierFunc(func(context.Context, Event) error { return nil })
