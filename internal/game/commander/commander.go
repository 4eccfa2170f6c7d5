// Package commander implements the operator commands of an encounter: turn
// control, roster maintenance and saved-encounter loading.
package commander

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tracker/internal/game/encounter"
	"github.com/cory-johannsen/tracker/internal/game/persistent"
	"github.com/cory-johannsen/tracker/internal/game/savedencounter"
	"github.com/cory-johannsen/tracker/internal/game/statblock"
)

// ErrUnknownPersistentCharacter is returned when a saved encounter or an add
// request names a persistent character missing from the library.
var ErrUnknownPersistentCharacter = errors.New("unknown persistent character reference")

// ErrUnknownCombatant is returned when no combatant has the requested ID.
var ErrUnknownCombatant = errors.New("unknown combatant")

// SkippedCombatantsError reports the persistent references a load dropped
// because the library no longer holds them. It unwraps to
// ErrUnknownPersistentCharacter.
type SkippedCombatantsError struct {
	Encounter string
	IDs       []string
}

func (e *SkippedCombatantsError) Error() string {
	return fmt.Sprintf("loading saved encounter %q: skipped %d combatant(s): %v: %s",
		e.Encounter, len(e.IDs), ErrUnknownPersistentCharacter, strings.Join(e.IDs, ", "))
}

func (e *SkippedCombatantsError) Unwrap() error { return ErrUnknownPersistentCharacter }

// Settings are the operator preferences that affect commands.
type Settings struct {
	// AutoRollInitiative selects who has initiative rolled on start.
	AutoRollInitiative encounter.RollMode
	// ConfirmDestructive gates clean, clear and restore behind the Confirmer.
	ConfirmDestructive bool
}

// Commander serializes operator commands against one Encounter.
type Commander struct {
	mu         sync.Mutex
	enc        *encounter.Encounter
	characters persistent.Store
	saved      savedencounter.Store
	confirmer  Confirmer
	notifier   Notifier
	settings   Settings
	registry   *Registry
	logger     *zap.Logger
}

// New creates a Commander.
//
// Precondition: enc, characters, saved and logger must be non-nil. A nil
// confirmer approves every prompt; a nil notifier drops events.
// Postcondition: Returns a Commander with the built-in command registry.
func New(
	enc *encounter.Encounter,
	characters persistent.Store,
	saved savedencounter.Store,
	confirmer Confirmer,
	notifier Notifier,
	settings Settings,
	logger *zap.Logger,
) *Commander {
	if confirmer == nil {
		confirmer = AlwaysConfirm
	}
	if notifier == nil {
		notifier = NopNotifier
	}
	if !settings.AutoRollInitiative.Valid() {
		settings.AutoRollInitiative = encounter.RollNone
	}
	return &Commander{
		enc:        enc,
		characters: characters,
		saved:      saved,
		confirmer:  confirmer,
		notifier:   notifier,
		settings:   settings,
		registry:   DefaultRegistry(),
		logger:     logger.With(zap.String("component", "commander")),
	}
}

// Registry returns the command registry used by Dispatch.
func (c *Commander) Registry() *Registry { return c.registry }

// StartEncounter rolls initiative per settings and starts the turn flow.
//
// Postcondition: Returns false and changes nothing when the encounter has no
// combatants or is already active.
func (c *Commander) StartEncounter(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startEncounter(ctx)
}

func (c *Commander) startEncounter(ctx context.Context) bool {
	if c.enc.Len() == 0 || c.enc.Flow.State() == encounter.StateActive {
		return false
	}
	c.enc.RollInitiative(c.settings.AutoRollInitiative)
	c.enc.Flow.Start()
	c.logger.Info("start encounter",
		zap.Int("combatants", c.enc.Len()),
		zap.String("auto_roll", string(c.settings.AutoRollInitiative)),
	)
	c.publish(ctx, EventEncounterStarted)
	return true
}

// NextTurn advances the turn. An inactive encounter is started instead, and
// the turn is not advanced.
func (c *Commander) NextTurn(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enc.Flow.State() != encounter.StateActive {
		return c.startEncounter(ctx)
	}
	c.enc.Flow.NextTurn()
	c.publish(ctx, EventTurnChanged)
	return true
}

// PreviousTurn steps the active combatant back one turn.
func (c *Commander) PreviousTurn(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enc.Flow.State() != encounter.StateActive {
		return false
	}
	c.enc.Flow.PreviousTurn()
	c.publish(ctx, EventTurnChanged)
	return true
}

// EndEncounter stops the turn flow, keeping the roster.
func (c *Commander) EndEncounter(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enc.Flow.State() != encounter.StateActive {
		return false
	}
	c.enc.Flow.End()
	c.logger.Info("end encounter")
	c.publish(ctx, EventEncounterEnded)
	return true
}

// RerollInitiative rolls initiative for every combatant and re-sorts. The
// active combatant keeps the turn.
func (c *Commander) RerollInitiative(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enc.Len() == 0 {
		return false
	}
	c.enc.RollInitiative(encounter.RollAll)
	c.publish(ctx, EventRosterChanged)
	return true
}

// CleanEncounter removes every combatant that is not backed by a persistent
// character.
//
// Postcondition: Only combatants with a PersistentCharacterID remain, unless
// the operator declined.
func (c *Commander) CleanEncounter(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.confirm(ctx, "Remove all creatures that are not persistent characters?") {
		return false
	}
	removed := 0
	for _, cb := range c.enc.Combatants() {
		if cb.PersistentCharacterID() != "" {
			continue
		}
		if c.enc.RemoveCombatant(cb) {
			removed++
		}
	}
	c.logger.Info("clean encounter", zap.Int("removed", removed))
	if removed == 0 {
		return false
	}
	c.publish(ctx, EventRosterChanged)
	return true
}

// ClearEncounter removes every combatant and ends the flow.
//
// Postcondition: The roster is empty, unless the operator declined.
func (c *Commander) ClearEncounter(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.confirm(ctx, "Remove all combatants and end the encounter?") {
		return false
	}
	n := c.enc.Len()
	c.enc.ClearEncounter()
	c.logger.Info("clear encounter", zap.Int("removed", n))
	c.publish(ctx, EventEncounterCleared)
	return true
}

// RestoreAllPlayerCharacterHP returns every player character to full HP.
// Non-player combatants are untouched.
func (c *Commander) RestoreAllPlayerCharacterHP(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.confirm(ctx, "Restore all player characters to maximum HP?") {
		return false
	}
	restored := 0
	for _, cb := range c.enc.Combatants() {
		if !cb.IsPlayerCharacter() {
			continue
		}
		cb.RestoreHP(ctx)
		restored++
	}
	c.logger.Info("restore player character hp", zap.Int("restored", restored))
	if restored == 0 {
		return false
	}
	c.publish(ctx, EventRosterChanged)
	return true
}

// LoadSavedEncounter replaces the roster with the combatants of state.
//
// Persistent-character descriptors are resolved against the current library
// entry, not the snapshot in state. References the library no longer holds
// are skipped.
//
// Postcondition: The roster holds every resolvable combatant of state in
// saved order, and the saved round and active combatant are restored. When
// references were skipped the load still completes and a
// *SkippedCombatantsError naming them is returned. Any other store error
// aborts before the roster is touched.
func (c *Commander) LoadSavedEncounter(ctx context.Context, state encounter.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadSavedEncounter(ctx, state)
}

type resolvedCombatant struct {
	state     encounter.CombatantState
	libraryHP int
}

func (c *Commander) loadSavedEncounter(ctx context.Context, state encounter.State) error {
	resolved := make([]resolvedCombatant, 0, len(state.Combatants))
	var skipped []string
	for i, cs := range state.Combatants {
		if !cs.IsPersistentReference() {
			resolved = append(resolved, resolvedCombatant{state: cs})
			continue
		}
		pc, err := c.characters.Get(ctx, cs.PersistentCharacterID)
		if errors.Is(err, persistent.ErrNotFound) {
			c.logger.Warn("saved encounter references unknown persistent character",
				zap.String("persistent_character_id", cs.PersistentCharacterID),
				zap.Int("position", i),
			)
			skipped = append(skipped, cs.PersistentCharacterID)
			continue
		}
		if err != nil {
			return fmt.Errorf("loading saved encounter %q: combatant %d: %w", state.Name, i, err)
		}
		sb := pc.StatBlock
		if pc.Name != "" {
			sb.Name = pc.Name
		}
		cs.StatBlock = sb
		cs.MaxHP = sb.HP.Value
		cs.CurrentHP = pc.CurrentHP
		resolved = append(resolved, resolvedCombatant{state: cs, libraryHP: pc.CurrentHP})
	}

	c.enc.ClearEncounter()
	for _, r := range resolved {
		if !r.state.IsPersistentReference() {
			c.enc.RestoreCombatant(r.state, nil)
			continue
		}
		cb := c.enc.RestoreCombatant(r.state, c.characters)
		if cb.CurrentHP() != r.libraryHP {
			hp := cb.CurrentHP()
			if err := c.characters.UpdatePersistentCharacter(ctx, cb.PersistentCharacterID(), persistent.Update{CurrentHP: &hp}); err != nil {
				c.logger.Warn("clamping persistent character hp",
					zap.String("persistent_character_id", cb.PersistentCharacterID()),
					zap.Error(err),
				)
			}
		}
	}
	c.enc.RestoreFlow(state.RoundCounter, state.ActiveCombatantID)
	c.logger.Info("load saved encounter",
		zap.String("name", state.Name),
		zap.Int("combatants", len(resolved)),
		zap.Int("skipped", len(skipped)),
	)
	c.publish(ctx, EventEncounterLoaded)
	if len(skipped) > 0 {
		return &SkippedCombatantsError{Encounter: state.Name, IDs: skipped}
	}
	return nil
}

// SaveEncounter stores the current encounter under name.
func (c *Commander) SaveEncounter(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.enc.GetEncounterState()
	state.Name = name
	if err := c.saved.Save(ctx, name, state); err != nil {
		return fmt.Errorf("saving encounter %q: %w", name, err)
	}
	c.logger.Info("save encounter", zap.String("name", name), zap.Int("combatants", len(state.Combatants)))
	return nil
}

// ListSavedEncounters returns every saved encounter ordered by name.
func (c *Commander) ListSavedEncounters(ctx context.Context) ([]savedencounter.Entry, error) {
	entries, err := c.saved.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing saved encounters: %w", err)
	}
	return entries, nil
}

// LoadSavedEncounterByName looks up a saved encounter and loads it.
func (c *Commander) LoadSavedEncounterByName(ctx context.Context, name string) error {
	entry, err := c.saved.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("loading saved encounter %q: %w", name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadSavedEncounter(ctx, entry.State)
}

// AddStatBlock adds a combatant built from sb and returns its ID.
func (c *Commander) AddStatBlock(ctx context.Context, sb statblock.StatBlock) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb := c.enc.AddCombatantFromStatBlock(sb)
	c.publish(ctx, EventRosterChanged)
	return cb.ID()
}

// AddPersistentCharacter adds the library character id and returns the
// combatant ID. Adding a character already present returns its combatant.
func (c *Commander) AddPersistentCharacter(ctx context.Context, id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pc, err := c.characters.Get(ctx, id)
	if errors.Is(err, persistent.ErrNotFound) {
		return "", fmt.Errorf("%w: %q", ErrUnknownPersistentCharacter, id)
	}
	if err != nil {
		return "", fmt.Errorf("adding persistent character %q: %w", id, err)
	}
	cb, err := c.enc.AddCombatantFromPersistentCharacter(ctx, pc, c.characters)
	if err != nil {
		return "", err
	}
	c.publish(ctx, EventRosterChanged)
	return cb.ID(), nil
}

// RemoveCombatant removes the combatant with id.
func (c *Commander) RemoveCombatant(ctx context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.enc.Combatant(id)
	if !ok || !c.enc.RemoveCombatant(cb) {
		return false
	}
	c.publish(ctx, EventRosterChanged)
	return true
}

// DamageCombatant applies amount damage to the combatant with id.
func (c *Commander) DamageCombatant(ctx context.Context, id string, amount int) error {
	return c.withCombatant(ctx, id, func(cb *encounter.Combatant) { cb.ApplyDamage(ctx, amount) })
}

// HealCombatant applies amount healing to the combatant with id.
func (c *Commander) HealCombatant(ctx context.Context, id string, amount int) error {
	return c.withCombatant(ctx, id, func(cb *encounter.Combatant) { cb.ApplyHealing(ctx, amount) })
}

// ApplyTemporaryHP grants temporary hit points to the combatant with id.
func (c *Commander) ApplyTemporaryHP(ctx context.Context, id string, amount int) error {
	return c.withCombatant(ctx, id, func(cb *encounter.Combatant) { cb.ApplyTemporaryHP(amount) })
}

// SetInitiative sets the initiative of the combatant with id and re-sorts.
func (c *Commander) SetInitiative(ctx context.Context, id string, initiative int) error {
	return c.withCombatant(ctx, id, func(cb *encounter.Combatant) {
		cb.SetInitiative(initiative)
		c.enc.SortByInitiative()
	})
}

// SetHidden hides or reveals the combatant with id in the player view.
func (c *Commander) SetHidden(ctx context.Context, id string, hidden bool) error {
	return c.withCombatant(ctx, id, func(cb *encounter.Combatant) { cb.SetHidden(hidden) })
}

// SetAlias renames the combatant with id for display.
func (c *Commander) SetAlias(ctx context.Context, id, alias string) error {
	return c.withCombatant(ctx, id, func(cb *encounter.Combatant) { cb.SetAlias(alias) })
}

// AddTag attaches tag to the combatant with id.
func (c *Commander) AddTag(ctx context.Context, id string, tag encounter.Tag) error {
	return c.withCombatant(ctx, id, func(cb *encounter.Combatant) { cb.AddTag(tag) })
}

// RemoveTag removes the tag text from the combatant with id.
func (c *Commander) RemoveTag(ctx context.Context, id, text string) error {
	return c.withCombatant(ctx, id, func(cb *encounter.Combatant) { cb.RemoveTag(text) })
}

// State snapshots the encounter.
func (c *Commander) State() encounter.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.GetEncounterState()
}

// PlayerView projects the encounter for players.
func (c *Commander) PlayerView() encounter.PlayerView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.PlayerView()
}

func (c *Commander) withCombatant(ctx context.Context, id string, fn func(*encounter.Combatant)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.enc.Combatant(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCombatant, id)
	}
	fn(cb)
	c.publish(ctx, EventCombatantChanged)
	return nil
}

func (c *Commander) confirm(ctx context.Context, prompt string) bool {
	if !c.settings.ConfirmDestructive {
		return true
	}
	if c.confirmer.Confirm(ctx, prompt) {
		return true
	}
	c.logger.Debug("command declined", zap.String("prompt", prompt))
	return false
}

// publish must be called with c.mu held so events leave in command order.
func (c *Commander) publish(ctx context.Context, eventType string) {
	ev := Event{Type: eventType, View: c.enc.PlayerView()}
	if err := c.notifier.Publish(ctx, ev); err != nil {
		c.logger.Warn("publishing event", zap.String("type", eventType), zap.Error(err))
	}
}
