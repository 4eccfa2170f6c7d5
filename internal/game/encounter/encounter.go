// Package encounter implements the combatant roster of a tabletop encounter
// and the turn flow that walks it in initiative order.
package encounter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tracker/internal/game/persistent"
	"github.com/cory-johannsen/tracker/internal/game/rules"
	"github.com/cory-johannsen/tracker/internal/game/statblock"
)

// Option configures an Encounter.
type Option func(*Encounter)

// WithRollMonsterHP rolls the HP formula of non-player stat blocks on add.
func WithRollMonsterHP(enabled bool) Option {
	return func(e *Encounter) { e.rollMonsterHP = enabled }
}

// WithAutoGroupInitiative makes same-named non-player combatants share an
// initiative roll.
func WithAutoGroupInitiative(enabled bool) Option {
	return func(e *Encounter) { e.autoGroupInitiative = enabled }
}

// WithClock replaces time.Now for turn timing.
func WithClock(now func() time.Time) Option {
	return func(e *Encounter) { e.now = now }
}

// Encounter owns the roster of combatants and its TurnFlow.
//
// An Encounter is not safe for concurrent use; callers serialize commands.
type Encounter struct {
	// Flow is the turn state machine. It may be wrapped to observe transitions;
	// the wrapper must delegate to the original value.
	Flow TurnFlow

	flow       *Flow
	combatants []*Combatant
	rules      rules.Rules
	logger     *zap.Logger
	now        func() time.Time

	rollMonsterHP       bool
	autoGroupInitiative bool
}

// New creates an empty Encounter.
//
// Precondition: r and logger must be non-nil.
// Postcondition: Flow.State() == StateInactive and the roster is empty.
func New(r rules.Rules, logger *zap.Logger, opts ...Option) *Encounter {
	e := &Encounter{
		rules:  r,
		logger: logger.With(zap.String("component", "encounter")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.flow = newFlow(e, e.now, e.logger)
	e.Flow = e.flow
	return e
}

// Rules returns the encounter's rules.
func (e *Encounter) Rules() rules.Rules { return e.rules }

// Combatants returns the roster in turn order. The slice is a copy; the
// combatants are shared.
func (e *Encounter) Combatants() []*Combatant {
	out := make([]*Combatant, len(e.combatants))
	copy(out, e.combatants)
	return out
}

// Len returns the number of combatants.
func (e *Encounter) Len() int { return len(e.combatants) }

// Combatant returns the combatant with id.
func (e *Encounter) Combatant(id string) (*Combatant, bool) {
	for _, c := range e.combatants {
		if c.id == id {
			return c, true
		}
	}
	return nil, false
}

// AddCombatantFromStatBlock adds a new combatant built from sb.
//
// Postcondition: The combatant is appended to the roster at full HP, with an
// index label when another combatant shares its name.
func (e *Encounter) AddCombatantFromStatBlock(sb statblock.StatBlock) *Combatant {
	maxHP := sb.HP.Value
	if e.rollMonsterHP && !sb.IsPlayerCharacter() {
		maxHP = e.rules.RollHP(sb)
	}
	c := e.newCombatant(uuid.NewString(), sb, maxHP)
	c.currentHP = maxHP
	e.assignIndexLabel(c)
	e.combatants = append(e.combatants, c)
	e.logger.Debug("combatant added",
		zap.String("id", c.id),
		zap.String("name", c.DisplayName()),
		zap.Int("max_hp", maxHP),
	)
	return c
}

// AddCombatantFromPersistentCharacter adds pc to the encounter. HP changes on
// the returned combatant are reported to updater.
//
// Precondition: pc must be non-nil.
// Postcondition: If pc is already in the encounter the existing combatant is
// returned unchanged; otherwise a new combatant carries pc's ID and current HP.
func (e *Encounter) AddCombatantFromPersistentCharacter(ctx context.Context, pc *persistent.Character, updater persistent.Updater) (*Combatant, error) {
	if pc == nil {
		return nil, fmt.Errorf("AddCombatantFromPersistentCharacter: character must not be nil")
	}
	for _, c := range e.combatants {
		if c.persistentCharacterID == pc.ID {
			return c, nil
		}
	}

	sb := pc.StatBlock
	if pc.Name != "" {
		sb.Name = pc.Name
	}
	c := e.newCombatant(uuid.NewString(), sb, sb.HP.Value)
	c.persistentCharacterID = pc.ID
	c.updater = updater
	c.currentHP = max(0, min(pc.CurrentHP, c.maxHP))

	if c.currentHP != pc.CurrentHP && updater != nil {
		hp := c.currentHP
		if err := updater.UpdatePersistentCharacter(ctx, pc.ID, persistent.Update{CurrentHP: &hp}); err != nil {
			return nil, fmt.Errorf("clamping persistent character %q HP: %w", pc.ID, err)
		}
	}

	e.combatants = append(e.combatants, c)
	e.logger.Debug("persistent combatant added",
		zap.String("id", c.id),
		zap.String("persistent_character_id", pc.ID),
		zap.String("name", c.DisplayName()),
	)
	return c, nil
}

// RestoreCombatant re-creates a combatant from a saved descriptor, keeping
// its ID, HP, initiative, labels and tags.
//
// Postcondition: The combatant is appended in call order.
func (e *Encounter) RestoreCombatant(cs CombatantState, updater persistent.Updater) *Combatant {
	id := cs.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, taken := e.Combatant(id); taken {
		id = uuid.NewString()
	}
	maxHP := cs.MaxHP
	if maxHP <= 0 {
		maxHP = cs.StatBlock.HP.Value
	}
	c := e.newCombatant(id, cs.StatBlock, maxHP)
	c.persistentCharacterID = cs.PersistentCharacterID
	c.updater = updater
	c.currentHP = max(0, min(cs.CurrentHP, maxHP))
	c.temporaryHP = max(0, cs.TemporaryHP)
	c.initiative = cs.Initiative
	c.initiativeGroup = cs.InitiativeGroup
	c.alias = cs.Alias
	c.indexLabel = cs.IndexLabel
	c.hidden = cs.Hidden
	c.revealedAC = cs.RevealedAC
	for _, t := range cs.Tags {
		c.AddTag(t)
	}
	e.combatants = append(e.combatants, c)
	return c
}

// RestoreFlow reinstates a saved round counter and active combatant.
func (e *Encounter) RestoreFlow(round int, activeCombatantID string) {
	e.flow.restore(round, activeCombatantID)
}

// RemoveCombatant removes c from the roster.
//
// Postcondition: Returns true iff c was present. If c was the active
// combatant, the turn passes to the next one.
func (e *Encounter) RemoveCombatant(c *Combatant) bool {
	idx := e.indexOf(c)
	if idx < 0 {
		return false
	}
	e.combatants = append(e.combatants[:idx], e.combatants[idx+1:]...)
	e.flow.combatantRemoved(c, idx)
	e.logger.Debug("combatant removed",
		zap.String("id", c.id),
		zap.String("name", c.DisplayName()),
	)
	return true
}

// ClearEncounter removes every combatant and ends the flow.
//
// Postcondition: Len() == 0; Flow.State() == StateInactive.
func (e *Encounter) ClearEncounter() {
	e.combatants = nil
	e.flow.End()
}

func (e *Encounter) newCombatant(id string, sb statblock.StatBlock, maxHP int) *Combatant {
	return &Combatant{
		id:                 id,
		statBlock:          sb,
		maxHP:              maxHP,
		initiativeModifier: e.rules.InitiativeModifier(sb),
		logger:             e.logger,
	}
}

// assignIndexLabel numbers same-named non-persistent combatants; the first
// one is labelled retroactively when a second arrives.
func (e *Encounter) assignIndexLabel(c *Combatant) {
	highest := 0
	var unlabelled *Combatant
	for _, other := range e.combatants {
		if other.persistentCharacterID != "" || other.statBlock.Name != c.statBlock.Name {
			continue
		}
		if other.indexLabel == 0 {
			unlabelled = other
		}
		highest = max(highest, other.indexLabel)
	}
	if unlabelled == nil && highest == 0 {
		return
	}
	if unlabelled != nil && highest == 0 {
		unlabelled.indexLabel = 1
		highest = 1
	}
	c.indexLabel = highest + 1
}

func (e *Encounter) indexOf(c *Combatant) int {
	for i, other := range e.combatants {
		if other == c {
			return i
		}
	}
	return -1
}
