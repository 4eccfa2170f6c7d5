package encounter

import (
	"time"

	"go.uber.org/zap"
)

// FlowState is the encounter's turn-order state.
type FlowState string

const (
	StateInactive FlowState = "inactive"
	StateActive   FlowState = "active"
)

// TurnFlow is the turn and round state machine of an encounter.
//
// Invariant: ActiveCombatant() != nil iff State() == StateActive.
type TurnFlow interface {
	State() FlowState
	RoundCounter() int
	ActiveCombatant() *Combatant
	// TurnDuration returns how long the active combatant's turn has lasted.
	TurnDuration() time.Duration
	// Start sorts by initiative and activates the first combatant.
	// It is a no-op when the encounter has no combatants.
	Start()
	// NextTurn advances to the next combatant, incrementing the round on wrap.
	NextTurn()
	// PreviousTurn steps back one turn; it never goes before round 1's first turn.
	PreviousTurn()
	// End returns the flow to StateInactive.
	End()
}

// Flow is the default TurnFlow over an Encounter's roster.
type Flow struct {
	enc         *Encounter
	state       FlowState
	round       int
	active      *Combatant
	turnStarted time.Time
	now         func() time.Time
	logger      *zap.Logger
}

func newFlow(enc *Encounter, now func() time.Time, logger *zap.Logger) *Flow {
	return &Flow{
		enc:    enc,
		state:  StateInactive,
		now:    now,
		logger: logger,
	}
}

// State implements TurnFlow.
func (f *Flow) State() FlowState { return f.state }

// RoundCounter implements TurnFlow.
func (f *Flow) RoundCounter() int { return f.round }

// ActiveCombatant implements TurnFlow.
func (f *Flow) ActiveCombatant() *Combatant { return f.active }

// TurnDuration implements TurnFlow.
func (f *Flow) TurnDuration() time.Duration {
	if f.state != StateActive {
		return 0
	}
	return f.now().Sub(f.turnStarted)
}

// Start implements TurnFlow.
//
// Postcondition: With at least one combatant, State() == StateActive,
// RoundCounter() == 1 and the highest-initiative combatant is active.
func (f *Flow) Start() {
	if len(f.enc.combatants) == 0 {
		return
	}
	f.enc.SortByInitiative()
	f.state = StateActive
	f.round = 1
	f.activate(f.enc.combatants[0])
	f.logger.Info("encounter started",
		zap.Int("combatants", len(f.enc.combatants)),
		zap.String("active", f.active.DisplayName()),
	)
}

// NextTurn implements TurnFlow.
func (f *Flow) NextTurn() {
	if f.state != StateActive || len(f.enc.combatants) == 0 {
		return
	}
	f.expire(tickTags(f.enc.combatants, f.active.id, EndOfTurn))

	idx := f.enc.indexOf(f.active) + 1
	if idx >= len(f.enc.combatants) {
		idx = 0
		f.round++
	}
	f.activate(f.enc.combatants[idx])
	f.logger.Debug("next turn",
		zap.Int("round", f.round),
		zap.String("active", f.active.DisplayName()),
	)
}

// PreviousTurn implements TurnFlow.
func (f *Flow) PreviousTurn() {
	if f.state != StateActive || len(f.enc.combatants) == 0 {
		return
	}
	idx := f.enc.indexOf(f.active)
	if f.round <= 1 && idx <= 0 {
		return
	}
	idx--
	if idx < 0 {
		idx = len(f.enc.combatants) - 1
		f.round--
	}
	f.active = f.enc.combatants[idx]
	f.turnStarted = f.now()
}

// End implements TurnFlow.
func (f *Flow) End() {
	if f.state == StateInactive {
		return
	}
	f.state = StateInactive
	f.active = nil
	f.round = 0
	f.logger.Info("encounter ended")
}

// restore reinstates a saved round and active combatant. An unknown active ID
// leaves the flow inactive.
func (f *Flow) restore(round int, activeID string) {
	if activeID == "" || round < 1 {
		f.End()
		return
	}
	for _, c := range f.enc.combatants {
		if c.id == activeID {
			f.state = StateActive
			f.round = round
			f.active = c
			f.turnStarted = f.now()
			return
		}
	}
	f.End()
}

// combatantRemoved keeps the flow consistent when c, previously at idx, leaves
// the roster.
func (f *Flow) combatantRemoved(c *Combatant, idx int) {
	if f.active != c {
		return
	}
	if len(f.enc.combatants) == 0 {
		f.End()
		return
	}
	if idx >= len(f.enc.combatants) {
		idx = 0
		f.round++
	}
	f.activate(f.enc.combatants[idx])
}

func (f *Flow) activate(c *Combatant) {
	f.active = c
	f.turnStarted = f.now()
	f.expire(tickTags(f.enc.combatants, c.id, StartOfTurn))
}

func (f *Flow) expire(texts []string) {
	for _, t := range texts {
		f.logger.Debug("tag expired", zap.String("tag", t))
	}
}
