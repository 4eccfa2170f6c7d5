package encounter

import "github.com/cory-johannsen/tracker/internal/game/statblock"

// StateVersion is written into every saved combatant descriptor.
const StateVersion = "1"

// CombatantState is the serialized form of a Combatant.
//
// A non-empty PersistentCharacterID marks a reference to the persistent
// library; StatBlock is then only the snapshot taken at save time.
type CombatantState struct {
	ID                    string              `json:"Id"`
	StatBlock             statblock.StatBlock `json:"StatBlock"`
	PersistentCharacterID string              `json:"PersistentCharacterId,omitempty"`
	MaxHP                 int                 `json:"MaxHP"`
	CurrentHP             int                 `json:"CurrentHP"`
	TemporaryHP           int                 `json:"TemporaryHP"`
	Initiative            int                 `json:"Initiative"`
	InitiativeGroup       string              `json:"InitiativeGroup,omitempty"`
	Alias                 string              `json:"Alias"`
	IndexLabel            int                 `json:"IndexLabel"`
	Hidden                bool                `json:"Hidden"`
	RevealedAC            bool                `json:"RevealedAC"`
	Tags                  []Tag               `json:"Tags"`
	InterfaceVersion      string              `json:"InterfaceVersion"`
}

// IsPersistentReference reports whether the descriptor points at the library.
func (cs CombatantState) IsPersistentReference() bool { return cs.PersistentCharacterID != "" }

// State is a serializable snapshot of an encounter.
//
// Invariant: Combatants is in roster order.
type State struct {
	Name              string           `json:"Name,omitempty"`
	RoundCounter      int              `json:"RoundCounter"`
	ActiveCombatantID string           `json:"ActiveCombatantId,omitempty"`
	Combatants        []CombatantState `json:"Combatants"`
}

// GetEncounterState snapshots the roster and flow.
//
// Postcondition: len(state.Combatants) == Len(), in roster order.
func (e *Encounter) GetEncounterState() State {
	s := State{
		RoundCounter: e.flow.RoundCounter(),
		Combatants:   make([]CombatantState, 0, len(e.combatants)),
	}
	if a := e.flow.ActiveCombatant(); a != nil {
		s.ActiveCombatantID = a.id
	}
	for _, c := range e.combatants {
		s.Combatants = append(s.Combatants, c.state())
	}
	return s
}

func (c *Combatant) state() CombatantState {
	return CombatantState{
		ID:                    c.id,
		StatBlock:             c.statBlock,
		PersistentCharacterID: c.persistentCharacterID,
		MaxHP:                 c.maxHP,
		CurrentHP:             c.currentHP,
		TemporaryHP:           c.temporaryHP,
		Initiative:            c.initiative,
		InitiativeGroup:       c.initiativeGroup,
		Alias:                 c.alias,
		IndexLabel:            c.indexLabel,
		Hidden:                c.hidden,
		RevealedAC:            c.revealedAC,
		Tags:                  c.Tags(),
		InterfaceVersion:      StateVersion,
	}
}
