package encounter

import "fmt"

// PlayerViewCombatant is what players see of a combatant.
type PlayerViewCombatant struct {
	ID                string   `json:"Id"`
	Name              string   `json:"Name"`
	HPDisplay         string   `json:"HPDisplay"`
	AC                *int     `json:"AC,omitempty"`
	Initiative        int      `json:"Initiative"`
	IsPlayerCharacter bool     `json:"IsPlayerCharacter"`
	IsActive          bool     `json:"IsActive"`
	Tags              []string `json:"Tags"`
}

// PlayerView is the player-facing projection of an encounter.
type PlayerView struct {
	State             FlowState             `json:"State"`
	RoundCounter      int                   `json:"RoundCounter"`
	ActiveCombatantID string                `json:"ActiveCombatantId,omitempty"`
	Combatants        []PlayerViewCombatant `json:"Combatants"`
}

// PlayerView projects the encounter for the player display: hidden
// combatants and hidden tags are omitted, and only player characters show
// exact HP.
func (e *Encounter) PlayerView() PlayerView {
	v := PlayerView{
		State:        e.flow.State(),
		RoundCounter: e.flow.RoundCounter(),
		Combatants:   make([]PlayerViewCombatant, 0, len(e.combatants)),
	}
	active := e.flow.ActiveCombatant()
	if active != nil && !active.hidden {
		v.ActiveCombatantID = active.id
	}
	for _, c := range e.combatants {
		if c.hidden {
			continue
		}
		pv := PlayerViewCombatant{
			ID:                c.id,
			Name:              c.DisplayName(),
			HPDisplay:         c.HealthDescription(),
			Initiative:        c.initiative,
			IsPlayerCharacter: c.IsPlayerCharacter(),
			IsActive:          c == active,
			Tags:              []string{},
		}
		if c.IsPlayerCharacter() {
			pv.HPDisplay = fmt.Sprintf("%d/%d", c.currentHP, c.maxHP)
		}
		if c.revealedAC {
			ac := c.statBlock.AC.Value
			pv.AC = &ac
		}
		for _, t := range c.tags {
			if !t.Hidden {
				pv.Tags = append(pv.Tags, t.Text)
			}
		}
		v.Combatants = append(v.Combatants, pv)
	}
	return v
}

// HealthDescription returns a coarse health label for enemies.
//
// Postcondition: Returns a non-empty string.
func (c *Combatant) HealthDescription() string {
	if c.currentHP <= 0 {
		return "Defeated"
	}
	if c.maxHP <= 0 {
		return "Healthy"
	}
	pct := float64(c.currentHP) / float64(c.maxHP)
	switch {
	case pct >= 1.0:
		return "Healthy"
	case pct >= 0.5:
		return "Hurt"
	case pct >= 0.25:
		return "Bloodied"
	default:
		return "Critical"
	}
}
