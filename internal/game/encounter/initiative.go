package encounter

import "sort"

// RollMode selects which combatants have initiative rolled automatically.
type RollMode string

const (
	RollNone    RollMode = "none"
	RollEnemies RollMode = "enemies"
	RollAll     RollMode = "all"
)

// Valid reports whether m is a known mode.
func (m RollMode) Valid() bool {
	switch m {
	case RollNone, RollEnemies, RollAll:
		return true
	}
	return false
}

// RollInitiative rolls initiative for the combatants selected by mode.
// Members of one initiative group share a single roll, made with the first
// member's modifier.
//
// Postcondition: Every selected combatant's Initiative is set; the roster is
// re-sorted.
func (e *Encounter) RollInitiative(mode RollMode) {
	if mode == RollNone || !mode.Valid() {
		return
	}
	rolled := make(map[string]int)
	for _, c := range e.combatants {
		if mode == RollEnemies && c.IsPlayerCharacter() {
			continue
		}
		key := e.groupKey(c)
		if key != "" {
			if v, ok := rolled[key]; ok {
				c.initiative = v
				continue
			}
		}
		c.initiative = e.rules.RollInitiative(c.initiativeModifier, c.statBlock.InitiativeAdvantage)
		if key != "" {
			rolled[key] = c.initiative
		}
	}
	e.SortByInitiative()
}

func (e *Encounter) groupKey(c *Combatant) string {
	if c.initiativeGroup != "" {
		return "group:" + c.initiativeGroup
	}
	if e.autoGroupInitiative && !c.IsPlayerCharacter() && c.persistentCharacterID == "" {
		return "name:" + c.statBlock.Name
	}
	return ""
}

// SortByInitiative orders the roster by initiative descending, then
// initiative modifier descending, then player characters first. Ties keep
// their current order.
func (e *Encounter) SortByInitiative() {
	sort.SliceStable(e.combatants, func(i, j int) bool {
		a, b := e.combatants[i], e.combatants[j]
		if a.initiative != b.initiative {
			return a.initiative > b.initiative
		}
		if a.initiativeModifier != b.initiativeModifier {
			return a.initiativeModifier > b.initiativeModifier
		}
		return a.IsPlayerCharacter() && !b.IsPlayerCharacter()
	})
}
