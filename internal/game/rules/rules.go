// Package rules holds the game-system arithmetic the encounter depends on:
// ability modifiers, initiative and hit-point rolls.
package rules

import (
	"github.com/cory-johannsen/tracker/internal/game/dice"
	"github.com/cory-johannsen/tracker/internal/game/statblock"
)

// Rules is the set of game-system calculations used by an encounter.
type Rules interface {
	// AbilityModifier converts an ability score to its modifier.
	AbilityModifier(score int) int
	// InitiativeModifier returns the total initiative bonus for sb.
	InitiativeModifier(sb statblock.StatBlock) int
	// RollInitiative rolls d20 + modifier, keeping the higher of two d20s with advantage.
	RollInitiative(modifier int, advantage bool) int
	// RollHP rolls the hit-point formula found in sb's HP notes, or returns the fixed value.
	RollHP(sb statblock.StatBlock) int
}

// DefaultRules implements the fifth-edition defaults.
type DefaultRules struct {
	roller *dice.Roller
}

// NewDefaultRules creates DefaultRules rolling with roller.
//
// Precondition: roller must be non-nil.
func NewDefaultRules(roller *dice.Roller) *DefaultRules {
	return &DefaultRules{roller: roller}
}

// AbilityModifier returns floor((score - 10) / 2).
func (r *DefaultRules) AbilityModifier(score int) int {
	diff := score - 10
	if diff < 0 {
		return (diff - 1) / 2
	}
	return diff / 2
}

// InitiativeModifier is the Dex modifier plus the stat block's initiative bonus.
func (r *DefaultRules) InitiativeModifier(sb statblock.StatBlock) int {
	return r.AbilityModifier(sb.Abilities.Dex) + sb.InitiativeModifier
}

// RollInitiative rolls d20 + modifier.
func (r *DefaultRules) RollInitiative(modifier int, advantage bool) int {
	roll := r.roller.D20()
	if advantage {
		if second := r.roller.D20(); second > roll {
			roll = second
		}
	}
	return roll + modifier
}

// RollHP rolls the first dice formula in sb.HP.Notes.
//
// Postcondition: Returns >= 1 when a formula is found; sb.HP.Value otherwise.
func (r *DefaultRules) RollHP(sb statblock.StatBlock) int {
	expr, ok := dice.Find(sb.HP.Notes)
	if !ok {
		return sb.HP.Value
	}
	hp := r.roller.Roll(expr).Total()
	if hp < 1 {
		return 1
	}
	return hp
}
