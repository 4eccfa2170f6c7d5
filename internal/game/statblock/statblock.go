// Package statblock defines creature stat blocks and the YAML library they
// are loaded from.
package statblock

import (
	"fmt"
	"strings"
)

// PlayerTag marks a stat block as belonging to a player character.
const PlayerTag = "player"

// ValueWithNotes is a number with free-form notes, e.g. HP 7 "(2d6)".
type ValueWithNotes struct {
	Value int    `yaml:"value" json:"Value"`
	Notes string `yaml:"notes" json:"Notes"`
}

// Abilities holds the six ability scores.
type Abilities struct {
	Str int `yaml:"str" json:"Str"`
	Dex int `yaml:"dex" json:"Dex"`
	Con int `yaml:"con" json:"Con"`
	Int int `yaml:"int" json:"Int"`
	Wis int `yaml:"wis" json:"Wis"`
	Cha int `yaml:"cha" json:"Cha"`
}

// StatBlock is a creature template. Combatants copy it at creation time.
type StatBlock struct {
	ID                  string         `yaml:"id" json:"Id"`
	Name                string         `yaml:"name" json:"Name"`
	Source              string         `yaml:"source" json:"Source"`
	Type                string         `yaml:"type" json:"Type"`
	HP                  ValueWithNotes `yaml:"hp" json:"HP"`
	AC                  ValueWithNotes `yaml:"ac" json:"AC"`
	InitiativeModifier  int            `yaml:"initiative_modifier" json:"InitiativeModifier"`
	InitiativeAdvantage bool           `yaml:"initiative_advantage" json:"InitiativeAdvantage"`
	Abilities           Abilities      `yaml:"abilities" json:"Abilities"`
	// Player is PlayerTag for player characters and empty for everything else.
	Player      string `yaml:"player" json:"Player"`
	Description string `yaml:"description" json:"Description"`
}

// Default returns the blank stat block used for quick-added combatants.
//
// Postcondition: HP.Value == 1, AC.Value == 10, all abilities 10.
func Default() StatBlock {
	return StatBlock{
		HP: ValueWithNotes{Value: 1},
		AC: ValueWithNotes{Value: 10},
		Abilities: Abilities{
			Str: 10, Dex: 10, Con: 10, Int: 10, Wis: 10, Cha: 10,
		},
	}
}

// IsPlayerCharacter reports whether the stat block belongs to a player.
func (s StatBlock) IsPlayerCharacter() bool {
	return s.Player == PlayerTag
}

// Validate checks the invariants of a library stat block.
//
// Postcondition: Returns nil iff Name is non-empty, HP >= 1, AC >= 0 and every
// ability score is 1..30; otherwise an error naming all violations.
func (s StatBlock) Validate() error {
	var errs []string
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, "name must not be empty")
	}
	if s.HP.Value < 1 {
		errs = append(errs, fmt.Sprintf("hp must be >= 1, got %d", s.HP.Value))
	}
	if s.AC.Value < 0 {
		errs = append(errs, fmt.Sprintf("ac must be >= 0, got %d", s.AC.Value))
	}
	scores := map[string]int{
		"str": s.Abilities.Str, "dex": s.Abilities.Dex, "con": s.Abilities.Con,
		"int": s.Abilities.Int, "wis": s.Abilities.Wis, "cha": s.Abilities.Cha,
	}
	for _, k := range []string{"str", "dex", "con", "int", "wis", "cha"} {
		if v := scores[k]; v < 1 || v > 30 {
			errs = append(errs, fmt.Sprintf("%s must be 1-30, got %d", k, v))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("stat block %q: %s", s.Name, strings.Join(errs, "; "))
	}
	return nil
}
