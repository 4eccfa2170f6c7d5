package encounter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tracker/internal/game/persistent"
	"github.com/cory-johannsen/tracker/internal/game/statblock"
)

// Combatant is one participant in an encounter, created from a stat block or
// from a persistent character.
//
// A Combatant is not safe for concurrent use; the owning Encounter's caller
// serializes access.
type Combatant struct {
	id                    string
	statBlock             statblock.StatBlock
	persistentCharacterID string
	updater               persistent.Updater

	maxHP       int
	currentHP   int
	temporaryHP int

	initiative         int
	initiativeModifier int
	initiativeGroup    string

	alias      string
	indexLabel int
	hidden     bool
	revealedAC bool
	tags       []*Tag

	logger *zap.Logger
}

// ID returns the combatant's unique identifier within its encounter.
func (c *Combatant) ID() string { return c.id }

// StatBlock returns the combatant's stat block snapshot.
func (c *Combatant) StatBlock() statblock.StatBlock { return c.statBlock }

// PersistentCharacterID returns the library ID this combatant was created
// from, or "" for stat block combatants.
func (c *Combatant) PersistentCharacterID() string { return c.persistentCharacterID }

// MaxHP returns the combatant's maximum hit points.
func (c *Combatant) MaxHP() int { return c.maxHP }

// CurrentHP returns the combatant's current hit points.
func (c *Combatant) CurrentHP() int { return c.currentHP }

// TemporaryHP returns the combatant's temporary hit points.
func (c *Combatant) TemporaryHP() int { return c.temporaryHP }

// Initiative returns the combatant's initiative roll.
func (c *Combatant) Initiative() int { return c.initiative }

// InitiativeModifier returns the bonus applied to this combatant's initiative rolls.
func (c *Combatant) InitiativeModifier() int { return c.initiativeModifier }

// InitiativeGroup returns the group sharing this combatant's initiative, or "".
func (c *Combatant) InitiativeGroup() string { return c.initiativeGroup }

// Alias returns the user-assigned display name, or "".
func (c *Combatant) Alias() string { return c.alias }

// IndexLabel returns the number distinguishing same-named combatants, or 0.
func (c *Combatant) IndexLabel() int { return c.indexLabel }

// Hidden reports whether the combatant is hidden from the player view.
func (c *Combatant) Hidden() bool { return c.hidden }

// RevealedAC reports whether the combatant's AC is shown in the player view.
func (c *Combatant) RevealedAC() bool { return c.revealedAC }

// Tags returns a copy of the combatant's tags.
func (c *Combatant) Tags() []Tag {
	out := make([]Tag, len(c.tags))
	for i, t := range c.tags {
		out[i] = *t
	}
	return out
}

// IsPlayerCharacter reports whether the stat block is tagged as a player's.
// This is independent of PersistentCharacterID.
func (c *Combatant) IsPlayerCharacter() bool { return c.statBlock.IsPlayerCharacter() }

// DisplayName returns the alias if set, otherwise the stat block name with
// the index label appended when one is assigned.
func (c *Combatant) DisplayName() string {
	if c.alias != "" {
		return c.alias
	}
	if c.indexLabel > 0 {
		return fmt.Sprintf("%s %d", c.statBlock.Name, c.indexLabel)
	}
	return c.statBlock.Name
}

// IsDown reports whether the combatant has no hit points left.
func (c *Combatant) IsDown() bool { return c.currentHP <= 0 }

// ApplyDamage removes amount hit points, draining temporary HP first.
// Negative amounts heal. ctx bounds the write-back to a persistent character.
//
// Postcondition: 0 <= CurrentHP <= MaxHP; TemporaryHP >= 0.
func (c *Combatant) ApplyDamage(ctx context.Context, amount int) {
	if amount < 0 {
		c.ApplyHealing(ctx, -amount)
		return
	}
	if c.temporaryHP > 0 {
		absorbed := min(amount, c.temporaryHP)
		c.temporaryHP -= absorbed
		amount -= absorbed
	}
	c.setCurrentHP(ctx, c.currentHP-amount)
}

// ApplyHealing restores amount hit points.
//
// Postcondition: CurrentHP <= MaxHP.
func (c *Combatant) ApplyHealing(ctx context.Context, amount int) {
	if amount < 0 {
		c.ApplyDamage(ctx, -amount)
		return
	}
	c.setCurrentHP(ctx, c.currentHP+amount)
}

// ApplyTemporaryHP sets temporary HP to amount when it exceeds the current pool.
// Temporary hit points do not stack.
func (c *Combatant) ApplyTemporaryHP(amount int) {
	if amount > c.temporaryHP {
		c.temporaryHP = amount
	}
}

// RestoreHP returns the combatant to full health and clears temporary HP.
//
// Postcondition: CurrentHP == MaxHP.
func (c *Combatant) RestoreHP(ctx context.Context) {
	c.temporaryHP = 0
	c.setCurrentHP(ctx, c.maxHP)
}

// SetAlias sets the display alias; "" reverts to the stat block name.
func (c *Combatant) SetAlias(alias string) { c.alias = alias }

// SetInitiative overrides the combatant's initiative.
func (c *Combatant) SetInitiative(initiative int) { c.initiative = initiative }

// SetInitiativeGroup places the combatant in an initiative group; "" removes it.
func (c *Combatant) SetInitiativeGroup(group string) { c.initiativeGroup = group }

// SetHidden hides or reveals the combatant in the player view.
func (c *Combatant) SetHidden(hidden bool) { c.hidden = hidden }

// SetRevealedAC shows or hides the combatant's AC in the player view.
func (c *Combatant) SetRevealedAC(revealed bool) { c.revealedAC = revealed }

// AddTag attaches t to the combatant.
func (c *Combatant) AddTag(t Tag) {
	tag := t
	c.tags = append(c.tags, &tag)
}

// RemoveTag removes the first tag with the given text.
//
// Postcondition: Returns true iff a tag was removed.
func (c *Combatant) RemoveTag(text string) bool {
	for i, t := range c.tags {
		if t.Text == text {
			c.tags = append(c.tags[:i], c.tags[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Combatant) setCurrentHP(ctx context.Context, hp int) {
	hp = max(0, min(hp, c.maxHP))
	if hp == c.currentHP {
		return
	}
	c.currentHP = hp
	c.syncPersistent(ctx)
}

// syncPersistent pushes the combatant's HP into its library entry.
func (c *Combatant) syncPersistent(ctx context.Context) {
	if c.persistentCharacterID == "" || c.updater == nil {
		return
	}
	hp := c.currentHP
	if err := c.updater.UpdatePersistentCharacter(ctx, c.persistentCharacterID, persistent.Update{CurrentHP: &hp}); err != nil {
		c.logger.Warn("updating persistent character",
			zap.String("persistent_character_id", c.persistentCharacterID),
			zap.Error(err),
		)
	}
}
