package encounter

// DurationTiming is the point in a turn at which a tag's duration ticks.
type DurationTiming string

const (
	StartOfTurn DurationTiming = "StartOfTurn"
	EndOfTurn   DurationTiming = "EndOfTurn"
)

// Tag is a free-text condition on a combatant, optionally expiring after a
// number of turns of another combatant.
type Tag struct {
	Text string `json:"Text"`
	// DurationRemaining is the number of ticks left; 0 means the tag never expires.
	DurationRemaining int `json:"DurationRemaining"`
	// DurationTiming selects whether the tag ticks at the start or end of the
	// timing combatant's turn.
	DurationTiming DurationTiming `json:"DurationTiming,omitempty"`
	// DurationCombatantID is the combatant whose turn drives the countdown.
	DurationCombatantID string `json:"DurationCombatantId,omitempty"`
	Hidden              bool   `json:"Hidden"`
}

// HasDuration reports whether the tag expires.
func (t Tag) HasDuration() bool { return t.DurationRemaining > 0 }

// tickTags decrements every timed tag driven by (combatantID, timing) across
// combatants and drops those reaching zero.
//
// Postcondition: Returns the expired tags' texts in combatant order.
func tickTags(combatants []*Combatant, combatantID string, timing DurationTiming) []string {
	var expired []string
	for _, c := range combatants {
		kept := c.tags[:0]
		for _, t := range c.tags {
			if t.HasDuration() && t.DurationCombatantID == combatantID && t.DurationTiming == timing {
				t.DurationRemaining--
				if t.DurationRemaining <= 0 {
					expired = append(expired, t.Text)
					continue
				}
			}
			kept = append(kept, t)
		}
		c.tags = kept
	}
	return expired
}
