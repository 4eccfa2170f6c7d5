// Package dice parses and rolls tabletop dice expressions such as "1d20+3"
// and the hit-point formulas embedded in stat block notes.
package dice

import (
	"fmt"
	"strings"
)

// Result records a single evaluated roll.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type Result struct {
	Expression string
	Dice       []int
	Modifier   int
}

// Total returns the sum of the rolled dice plus the modifier.
func (r Result) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String renders the roll as "2d6+3 [4 5] = 12".
func (r Result) String() string {
	parts := make([]string, len(r.Dice))
	for i, d := range r.Dice {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return fmt.Sprintf("%s [%s] = %d", r.Expression, strings.Join(parts, " "), r.Total())
}

// Source is the randomness provider for rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a value in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}
