package dice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Expression is a parsed dice expression.
//
// Invariant: Count == 0 means a flat value (Modifier only); otherwise
// 1 <= Count <= MaxCount and 2 <= Sides <= MaxSides.
type Expression struct {
	Raw      string
	Count    int
	Sides    int
	Modifier int
}

// Limits on parsed expressions. Stat block notes come from user input, and
// Roll allocates one slot per die.
const (
	MaxCount = 1000
	MaxSides = 1000
)

var (
	exprPattern = regexp.MustCompile(`^(\d*)d(\d+)(?:\s*([+-])\s*(\d+))?$`)
	findPattern = regexp.MustCompile(`(\d*)d(\d+)(?:\s*([+-])\s*(\d+))?`)
)

// Parse parses "d20", "2d6", "2d6+3", "4d8 - 2" or a bare integer like "7".
//
// Postcondition: Returns a valid Expression or a descriptive error.
func Parse(expr string) (Expression, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	if s == "" {
		return Expression{}, fmt.Errorf("dice: empty expression")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Expression{Raw: expr, Modifier: n}, nil
	}
	m := exprPattern.FindStringSubmatch(s)
	if m == nil {
		return Expression{}, fmt.Errorf("dice: malformed expression %q", expr)
	}
	return fromMatch(expr, m)
}

// Find extracts the first dice expression embedded in free text, such as the
// "(2d8+4)" note that accompanies a stat block's hit points.
//
// Postcondition: Returns (expr, true) on a valid match, or (Expression{}, false).
func Find(text string) (Expression, bool) {
	m := findPattern.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return Expression{}, false
	}
	e, err := fromMatch(m[0], m)
	if err != nil {
		return Expression{}, false
	}
	return e, true
}

// MustParse parses expr and panics on error.
func MustParse(expr string) Expression {
	e, err := Parse(expr)
	if err != nil {
		panic(err.Error())
	}
	return e
}

func fromMatch(raw string, m []string) (Expression, error) {
	count := 1
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q: %w", raw, err)
		}
		count = n
	}
	if count < 1 {
		return Expression{}, fmt.Errorf("dice: die count in %q must be >= 1", raw)
	}
	if count > MaxCount {
		return Expression{}, fmt.Errorf("dice: die count in %q exceeds %d", raw, MaxCount)
	}
	sides, err := strconv.Atoi(m[2])
	if err != nil {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q: %w", raw, err)
	}
	if sides < 2 {
		return Expression{}, fmt.Errorf("dice: die sides in %q must be >= 2", raw)
	}
	if sides > MaxSides {
		return Expression{}, fmt.Errorf("dice: die sides in %q exceeds %d", raw, MaxSides)
	}
	mod := 0
	if m[3] != "" {
		mod, err = strconv.Atoi(m[4])
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid modifier in %q: %w", raw, err)
		}
		if m[3] == "-" {
			mod = -mod
		}
	}
	return Expression{Raw: raw, Count: count, Sides: sides, Modifier: mod}, nil
}
