package dice

import "go.uber.org/zap"

// Roll evaluates expr with src.
//
// Postcondition: len(result.Dice) == expr.Count.
func Roll(expr Expression, src Source) Result {
	rolled := make([]int, expr.Count)
	for i := range rolled {
		rolled[i] = src.Intn(expr.Sides) + 1
	}
	return Result{Expression: expr.Raw, Dice: rolled, Modifier: expr.Modifier}
}

// Roller rolls against a Source and logs every result at debug level.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewRoller creates a Roller.
//
// Precondition: src and logger must be non-nil.
func NewRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Roll evaluates expr and logs it.
func (r *Roller) Roll(expr Expression) Result {
	res := Roll(expr, r.src)
	r.logger.Debug("dice roll",
		zap.String("expression", res.Expression),
		zap.Ints("dice", res.Dice),
		zap.Int("modifier", res.Modifier),
		zap.Int("total", res.Total()),
	)
	return res
}

// D20 rolls a single twenty-sided die and returns the face.
func (r *Roller) D20() int {
	return r.Roll(Expression{Raw: "1d20", Count: 1, Sides: 20}).Total()
}
