package tokenizer

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
)

// Named durations, in quarter lengths
var durationNames = map[string]models.QuarterLength{
	"duplex-maxima": models.NewQuarterLength(64, 1),
	"maxima":        models.NewQuarterLength(32, 1),
	"longa":         models.NewQuarterLength(16, 1),
	"breve":         models.NewQuarterLength(8, 1),
	"whole":         models.NewQuarterLength(4, 1),
	"half":          models.NewQuarterLength(2, 1),
	"quarter":       models.NewQuarterLength(1, 1),
	"eighth":        models.NewQuarterLength(1, 2),
	"16th":          models.NewQuarterLength(1, 4),
	"32nd":          models.NewQuarterLength(1, 8),
	"64th":          models.NewQuarterLength(1, 16),
	"128th":         models.NewQuarterLength(1, 32),
	"256th":         models.NewQuarterLength(1, 64),
	"zero":          models.NewQuarterLength(0, 1),
}

// ParseDuration reads a duration literal. Forms are tried in order:
// decimal ("1.5"), fraction ("1/3"), then a duration name ("eighth").
func ParseDuration(literal string) (models.QuarterLength, error) {
	if q, ok := parseDecimal(literal); ok {
		return q, nil
	}
	if q, ok, err := parseFraction(literal); ok || err != nil {
		return q, err
	}
	if q, ok := durationNames[strings.ToLower(literal)]; ok {
		return q, nil
	}
	return models.QuarterLength{}, fmt.Errorf("unrecognized duration %q", literal)
}

// ParseOffset reads an offset literal, decimal or fraction
func ParseOffset(literal string) (models.QuarterLength, error) {
	if q, ok := parseDecimal(literal); ok {
		return q, nil
	}
	if q, ok, err := parseFraction(literal); ok || err != nil {
		return q, err
	}
	return models.QuarterLength{}, fmt.Errorf("unrecognized offset %q", literal)
}

// parseDecimal accepts a finite, non-negative float literal and converts it exactly.
// Values whose reduced terms exceed models.MaxTerm are rejected.
func parseDecimal(literal string) (models.QuarterLength, bool) {
	if _, err := strconv.ParseFloat(literal, 64); err != nil {
		return models.QuarterLength{}, false
	}
	r, ok := new(big.Rat).SetString(literal)
	if !ok || r.Sign() < 0 || !withinTerm(r.Num()) || !withinTerm(r.Denom()) {
		return models.QuarterLength{}, false
	}
	return models.NewQuarterLength(r.Num().Int64(), r.Denom().Int64()), true
}

func withinTerm(v *big.Int) bool {
	return v.IsInt64() && v.Int64() <= models.MaxTerm
}

// parseFraction accepts "a/b" with integer terms and keeps the terms as written.
// ok is false when the literal does not look like a fraction at all.
func parseFraction(literal string) (models.QuarterLength, bool, error) {
	num, den, found := strings.Cut(literal, "/")
	if !found {
		return models.QuarterLength{}, false, nil
	}
	a, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return models.QuarterLength{}, false, nil
	}
	b, err := strconv.ParseInt(den, 10, 64)
	if err != nil {
		return models.QuarterLength{}, false, nil
	}
	if b <= 0 || a < 0 {
		return models.QuarterLength{}, true, fmt.Errorf("invalid fraction %q", literal)
	}
	if a > models.MaxTerm || b > models.MaxTerm {
		return models.QuarterLength{}, true, fmt.Errorf("fraction %q has terms above %d", literal, models.MaxTerm)
	}
	return models.QuarterLength{Num: a, Den: b}, true, nil
}
