package models

import (
	"math/big"
	"math/bits"
	"strconv"
)

// UnspecifiedInstrument is the instrument id assigned to parts that do not declare a program
const UnspecifiedInstrument = -1

// MaxTerm bounds the numerator and denominator accepted from a duration or offset
// literal, so the sum of two parsed values still fits in int64 terms.
const MaxTerm = 1 << 30

// QuarterLength is a duration or offset measured in quarter notes, kept as a fraction
// so that triplet values (1/3, 2/3) survive a round trip through a token.
// Den is always positive. Values parsed from "a/b" literals are kept as written.
type QuarterLength struct {
	Num int64 `json:"num"`
	Den int64 `json:"den"`
}

// NewQuarterLength returns num/den reduced to lowest terms
func NewQuarterLength(num, den int64) QuarterLength {
	if den == 0 {
		return QuarterLength{Num: 0, Den: 1}
	}
	if den < 0 {
		num, den = -num, -den
	}
	if g := gcd(abs(num), den); g > 1 {
		num /= g
		den /= g
	}
	return QuarterLength{Num: num, Den: den}
}

// QuarterFromFloat converts a decimal quarter length, e.g. 1.5
func QuarterFromFloat(f float64) QuarterLength {
	r := new(big.Rat)
	if r.SetFloat64(f) == nil || !r.Num().IsInt64() || !r.Denom().IsInt64() {
		return QuarterLength{Num: 0, Den: 1}
	}
	return NewQuarterLength(r.Num().Int64(), r.Denom().Int64())
}

// Float64 returns the value as a float
func (q QuarterLength) Float64() float64 {
	if q.Den == 0 {
		return 0
	}
	return float64(q.Num) / float64(q.Den)
}

// Rat returns the exact value
func (q QuarterLength) Rat() *big.Rat {
	if q.Den == 0 {
		return new(big.Rat)
	}
	return big.NewRat(q.Num, q.Den)
}

// Equal compares by value, so 2/4 equals 0.5
func (q QuarterLength) Equal(o QuarterLength) bool {
	return q.Rat().Cmp(o.Rat()) == 0
}

// Less reports whether q < o
func (q QuarterLength) Less(o QuarterLength) bool {
	return q.Rat().Cmp(o.Rat()) < 0
}

// Add returns q + o reduced. Sums that do not fit int64 terms are rounded to the
// nearest float64, which cannot happen for two values within MaxTerm.
func (q QuarterLength) Add(o QuarterLength) QuarterLength {
	sum := new(big.Rat).Add(q.Rat(), o.Rat())
	if sum.Num().IsInt64() && sum.Denom().IsInt64() {
		return NewQuarterLength(sum.Num().Int64(), sum.Denom().Int64())
	}
	f, _ := sum.Float64()
	return QuarterFromFloat(f)
}

// IsDyadic reports whether the value has a finite decimal expansion in base 2 terms,
// i.e. the reduced denominator is a power of two.
func (q QuarterLength) IsDyadic() bool {
	r := NewQuarterLength(q.Num, q.Den)
	return r.Den&(r.Den-1) == 0
}

// String formats dyadic values as decimals ("1.0", "0.25") and everything else
// as a fraction ("1/3"). Fractions parsed from a literal keep their original terms.
func (q QuarterLength) String() string {
	if q.Den == 0 {
		return "0.0"
	}
	if !q.IsDyadic() {
		return strconv.FormatInt(q.Num, 10) + "/" + strconv.FormatInt(q.Den, 10)
	}
	// 1/2^k has exactly k decimal places
	r := NewQuarterLength(q.Num, q.Den)
	places := bits.TrailingZeros64(uint64(r.Den))
	s := r.Rat().FloatString(places)
	if places == 0 {
		s += ".0"
	}
	return s
}

// MusicalEvent is one note or chord tagged with its instrument.
// A single pitch is a note, several pitches sound together as a chord.
type MusicalEvent struct {
	InstrumentID int           `json:"instrument_id"`
	Pitches      []string      `json:"pitches"`
	Duration     QuarterLength `json:"duration"`
	Offset       QuarterLength `json:"offset"`
}

// IsChord reports whether the event carries more than one pitch
func (e MusicalEvent) IsChord() bool {
	return len(e.Pitches) > 1
}

// ElementKind tags the elements a parsed document can contain
type ElementKind int

const (
	// ElementOther covers everything the extractor ignores (rests, controllers, meta events)
	ElementOther ElementKind = iota
	ElementNote
	ElementChord
)

func (k ElementKind) String() string {
	switch k {
	case ElementNote:
		return "note"
	case ElementChord:
		return "chord"
	default:
		return "other"
	}
}

// Element is a single timed item inside a parsed part
type Element struct {
	Kind     ElementKind   `json:"kind"`
	Pitches  []string      `json:"pitches,omitempty"`
	Duration QuarterLength `json:"duration"`
	Offset   QuarterLength `json:"offset"`
}

// PartSource is one instrument part as read from a music file
type PartSource struct {
	Name       string    `json:"name"`
	Program    int       `json:"program"`
	HasProgram bool      `json:"has_program"`
	Elements   []Element `json:"elements"`
}

// Document is a parsed music file
type Document struct {
	Path  string       `json:"path"`
	Parts []PartSource `json:"parts"`
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
