package score

import (
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/theory"
)

// Header values written at the top of every part
const (
	BeatsPerMeasure = 3
	BeatUnit        = 4
	TempoBPM        = 120
)

// TimeSignature is the meter header of a part
type TimeSignature struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

// MeasureLength returns the length of one measure in quarter notes
func (ts TimeSignature) MeasureLength() models.QuarterLength {
	return models.NewQuarterLength(int64(ts.Numerator)*4, int64(ts.Denominator))
}

// Placement is a note or chord positioned at its encoded offset
type Placement struct {
	Pitches  []string             `json:"pitches"`
	Duration models.QuarterLength `json:"duration"`
	Offset   models.QuarterLength `json:"offset"`
}

// IsChord reports whether the placement sounds more than one pitch
func (p Placement) IsChord() bool {
	return len(p.Pitches) > 1
}

// Measure groups the placements starting inside one bar
type Measure struct {
	Number   int                  `json:"number"`
	Offset   models.QuarterLength `json:"offset"`
	Elements []Placement          `json:"elements"`
}

// Part holds all events of one instrument id
type Part struct {
	InstrumentID  int               `json:"instrument_id"`
	Instrument    theory.Instrument `json:"instrument"`
	Fallback      bool              `json:"fallback"`
	TimeSignature TimeSignature     `json:"time_signature"`
	Elements      []Placement       `json:"elements"`
	Measures      []Measure         `json:"measures,omitempty"`
}

// Warning records a recoverable problem found while decoding
type Warning struct {
	InstrumentID int    `json:"instrument_id"`
	Message      string `json:"message"`
}

// Score is a decoded multi-part piece
type Score struct {
	Parts    []*Part   `json:"parts"`
	Warnings []Warning `json:"warnings,omitempty"`
	TempoBPM int       `json:"tempo_bpm"`
	measured bool
}

// EventCount returns the number of placements across all parts
func (s *Score) EventCount() int {
	n := 0
	for _, p := range s.Parts {
		n += len(p.Elements)
	}
	return n
}

// Measured reports whether MakeMeasures has been applied
func (s *Score) Measured() bool {
	return s.measured
}
