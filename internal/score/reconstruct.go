package score

import (
	"fmt"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/theory"
	"github.com/Conceptual-Machines/magda-composer/internal/tokenizer"
)

// Reconstructor turns generated ids back into a Score
type Reconstructor struct {
	makeNotation bool
}

// NewReconstructor creates a reconstructor. With makeNotation set every decoded
// score is regrouped into measures.
func NewReconstructor(makeNotation bool) *Reconstructor {
	return &Reconstructor{makeNotation: makeNotation}
}

// Decode maps ids through vocab and builds the score. Any unknown id or
// malformed token aborts the whole decode.
func (r *Reconstructor) Decode(ids []int, vocab *tokenizer.Vocabulary) (*Score, error) {
	tokens := make([]string, len(ids))
	for i, id := range ids {
		tok, err := vocab.Token(id)
		if err != nil {
			return nil, err
		}
		tokens[i] = tok
	}
	return r.DecodeTokens(tokens)
}

// DecodeTokens builds a score from token strings
func (r *Reconstructor) DecodeTokens(tokens []string) (*Score, error) {
	events := make([]models.MusicalEvent, len(tokens))
	for i, tok := range tokens {
		e, err := tokenizer.DecodeToken(tok)
		if err != nil {
			return nil, err
		}
		events[i] = e
	}

	s := Assemble(events)
	if r.makeNotation {
		MakeMeasures(s)
	}
	return s, nil
}

// Assemble groups events into one part per instrument id. Parts appear in the
// order their instrument is first seen and events keep their stream order,
// even when offsets go backwards.
func Assemble(events []models.MusicalEvent) *Score {
	s := &Score{TempoBPM: TempoBPM}
	byID := make(map[int]*Part)

	for _, e := range events {
		part, ok := byID[e.InstrumentID]
		if !ok {
			part = newPart(e.InstrumentID)
			if part.Fallback {
				s.Warnings = append(s.Warnings, Warning{
					InstrumentID: e.InstrumentID,
					Message: fmt.Sprintf("instrument id %d is not a General MIDI program, using %s",
						e.InstrumentID, part.Instrument.Name),
				})
			}
			byID[e.InstrumentID] = part
			s.Parts = append(s.Parts, part)
		}

		pitches := make([]string, len(e.Pitches))
		copy(pitches, e.Pitches)
		part.Elements = append(part.Elements, Placement{
			Pitches:  pitches,
			Duration: e.Duration,
			Offset:   e.Offset,
		})
	}

	return s
}

func newPart(instrumentID int) *Part {
	inst, ok := theory.InstrumentFromProgram(instrumentID)
	if !ok {
		inst = theory.FallbackInstrument(instrumentID)
	}
	return &Part{
		InstrumentID:  instrumentID,
		Instrument:    inst,
		Fallback:      !ok,
		TimeSignature: TimeSignature{Numerator: BeatsPerMeasure, Denominator: BeatUnit},
	}
}
