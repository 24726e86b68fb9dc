package corpus

import (
	"hash/fnv"
	"math/rand"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/theory"
)

// Extractor flattens parsed documents into musical events
type Extractor struct {
	fuzz     bool
	fuzzSeed int64
}

// ExtractorOption configures an Extractor
type ExtractorOption func(*Extractor)

// WithInstrumentFuzz assigns a random General MIDI program to parts that do not
// declare one. The draw is seeded per file from seed and the file path, so a fuzzed
// corpus is still reproducible.
func WithInstrumentFuzz(seed int64) ExtractorOption {
	return func(x *Extractor) {
		x.fuzz = true
		x.fuzzSeed = seed
	}
}

// NewExtractor creates an extractor. Without options, parts with no program get
// models.UnspecifiedInstrument.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	x := &Extractor{}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Extract uses the default extractor
func Extract(doc *models.Document) []models.MusicalEvent {
	return NewExtractor().Extract(doc)
}

// Extract emits one event per note or chord, part by part, in element order.
// Everything else in the document is dropped. A document without parts yields nil.
func (x *Extractor) Extract(doc *models.Document) []models.MusicalEvent {
	if doc == nil {
		return nil
	}

	var rng *rand.Rand
	if x.fuzz {
		h := fnv.New64a()
		h.Write([]byte(doc.Path))
		rng = rand.New(rand.NewSource(x.fuzzSeed ^ int64(h.Sum64())))
	}

	var events []models.MusicalEvent
	for _, part := range doc.Parts {
		instrumentID := models.UnspecifiedInstrument
		switch {
		case part.HasProgram:
			instrumentID = part.Program
		case rng != nil:
			instrumentID = theory.RandomInstrument(rng).Program
		}

		for _, el := range part.Elements {
			switch el.Kind {
			case models.ElementNote, models.ElementChord:
				if len(el.Pitches) == 0 {
					continue
				}
				pitches := make([]string, len(el.Pitches))
				copy(pitches, el.Pitches)
				events = append(events, models.MusicalEvent{
					InstrumentID: instrumentID,
					Pitches:      pitches,
					Duration:     el.Duration,
					Offset:       el.Offset,
				})
			}
		}
	}
	return events
}
