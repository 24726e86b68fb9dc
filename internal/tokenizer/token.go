package tokenizer

import (
	"errors"
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/theory"
)

// minFields is instrument + one pitch + duration + offset
const minFields = 4

// Encode serializes an event as "<instrument> <pitch>... <duration> <offset>"
func Encode(e models.MusicalEvent) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(e.InstrumentID))
	for _, p := range e.Pitches {
		b.WriteByte(' ')
		b.WriteString(p)
	}
	b.WriteByte(' ')
	b.WriteString(e.Duration.String())
	b.WriteByte(' ')
	b.WriteString(e.Offset.String())
	return b.String()
}

// EncodeAll encodes events in order
func EncodeAll(events []models.MusicalEvent) []string {
	tokens := make([]string, len(events))
	for i, e := range events {
		tokens[i] = Encode(e)
	}
	return tokens
}

// DecodeToken parses a token back into an event: the first field is the instrument,
// the last two are duration and offset, everything between is a pitch.
func DecodeToken(token string) (models.MusicalEvent, error) {
	fields := strings.Fields(token)
	if len(fields) < minFields {
		return models.MusicalEvent{}, &MalformedTokenError{
			Token: token,
			Field: "layout",
			Err:   errors.New("expected instrument, at least one pitch, duration and offset"),
		}
	}

	instrumentID, err := strconv.Atoi(fields[0])
	if err != nil {
		return models.MusicalEvent{}, &MalformedTokenError{Token: token, Field: "instrument", Err: err}
	}

	n := len(fields)
	pitches := make([]string, 0, n-3)
	for _, p := range fields[1 : n-2] {
		if !theory.ValidPitch(p) {
			return models.MusicalEvent{}, &MalformedTokenError{Token: token, Field: "pitch", Err: errors.New(p)}
		}
		pitches = append(pitches, p)
	}

	duration, err := ParseDuration(fields[n-2])
	if err != nil {
		return models.MusicalEvent{}, &MalformedTokenError{Token: token, Field: "duration", Err: err}
	}

	offset, err := ParseOffset(fields[n-1])
	if err != nil {
		return models.MusicalEvent{}, &MalformedTokenError{Token: token, Field: "offset", Err: err}
	}

	return models.MusicalEvent{
		InstrumentID: instrumentID,
		Pitches:      pitches,
		Duration:     duration,
		Offset:       offset,
	}, nil
}
