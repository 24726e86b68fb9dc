package tokenizer

import (
	"errors"
	"testing"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ql(num, den int64) models.QuarterLength {
	return models.QuarterLength{Num: num, Den: den}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		event    models.MusicalEvent
		expected string
	}{
		{
			name:     "single note",
			event:    models.MusicalEvent{InstrumentID: 0, Pitches: []string{"C4"}, Duration: ql(1, 1), Offset: ql(0, 1)},
			expected: "0 C4 1.0 0.0",
		},
		{
			name:     "triplet chord",
			event:    models.MusicalEvent{InstrumentID: 12, Pitches: []string{"C4", "E4", "G4"}, Duration: ql(1, 3), Offset: ql(2, 1)},
			expected: "12 C4 E4 G4 1/3 2.0",
		},
		{
			name:     "unspecified instrument",
			event:    models.MusicalEvent{InstrumentID: models.UnspecifiedInstrument, Pitches: []string{"F#3"}, Duration: ql(1, 4), Offset: ql(7, 2)},
			expected: "-1 F#3 0.25 3.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Encode(tt.event))
		})
	}
}

func TestDecodeToken(t *testing.T) {
	t.Run("note", func(t *testing.T) {
		e, err := DecodeToken("0 C4 1.0 0.0")
		require.NoError(t, err)
		assert.Equal(t, 0, e.InstrumentID)
		assert.Equal(t, []string{"C4"}, e.Pitches)
		assert.True(t, e.Duration.Equal(ql(1, 1)))
		assert.True(t, e.Offset.Equal(ql(0, 1)))
		assert.False(t, e.IsChord())
	})

	t.Run("chord with fraction duration", func(t *testing.T) {
		e, err := DecodeToken("12 C4 E4 G4 1/3 2.0")
		require.NoError(t, err)
		assert.Equal(t, 12, e.InstrumentID)
		assert.Equal(t, []string{"C4", "E4", "G4"}, e.Pitches)
		assert.Equal(t, ql(1, 3), e.Duration)
		assert.True(t, e.Offset.Equal(ql(2, 1)))
		assert.True(t, e.IsChord())
	})

	t.Run("fraction keeps its terms", func(t *testing.T) {
		e, err := DecodeToken("0 C4 2/6 0.0")
		require.NoError(t, err)
		assert.Equal(t, ql(2, 6), e.Duration)
		assert.Equal(t, "0 C4 2/6 0.0", Encode(e))
	})

	t.Run("named duration", func(t *testing.T) {
		e, err := DecodeToken("3 A4 eighth 1.5")
		require.NoError(t, err)
		assert.True(t, e.Duration.Equal(ql(1, 2)))
	})

	malformed := []struct {
		name  string
		token string
		field string
	}{
		{name: "too few fields", token: "0 C4 1.0", field: "layout"},
		{name: "non numeric instrument", token: "piano C4 1.0 0.0", field: "instrument"},
		{name: "bad duration", token: "0 C4 sometimes 0.0", field: "duration"},
		{name: "non finite duration", token: "0 C4 NaN 0.0", field: "duration"},
		{name: "zero denominator", token: "0 C4 1/0 0.0", field: "duration"},
		{name: "bad offset", token: "0 C4 1.0 later", field: "offset"},
		{name: "bad pitch", token: "0 X9 1.0 0.0", field: "pitch"},
	}
	for _, tt := range malformed {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeToken(tt.token)
			var mErr *MalformedTokenError
			require.True(t, errors.As(err, &mErr), "expected MalformedTokenError, got %v", err)
			assert.Equal(t, tt.field, mErr.Field)
			assert.Equal(t, tt.token, mErr.Token)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	events := []models.MusicalEvent{
		{InstrumentID: 0, Pitches: []string{"C4"}, Duration: ql(1, 1), Offset: ql(0, 1)},
		{InstrumentID: 40, Pitches: []string{"E-5", "G5"}, Duration: ql(3, 4), Offset: ql(33, 8)},
		{InstrumentID: 12, Pitches: []string{"C4", "E4", "G4"}, Duration: ql(2, 3), Offset: ql(4, 3)},
		{InstrumentID: -1, Pitches: []string{"B2"}, Duration: ql(0, 1), Offset: ql(1000, 1)},
	}

	for _, e := range events {
		t.Run(Encode(e), func(t *testing.T) {
			got, err := DecodeToken(Encode(e))
			require.NoError(t, err)
			assert.Equal(t, e.InstrumentID, got.InstrumentID)
			assert.Equal(t, e.Pitches, got.Pitches)
			assert.True(t, e.Duration.Equal(got.Duration), "duration %s vs %s", e.Duration, got.Duration)
			assert.True(t, e.Offset.Equal(got.Offset), "offset %s vs %s", e.Offset, got.Offset)
			assert.Equal(t, Encode(e), Encode(got))
		})
	}
}

func TestParseDurationPriority(t *testing.T) {
	tests := []struct {
		literal  string
		expected models.QuarterLength
	}{
		{literal: "1.0", expected: ql(1, 1)},
		{literal: "0.375", expected: ql(3, 8)},
		{literal: "4", expected: ql(4, 1)},
		{literal: "1/3", expected: ql(1, 3)},
		{literal: "5/4", expected: ql(5, 4)},
		{literal: "quarter", expected: ql(1, 1)},
		{literal: "Half", expected: ql(2, 1)},
		{literal: "16th", expected: ql(1, 4)},
		{literal: "breve", expected: ql(8, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.literal, func(t *testing.T) {
			got, err := ParseDuration(tt.literal)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "got %s", got)
		})
	}

	_, err := ParseDuration("-1.0")
	assert.Error(t, err)
	_, err = ParseDuration("dotted")
	assert.Error(t, err)
}

func TestParseDurationRejectsOversizedTerms(t *testing.T) {
	for _, literal := range []string{
		"1/2147483648",
		"4294967296/3",
		"9007199254740993",
		"0.00000000001",
	} {
		t.Run(literal, func(t *testing.T) {
			_, err := ParseDuration(literal)
			assert.Error(t, err)

			_, err = DecodeToken("0 C4 " + literal + " 0.0")
			var malformed *MalformedTokenError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, "duration", malformed.Field)
		})
	}

	got, err := ParseDuration("1/1073741824")
	require.NoError(t, err)
	assert.Equal(t, int64(models.MaxTerm), got.Den)
}
