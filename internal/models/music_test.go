package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuarterLengthString(t *testing.T) {
	tests := []struct {
		name     string
		q        QuarterLength
		expected string
	}{
		{name: "whole number", q: NewQuarterLength(2, 1), expected: "2.0"},
		{name: "dotted", q: NewQuarterLength(3, 2), expected: "1.5"},
		{name: "sixteenth", q: NewQuarterLength(1, 4), expected: "0.25"},
		{name: "triplet keeps fraction", q: QuarterLength{Num: 1, Den: 3}, expected: "1/3"},
		{name: "unreduced fraction keeps its terms", q: QuarterLength{Num: 2, Den: 6}, expected: "2/6"},
		{name: "numerator past float precision", q: QuarterLength{Num: 1<<53 + 1, Den: 1}, expected: "9007199254740993.0"},
		{name: "deep power of two", q: QuarterLength{Num: 1, Den: 1 << 40}, expected: "0.0000000000009094947017729282379150390625"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.q.String())
		})
	}
}

func TestQuarterLengthCompareWithoutOverflow(t *testing.T) {
	// cross products of these terms overflow int64
	a := QuarterLength{Num: 1<<62 - 1, Den: 1 << 61}
	b := QuarterLength{Num: 1<<62 - 3, Den: 1 << 61}

	assert.False(t, a.Equal(b))
	assert.True(t, b.Less(a))
	assert.False(t, a.Less(b))
	assert.True(t, a.Equal(QuarterLength{Num: 1<<62 - 1, Den: 1 << 61}))
	assert.True(t, NewQuarterLength(2, 4).Equal(NewQuarterLength(1, 2)))
}

func TestQuarterLengthAdd(t *testing.T) {
	sum := QuarterLength{Num: 1, Den: 3}.Add(QuarterLength{Num: 2, Den: 3})
	assert.Equal(t, NewQuarterLength(1, 1), sum)

	wide := QuarterLength{Num: MaxTerm, Den: MaxTerm - 1}.Add(QuarterLength{Num: MaxTerm - 3, Den: MaxTerm})
	assert.True(t, NewQuarterLength(1, 1).Less(wide))
	assert.Positive(t, wide.Den)
}
