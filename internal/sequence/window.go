package sequence

import (
	"fmt"
	"math/rand"
)

const (
	// TrainingWindow is the input length of each training sample
	TrainingWindow = 100
	// GenerationWindow is the length of the seed window fed to the generator
	GenerationWindow = 64
)

// InsufficientDataError is returned when the id stream is not longer than one window
type InsufficientDataError struct {
	Length int
	Window int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d ids, need more than window length %d", e.Length, e.Window)
}

// Sample is one training pair: a window of ids and the id that follows it
type Sample struct {
	Input  []int
	Target int
}

// MakeTrainingSamples slides a window of length l over ids and returns the M-l
// (window, next id) pairs. The input windows share no memory with ids.
func MakeTrainingSamples(ids []int, l int) ([]Sample, error) {
	if l <= 0 {
		return nil, fmt.Errorf("window length must be positive, got %d", l)
	}
	if len(ids) <= l {
		return nil, &InsufficientDataError{Length: len(ids), Window: l}
	}

	samples := make([]Sample, 0, len(ids)-l)
	for i := 0; i+l < len(ids); i++ {
		input := make([]int, l)
		copy(input, ids[i:i+l])
		samples = append(samples, Sample{Input: input, Target: ids[i+l]})
	}
	return samples, nil
}

// Normalize scales a window of ids into [0, 1) by dividing by the vocabulary size
func Normalize(window []int, nVocab int) []float32 {
	out := make([]float32, len(window))
	if nVocab <= 0 {
		return out
	}
	for i, id := range window {
		out[i] = float32(id) / float32(nVocab)
	}
	return out
}

// OneHot encodes a target id as a vector of length nVocab
func OneHot(id, nVocab int) []float32 {
	out := make([]float32, nVocab)
	if id >= 0 && id < nVocab {
		out[id] = 1
	}
	return out
}

// MakeSeedWindow copies a window of length l starting at a position drawn
// uniformly from [0, M-l). The caller owns rng, so a fixed seed reproduces the window.
func MakeSeedWindow(ids []int, l int, rng *rand.Rand) ([]int, error) {
	if l <= 0 {
		return nil, fmt.Errorf("window length must be positive, got %d", l)
	}
	if len(ids) <= l {
		return nil, &InsufficientDataError{Length: len(ids), Window: l}
	}

	start := rng.Intn(len(ids) - l)
	window := make([]int, l)
	copy(window, ids[start:start+l])
	return window, nil
}
