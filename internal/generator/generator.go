package generator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Conceptual-Machines/magda-composer/internal/sequence"
	"github.com/Conceptual-Machines/magda-composer/internal/tokenizer"
)

// DefaultSteps is the number of ids produced per run
const DefaultSteps = 500

// Predictor is the sequence model: given a normalized window it returns a
// probability distribution over the vocabulary.
type Predictor interface {
	Predict(ctx context.Context, window []float32) ([]float32, error)
}

// ModelQueryError wraps a failed or malformed model response
type ModelQueryError struct {
	Step int
	Err  error
}

func (e *ModelQueryError) Error() string {
	return fmt.Sprintf("model query failed at step %d: %v", e.Step, e.Err)
}

func (e *ModelQueryError) Unwrap() error {
	return e.Err
}

// Generator runs a Predictor autoregressively. A Generator owns its window
// buffer, so concurrent runs need separate instances.
type Generator struct {
	model     Predictor
	vocabSize int
	window    int
	steps     int
}

// New creates a generator for a vocabulary of vocabSize ids fed windows of length window
func New(model Predictor, vocabSize, window, steps int) *Generator {
	if window <= 0 {
		window = sequence.GenerationWindow
	}
	if steps <= 0 {
		steps = DefaultSteps
	}
	return &Generator{
		model:     model,
		vocabSize: vocabSize,
		window:    window,
		steps:     steps,
	}
}

// Steps returns the number of ids a run produces
func (g *Generator) Steps() int {
	return g.steps
}

// Generate produces exactly Steps ids starting from seed. Each step feeds the
// current window to the model, takes the most probable id (lowest index on ties),
// and slides the window by one. The seed itself is not part of the output.
// Any model failure aborts the run with no partial result.
func (g *Generator) Generate(ctx context.Context, seed []int) ([]int, error) {
	if len(seed) != g.window {
		return nil, fmt.Errorf("seed length %d does not match window %d", len(seed), g.window)
	}
	for _, id := range seed {
		if id < 0 || id >= g.vocabSize {
			return nil, &tokenizer.UnknownIDError{ID: id, Size: g.vocabSize}
		}
	}

	window := make([]int, g.window)
	copy(window, seed)
	out := make([]int, 0, g.steps)

	for step := 0; step < g.steps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dist, err := g.model.Predict(ctx, sequence.Normalize(window, g.vocabSize))
		if err != nil {
			return nil, &ModelQueryError{Step: step, Err: err}
		}
		next, err := ArgMax(dist, g.vocabSize)
		if err != nil {
			return nil, &ModelQueryError{Step: step, Err: err}
		}

		out = append(out, next)
		copy(window, window[1:])
		window[len(window)-1] = next
	}

	return out, nil
}

// ArgMax returns the index of the largest value, the first one on ties.
// The distribution must have exactly n finite entries.
func ArgMax(dist []float32, n int) (int, error) {
	if len(dist) != n {
		return 0, fmt.Errorf("distribution has %d entries, expected %d", len(dist), n)
	}
	if n == 0 {
		return 0, errors.New("empty distribution")
	}

	best := 0
	for i, p := range dist {
		f := float64(p)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("non-finite probability at index %d", i)
		}
		if p > dist[best] {
			best = i
		}
	}
	return best, nil
}
