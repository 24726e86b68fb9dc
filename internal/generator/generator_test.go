package generator

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/Conceptual-Machines/magda-composer/internal/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockPredictor is a test double for Predictor
type MockPredictor struct {
	PredictFunc func(ctx context.Context, window []float32) ([]float32, error)
	Calls       [][]float32
}

func (m *MockPredictor) Predict(ctx context.Context, window []float32) ([]float32, error) {
	w := make([]float32, len(window))
	copy(w, window)
	m.Calls = append(m.Calls, w)
	return m.PredictFunc(ctx, window)
}

// peaked returns a distribution of size n with its maximum at idx
func peaked(n, idx int) []float32 {
	d := make([]float32, n)
	for i := range d {
		d[i] = 0.01
	}
	d[idx] = 0.9
	return d
}

func TestGenerateConstantModel(t *testing.T) {
	const vocab = 5
	model := &MockPredictor{PredictFunc: func(context.Context, []float32) ([]float32, error) {
		return peaked(vocab, 3), nil
	}}

	g := New(model, vocab, 4, 10)
	out, err := g.Generate(context.Background(), []int{0, 1, 2, 4})
	require.NoError(t, err)

	assert.Len(t, out, 10)
	for _, id := range out {
		assert.Equal(t, 3, id)
	}
	require.Len(t, model.Calls, 10)
	for _, call := range model.Calls {
		assert.Len(t, call, 4)
	}
}

func TestGenerateSlidesWindow(t *testing.T) {
	const vocab = 10
	step := 0
	model := &MockPredictor{PredictFunc: func(context.Context, []float32) ([]float32, error) {
		step++
		return peaked(vocab, (step+4)%vocab), nil
	}}

	g := New(model, vocab, 3, 4)
	out, err := g.Generate(context.Background(), []int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 6, 7, 8}, out)

	// window at step k is the seed shifted left k times with generated ids appended
	require.Len(t, model.Calls, 4)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, model.Calls[0])
	assert.Equal(t, []float32{0.2, 0.3, 0.5}, model.Calls[1])
	assert.Equal(t, []float32{0.3, 0.5, 0.6}, model.Calls[2])
	assert.Equal(t, []float32{0.5, 0.6, 0.7}, model.Calls[3])
}

func TestGenerateDoesNotMutateSeed(t *testing.T) {
	model := &MockPredictor{PredictFunc: func(context.Context, []float32) ([]float32, error) {
		return peaked(4, 0), nil
	}}
	seed := []int{1, 2, 3}
	_, err := New(model, 4, 3, 5).Generate(context.Background(), seed)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seed)
}

func TestGenerateDefaultSteps(t *testing.T) {
	model := &MockPredictor{PredictFunc: func(context.Context, []float32) ([]float32, error) {
		return peaked(2, 1), nil
	}}
	g := New(model, 2, 2, 0)
	out, err := g.Generate(context.Background(), []int{0, 1})
	require.NoError(t, err)
	assert.Len(t, out, DefaultSteps)
}

func TestGenerateModelFailures(t *testing.T) {
	tests := []struct {
		name string
		dist func(step int) ([]float32, error)
	}{
		{
			name: "model error",
			dist: func(int) ([]float32, error) { return nil, errors.New("backend unavailable") },
		},
		{
			name: "wrong length",
			dist: func(int) ([]float32, error) { return []float32{1, 0}, nil },
		},
		{
			name: "nan value",
			dist: func(int) ([]float32, error) { return []float32{0.1, float32(math.NaN()), 0.2}, nil },
		},
		{
			name: "infinite value midway",
			dist: func(step int) ([]float32, error) {
				if step == 3 {
					return []float32{float32(math.Inf(1)), 0, 0}, nil
				}
				return peaked(3, 0), nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := 0
			model := &MockPredictor{PredictFunc: func(context.Context, []float32) ([]float32, error) {
				d, err := tt.dist(step)
				step++
				return d, err
			}}
			out, err := New(model, 3, 2, 10).Generate(context.Background(), []int{0, 1})
			assert.Nil(t, out)
			var qErr *ModelQueryError
			require.True(t, errors.As(err, &qErr), "got %v", err)
		})
	}
}

func TestGenerateRejectsBadSeed(t *testing.T) {
	model := &MockPredictor{PredictFunc: func(context.Context, []float32) ([]float32, error) {
		return peaked(3, 0), nil
	}}
	g := New(model, 3, 2, 5)

	_, err := g.Generate(context.Background(), []int{0})
	assert.Error(t, err)

	_, err = g.Generate(context.Background(), []int{0, 7})
	var idErr *tokenizer.UnknownIDError
	assert.True(t, errors.As(err, &idErr))
	assert.Empty(t, model.Calls)
}

func TestGenerateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := &MockPredictor{PredictFunc: func(context.Context, []float32) ([]float32, error) {
		cancel()
		return peaked(3, 0), nil
	}}
	_, err := New(model, 3, 2, 10).Generate(ctx, []int{0, 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, model.Calls, 1)
}

func TestArgMaxFirstMaximumWins(t *testing.T) {
	idx, err := ArgMax([]float32{0.1, 0.4, 0.1, 0.4}, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	idx, err = ArgMax([]float32{0.25, 0.25, 0.25, 0.25}, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	_, err = ArgMax(nil, 0)
	assert.Error(t, err)
}
