package lstm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/openfluke/loom/nn"

	"github.com/Conceptual-Machines/magda-composer/internal/artifact"
	"github.com/Conceptual-Machines/magda-composer/internal/sequence"
)

const (
	// DefaultCells is the LSTM width
	DefaultCells = 256
	denseWidth   = 256
	networkID    = "composer_lstm"
)

// Config describes the network shape and training schedule
type Config struct {
	Cells        int
	Window       int
	VocabSize    int
	Epochs       int
	BatchSize    int
	LearningRate float32
}

func (c Config) withDefaults() Config {
	if c.Cells <= 0 {
		c.Cells = DefaultCells
	}
	if c.Window <= 0 {
		c.Window = sequence.TrainingWindow
	}
	if c.Epochs <= 0 {
		c.Epochs = 1
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.001
	}
	return c
}

// Meta is written next to a checkpoint so a model can be matched to its corpus
type Meta struct {
	ID          string  `json:"id"`
	Fingerprint string  `json:"fingerprint"`
	VocabSize   int     `json:"vocab_size"`
	Window      int     `json:"window"`
	Cells       int     `json:"cells"`
	FinalLoss   float64 `json:"final_loss,omitempty"`
}

// Model is an LSTM next-token predictor: LSTM -> dense(tanh) -> dense -> softmax.
// Forward passes are serialized, so one Model can back several generators.
type Model struct {
	mu   sync.Mutex
	net  *nn.Network
	meta Meta
}

// New builds a freshly initialized network for a corpus
func New(cfg Config, fingerprint string) (*Model, error) {
	cfg = cfg.withDefaults()
	if cfg.VocabSize <= 0 {
		return nil, errors.New("vocabulary size must be positive")
	}

	net, err := nn.BuildNetworkFromJSON(networkJSON(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to build network: %w", err)
	}
	net.InitializeWeights()
	net.BatchSize = 1

	return &Model{
		net: net,
		meta: Meta{
			ID:          networkID,
			Fingerprint: fingerprint,
			VocabSize:   cfg.VocabSize,
			Window:      cfg.Window,
			Cells:       cfg.Cells,
		},
	}, nil
}

// Meta returns the checkpoint metadata
func (m *Model) Meta() Meta {
	return m.meta
}

// Predict returns a distribution over the vocabulary for a normalized window.
// Windows shorter than the trained length are left-padded with zeros and longer
// ones keep their most recent values.
func (m *Model) Predict(ctx context.Context, window []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	input := fitWindow(window, m.meta.Window)

	m.mu.Lock()
	out, _ := m.net.ForwardCPU(input)
	m.mu.Unlock()

	if len(out) != m.meta.VocabSize {
		return nil, fmt.Errorf("network returned %d outputs, expected %d", len(out), m.meta.VocabSize)
	}
	dist := make([]float32, len(out))
	copy(dist, out)
	return dist, nil
}

// FitResult summarizes a training run
type FitResult struct {
	Samples   int
	Epochs    int
	FinalLoss float64
}

// Fit trains on windows of ids, normalized by the vocabulary size, against one-hot targets
func (m *Model) Fit(ctx context.Context, samples []sequence.Sample, cfg Config) (FitResult, error) {
	cfg = cfg.withDefaults()
	if len(samples) == 0 {
		return FitResult{}, errors.New("no training samples")
	}

	batches := make([]nn.TrainingBatch, len(samples))
	for i, s := range samples {
		batches[i] = nn.TrainingBatch{
			Input:  fitWindow(sequence.Normalize(s.Input, m.meta.VocabSize), m.meta.Window),
			Target: sequence.OneHot(s.Target, m.meta.VocabSize),
		}
	}

	res := FitResult{Samples: len(samples)}
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		for start := 0; start < len(batches); start += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			end := start + cfg.BatchSize
			if end > len(batches) {
				end = len(batches)
			}

			m.mu.Lock()
			result, err := m.net.Train(batches[start:end], &nn.TrainingConfig{
				Epochs:       1,
				LearningRate: cfg.LearningRate,
				LossType:     "cross_entropy",
				Verbose:      false,
			})
			m.mu.Unlock()
			if err != nil {
				return res, fmt.Errorf("training failed in epoch %d: %w", epoch+1, err)
			}
			if result != nil {
				res.FinalLoss = float64(result.FinalLoss)
			}
		}
		res.Epochs = epoch + 1
	}

	m.meta.FinalLoss = res.FinalLoss
	return res, nil
}

// Save writes the checkpoint and its meta sidecar
func (m *Model) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	m.mu.Lock()
	err := m.net.SaveModel(path, m.meta.ID)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	data, err := json.MarshalIndent(m.meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(MetaPath(path), data, 0o644)
}

// Load reads a checkpoint and checks it was trained on the corpus with fingerprint
func Load(path, fingerprint string) (*Model, error) {
	meta, err := ReadMeta(path)
	if err != nil {
		return nil, err
	}
	if meta.Fingerprint != fingerprint {
		return nil, fmt.Errorf("%w: checkpoint %s was trained on another corpus", artifact.ErrFingerprintMismatch, path)
	}

	net, err := nn.LoadModel(path, meta.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", path, err)
	}
	net.BatchSize = 1

	return &Model{net: net, meta: meta}, nil
}

// ReadMeta reads the sidecar of a checkpoint
func ReadMeta(path string) (Meta, error) {
	var meta Meta
	data, err := os.ReadFile(MetaPath(path))
	if err != nil {
		return meta, fmt.Errorf("failed to read checkpoint metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to decode checkpoint metadata: %w", err)
	}
	if meta.ID == "" {
		meta.ID = networkID
	}
	return meta, nil
}

// MetaPath returns the sidecar path for a checkpoint
func MetaPath(checkpoint string) string {
	return checkpoint + ".meta.json"
}

func fitWindow(window []float32, length int) []float32 {
	if len(window) == length {
		out := make([]float32, length)
		copy(out, window)
		return out
	}
	out := make([]float32, length)
	if len(window) > length {
		copy(out, window[len(window)-length:])
		return out
	}
	copy(out[length-len(window):], window)
	return out
}

func networkJSON(cfg Config) string {
	layers := []map[string]interface{}{
		{"type": "lstm", "input_size": 1, "hidden_size": cfg.Cells, "seq_length": cfg.Window},
		{"type": "dense", "activation": "tanh", "input_height": cfg.Cells * cfg.Window, "output_height": denseWidth},
		{"type": "dense", "activation": "leaky_relu", "input_height": denseWidth, "output_height": cfg.VocabSize},
		{"type": "softmax", "softmax_variant": "standard", "softmax_rows": 1, "softmax_cols": cfg.VocabSize},
	}
	doc := map[string]interface{}{
		"id":              networkID,
		"batch_size":      1,
		"grid_rows":       1,
		"grid_cols":       1,
		"layers_per_cell": len(layers),
		"layers":          layers,
	}
	data, _ := json.Marshal(doc)
	return string(data)
}
