package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Conceptual-Machines/magda-composer/internal/artifact"
	"github.com/Conceptual-Machines/magda-composer/internal/config"
	"github.com/Conceptual-Machines/magda-composer/internal/corpus"
	"github.com/Conceptual-Machines/magda-composer/internal/generator"
	"github.com/Conceptual-Machines/magda-composer/internal/logger"
	"github.com/Conceptual-Machines/magda-composer/internal/lstm"
	"github.com/Conceptual-Machines/magda-composer/internal/metrics"
	"github.com/Conceptual-Machines/magda-composer/internal/midi"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/naming"
	"github.com/Conceptual-Machines/magda-composer/internal/observability"
	"github.com/Conceptual-Machines/magda-composer/internal/publish"
	"github.com/Conceptual-Machines/magda-composer/internal/score"
	"github.com/Conceptual-Machines/magda-composer/internal/sequence"
	"github.com/Conceptual-Machines/magda-composer/internal/tokenizer"
)

var (
	// ErrOutputNotFound is returned for unknown or invalid output file names
	ErrOutputNotFound = errors.New("output not found")
	// ErrTooManyOutputs is returned when a request asks for more scores than allowed
	ErrTooManyOutputs = errors.New("too many outputs requested")
)

const maxOutputsPerRequest = 16

// Trainable is a sequence model that can be fitted and checkpointed
type Trainable interface {
	Fit(ctx context.Context, samples []sequence.Sample, cfg lstm.Config) (lstm.FitResult, error)
	Save(path string) error
}

// ModelLoader opens the checkpoint trained on the corpus with fingerprint
type ModelLoader func(path, fingerprint string) (generator.Predictor, error)

// ModelBuilder creates an untrained model for a corpus
type ModelBuilder func(cfg lstm.Config, fingerprint string) (Trainable, error)

// Composer runs the pipeline: extract the corpus, train, generate scores
type Composer struct {
	cfg       *config.Config
	scanner   *corpus.Scanner
	namer     *naming.Namer
	runs      *RunService
	publisher *publish.Publisher
	cw        *metrics.Client
	sm        *metrics.SentryMetrics
	tracer    *observability.LangfuseClient
	loadModel ModelLoader
	newModel  ModelBuilder

	mu      sync.Mutex // guards rng
	rng     *rand.Rand
	writeMu sync.Mutex // naming and writing an output must not interleave
}

// ComposerOption configures a Composer
type ComposerOption func(*Composer)

func WithRunService(runs *RunService) ComposerOption {
	return func(c *Composer) { c.runs = runs }
}

func WithPublisher(p *publish.Publisher) ComposerOption {
	return func(c *Composer) { c.publisher = p }
}

func WithMetrics(cw *metrics.Client, sm *metrics.SentryMetrics) ComposerOption {
	return func(c *Composer) {
		c.cw = cw
		c.sm = sm
	}
}

func WithTracer(t *observability.LangfuseClient) ComposerOption {
	return func(c *Composer) { c.tracer = t }
}

func WithScanner(s *corpus.Scanner) ComposerOption {
	return func(c *Composer) { c.scanner = s }
}

func WithModelLoader(l ModelLoader) ComposerOption {
	return func(c *Composer) { c.loadModel = l }
}

func WithModelBuilder(b ModelBuilder) ComposerOption {
	return func(c *Composer) { c.newModel = b }
}

// WithSeed fixes the seed-window draw
func WithSeed(seed int64) ComposerOption {
	return func(c *Composer) { c.rng = rand.New(rand.NewSource(seed)) }
}

// NewComposer wires the pipeline from config
func NewComposer(cfg *config.Config, namer *naming.Namer, opts ...ComposerOption) *Composer {
	c := &Composer{
		cfg:   cfg,
		namer: namer,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		loadModel: func(path, fingerprint string) (generator.Predictor, error) {
			return lstm.Load(path, fingerprint)
		},
		newModel: func(mc lstm.Config, fingerprint string) (Trainable, error) {
			return lstm.New(mc, fingerprint)
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.scanner == nil {
		var extractorOpts []corpus.ExtractorOption
		if cfg.FuzzInstruments {
			extractorOpts = append(extractorOpts, corpus.WithInstrumentFuzz(cfg.FuzzSeed))
		}
		c.scanner = corpus.NewScanner(corpus.NewExtractor(extractorOpts...), nil, cfg.ScanWorkers)
	}
	if c.namer == nil {
		c.namer = naming.NewNamer(naming.NewListSource(time.Now().UnixNano()), nil)
	}
	if c.runs == nil {
		c.runs = NewRunService(nil)
	}
	if c.sm == nil {
		c.sm = metrics.NewSentryMetrics()
	}
	if c.tracer == nil {
		c.tracer = observability.Disabled()
	}
	return c
}

// ExtractResult is the outcome of an extraction pass
type ExtractResult struct {
	Artifact *artifact.Artifact `json:"-"`
	Scan     *corpus.Result     `json:"scan"`
}

// Extract scans the corpus and persists the vocabulary and token stream
func (c *Composer) Extract(ctx context.Context) (*ExtractResult, error) {
	res, err := c.scanner.Scan(ctx, c.cfg.CorpusDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan corpus: %w", err)
	}
	parsed := res.Parsed()

	art, err := artifact.Build(res.Tokens, parsed)
	if err != nil {
		return nil, err
	}
	if err := art.Save(c.cfg.ArtifactPath); err != nil {
		return nil, fmt.Errorf("failed to save artifact: %w", err)
	}

	if err := c.runs.RecordSnapshot(ctx, &models.CorpusSnapshot{
		Fingerprint:    art.Fingerprint,
		Directory:      res.Dir,
		Files:          len(parsed),
		Skipped:        res.Skipped,
		Tokens:         len(res.Tokens),
		VocabularySize: len(art.Vocabulary),
		ArtifactPath:   c.cfg.ArtifactPath,
	}); err != nil {
		logger.Error("Failed to record corpus snapshot", err, logger.Fields{"corpus_fingerprint": art.Fingerprint})
	}
	c.cw.RecordCorpusScan(len(parsed), res.Skipped, len(res.Tokens))

	logger.Info("Corpus extracted", logger.Fields{
		"corpus_fingerprint": art.Fingerprint,
		"vocabulary":         len(art.Vocabulary),
		"tokens":             len(res.Tokens),
		"artifact":           c.cfg.ArtifactPath,
	})
	return &ExtractResult{Artifact: art, Scan: res}, nil
}

// TrainOptions overrides config for one training pass
type TrainOptions struct {
	Cells  int
	Epochs int
}

// TrainResult summarizes a training pass
type TrainResult struct {
	Fingerprint string        `json:"fingerprint"`
	Checkpoint  string        `json:"checkpoint"`
	Samples     int           `json:"samples"`
	Epochs      int           `json:"epochs"`
	FinalLoss   float64       `json:"final_loss"`
	Duration    time.Duration `json:"duration"`
}

// Train fits a fresh model on the persisted corpus and writes the checkpoint
func (c *Composer) Train(ctx context.Context, opts TrainOptions) (*TrainResult, error) {
	start := time.Now()

	art, err := artifact.Load(c.cfg.ArtifactPath)
	if err != nil {
		return nil, err
	}
	samples, err := sequence.MakeTrainingSamples(art.IDs, c.cfg.TrainWindow)
	if err != nil {
		return nil, err
	}

	mc := lstm.Config{
		Cells:        firstPositive(opts.Cells, c.cfg.Cells),
		Window:       c.cfg.TrainWindow,
		VocabSize:    len(art.Vocabulary),
		Epochs:       firstPositive(opts.Epochs, c.cfg.Epochs),
		BatchSize:    c.cfg.BatchSize,
		LearningRate: float32(c.cfg.LearningRate),
	}
	model, err := c.newModel(mc, art.Fingerprint)
	if err != nil {
		return nil, err
	}

	logger.Info("Training started", logger.Fields{
		"corpus_fingerprint": art.Fingerprint,
		"samples":            len(samples),
		"cells":              mc.Cells,
		"epochs":             mc.Epochs,
	})
	fit, err := model.Fit(ctx, samples, mc)
	if err != nil {
		return nil, err
	}
	if err := model.Save(c.cfg.CheckpointPath); err != nil {
		return nil, err
	}

	result := &TrainResult{
		Fingerprint: art.Fingerprint,
		Checkpoint:  c.cfg.CheckpointPath,
		Samples:     fit.Samples,
		Epochs:      fit.Epochs,
		FinalLoss:   fit.FinalLoss,
		Duration:    time.Since(start),
	}
	c.sm.RecordTrainingRun(ctx, result.Samples, result.FinalLoss, result.Duration)
	logger.Info("Training finished", logger.Fields{
		"checkpoint": result.Checkpoint,
		"final_loss": result.FinalLoss,
		"duration":   logger.HumanDuration(result.Duration),
	})
	return result, nil
}

// GenerateOptions overrides config for one request
type GenerateOptions struct {
	Count        int   `json:"count"`
	Steps        int   `json:"steps"`
	MakeNotation *bool `json:"make_notation,omitempty"`
}

// Output describes one generated score file
type Output struct {
	RunID         string          `json:"run_id"`
	Name          string          `json:"name"`
	Path          string          `json:"-"`
	URL           string          `json:"url,omitempty"`
	Steps         int             `json:"steps"`
	Events        int             `json:"events"`
	Parts         []PartSummary   `json:"parts"`
	Warnings      []score.Warning `json:"warnings,omitempty"`
	Measured      bool            `json:"measured"`
	DurationMs    int64           `json:"duration_ms"`
	FallbackParts int             `json:"fallback_parts"`
}

// PartSummary names the instrument of one output part
type PartSummary struct {
	InstrumentID int    `json:"instrument_id"`
	Program      int    `json:"program"`
	Instrument   string `json:"instrument"`
	Events       int    `json:"events"`
	Measures     int    `json:"measures,omitempty"`
	Fallback     bool   `json:"fallback"`
}

// Generate produces Count independent scores. Each gets its own generator and
// seed window. The first failure aborts the request; outputs written before it
// are returned alongside the error.
func (c *Composer) Generate(ctx context.Context, opts GenerateOptions) ([]*Output, error) {
	count := firstPositive(opts.Count, c.cfg.OutputCount, 1)
	if count > maxOutputsPerRequest {
		return nil, fmt.Errorf("%w: %d exceeds the limit of %d", ErrTooManyOutputs, count, maxOutputsPerRequest)
	}
	makeNotation := c.cfg.MakeNotation
	if opts.MakeNotation != nil {
		makeNotation = *opts.MakeNotation
	}
	steps := firstPositive(opts.Steps, c.cfg.GenerateLength, generator.DefaultSteps)

	art, err := artifact.Load(c.cfg.ArtifactPath)
	if err != nil {
		return nil, err
	}
	vocab, err := art.Vocab()
	if err != nil {
		return nil, err
	}
	model, err := c.loadModel(c.cfg.CheckpointPath, art.Fingerprint)
	if err != nil {
		return nil, err
	}

	var outputs []*Output
	for i := 0; i < count; i++ {
		out, err := c.generateOne(ctx, art, vocab, model, steps, makeNotation)
		if err != nil {
			return outputs, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func (c *Composer) generateOne(
	ctx context.Context,
	art *artifact.Artifact,
	vocab *tokenizer.Vocabulary,
	model generator.Predictor,
	steps int,
	makeNotation bool,
) (*Output, error) {
	start := time.Now()
	window := firstPositive(c.cfg.GenerateWindow, sequence.GenerationWindow)

	run := &models.GenerationRun{
		RunID:       uuid.New().String(),
		Fingerprint: art.Fingerprint,
		Checkpoint:  c.cfg.CheckpointPath,
		Steps:       steps,
		Window:      window,
	}
	if err := c.runs.StartRun(ctx, run); err != nil {
		logger.Error("Failed to record generation run", err, logger.Fields{"run_id": run.RunID})
	}

	meta := map[string]interface{}{
		"run_id":      run.RunID,
		"fingerprint": art.Fingerprint,
		"window":      window,
		"steps":       steps,
		"vocabulary":  vocab.Size(),
	}
	trace := c.tracer.StartTrace(ctx, "composer.generate", meta)
	defer trace.Finish()
	gen := trace.Generation("lstm", meta)
	defer gen.Finish()

	out, err := c.compose(ctx, art, vocab, model, steps, window, makeNotation)
	duration := time.Since(start)
	if out != nil {
		out.RunID = run.RunID
		out.DurationMs = duration.Milliseconds()
		run.FileName = out.Name
		run.URL = out.URL
		run.Parts = len(out.Parts)
		run.FallbackParts = out.FallbackParts
	}
	if ferr := c.runs.FinishRun(ctx, run, duration, err); ferr != nil {
		logger.Error("Failed to update generation run", ferr, logger.Fields{"run_id": run.RunID})
	}

	name := ""
	if out != nil {
		name = out.Name
	}
	c.cw.RecordGenerationRun(steps, duration, err == nil)
	c.sm.RecordGenerationRun(ctx, name, steps, duration, err == nil)

	if err != nil {
		gen.SetLevel("ERROR")
		gen.Output(err.Error())
		logger.Error("Generation failed", err, logger.Fields{
			"run_id":             run.RunID,
			"corpus_fingerprint": art.Fingerprint,
		})
		return nil, err
	}

	gen.Output(out.Name)
	c.cw.RecordFallbackInstruments(out.FallbackParts)
	logger.LogGenerationRun(ctx, c.cfg.CheckpointPath, duration, steps, logger.Fields{
		"run_id": run.RunID,
		"output": out.Name,
		"parts":  len(out.Parts),
	})
	return out, nil
}

// compose runs generate -> decode -> write. Nothing is written unless every step succeeds.
func (c *Composer) compose(
	ctx context.Context,
	art *artifact.Artifact,
	vocab *tokenizer.Vocabulary,
	model generator.Predictor,
	steps, window int,
	makeNotation bool,
) (*Output, error) {
	seed, err := c.seedWindow(art.IDs, window)
	if err != nil {
		return nil, err
	}

	ids, err := generator.New(model, vocab.Size(), window, steps).Generate(ctx, seed)
	if err != nil {
		return nil, err
	}

	s, err := score.NewReconstructor(makeNotation).Decode(ids, vocab)
	if err != nil {
		return nil, err
	}

	c.writeMu.Lock()
	name, err := c.namer.NameIn(ctx, c.cfg.OutputDir)
	if err == nil {
		err = midi.WriteFile(filepath.Join(c.cfg.OutputDir, name), s)
	}
	c.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	out := &Output{
		Name:     name,
		Path:     filepath.Join(c.cfg.OutputDir, name),
		Steps:    len(ids),
		Events:   s.EventCount(),
		Warnings: s.Warnings,
		Measured: s.Measured(),
	}
	for _, p := range s.Parts {
		out.Parts = append(out.Parts, PartSummary{
			InstrumentID: p.InstrumentID,
			Program:      p.Instrument.Program,
			Instrument:   p.Instrument.Name,
			Events:       len(p.Elements),
			Measures:     len(p.Measures),
			Fallback:     p.Fallback,
		})
		if p.Fallback {
			out.FallbackParts++
		}
	}

	if c.publisher.Enabled() {
		data, err := os.ReadFile(out.Path)
		if err == nil {
			out.URL, err = c.publisher.Publish(ctx, name, data)
		}
		if err != nil {
			// The local file is the result; a failed upload is reported, not fatal
			logger.Error("Failed to publish score", err, logger.Fields{"output": name})
		}
	}
	return out, nil
}

func (c *Composer) seedWindow(ids []int, window int) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sequence.MakeSeedWindow(ids, window, c.rng)
}

// OutputFile is a generated score on disk
type OutputFile struct {
	Name      string    `json:"name"`
	Bytes     int64     `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// ListOutputs returns the generated files, newest first
func (c *Composer) ListOutputs() ([]OutputFile, error) {
	entries, err := os.ReadDir(c.cfg.OutputDir)
	if errors.Is(err, os.ErrNotExist) {
		return []OutputFile{}, nil
	}
	if err != nil {
		return nil, err
	}

	files := []OutputFile{}
	for _, e := range entries {
		if e.IsDir() || !corpus.IsMusicFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, OutputFile{Name: e.Name(), Bytes: info.Size(), CreatedAt: info.ModTime()})
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].Name < files[j].Name
		}
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

// OutputPath resolves a bare output file name inside the output directory
func (c *Composer) OutputPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || !corpus.IsMusicFile(name) {
		return "", ErrOutputNotFound
	}
	path := filepath.Join(c.cfg.OutputDir, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return "", ErrOutputNotFound
	}
	return path, nil
}

// CorpusStatus describes the persisted corpus and whether the checkpoint matches it
type CorpusStatus struct {
	Fingerprint     string `json:"fingerprint"`
	VocabularySize  int    `json:"vocabulary_size"`
	Tokens          int    `json:"tokens"`
	Files           int    `json:"files"`
	Checkpoint      string `json:"checkpoint"`
	CheckpointReady bool   `json:"checkpoint_ready"`
	CheckpointError string `json:"checkpoint_error,omitempty"`
}

// Status loads the artifact and checks the checkpoint metadata against it
func (c *Composer) Status() (*CorpusStatus, error) {
	art, err := artifact.Load(c.cfg.ArtifactPath)
	if err != nil {
		return nil, err
	}

	status := &CorpusStatus{
		Fingerprint:    art.Fingerprint,
		VocabularySize: len(art.Vocabulary),
		Tokens:         len(art.IDs),
		Files:          len(art.Files),
		Checkpoint:     c.cfg.CheckpointPath,
	}
	meta, err := lstm.ReadMeta(c.cfg.CheckpointPath)
	switch {
	case err != nil:
		status.CheckpointError = err.Error()
	case meta.Fingerprint != art.Fingerprint:
		status.CheckpointError = artifact.ErrFingerprintMismatch.Error()
	default:
		status.CheckpointReady = true
	}
	return status, nil
}

// Runs exposes the run history
func (c *Composer) Runs() *RunService {
	return c.runs
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
