package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conceptual-Machines/magda-composer/internal/artifact"
	"github.com/Conceptual-Machines/magda-composer/internal/corpus"
	"github.com/Conceptual-Machines/magda-composer/internal/generator"
	"github.com/Conceptual-Machines/magda-composer/internal/sequence"
	"github.com/Conceptual-Machines/magda-composer/internal/services"
	"github.com/Conceptual-Machines/magda-composer/internal/tokenizer"
)

// MockPipeline is a test implementation of Pipeline
type MockPipeline struct {
	StatusFunc   func() (*services.CorpusStatus, error)
	ExtractFunc  func(ctx context.Context) (*services.ExtractResult, error)
	GenerateFunc func(ctx context.Context, opts services.GenerateOptions) ([]*services.Output, error)
	Files        []services.OutputFile
	Dir          string
	LastOptions  services.GenerateOptions
}

func (m *MockPipeline) Status() (*services.CorpusStatus, error) {
	if m.StatusFunc == nil {
		return nil, os.ErrNotExist
	}
	return m.StatusFunc()
}

func (m *MockPipeline) Extract(ctx context.Context) (*services.ExtractResult, error) {
	return m.ExtractFunc(ctx)
}

func (m *MockPipeline) Generate(ctx context.Context, opts services.GenerateOptions) ([]*services.Output, error) {
	m.LastOptions = opts
	return m.GenerateFunc(ctx, opts)
}

func (m *MockPipeline) ListOutputs() ([]services.OutputFile, error) {
	return m.Files, nil
}

func (m *MockPipeline) OutputPath(name string) (string, error) {
	path := filepath.Join(m.Dir, name)
	if name != filepath.Base(name) {
		return "", services.ErrOutputNotFound
	}
	if _, err := os.Stat(path); err != nil {
		return "", services.ErrOutputNotFound
	}
	return path, nil
}

func (m *MockPipeline) Runs() *services.RunService {
	return services.NewRunService(nil)
}

func setupTestRouter(p Pipeline) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", NewHealthHandler(p).HealthCheck)
	router.GET("/api/metrics", NewMetricsHandler("test", p).GetMetrics)

	corpusHandler := NewCorpusHandler(p)
	router.GET("/api/v1/corpus", corpusHandler.GetStatus)
	router.POST("/api/v1/corpus/extract", corpusHandler.Extract)

	gen := NewGenerationHandler(p)
	router.POST("/api/v1/generations", gen.Generate)
	router.GET("/api/v1/generations", gen.List)
	router.GET("/api/v1/generations/:name/file", gen.Download)
	router.GET("/api/v1/runs", gen.ListRuns)
	router.GET("/api/v1/runs/:id", gen.GetRun)
	return router
}

func do(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func readyStatus() (*services.CorpusStatus, error) {
	return &services.CorpusStatus{Fingerprint: "abc", VocabularySize: 10, Tokens: 200, CheckpointReady: true}, nil
}

func TestHealthCheck(t *testing.T) {
	w := do(t, setupTestRouter(&MockPipeline{}), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, false, resp["can_compose"])

	w = do(t, setupTestRouter(&MockPipeline{StatusFunc: readyStatus}), http.MethodGet, "/health", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["can_compose"])
}

func TestGetMetrics(t *testing.T) {
	p := &MockPipeline{StatusFunc: readyStatus, Files: []services.OutputFile{{Name: "a_b.mid"}}}
	w := do(t, setupTestRouter(p), http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp MetricsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "test", resp.Version)
	assert.EqualValues(t, 1, resp.API["outputs"])
	assert.Contains(t, resp.API, "corpus")
}

func TestCorpusStatus(t *testing.T) {
	w := do(t, setupTestRouter(&MockPipeline{}), http.MethodGet, "/api/v1/corpus", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, setupTestRouter(&MockPipeline{StatusFunc: readyStatus}), http.MethodGet, "/api/v1/corpus", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"vocabulary_size":10`)
}

func TestCorpusExtract(t *testing.T) {
	art, err := artifact.Build([]string{"0 C4 1.0 0.0", "0 D4 1.0 1.0"}, []string{"a.mid"})
	require.NoError(t, err)

	p := &MockPipeline{ExtractFunc: func(context.Context) (*services.ExtractResult, error) {
		return &services.ExtractResult{
			Artifact: art,
			Scan: &corpus.Result{Files: []corpus.FileResult{
				{Path: "a.mid", Events: 2},
				{Path: "b.mid", Err: errors.New("bad header")},
			}},
		}, nil
	}}

	w := do(t, setupTestRouter(p), http.MethodPost, "/api/v1/corpus/extract", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, art.Fingerprint, resp["fingerprint"])
	assert.EqualValues(t, 2, resp["vocabulary_size"])
	assert.Len(t, resp["skipped"], 1)

	p.ExtractFunc = func(context.Context) (*services.ExtractResult, error) {
		return nil, tokenizer.ErrEmptyCorpus
	}
	w = do(t, setupTestRouter(p), http.MethodPost, "/api/v1/corpus/extract", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGenerate(t *testing.T) {
	p := &MockPipeline{GenerateFunc: func(_ context.Context, opts services.GenerateOptions) ([]*services.Output, error) {
		var outs []*services.Output
		for i := 0; i < max(opts.Count, 1); i++ {
			outs = append(outs, &services.Output{Name: fmt.Sprintf("amber_tide%d.mid", i), Steps: 500})
		}
		return outs, nil
	}}
	router := setupTestRouter(p)

	notation := true
	w := do(t, router, http.MethodPost, "/api/v1/generations", GenerateRequest{Count: 2, MakeNotation: &notation})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 2, p.LastOptions.Count)
	require.NotNil(t, p.LastOptions.MakeNotation)
	assert.True(t, *p.LastOptions.MakeNotation)

	var resp struct {
		Outputs []services.Output `json:"outputs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Outputs, 2)

	// empty body uses config defaults
	w = do(t, router, http.MethodPost, "/api/v1/generations", nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Zero(t, p.LastOptions.Count)

	w = do(t, router, http.MethodPost, "/api/v1/generations", map[string]int{"count": 99})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not trained", fmt.Errorf("open weights: %w", os.ErrNotExist), http.StatusConflict},
		{"fingerprint mismatch", artifact.ErrFingerprintMismatch, http.StatusConflict},
		{"model failure", &generator.ModelQueryError{Step: 3, Err: errors.New("nan")}, http.StatusInternalServerError},
		{"corpus too short", &sequence.InsufficientDataError{Length: 10, Window: 64}, http.StatusUnprocessableEntity},
		{"too many", services.ErrTooManyOutputs, http.StatusBadRequest},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &MockPipeline{GenerateFunc: func(context.Context, services.GenerateOptions) ([]*services.Output, error) {
				return nil, tt.err
			}}
			w := do(t, setupTestRouter(p), http.MethodPost, "/api/v1/generations", nil)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestListAndDownload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "amber_tide.mid"), []byte("MThd"), 0o644))

	p := &MockPipeline{Dir: dir, Files: []services.OutputFile{{Name: "amber_tide.mid", Bytes: 4}}}
	router := setupTestRouter(p)

	w := do(t, router, http.MethodGet, "/api/v1/generations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "amber_tide.mid")

	w = do(t, router, http.MethodGet, "/api/v1/generations/amber_tide.mid/file", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MThd", w.Body.String())
	assert.Equal(t, "audio/midi", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "amber_tide.mid")

	w = do(t, router, http.MethodGet, "/api/v1/generations/missing.mid/file", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunsWithoutHistory(t *testing.T) {
	router := setupTestRouter(&MockPipeline{})

	w := do(t, router, http.MethodGet, "/api/v1/runs", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/runs?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/runs/some-id", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
