package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/Conceptual-Machines/magda-composer/internal/artifact"
	"github.com/Conceptual-Machines/magda-composer/internal/sequence"
	"github.com/Conceptual-Machines/magda-composer/internal/services"
	"github.com/Conceptual-Machines/magda-composer/internal/tokenizer"
	"gorm.io/gorm"
)

// Pipeline is the part of services.Composer the HTTP layer uses
type Pipeline interface {
	Status() (*services.CorpusStatus, error)
	Extract(ctx context.Context) (*services.ExtractResult, error)
	Generate(ctx context.Context, opts services.GenerateOptions) ([]*services.Output, error)
	ListOutputs() ([]services.OutputFile, error)
	OutputPath(name string) (string, error)
	Runs() *services.RunService
}

// statusFor maps pipeline errors to HTTP status codes. Model and decoding
// failures fall through to 500.
func statusFor(err error) int {
	var insufficient *sequence.InsufficientDataError

	switch {
	case errors.Is(err, services.ErrOutputNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrTooManyOutputs):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrHistoryDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, tokenizer.ErrEmptyCorpus), errors.As(err, &insufficient):
		return http.StatusUnprocessableEntity
	case errors.Is(err, artifact.ErrFingerprintMismatch), errors.Is(err, os.ErrNotExist):
		// Corpus not extracted, model not trained, or trained on another corpus
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
