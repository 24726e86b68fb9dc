package services

import (
	"context"
	"errors"
	"time"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"gorm.io/gorm"
)

// ErrHistoryDisabled is returned by queries when no database is configured
var ErrHistoryDisabled = errors.New("run history is disabled")

const defaultRunLimit = 50

// RunService stores corpus snapshots and generation runs. A RunService
// without a database accepts writes as no-ops.
type RunService struct {
	db *gorm.DB
}

func NewRunService(db *gorm.DB) *RunService {
	return &RunService{db: db}
}

// Enabled reports whether run history is persisted
func (s *RunService) Enabled() bool {
	return s != nil && s.db != nil
}

// RecordSnapshot stores the summary of an extraction pass
func (s *RunService) RecordSnapshot(ctx context.Context, snapshot *models.CorpusSnapshot) error {
	if !s.Enabled() {
		return nil
	}
	return s.db.WithContext(ctx).Create(snapshot).Error
}

// LatestSnapshot returns the most recent extraction pass
func (s *RunService) LatestSnapshot(ctx context.Context) (*models.CorpusSnapshot, error) {
	if !s.Enabled() {
		return nil, ErrHistoryDisabled
	}
	var snapshot models.CorpusSnapshot
	if err := s.db.WithContext(ctx).Order("created_at DESC").First(&snapshot).Error; err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// StartRun inserts a run in the running state
func (s *RunService) StartRun(ctx context.Context, run *models.GenerationRun) error {
	run.Status = models.RunStatusRunning
	if !s.Enabled() {
		return nil
	}
	return s.db.WithContext(ctx).Create(run).Error
}

// FinishRun marks a run succeeded, or failed when runErr is non-nil
func (s *RunService) FinishRun(ctx context.Context, run *models.GenerationRun, duration time.Duration, runErr error) error {
	run.DurationMs = duration.Milliseconds()
	run.Status = models.RunStatusSucceeded
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.Error = runErr.Error()
	}
	if !s.Enabled() {
		return nil
	}
	// The request context may already be cancelled when a run fails
	return s.db.WithContext(context.WithoutCancel(ctx)).Save(run).Error
}

// ListRuns returns the newest runs first
func (s *RunService) ListRuns(ctx context.Context, limit int) ([]models.GenerationRun, error) {
	if !s.Enabled() {
		return nil, ErrHistoryDisabled
	}
	if limit <= 0 {
		limit = defaultRunLimit
	}
	var runs []models.GenerationRun
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// GetRun looks a run up by its public id
func (s *RunService) GetRun(ctx context.Context, runID string) (*models.GenerationRun, error) {
	if !s.Enabled() {
		return nil, ErrHistoryDisabled
	}
	var run models.GenerationRun
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}
