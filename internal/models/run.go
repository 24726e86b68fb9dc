package models

import (
	"time"
)

// Generation run states
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// CorpusSnapshot records one extraction pass over the corpus
type CorpusSnapshot struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Fingerprint    string    `gorm:"index;not null" json:"fingerprint"`
	Directory      string    `gorm:"not null" json:"directory"`
	Files          int       `json:"files"`
	Skipped        int       `json:"skipped"`
	Tokens         int       `json:"tokens"`
	VocabularySize int       `json:"vocabulary_size"`
	ArtifactPath   string    `json:"artifact_path"`
}

// GenerationRun records one generated score, successful or not
type GenerationRun struct {
	ID            uint      `gorm:"primarykey" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	RunID         string    `gorm:"uniqueIndex;not null" json:"run_id"`
	Fingerprint   string    `gorm:"index" json:"fingerprint"`
	Checkpoint    string    `json:"checkpoint"`
	FileName      string    `gorm:"index" json:"file_name,omitempty"`
	URL           string    `json:"url,omitempty"`
	Status        string    `gorm:"default:'running';index" json:"status"`
	Error         string    `json:"error,omitempty"`
	Steps         int       `json:"steps"`
	Window        int       `json:"window"`
	Parts         int       `json:"parts"`
	FallbackParts int       `json:"fallback_parts"`
	DurationMs    int64     `json:"duration_ms"`
}
