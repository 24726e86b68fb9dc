package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration.
// It is loaded once in main and passed into constructors.
type Config struct {
	// Environment
	Environment string
	Port        string

	// Pipeline paths
	CorpusDir      string // directory scanned for MIDI files
	ArtifactPath   string // persisted vocabulary + token stream
	CheckpointPath string // LSTM weights
	OutputDir      string // generated scores

	// Model and generation
	Cells          int
	OutputCount    int
	MakeNotation   bool // regroup parts into measures before writing
	TrainWindow    int
	GenerateWindow int
	GenerateLength int
	Epochs         int
	BatchSize      int
	LearningRate   float64

	// Extraction
	ScanWorkers     int
	FuzzInstruments bool
	FuzzSeed        int64

	// Output naming
	// - "words": embedded word list
	// - "openai" / "gemini": ask an LLM for a two-word title
	NamerProvider string
	NamerModel    string

	// LLM API Keys
	OpenAIAPIKey string
	GeminiAPIKey string

	// Persistence (optional, run history is disabled when empty)
	DatabaseURL string

	// Observability
	SentryDSN         string
	LangfusePublicKey string
	LangfuseSecretKey string
	LangfuseHost      string
	LangfuseEnabled   bool

	// Auth mode
	// - "none": No auth (self-hosted, local dev)
	// - "jwt": HMAC bearer tokens signed with JWTSecret
	AuthMode  string
	JWTSecret string

	// Publishing (optional, uploads are disabled when S3Bucket is empty)
	AWSRegion string
	S3Bucket  string
	S3Prefix  string
}

func Load() *Config {
	return &Config{
		Environment:       getEnv("ENVIRONMENT", "development"),
		Port:              getEnv("PORT", "8080"),
		CorpusDir:         getEnv("CORPUS_DIR", "midi_songs"),
		ArtifactPath:      getEnv("ARTIFACT_PATH", "data/notes.json"),
		CheckpointPath:    getEnv("CHECKPOINT_PATH", "data/weights.model"),
		OutputDir:         getEnv("OUTPUT_DIR", "output"),
		Cells:             getEnvInt("CELLS", 256),
		OutputCount:       getEnvInt("OUTPUT_COUNT", 1),
		MakeNotation:      getEnvBool("MAKE_NOTATION", false),
		TrainWindow:       getEnvInt("TRAIN_WINDOW", 100),
		GenerateWindow:    getEnvInt("GENERATE_WINDOW", 64),
		GenerateLength:    getEnvInt("GENERATE_LENGTH", 500),
		Epochs:            getEnvInt("EPOCHS", 20),
		BatchSize:         getEnvInt("BATCH_SIZE", 64),
		LearningRate:      getEnvFloat("LEARNING_RATE", 0.001),
		ScanWorkers:       getEnvInt("SCAN_WORKERS", 4),
		FuzzInstruments:   getEnvBool("FUZZ_INSTRUMENTS", false),
		FuzzSeed:          int64(getEnvInt("FUZZ_SEED", 1)),
		NamerProvider:     strings.ToLower(getEnv("NAMER_PROVIDER", "words")),
		NamerModel:        getEnv("NAMER_MODEL", "gpt-4.1-mini"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		SentryDSN:         getEnv("SENTRY_DSN", ""),
		LangfusePublicKey: getEnv("LANGFUSE_PUBLIC_KEY", ""),
		LangfuseSecretKey: getEnv("LANGFUSE_SECRET_KEY", ""),
		LangfuseHost:      getEnv("LANGFUSE_HOST", "https://cloud.langfuse.com"),
		LangfuseEnabled:   getEnvBool("LANGFUSE_ENABLED", false),
		AuthMode:          getEnv("AUTH_MODE", "none"), // Default to no auth for self-hosted
		JWTSecret:         getEnv("JWT_SECRET", ""),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Prefix:          getEnv("S3_PREFIX", "generations/"),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

// IsJWTMode returns true if API requests must carry a signed bearer token
func (c *Config) IsJWTMode() bool {
	return c.AuthMode == "jwt"
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
