package model

import "time"

// ================ Config ================
type ExtractorModelConfig struct {
	Model          string  `envconfig:"EXTRACTOR_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens      int     `envconfig:"EXTRACTOR_MAX_TOKENS" default:"1024"`
	Temperature    float32 `envconfig:"EXTRACTOR_TEMPERATURE" default:"0"`
	ThinkingBudget int32   `envconfig:"EXTRACTOR_THINKING_BUDGET" default:"0"`
}

type AnswerModelConfig struct {
	Model          string  `envconfig:"ANSWER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens      int     `envconfig:"ANSWER_MAX_TOKENS" default:"2048"`
	Temperature    float32 `envconfig:"ANSWER_TEMPERATURE" default:"0.2"`
	ThinkingBudget int32   `envconfig:"ANSWER_THINKING_BUDGET" default:"1024"`
	// HistoryMaxTurns is how many caller history turns are replayed to the answer model.
	HistoryMaxTurns int `envconfig:"ANSWER_HISTORY_MAX_TURNS" default:"0"`
}

type MemoryConfig struct {
	Backend    string        `envconfig:"MEMORY_BACKEND" default:"redis"`
	TTL        time.Duration `envconfig:"MEMORY_TTL" default:"24h"`
	SQLitePath string        `envconfig:"MEMORY_SQLITE_PATH" default:"memory.db"`
}

// Memory backends.
const (
	MemoryBackendRedis    = "redis"
	MemoryBackendSQLite   = "sqlite"
	MemoryBackendInMemory = "inmemory"
)
