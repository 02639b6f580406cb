// Package config holds the assembled runtime configuration. Values are
// populated from CLI flags and environment variables in cmd/server so
// the rest of the code never reads the environment directly.
package config

import "time"

// Config is the full runtime configuration for the service.
type Config struct {
	Addr     string
	LogLevel string

	SessionStrict bool

	Audit  Audit
	Gemini Gemini
}

// Audit selects and configures the durable sink for the audit trail,
// plus the flush policy of the in-memory queue.
type Audit struct {
	// Sink is one of: slog, redis, postgres, kafka, s3.
	Sink string

	RedisURL    string
	RedisStream string

	PostgresDSN string

	KafkaBrokers []string
	KafkaTopic   string

	S3Bucket string
	S3Region string

	FlushThreshold int
	FlushInterval  time.Duration
	MaxRetryCycles int
}

// Gemini configures the external text-improvement and translation
// collaborator.
type Gemini struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}
