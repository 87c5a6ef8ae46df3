// Package broadcast pushes one message to every known user through the
// rate-limited transport: batches of recipients behind a hard barrier, a
// small concurrency ceiling inside each batch, and per-recipient recovery
// from platform flood control.
package broadcast

import (
	"context"
	"time"

	kit "quizbot/internal/transport"
)

// Sender is the single transport primitive the dispatcher needs.
type Sender interface {
	Copy(ctx context.Context, to kit.ChatTarget, src kit.MessageRef) error
}

// Job is an ephemeral unit of work: the source message plus the full
// recipient snapshot. It is created on admin confirmation and discarded
// right after the final report.
type Job struct {
	Source     kit.MessageRef
	Recipients []int64 // unique, in store order
	CreatedAt  time.Time
}

type Config struct {
	// Concurrency is the ceiling on in-flight sends. Default 5.
	Concurrency int
	// BatchSize groups recipients under one completion barrier. Default 50.
	BatchSize int
	// BatchPause is slept between batches regardless of outcome. Default 500ms.
	BatchPause time.Duration
	// FloodExtra is added on top of the platform's retry_after hint. Default 500ms.
	FloodExtra time.Duration
	// MaxRetries caps flood-control retries per recipient; past the cap the
	// recipient is recorded as failed. 0 picks the default of 10; a negative
	// value removes the cap entirely.
	MaxRetries int
	// MaxDiagnostics caps failure detail strings collected per job. Default 20.
	MaxDiagnostics int
}

const (
	defaultConcurrency    = 5
	defaultBatchSize      = 50
	defaultBatchPause     = 500 * time.Millisecond
	defaultFloodExtra     = 500 * time.Millisecond
	defaultMaxRetries     = 10
	defaultMaxDiagnostics = 20
)

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchPause <= 0 {
		c.BatchPause = defaultBatchPause
	}
	if c.FloodExtra <= 0 {
		c.FloodExtra = defaultFloodExtra
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.MaxDiagnostics <= 0 {
		c.MaxDiagnostics = defaultMaxDiagnostics
	}
	return c
}

// Progress is a point-in-time snapshot emitted after every batch.
type Progress struct {
	Processed int
	Total     int
	Percent   int
	Sent      int
	Failed    int
}

// Report is the final accounting. Sent+Failed always equals Total.
type Report struct {
	Total  int
	Sent   int
	Failed int
	// Diagnostics holds up to Config.MaxDiagnostics "<id>: <reason>" strings.
	Diagnostics []string
	Took        time.Duration
}
