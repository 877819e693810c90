// Package events publishes pipeline run lifecycle events to NATS, which is
// how run status and logs reach the orchestrator's execution model. Events
// use one subject per type under a configurable prefix:
//
//	meltano.pipelines.run.started
//	meltano.pipelines.run.log
//	meltano.pipelines.run.completed
//	meltano.pipelines.run.failed
//
// Payloads are plain JSON so any subscriber can consume them without this
// module.
package events

import (
	"time"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "meltano.pipelines"

// Subject suffixes, one per event type.
const (
	suffixRunStarted   = "run.started"
	suffixRunLog       = "run.log"
	suffixRunCompleted = "run.completed"
	suffixRunFailed    = "run.failed"
)

// RunStartedEvent is published when a pipeline subprocess has been spawned.
type RunStartedEvent struct {
	RunID      string    `json:"run_id"`
	PipelineID string    `json:"pipeline_id"`
	Extractor  string    `json:"extractor"`
	Loader     string    `json:"loader"`
	StartedAt  time.Time `json:"started_at"`
}

// RunLogEvent relays one line of Meltano output.
type RunLogEvent struct {
	RunID      string         `json:"run_id"`
	PipelineID string         `json:"pipeline_id"`
	Level      string         `json:"level,omitempty"`
	Event      string         `json:"event"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// RunCompletedEvent is published when a run exits zero.
type RunCompletedEvent struct {
	RunID           string    `json:"run_id"`
	PipelineID      string    `json:"pipeline_id"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	CompletedAt     time.Time `json:"completed_at"`
}

// RunFailedEvent is published when a run exits non-zero.
type RunFailedEvent struct {
	RunID       string    `json:"run_id"`
	PipelineID  string    `json:"pipeline_id"`
	ExitCode    int       `json:"exit_code"`
	ErrorLogs   []string  `json:"error_logs,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}
