package events

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Publisher publishes run events to NATS. A nil Publisher is valid and drops
// everything, so callers without a bus (one-shot CLI runs) need no branching.
//
// Publishing is best-effort: a failed publish is logged and never fails the
// pipeline run itself.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewPublisher wraps a NATS connection. An empty prefix selects
// DefaultSubjectPrefix.
func NewPublisher(nc *nats.Conn, prefix string, logger *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{nc: nc, prefix: prefix, logger: logger}
}

// Subject returns the full subject for a suffix, e.g.
// Subject("run.started") == "meltano.pipelines.run.started".
func (p *Publisher) Subject(suffix string) string {
	return p.prefix + "." + suffix
}

// RunStarted publishes a RunStartedEvent.
func (p *Publisher) RunStarted(ev RunStartedEvent) { p.publish(suffixRunStarted, ev) }

// RunLog publishes a RunLogEvent.
func (p *Publisher) RunLog(ev RunLogEvent) { p.publish(suffixRunLog, ev) }

// RunCompleted publishes a RunCompletedEvent.
func (p *Publisher) RunCompleted(ev RunCompletedEvent) { p.publish(suffixRunCompleted, ev) }

// RunFailed publishes a RunFailedEvent.
func (p *Publisher) RunFailed(ev RunFailedEvent) { p.publish(suffixRunFailed, ev) }

func (p *Publisher) publish(suffix string, ev any) {
	if p == nil || p.nc == nil {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("encode run event", slog.String("subject", p.Subject(suffix)), slog.String("error", err.Error()))
		return
	}

	if err := p.nc.Publish(p.Subject(suffix), data); err != nil {
		p.logger.Warn("publish run event", slog.String("subject", p.Subject(suffix)), slog.String("error", err.Error()))
	}
}
