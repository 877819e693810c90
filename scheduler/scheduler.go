// Package scheduler triggers declared pipeline schedules in serve mode. Only
// schedules written in the pipeline document are honored; orchestrator-side
// scheduling stays with the orchestrator.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/archdotdev/dagster-meltano-pipelines/component"
	"github.com/archdotdev/dagster-meltano-pipelines/runner"
)

// Scheduler runs pipelines on their cron schedules.
type Scheduler struct {
	runner *runner.Runner
	logger *slog.Logger

	cron *cron.Cron

	mu       sync.Mutex
	inFlight map[string]bool
}

// New creates a scheduler around the given runner.
func New(r *runner.Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   r,
		logger:   logger,
		cron:     cron.New(),
		inFlight: make(map[string]bool),
	}
}

// Register adds every scheduled pipeline in the document. Pipelines without
// a schedule are skipped. Returns the number of registered schedules.
func (s *Scheduler) Register(ctx context.Context, c *component.Component) (int, error) {
	registered := 0
	for i := range c.Pipelines {
		p := &c.Pipelines[i]
		if p.Schedule == "" {
			continue
		}

		pipeline := p
		_, err := s.cron.AddFunc(p.Schedule, func() {
			s.trigger(ctx, pipeline)
		})
		if err != nil {
			return registered, errors.Join(errors.New("register schedule for pipeline "+p.ID), err)
		}

		s.logger.Info("registered schedule",
			slog.String("pipeline", p.ID),
			slog.String("schedule", p.Schedule))
		registered++
	}
	return registered, nil
}

// trigger runs one scheduled tick. A tick is skipped when the previous run of
// the same pipeline is still in flight; overlapping Meltano runs of one
// pipeline would contend on state.
func (s *Scheduler) trigger(ctx context.Context, p *component.Pipeline) {
	s.mu.Lock()
	if s.inFlight[p.ID] {
		s.mu.Unlock()
		s.logger.Warn("skipping scheduled run; previous run still in flight",
			slog.String("pipeline", p.ID))
		return
	}
	s.inFlight[p.ID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, p.ID)
		s.mu.Unlock()
	}()

	if _, err := s.runner.Run(ctx, p, runner.RunFlags{}); err != nil {
		s.logger.Error("scheduled run failed",
			slog.String("pipeline", p.ID),
			slog.String("error", err.Error()))
	}
}

// Start begins dispatching schedules in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts dispatch and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Running reports whether the pipeline currently has an in-flight run.
func (s *Scheduler) Running(pipelineID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[pipelineID]
}

// Entries returns the number of registered cron entries.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
