package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/archdotdev/dagster-meltano-pipelines/component"
	"github.com/archdotdev/dagster-meltano-pipelines/events"
	"github.com/archdotdev/dagster-meltano-pipelines/runner"
	"github.com/archdotdev/dagster-meltano-pipelines/scheduler"
)

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled pipelines and relay run events",
		Long: `Serve mode keeps the adapter running: declared schedules fire through
the cron scheduler, run events are published to NATS for the orchestration
platform, Prometheus metrics are exposed over HTTP, and the pipeline
document is reloaded when it changes on disk.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), a)
		},
	}
}

// serveState holds the parts of serve mode that reload swaps out.
type serveState struct {
	mu    sync.Mutex
	comp  *component.Component
	sched *scheduler.Scheduler
}

func serve(ctx context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, proj, err := a.loadComponent()
	if err != nil {
		return err
	}

	// NATS: external when a URL is configured, embedded otherwise.
	var embedded *natsserver.Server
	var nc *nats.Conn
	if a.cfg.NATS.URL != "" && !a.cfg.NATS.Embedded {
		a.logger.Info("connecting to NATS", slog.String("url", a.cfg.NATS.URL))
		nc, err = nats.Connect(a.cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
	} else {
		a.logger.Info("starting embedded NATS server")
		embedded, nc, err = startEmbeddedNATS()
		if err != nil {
			return err
		}
	}
	defer func() {
		if nc != nil {
			_ = nc.Drain()
			nc.Close()
		}
		if embedded != nil {
			embedded.Shutdown()
			embedded.WaitForShutdown()
		}
	}()

	reg := prometheus.NewRegistry()
	metrics := runner.NewMetrics(reg)
	publisher := events.NewPublisher(nc, a.cfg.NATS.SubjectPrefix, a.logger)

	r := &runner.Runner{
		Project:    proj,
		Executable: a.cfg.Meltano.Executable,
		Logger:     a.logger,
		Events:     publisher,
		Metrics:    metrics,
		Timeout:    a.cfg.Meltano.RunTimeout,
	}

	state := &serveState{comp: c}

	if a.cfg.Serve.Scheduler {
		sched, err := startScheduler(ctx, r, c, a.logger)
		if err != nil {
			return err
		}
		state.sched = sched
		defer func() {
			state.mu.Lock()
			defer state.mu.Unlock()
			if state.sched != nil {
				state.sched.Stop()
			}
		}()
	}

	if a.cfg.Serve.Watch {
		w, err := scheduler.NewWatcher(a.document, func() {
			reloadDocument(ctx, a, r, state)
		}, a.logger)
		if err != nil {
			return fmt.Errorf("watch pipeline document: %w", err)
		}
		go w.Run(ctx)
	}

	httpSrv := startMetricsServer(a.cfg.Serve.MetricsAddr, reg, a.logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("serving",
		slog.String("document", a.document),
		slog.String("project", proj.Dir),
		slog.Int("pipelines", len(c.Pipelines)),
		slog.String("metrics_addr", a.cfg.Serve.MetricsAddr))

	<-ctx.Done()
	a.logger.Info("shutting down")
	return nil
}

func startEmbeddedNATS() (*natsserver.Server, *nats.Conn, error) {
	opts := &natsserver.Options{
		Port:   -1, // random available port
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, nil, fmt.Errorf("embedded NATS server failed to start")
	}

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		return nil, nil, fmt.Errorf("connect to embedded NATS: %w", err)
	}

	return ns, nc, nil
}

func startScheduler(ctx context.Context, r *runner.Runner, c *component.Component, logger *slog.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.New(r, logger)
	n, err := sched.Register(ctx, c)
	if err != nil {
		return nil, err
	}
	sched.Start()
	logger.Info("scheduler started", slog.Int("schedules", n))
	return sched, nil
}

// reloadDocument re-reads the pipeline document after a change. An invalid
// document keeps the previous state; a broken edit must not take the
// scheduler down.
func reloadDocument(ctx context.Context, a *app, r *runner.Runner, state *serveState) {
	c, proj, err := a.loadComponent()
	if err != nil {
		a.logger.Error("reload failed; keeping previous pipeline document",
			slog.String("error", err.Error()))
		return
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.sched != nil {
		state.sched.Stop()
		state.sched = nil
	}

	r.Project = proj
	state.comp = c

	if a.cfg.Serve.Scheduler {
		sched, err := startScheduler(ctx, r, c, a.logger)
		if err != nil {
			a.logger.Error("restart scheduler", slog.String("error", err.Error()))
			return
		}
		state.sched = sched
	}

	a.logger.Info("pipeline document reloaded", slog.Int("pipelines", len(c.Pipelines)))
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", slog.String("error", err.Error()))
		}
	}()

	return srv
}
