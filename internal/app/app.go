// Package app provides application-level wiring and dependency injection
// for the queue engine following hexagonal architecture.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"runqueue/internal/config"
	"runqueue/internal/domain"
	"runqueue/internal/launcher"
	"runqueue/internal/service/queue"
	"runqueue/internal/store"
)

// Deps holds the external dependencies that main() must provide.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// App holds the fully-wired application: store and launcher adapters, the
// queue service, and the optional drain scheduler.
type App struct {
	Queues    *queue.Service
	Store     domain.QueueStore
	Launcher  domain.Launcher
	Scheduler *queue.Scheduler // nil unless DRAIN_CRON is configured
	DevMode   bool
}

// New wires the store, launcher, and queue service from the provided deps.
// Without a bucket it degrades to dev mode: in-memory store and stub
// launcher, so the server and CLI still run end-to-end locally.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{}

	if cfg.HasBucket() {
		gcs, err := store.NewGCSStore(ctx, cfg.QueueBucket, cfg.QueuePrefix)
		if err != nil {
			return nil, fmt.Errorf("queue store: %w", err)
		}
		app.Store = gcs
		logger.Info("queue storage ready", "bucket", cfg.QueueBucket, "prefix", cfg.QueuePrefix)
	} else {
		app.Store = store.NewMemoryStore()
		app.DevMode = true
	}

	if cfg.HasVertexConfig() {
		policy := launcher.DefaultPolicy()
		if cfg.LaunchPolicyFile != "" {
			p, err := launcher.LoadPolicy(cfg.LaunchPolicyFile)
			if err != nil {
				return nil, fmt.Errorf("launch policy: %w", err)
			}
			policy = p
			logger.Info("launch retry policy loaded", "path", cfg.LaunchPolicyFile)
		}
		vertex, err := launcher.NewVertexLauncher(ctx, launcher.VertexConfig{
			Project:     cfg.Vertex.Project,
			Region:      cfg.Vertex.Region,
			Image:       cfg.Vertex.Image,
			MachineType: cfg.Vertex.MachineType,
		}, policy, logger.With("component", "vertex"))
		if err != nil {
			return nil, fmt.Errorf("vertex launcher: %w", err)
		}
		app.Launcher = vertex
		logger.Info("vertex launch backend ready", "project", cfg.Vertex.Project, "region", cfg.Vertex.Region)
	} else {
		app.Launcher = launcher.NewLocalLauncher(logger.With("component", "local-launcher"))
		app.DevMode = true
	}

	app.Queues = queue.NewService(app.Store, app.Launcher, queue.Limits{
		MaxLaunchAttempts:  cfg.MaxLaunchAttempts,
		MaxConflictRetries: cfg.MaxConflictRetries,
		MaxDrainTicks:      cfg.MaxDrainTicks,
		StaleAfter:         cfg.StaleAfter,
		LaunchTimeout:      cfg.LaunchTimeout,
	}, logger.With("component", "queue"))

	if cfg.DrainCron != "" {
		app.Scheduler = queue.NewScheduler(app.Queues, cfg.DrainQueue, cfg.DrainCron, logger.With("component", "scheduler"))
	}

	if app.DevMode {
		logger.Warn("running in dev mode", "in_memory_store", !cfg.HasBucket(), "local_launcher", !cfg.HasVertexConfig())
	}
	return app, nil
}
