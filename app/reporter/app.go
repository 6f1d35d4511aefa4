package workerreports

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	sdkworkflow "go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/canopy-network/govlens/pkg/config"
	"github.com/canopy-network/govlens/pkg/db/clickhouse"
	"github.com/canopy-network/govlens/pkg/logging"
	"github.com/canopy-network/govlens/pkg/metrics"
	"github.com/canopy-network/govlens/pkg/precompute"
	"github.com/canopy-network/govlens/pkg/redis"
	"github.com/canopy-network/govlens/pkg/reporter/activity"
	"github.com/canopy-network/govlens/pkg/reporter/workflow"
	"github.com/canopy-network/govlens/pkg/source"
	"github.com/canopy-network/govlens/pkg/temporal"
)

type App struct {
	Config         config.Config
	Worker         worker.Worker
	TemporalClient *temporal.Client
	Loader         source.Loader
	Redis          *redis.Client
	Server         *http.Server
	Logger         *zap.Logger

	ready atomic.Bool
}

// Start starts the worker and the health server and blocks until the context is canceled.
func (a *App) Start(ctx context.Context) {
	if err := a.Worker.Start(); err != nil {
		a.Logger.Fatal("Unable to start worker", zap.Error(err))
	}

	if err := a.TemporalClient.EnsureSchedule(ctx, a.Logger, temporal.StatsScheduleID,
		temporal.GetScheduleSpec(a.Config.ScheduleInterval),
		&client.ScheduleWorkflowAction{
			ID:                       "stats:precompute:run",
			Workflow:                 workflow.PrecomputeDistributionsWorkflowName,
			Args:                     []interface{}{activity.PrecomputeInput{Chains: a.Config.Chains}},
			TaskQueue:                a.TemporalClient.ReportsQueue,
			WorkflowExecutionTimeout: 30 * time.Minute,
			WorkflowTaskTimeout:      time.Minute,
		},
	); err != nil {
		a.Logger.Fatal("Unable to ensure precompute schedule", zap.Error(err))
	}

	go func() {
		a.Logger.Info("Starting server", zap.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("Server stopped", zap.Error(err))
		}
	}()
	a.ready.Store(true)

	<-ctx.Done()
	a.Stop()
}

// Stop stops the worker and releases every connection.
func (a *App) Stop() {
	a.ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.Server != nil {
		_ = a.Server.Shutdown(shutdownCtx)
	}

	a.Worker.Stop()
	if err := a.Loader.Close(); err != nil {
		a.Logger.Warn("Failed to close loader", zap.Error(err))
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	a.TemporalClient.Close()
	a.Logger.Info("さようなら!")
	_ = a.Logger.Sync()
}

// Ready reports whether the worker is polling.
func (a *App) Ready() bool { return a.ready.Load() }

// Initialize initializes the application.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	logger.Info("Configuration loaded", zap.String("config", cfg.DebugString()))

	loader, err := source.NewLoader(ctx, logger, cfg, clickhouse.ComponentReporter)
	if err != nil {
		logger.Fatal("Unable to initialize source", zap.Error(err))
	}

	a := &App{Config: cfg, Loader: loader, Logger: logger}

	sinks := []precompute.Sink{precompute.NewFileSink(cfg.OutputDir)}
	if cfg.Redis.Enabled {
		a.Redis, err = redis.NewClient(ctx, logger, cfg.Redis)
		if err != nil {
			logger.Fatal("Unable to connect to Redis", zap.Error(err))
		}
		sinks = append(sinks, precompute.NewRedisSink(a.Redis, cfg.StatsKeyPrefix, 0))
	}

	m := metrics.New()

	a.TemporalClient, err = temporal.NewClient(ctx, logger, cfg.Temporal)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}

	activityContext := &activity.Context{
		Logger: logger,
		Runner: &precompute.Runner{
			Loader:  loader,
			Sinks:   sinks,
			Logger:  logger,
			Metrics: m,
			Workers: cfg.Workers,
		},
		TemporalClient: a.TemporalClient,
		Chains:         cfg.Chains,
	}
	workflowContext := workflow.Context{
		ActivityContext: activityContext,
	}

	a.Worker = worker.New(
		a.TemporalClient.TClient,
		a.TemporalClient.ReportsQueue,
		worker.Options{},
	)
	a.Worker.RegisterWorkflowWithOptions(workflowContext.PrecomputeDistributionsWorkflow, sdkworkflow.RegisterOptions{
		Name: workflow.PrecomputeDistributionsWorkflowName,
	})
	a.Worker.RegisterActivity(activityContext.ComputeDistributionsAllChains)

	a.Server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(a.Ready, m),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a
}
