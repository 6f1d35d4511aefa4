package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/canopy-network/govlens/pkg/precompute"
	"github.com/canopy-network/govlens/pkg/redis"
)

func (c *cli) precomputeCmd() *cobra.Command {
	var (
		chains   []string
		outDir   string
		useRedis bool
		schedule string
	)
	cmd := &cobra.Command{
		Use:   "precompute",
		Short: "Aggregate category and topic distributions per chain and for all chains",
		Long: "Loads every chain (or the --chain list), writes <out>/<chain>.json and <out>/all.json " +
			"and optionally publishes the same objects to Redis. With --schedule the run repeats on a cron spec " +
			"(six fields, seconds first) until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(chains) == 0 {
				chains = c.cfg.Chains
			}
			if outDir == "" {
				outDir = c.cfg.OutputDir
			}

			loader, err := c.openLoader(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = loader.Close() }()

			sinks := []precompute.Sink{precompute.NewFileSink(outDir)}
			if useRedis || c.cfg.Redis.Enabled {
				rc, err := redis.NewClient(cmd.Context(), c.logger, c.cfg.Redis)
				if err != nil {
					return err
				}
				defer func() { _ = rc.Close() }()
				sinks = append(sinks, precompute.NewRedisSink(rc, c.cfg.StatsKeyPrefix, 0))
			}

			runner := &precompute.Runner{
				Loader:  loader,
				Sinks:   sinks,
				Logger:  c.logger,
				Workers: c.cfg.Workers,
			}
			if schedule != "" {
				return c.runScheduled(cmd.Context(), runner, chains, schedule)
			}

			report, err := runner.Run(cmd.Context(), chains)
			if report != nil {
				if renderErr := c.render(report); renderErr != nil {
					return renderErr
				}
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&chains, "chain", nil, "Chains to precompute (repeatable, default CHAINS or every chain)")
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (default OUTPUT_DIR)")
	cmd.Flags().BoolVar(&useRedis, "redis", false, "Also publish to Redis (implied by REDIS_ENABLED)")
	cmd.Flags().StringVar(&schedule, "schedule", "", `Cron spec with seconds, e.g. "0 */10 * * * *"`)
	return cmd
}

func (c *cli) runScheduled(ctx context.Context, runner *precompute.Runner, chains []string, spec string) error {
	logger := cronLogger{c.logger}
	cr := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	_, err := cr.AddFunc(spec, func() {
		report, err := runner.Run(ctx, chains)
		if err != nil {
			c.logger.Error("Scheduled precompute failed", zap.Error(err))
			return
		}
		c.logger.Info("Scheduled precompute done",
			zap.String("status", report.Status()),
			zap.Strings("failed", report.Failed()))
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	cr.Start()
	c.logger.Info("Cron started", zap.String("schedule", spec))
	<-ctx.Done()
	<-cr.Stop().Done()
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ l *zap.Logger }

func (z cronLogger) Info(msg string, keysAndValues ...interface{}) {
	z.l.Sugar().Debugw(msg, keysAndValues...)
}

func (z cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	z.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
