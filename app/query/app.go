package query

import (
	"context"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/canopy-network/govlens/app/query/types"
	"github.com/canopy-network/govlens/pkg/config"
	"github.com/canopy-network/govlens/pkg/db/clickhouse"
	"github.com/canopy-network/govlens/pkg/filter"
	"github.com/canopy-network/govlens/pkg/governance"
	"github.com/canopy-network/govlens/pkg/logging"
	"github.com/canopy-network/govlens/pkg/redis"
	"github.com/canopy-network/govlens/pkg/source"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) (*types.App, config.Config) {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	loader, err := source.NewLoader(ctx, logger, cfg, clickhouse.ComponentLoader)
	if err != nil {
		logger.Fatal("Unable to initialize source", zap.Error(err))
	}

	// Redis only drives cache invalidation here, so the API runs without it.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(ctx, logger, cfg.Redis)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - cached chains will not refresh after precompute runs",
				zap.Error(err))
			redisClient = nil
		}
	} else {
		logger.Info("Redis disabled - cached chains will not refresh after precompute runs")
	}

	pool := pond.NewPool(cfg.Workers)
	memo := filter.NewMemo(cfg.MemoSize)
	memo.Pool = pool
	memo.Shards = cfg.TallyShards

	app := &types.App{
		Loader:         loader,
		Datasets:       xsync.NewMap[string, *governance.Dataset](),
		Memo:           memo,
		Pool:           pool,
		RedisClient:    redisClient,
		StatsKeyPrefix: cfg.StatsKeyPrefix,
		Logger:         logger,
	}
	return app, cfg
}
