package types

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/canopy-network/govlens/pkg/filter"
	"github.com/canopy-network/govlens/pkg/governance"
	"github.com/canopy-network/govlens/pkg/redis"
	"github.com/canopy-network/govlens/pkg/source"
)

type App struct {
	Loader source.Loader
	// Datasets caches loaded chains until an update notification arrives.
	Datasets *xsync.Map[string, *governance.Dataset]
	Memo     *filter.Memo
	// Pool runs similarity rankings.
	Pool pond.Pool

	RedisClient    *redis.Client
	StatsKeyPrefix string

	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// LoadDataset returns the cached dataset of chain, loading it on first use.
// Concurrent first requests may both load; the first stored copy wins.
func (a *App) LoadDataset(ctx context.Context, chain string) (*governance.Dataset, error) {
	if ds, ok := a.Datasets.Load(chain); ok {
		return ds, nil
	}

	a.Logger.Debug("Chain not cached, loading from source", zap.String("chain", chain))
	ds, err := a.Loader.Load(ctx, chain)
	if err != nil {
		return nil, err
	}
	actual, _ := a.Datasets.LoadOrStore(chain, ds)
	return actual, nil
}

// Invalidate drops the cached dataset of chain, or every dataset when chain
// is empty or names the combined object. Memoized filter results go too.
func (a *App) Invalidate(chain string) {
	if chain == "" || chain == "all" {
		a.Datasets.Clear()
	} else {
		a.Datasets.Delete(chain)
	}
	a.Memo.Invalidate()
	a.Logger.Debug("Cache invalidated", zap.String("chain", chain))
}

// UpdatesChannel is where precompute runs announce refreshed chains.
func (a *App) UpdatesChannel() string { return a.StatsKeyPrefix + ":stats.updated" }

// WatchUpdates invalidates the cache on every precompute notification until
// ctx is done. It returns at once when Redis is not configured.
func (a *App) WatchUpdates(ctx context.Context) {
	if a.RedisClient == nil {
		return
	}
	sub := a.RedisClient.Subscribe(ctx, a.UpdatesChannel())
	defer func() { _ = sub.Close() }()

	a.Logger.Info("Watching precompute updates", zap.String("channel", a.UpdatesChannel()))
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			a.Invalidate(msg.Payload)
		}
	}
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go a.WatchUpdates(ctx)
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("Server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)

	a.Pool.StopAndWait()
	if err := a.Loader.Close(); err != nil {
		a.Logger.Error("Failed to close source", zap.Error(err))
	}
	if a.RedisClient != nil {
		_ = a.RedisClient.Close()
	}
	a.Logger.Info("さようなら!")
}
