package postgres

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/canopy-network/govlens/pkg/retry"
)

// Client wraps a GORM handle over the governance tables.
type Client struct {
	Logger *zap.Logger
	DB     *gorm.DB
}

// PoolConfig defines connection pool settings for a specific component
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	Component       string // For logging/debugging
}

// DefaultPoolConfig is sized for a loader reading one chain at a time.
func DefaultPoolConfig(component string) *PoolConfig {
	return &PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		Component:       component,
	}
}

// New opens dsn through the GORM postgres driver, applies the pool settings
// and verifies the connection, retrying with backoff.
func New(ctx context.Context, log *zap.Logger, dsn string, pool *PoolConfig) (*Client, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	if pool == nil {
		pool = DefaultPoolConfig("unknown")
	}
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	// Only errors are interesting from GORM itself; queries are logged by callers.
	gormLogger := logger.New(
		stdlog.New(os.Stderr, "", stdlog.LstdFlags),
		logger.Config{
			LogLevel:                  logger.Error,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := retry.Value(connCtx, retry.DefaultConfig(), log, "postgres_connection", func() (*gorm.DB, error) {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres connection: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, retry.Permanent(err)
		}
		if err := sqlDB.PingContext(connCtx); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to ping postgres: %w", err)
		}
		return db, nil
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	log.Info("PostgreSQL connection pool configured",
		zap.String("component", pool.Component),
		zap.Int("max_open_conns", pool.MaxOpenConns),
		zap.Int("max_idle_conns", pool.MaxIdleConns),
		zap.Duration("conn_max_lifetime", pool.ConnMaxLifetime),
		zap.Duration("conn_max_idle_time", pool.ConnMaxIdleTime),
	)
	return &Client{Logger: log, DB: db}, nil
}

// AutoMigrate creates or updates the governance tables.
func (c *Client) AutoMigrate(ctx context.Context) error {
	return c.DB.WithContext(ctx).AutoMigrate(&Proposal{}, &Validator{}, &Vote{})
}

// Close closes the underlying connection pool
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
