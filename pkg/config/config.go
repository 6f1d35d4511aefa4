package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/canopy-network/govlens/pkg/utils"
)

// Source kinds accepted in SOURCE_KIND.
const (
	SourceFiles      = "files"
	SourceClickHouse = "clickhouse"
	SourcePostgres   = "postgres"
)

const (
	// DatabaseSchemePostgres is the postgres database scheme identifier
	DatabaseSchemePostgres = "postgres"
)

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

type TemporalConfig struct {
	HostPort  string
	Namespace string
	TaskQueue string
}

type Config struct {
	SourceKind     string
	DataDir        string // files source root
	ClickHouseAddr string // clickhouse DSN, may list several replicas
	ClickHouseDB   string
	DatabaseURL    string // postgres DSN passed to GORM
	OutputDir      string // FileSink target
	Chains         []string
	Workers        int
	TallyShards    int // proposal tally shards per query, 1 disables sharding
	MemoSize       int // filter results kept by the query API

	Redis          RedisConfig
	StatsKeyPrefix string

	Temporal         TemporalConfig
	ScheduleInterval time.Duration
	Addr             string
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		SourceKind:     strings.ToLower(utils.Env("SOURCE_KIND", SourceFiles)),
		DataDir:        utils.Env("DATA_DIR", "./data"),
		ClickHouseAddr: utils.Env("CLICKHOUSE_ADDR", "clickhouse://localhost:9000?sslmode=disable"),
		ClickHouseDB:   utils.Env("CLICKHOUSE_DB", "governance"),
		DatabaseURL:    strings.TrimSpace(utils.Env("DATABASE_URL", "")),
		OutputDir:      utils.Env("OUTPUT_DIR", "./public/stats"),
		Chains:         utils.EnvList("CHAINS"),
		Workers:        utils.EnvInt("PRECOMPUTE_WORKERS", 4),
		TallyShards:    utils.EnvInt("TALLY_SHARDS", 1),
		MemoSize:       utils.EnvInt("QUERY_MEMO_SIZE", 256),
		Redis: RedisConfig{
			Enabled:  utils.EnvBool("REDIS_ENABLED", false),
			Host:     utils.Env("REDIS_HOST", "localhost"),
			Port:     utils.Env("REDIS_PORT", "6379"),
			Password: utils.Env("REDIS_PASSWORD", ""),
			DB:       utils.EnvInt("REDIS_DB", 0),
		},
		StatsKeyPrefix: utils.Env("STATS_KEY_PREFIX", "govlens"),
		Temporal: TemporalConfig{
			HostPort:  utils.Env("TEMPORAL_HOSTPORT", "localhost:7233"),
			Namespace: utils.Env("TEMPORAL_NAMESPACE", "govlens"),
			TaskQueue: utils.Env("TEMPORAL_TASK_QUEUE", "reports"),
		},
		ScheduleInterval: utils.EnvDuration("STATS_SCHEDULE_INTERVAL", 10*time.Minute),
		Addr:             utils.Env("ADDR", ":3000"),
	}

	switch cfg.SourceKind {
	case SourceFiles, SourceClickHouse:
	case SourcePostgres:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("SOURCE_KIND=postgres requires DATABASE_URL")
		}
		if err := checkDatabaseURL(cfg.DatabaseURL); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported SOURCE_KIND %q (want files, clickhouse or postgres)", cfg.SourceKind)
	}
	return cfg, nil
}

// checkDatabaseURL accepts postgres URLs and key=value DSNs.
func checkDatabaseURL(databaseURL string) error {
	if !strings.Contains(databaseURL, "://") {
		return nil
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case DatabaseSchemePostgres, "postgresql":
		return nil
	default:
		return fmt.Errorf("unsupported DATABASE_URL scheme: %s", u.Scheme)
	}
}

// DebugString returns a human-friendly configuration string with masked secrets.
func (c Config) DebugString() string {
	redisPassword := ""
	if c.Redis.Password != "" {
		redisPassword = "***"
	}
	return fmt.Sprintf(
		"source=%s data_dir=%s clickhouse=%s clickhouse_db=%s database_url=%s output_dir=%s chains=%s workers=%d tally_shards=%d memo_size=%d redis_enabled=%t redis=%s redis_password=%s stats_prefix=%s temporal=%s/%s queue=%s interval=%s addr=%s",
		c.SourceKind,
		c.DataDir,
		maskURL(c.ClickHouseAddr),
		c.ClickHouseDB,
		maskDSN(c.DatabaseURL),
		c.OutputDir,
		strings.Join(c.Chains, ","),
		c.Workers,
		c.TallyShards,
		c.MemoSize,
		c.Redis.Enabled,
		c.Redis.Addr(),
		redisPassword,
		c.StatsKeyPrefix,
		c.Temporal.HostPort,
		c.Temporal.Namespace,
		c.Temporal.TaskQueue,
		c.ScheduleInterval,
		c.Addr,
	)
}

func maskURL(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		if u.User != nil {
			u.User = url.User(u.User.Username())
		}
		return u.String()
	}
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	at := strings.Index(rest, "@")
	if at < 0 {
		return raw
	}
	user, _, _ := strings.Cut(rest[:at], ":")
	return scheme + "://" + user + "@" + rest[at+1:]
}

func maskDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		return maskURL(dsn)
	}
	// key=value list
	parts := strings.Fields(dsn)
	for i, p := range parts {
		if strings.HasPrefix(strings.ToLower(p), "password=") {
			parts[i] = "password=***"
		}
	}
	return strings.Join(parts, " ")
}
