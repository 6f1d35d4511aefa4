package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/canopy-network/govlens/pkg/config"
	"github.com/canopy-network/govlens/pkg/db/clickhouse"
	"github.com/canopy-network/govlens/pkg/db/postgres"
	"github.com/canopy-network/govlens/pkg/governance"
)

var (
	// ErrUnknownChain is returned by Load when the source holds no data for the chain.
	ErrUnknownChain = errors.New("source: unknown chain")
	// ErrUnsupportedKind is returned by NewLoader for an unknown SOURCE_KIND.
	ErrUnsupportedKind = errors.New("source: unsupported kind")
)

// Loader supplies raw governance records, one chain at a time.
type Loader interface {
	// Chains lists the chains the source holds data for, sorted.
	Chains(ctx context.Context) ([]string, error)
	// Load returns every proposal, validator and vote of chain.
	Load(ctx context.Context, chain string) (*governance.Dataset, error)
	Close() error
}

// NewLoader builds the loader selected by cfg.SourceKind. component names
// the caller for connection pool sizing.
func NewLoader(ctx context.Context, logger *zap.Logger, cfg config.Config, component string) (Loader, error) {
	switch cfg.SourceKind {
	case config.SourceFiles, "":
		return NewFileLoader(logger, cfg.DataDir), nil
	case config.SourceClickHouse:
		client, err := clickhouse.New(ctx, logger, cfg.ClickHouseAddr, cfg.ClickHouseDB, clickhouse.GetPoolConfigForComponent(component))
		if err != nil {
			return nil, fmt.Errorf("connect clickhouse: %w", err)
		}
		return NewClickHouseLoader(logger, client), nil
	case config.SourcePostgres:
		client, err := postgres.New(ctx, logger, cfg.DatabaseURL, postgres.DefaultPoolConfig(component))
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := client.AutoMigrate(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return NewPostgresLoader(logger, client), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, cfg.SourceKind)
	}
}

// LoadAll loads every chain of names, stopping at the first error.
func LoadAll(ctx context.Context, l Loader, names []string) ([]*governance.Dataset, error) {
	out := make([]*governance.Dataset, 0, len(names))
	for _, name := range names {
		ds, err := l.Load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		out = append(out, ds)
	}
	return out, nil
}

// timeLayouts are tried in order by parseTime.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// parseTime accepts the usual timestamp spellings and unix seconds. Anything
// else yields the zero time.
func parseTime(raw string) time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}

// parseBool accepts true/1/yes/passed (case-insensitive); anything else is false.
func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "passed", "proposal_status_passed":
		return true
	}
	return false
}

// withChain stamps records that carry no chain with chain and drops records
// that belong to another one.
func withChain(ds *governance.Dataset) (dropped int) {
	chain := ds.Chain
	proposals := ds.Proposals[:0]
	for _, p := range ds.Proposals {
		if p.ChainID == "" {
			p.ChainID = chain
		}
		if p.ChainID != chain {
			dropped++
			continue
		}
		proposals = append(proposals, p)
	}
	ds.Proposals = proposals

	validators := ds.Validators[:0]
	for _, v := range ds.Validators {
		if v.ChainID == "" {
			v.ChainID = chain
		}
		if v.ChainID != chain {
			dropped++
			continue
		}
		validators = append(validators, v)
	}
	ds.Validators = validators

	votes := ds.Votes[:0]
	for _, v := range ds.Votes {
		if v.ChainID == "" {
			v.ChainID = chain
		}
		if v.ChainID != chain {
			dropped++
			continue
		}
		votes = append(votes, v)
	}
	ds.Votes = votes
	return dropped
}
