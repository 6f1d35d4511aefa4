package precompute

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/canopy-network/govlens/pkg/analytics"
	"github.com/canopy-network/govlens/pkg/governance"
	"github.com/canopy-network/govlens/pkg/metrics"
	"github.com/canopy-network/govlens/pkg/source"
)

type fakeLoader struct {
	chains   []string
	datasets map[string]*governance.Dataset
	failing  map[string]error
	listErr  error
}

func (f *fakeLoader) Chains(context.Context) ([]string, error) {
	return f.chains, f.listErr
}

func (f *fakeLoader) Load(_ context.Context, chain string) (*governance.Dataset, error) {
	if err := f.failing[chain]; err != nil {
		return nil, err
	}
	ds, ok := f.datasets[chain]
	if !ok {
		return nil, source.ErrUnknownChain
	}
	return ds, nil
}

func (f *fakeLoader) Close() error { return nil }

type memorySink struct {
	mu      sync.Mutex
	written map[string]analytics.Distributions
	fail    map[string]bool
}

func newMemorySink() *memorySink {
	return &memorySink{written: map[string]analytics.Distributions{}, fail: map[string]bool{}}
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Write(_ context.Context, key string, d analytics.Distributions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[key] {
		return errors.New("disk full")
	}
	s.written[key] = d
	return nil
}

func chainDataset(chain string, passed ...bool) *governance.Dataset {
	ds := &governance.Dataset{Chain: chain}
	for i, p := range passed {
		id := string(rune('1' + i))
		ds.Proposals = append(ds.Proposals, governance.Proposal{ID: id, ChainID: chain, Category: "Protocol", Topic: "Upgrade", Passed: p})
		ds.Votes = append(ds.Votes, governance.Vote{ProposalID: id, ValidatorID: "v", ChainID: chain, Option: governance.OptionYes, VotingPower: "10"})
	}
	ds.Validators = []governance.Validator{{ID: "v", ChainID: chain}}
	return ds
}

func testLoader() *fakeLoader {
	return &fakeLoader{
		chains: []string{"juno", "osmosis"},
		datasets: map[string]*governance.Dataset{
			"juno":    chainDataset("juno", true),
			"osmosis": chainDataset("osmosis", true, false, false),
		},
	}
}

func TestRunAllChains(t *testing.T) {
	sink := newMemorySink()
	r := &Runner{Loader: testLoader(), Sinks: []Sink{sink}, Logger: zaptest.NewLogger(t), Workers: 2}

	report, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, metrics.StatusSuccess, report.Status())
	require.Len(t, report.Chains, 2)
	assert.Equal(t, "juno", report.Chains[0].Chain)
	assert.Equal(t, 3, report.Chains[1].Proposals)

	require.Len(t, sink.written, 3)
	assert.Equal(t, 3, sink.written["osmosis"].Categories["Protocol"].Count)
	assert.InDelta(t, 100.0/3, sink.written["osmosis"].Categories["Protocol"].PassRate, 1e-9)

	all := sink.written[AllKey].Categories["Protocol"]
	assert.Equal(t, 4, all.Count)
	assert.Equal(t, 2, all.PassCount)
	assert.Equal(t, 50.0, all.PassRate)
	assert.Equal(t, 4, all.VoteDistribution[governance.OptionYes])
	assert.Equal(t, sink.written[AllKey], *report.All)
}

func TestRunMatchesDirectAggregation(t *testing.T) {
	l := testLoader()
	sink := newMemorySink()
	_, err := (&Runner{Loader: l, Sinks: []Sink{sink}, Workers: 4}).Run(context.Background(), []string{"osmosis", "juno", "osmosis"})
	require.NoError(t, err)

	want := analytics.AggregateDataset(governance.Merge(l.datasets["juno"], l.datasets["osmosis"]))
	assert.Equal(t, want, sink.written[AllKey])
}

func TestRunPartialFailure(t *testing.T) {
	l := testLoader()
	l.failing = map[string]error{"juno": errors.New("connection reset")}
	sink := newMemorySink()
	m := metrics.New()
	r := &Runner{Loader: l, Sinks: []Sink{sink}, Logger: zaptest.NewLogger(t), Metrics: m, Workers: 2}

	report, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, metrics.StatusPartial, report.Status())
	assert.Equal(t, []string{"juno"}, report.Failed())
	assert.Contains(t, report.Chains[0].Error, "connection reset")

	_, wroteJuno := sink.written["juno"]
	assert.False(t, wroteJuno)
	assert.Equal(t, 3, sink.written[AllKey].Categories["Protocol"].Count)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Result().Body)
	assert.Contains(t, string(body), `govlens_precompute_runs_total{status="partial"} 1`)
	assert.Contains(t, string(body), `govlens_precompute_votes_processed_total{chain="osmosis"} 3`)
}

func TestRunSinkFailureKeepsChainInAll(t *testing.T) {
	sink := newMemorySink()
	sink.fail["juno"] = true
	report, err := (&Runner{Loader: testLoader(), Sinks: []Sink{sink}}).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"juno"}, report.Failed())
	assert.Contains(t, report.Chains[0].Error, "memory sink juno")
	assert.Equal(t, 4, sink.written[AllKey].Categories["Protocol"].Count)
}

func TestRunErrors(t *testing.T) {
	t.Run("no chain loads", func(t *testing.T) {
		report, err := (&Runner{Loader: testLoader(), Sinks: []Sink{newMemorySink()}}).Run(context.Background(), []string{"cosmoshub"})
		assert.ErrorIs(t, err, ErrNoChains)
		require.NotNil(t, report)
		assert.Equal(t, metrics.StatusFailed, report.Status())
	})
	t.Run("list fails", func(t *testing.T) {
		l := testLoader()
		l.listErr = errors.New("boom")
		_, err := (&Runner{Loader: l}).Run(context.Background(), nil)
		assert.ErrorContains(t, err, "list chains")
	})
	t.Run("all sink fails", func(t *testing.T) {
		sink := newMemorySink()
		sink.fail[AllKey] = true
		_, err := (&Runner{Loader: testLoader(), Sinks: []Sink{sink}}).Run(context.Background(), nil)
		assert.ErrorContains(t, err, "memory sink all")
	})
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := (&Runner{Loader: testLoader()}).Run(ctx, []string{"juno"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRunNoChainsWritesEmptyAll(t *testing.T) {
	sink := newMemorySink()
	l := &fakeLoader{}
	report, err := (&Runner{Loader: l, Sinks: []Sink{sink}}).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Chains)
	assert.Empty(t, sink.written[AllKey].Categories)
	assert.Less(t, report.Duration, time.Minute)
}
