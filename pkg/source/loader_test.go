package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/canopy-network/govlens/pkg/config"
	"github.com/canopy-network/govlens/pkg/db/postgres"
	"github.com/canopy-network/govlens/pkg/governance"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{raw: "2024-05-01T10:00:00Z", want: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{raw: "2024-05-01T12:00:00+02:00", want: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{raw: "2024-05-01 10:00:00.5", want: time.Date(2024, 5, 1, 10, 0, 0, 500000000, time.UTC)},
		{raw: "2024-05-01", want: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{raw: "1714557600", want: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{raw: "yesterday", want: time.Time{}},
		{raw: "", want: time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.True(t, tt.want.Equal(parseTime(tt.raw)), "got %s", parseTime(tt.raw))
		})
	}
}

func TestParseBool(t *testing.T) {
	for _, raw := range []string{"true", "TRUE", "1", "yes", "PROPOSAL_STATUS_PASSED"} {
		assert.True(t, parseBool(raw), raw)
	}
	for _, raw := range []string{"", "false", "0", "rejected"} {
		assert.False(t, parseBool(raw), raw)
	}
}

func TestNewLoader(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLoader(context.Background(), zaptest.NewLogger(t), config.Config{SourceKind: config.SourceFiles, DataDir: dir}, "cli")
	require.NoError(t, err)
	assert.IsType(t, &FileLoader{}, l)
	assert.NoError(t, l.Close())

	_, err = NewLoader(context.Background(), zaptest.NewLogger(t), config.Config{SourceKind: "s3"}, "cli")
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestLoadAll(t *testing.T) {
	l := NewFileLoader(zaptest.NewLogger(t), fileFixture(t))
	all, err := LoadAll(context.Background(), l, []string{"juno", "osmosis"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "juno", all[0].Chain)

	_, err = LoadAll(context.Background(), l, []string{"juno", "nope"})
	assert.ErrorIs(t, err, ErrUnknownChain)
}

func TestFromPostgres(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	ds := fromPostgres("cosmoshub",
		[]postgres.Proposal{{ChainID: "cosmoshub", ProposalID: "900", Topic: "IBC", Passed: true, SubmitTime: ts, TallyNoWithVeto: "7"}},
		[]postgres.Validator{{ChainID: "cosmoshub", ValidatorID: "cosmosvaloper1", Moniker: "Hub"}},
		[]postgres.Vote{{ChainID: "cosmoshub", ProposalID: "900", ValidatorID: "cosmosvaloper1", Option: "NO_WITH_VETO", VotingPower: "7"}},
	)
	assert.Equal(t, "cosmoshub", ds.Chain)
	assert.Equal(t, "IBC", ds.Proposals[0].Topic)
	assert.Equal(t, "7", ds.Proposals[0].FinalTally.NoWithVeto)
	assert.True(t, ds.Proposals[0].SubmitTime.Equal(ts))
	assert.Equal(t, "Hub", ds.Validators[0].Moniker)
	assert.Equal(t, governance.OptionNoWithVeto, ds.Votes[0].Option)
}
