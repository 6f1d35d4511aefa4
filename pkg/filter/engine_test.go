package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopy-network/govlens/pkg/governance"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func osmosisVote(proposal, validator string, option governance.VoteOption, power string) governance.Vote {
	return governance.Vote{
		ProposalID:  proposal,
		ValidatorID: validator,
		ChainID:     "osmosis",
		Option:      option,
		VotingPower: power,
		Timestamp:   t0,
	}
}

// fixture: proposal 3 only has NO_VOTE records, proposal 4 has none, and
// validator d never voted.
func fixture() *governance.Dataset {
	yes, no, noVote := governance.OptionYes, governance.OptionNo, governance.OptionNoVote
	return &governance.Dataset{
		Chain: "osmosis",
		Proposals: []governance.Proposal{
			{ID: "1", ChainID: "osmosis", Category: "Protocol", Topic: "Upgrade", SubmitTime: t0},
			{ID: "2", ChainID: "osmosis", Category: "Community", Topic: "Spend", SubmitTime: t0.Add(time.Hour)},
			{ID: "3", ChainID: "osmosis", Category: "Protocol", Topic: "Params", SubmitTime: t0.Add(2 * time.Hour)},
			{ID: "4", ChainID: "osmosis", Category: "Protocol", Topic: "Upgrade", SubmitTime: t0.Add(3 * time.Hour)},
			{ID: "1", ChainID: "juno", Category: "Protocol"},
		},
		Validators: []governance.Validator{
			{ID: "a", ChainID: "osmosis", Moniker: "Alpha Staking"},
			{ID: "b", ChainID: "osmosis", Moniker: "Beta"},
			{ID: "c", ChainID: "osmosis", Moniker: "Gamma Nodes"},
			{ID: "d", ChainID: "osmosis", Moniker: "Delta"},
			{ID: "x", ChainID: "juno", Moniker: "Gamma Nodes"},
		},
		Votes: []governance.Vote{
			osmosisVote("1", "a", yes, "100"),
			osmosisVote("1", "b", yes, "50"),
			osmosisVote("1", "c", no, "10"),
			osmosisVote("2", "a", no, "100"),
			osmosisVote("2", "b", noVote, "50"),
			osmosisVote("2", "c", yes, "10"),
			osmosisVote("3", "a", noVote, "100"),
			osmosisVote("3", "b", noVote, "50"),
			osmosisVote("1", "ghost", yes, "1000"),
			{ProposalID: "1", ValidatorID: "x", ChainID: "juno", Option: yes, VotingPower: "5"},
		},
	}
}

func ids(r *Result) []string {
	out := make([]string, len(r.Validators))
	for i, v := range r.Validators {
		out[i] = v.ID
	}
	return out
}

func proposalIDs(r *Result) []string {
	out := make([]string, len(r.Proposals))
	for i, p := range r.Proposals {
		out[i] = p.ID
	}
	return out
}

func TestApplyRequiresChain(t *testing.T) {
	_, err := Apply(fixture(), Spec{})
	assert.ErrorIs(t, err, ErrChainRequired)

	_, err = Apply(fixture(), Spec{Chain: "  "})
	assert.ErrorIs(t, err, ErrChainRequired)
}

func TestApplyScopesToChain(t *testing.T) {
	r, err := Apply(fixture(), Spec{Chain: "osmosis"})
	require.NoError(t, err)

	assert.Equal(t, "osmosis", r.Chain)
	assert.Equal(t, []string{"1", "2", "3", "4"}, proposalIDs(r))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(r))
	assert.Len(t, r.Votes, 8, "juno and unknown validator votes are dropped")
	for _, v := range r.Votes {
		assert.Equal(t, "osmosis", v.ChainID)
	}

	require.Len(t, r.Tallies, 4)
	assert.Equal(t, 150.0, r.Tallies["1"].Yes)
	assert.Equal(t, 10.0, r.Tallies["1"].No)
	assert.Equal(t, 0.0, r.Tallies["3"].Total())
}

func TestApplyValidatorMetrics(t *testing.T) {
	r, err := Apply(fixture(), Spec{Chain: "osmosis"})
	require.NoError(t, err)

	a, ok := r.Validator("a")
	require.True(t, ok)
	assert.Equal(t, 100.0, a.AvgPower)
	assert.Equal(t, 200.0, a.TotalPower, "NO_VOTE power is not counted")
	assert.Equal(t, 1, a.PowerRank)
	assert.InDelta(t, 187.5, a.PowerRatio, 1e-9)

	b, _ := r.Validator("b")
	assert.Equal(t, 50.0, b.AvgPower)
	assert.Equal(t, 50.0, b.TotalPower)
	assert.Equal(t, 2, b.PowerRank)
	assert.InDelta(t, 93.75, b.PowerRatio, 1e-9)

	c, _ := r.Validator("c")
	assert.Equal(t, 10.0, c.AvgPower)
	assert.Equal(t, 3, c.PowerRank)

	d, _ := r.Validator("d")
	assert.Equal(t, 0.0, d.AvgPower)
	assert.Equal(t, 0, d.VoteCount)
	assert.Equal(t, 0.0, d.ParticipationRate)
	assert.Equal(t, 4, d.PowerRank)
}

// Proposals that only carry NO_VOTE records leave the denominator for every
// validator unless NO_VOTE counts as participation.
func TestApplyParticipationNoVotePolicy(t *testing.T) {
	excluded, err := Apply(fixture(), Spec{Chain: "osmosis"})
	require.NoError(t, err)
	assert.Equal(t, 2, excluded.EligibleProposals)

	rates := func(r *Result) map[string]float64 {
		out := map[string]float64{}
		for _, v := range r.Validators {
			out[v.ID] = v.ParticipationRate
		}
		return out
	}
	assert.Equal(t, map[string]float64{"a": 100, "b": 50, "c": 100, "d": 0}, rates(excluded))

	counted, err := Apply(fixture(), Spec{Chain: "osmosis", CountNoVoteAsParticipation: true})
	require.NoError(t, err)
	assert.Equal(t, 3, counted.EligibleProposals)
	got := rates(counted)
	assert.Equal(t, 100.0, got["a"])
	assert.Equal(t, 100.0, got["b"])
	assert.InDelta(t, 200.0/3.0, got["c"], 1e-9)
}

func TestApplyProposalFilters(t *testing.T) {
	r, err := Apply(fixture(), Spec{Chain: "osmosis", Categories: []string{"Community"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, proposalIDs(r))
	assert.Equal(t, 1, r.EligibleProposals)
	b, _ := r.Validator("b")
	assert.Equal(t, 0.0, b.ParticipationRate)
	assert.Equal(t, 0.0, b.AvgPower, "power is scoped to in-scope proposals")

	r, err = Apply(fixture(), Spec{Chain: "osmosis", Topics: []string{"Upgrade", "Params"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3", "4"}, proposalIDs(r))

	r, err = Apply(fixture(), Spec{Chain: "osmosis", Approval: Between(50, 100)})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, proposalIDs(r))
	assert.Len(t, r.Tallies, 1)
}

func TestApplyValidatorFilters(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want []string
	}{
		{name: "search is case insensitive", spec: Spec{Search: "NODES"}, want: []string{"c"}},
		{name: "rank range", spec: Spec{PowerMode: PowerRank, VotingPower: Between(1, 2)}, want: []string{"a", "b"}},
		{name: "ratio range", spec: Spec{PowerMode: PowerRatio, VotingPower: Between(50, 200)}, want: []string{"a", "b"}},
		{name: "default mode is ratio", spec: Spec{VotingPower: Between(0, 20)}, want: []string{"c", "d"}},
		{name: "participation range", spec: Spec{Participation: Between(60, 100)}, want: []string{"a", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.spec.Chain = "osmosis"
			r, err := Apply(fixture(), tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(r))
			for _, v := range r.Validators {
				assert.False(t, v.IsPinnedAndFilteredOut)
			}
		})
	}
}

func TestApplyKeepsPinnedValidator(t *testing.T) {
	r, err := Apply(fixture(), Spec{Chain: "osmosis", Participation: Between(60, 100), PinnedValidator: "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(r))

	b, ok := r.Validator("b")
	require.True(t, ok)
	assert.True(t, b.IsPinnedAndFilteredOut)
	a, _ := r.Validator("a")
	assert.False(t, a.IsPinnedAndFilteredOut)

	// A pinned validator that passes keeps the flag off.
	r, err = Apply(fixture(), Spec{Chain: "osmosis", Search: "alpha", PinnedValidator: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(r))
	assert.False(t, r.Validators[0].IsPinnedAndFilteredOut)
}

func TestApplyLatestVoteWins(t *testing.T) {
	ds := fixture()
	changed := osmosisVote("1", "c", governance.OptionYes, "10")
	changed.Timestamp = t0.Add(time.Minute)
	ds.Votes = append(ds.Votes, changed)

	r, err := Apply(ds, Spec{Chain: "osmosis"})
	require.NoError(t, err)
	assert.Equal(t, 160.0, r.Tallies["1"].Yes)
	assert.Equal(t, 0.0, r.Tallies["1"].No)
	assert.Equal(t, governance.OptionYes, r.VoteMaps()["c"]["1"])
}

func TestResultVoteMaps(t *testing.T) {
	r, err := Apply(fixture(), Spec{Chain: "osmosis", Search: "a"})
	require.NoError(t, err)
	// "Beta", "Gamma Nodes", "Delta" and "Alpha Staking" all contain an a.
	maps := r.VoteMaps()
	assert.Equal(t, governance.OptionNo, maps["a"]["2"])
	assert.Equal(t, governance.OptionNoVote, maps["b"]["3"])
	_, ok := maps["d"]
	assert.False(t, ok, "validators without votes have no map")

	r, err = Apply(fixture(), Spec{Chain: "osmosis", Search: "beta"})
	require.NoError(t, err)
	maps = r.VoteMaps()
	require.Len(t, maps, 1)
	assert.Contains(t, maps, "b")

	engine := r.Engine()
	assert.Equal(t, 4, engine.Proposals())
}
