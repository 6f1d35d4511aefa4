package analytics

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopy-network/govlens/pkg/governance"
)

var allModes = []Mode{ModeCommon, ModeBase, ModeComprehensive}

func proposalsAt(ids ...string) []governance.Proposal {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]governance.Proposal, len(ids))
	for i, id := range ids {
		out[i] = governance.Proposal{ID: id, ChainID: "cosmoshub", SubmitTime: base.Add(time.Duration(i) * time.Hour)}
	}
	return out
}

func TestAgreement(t *testing.T) {
	const (
		yes     = governance.OptionYes
		no      = governance.OptionNo
		abstain = governance.OptionAbstain
		noVote  = governance.OptionNoVote
	)
	tests := []struct {
		name                   string
		base, target           governance.VoteOption
		baseVoted, targetVoted bool
		matchAbstain           bool
		want                   float64
	}{
		{name: "same option", base: yes, target: yes, baseVoted: true, targetVoted: true, want: 1},
		{name: "different option", base: yes, target: no, baseVoted: true, targetVoted: true, want: 0},
		{name: "both abstain without matching", base: abstain, target: abstain, baseVoted: true, targetVoted: true, want: 0},
		{name: "both abstain with matching", base: abstain, target: abstain, baseVoted: true, targetVoted: true, matchAbstain: true, want: 1},
		{name: "base abstains", base: abstain, target: yes, baseVoted: true, targetVoted: true, want: PartialAgreement},
		{name: "target abstains", base: no, target: abstain, baseVoted: true, targetVoted: true, want: PartialAgreement},
		{name: "target did not vote", base: yes, baseVoted: true, want: 0},
		{name: "base did not vote, target abstains", target: abstain, targetVoted: true, want: PartialAgreement},
		{name: "both recorded no vote", base: noVote, target: noVote, baseVoted: true, targetVoted: true, want: 1},
		{name: "no vote against abstain", base: noVote, target: abstain, baseVoted: true, targetVoted: true, want: PartialAgreement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Agreement(tt.base, tt.target, tt.baseVoted, tt.targetVoted, tt.matchAbstain)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContrarianBonus(t *testing.T) {
	tally := PowerTally{Yes: 90, No: 10}
	assert.InDelta(t, 0.9, ContrarianBonus(governance.OptionNo, tally), 1e-12)
	assert.Equal(t, 0.0, ContrarianBonus(governance.OptionYes, tally))
	assert.Equal(t, 0.0, ContrarianBonus(governance.OptionNoVote, tally))
	assert.Equal(t, 0.0, ContrarianBonus(governance.OptionNo, PowerTally{}))
	assert.Equal(t, 1.0, ContrarianBonus(governance.OptionAbstain, tally), "unheld tallied option is maximally contrarian")
}

func TestParseMode(t *testing.T) {
	for raw, want := range map[string]Mode{"": ModeCommon, "common": ModeCommon, "BASE": ModeBase, "comprehensive": ModeComprehensive, "union": ModeComprehensive} {
		got, err := ParseMode(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := ParseMode("everything")
	assert.Error(t, err)

	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("base")))
	assert.Equal(t, ModeBase, m)
	text, err := ModeComprehensive.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "comprehensive", string(text))
}

func TestSimilarityReflexive(t *testing.T) {
	proposals := proposalsAt("1", "2", "3", "4")
	tallies := map[string]PowerTally{
		"1": {Yes: 70, No: 30},
		"2": {Abstain: 10, No: 5},
		"3": {Veto: 1},
		"4": {},
	}
	self := VoteMap{
		"1": governance.OptionYes,
		"2": governance.OptionAbstain,
		"3": governance.OptionNoWithVeto,
		"4": governance.OptionNoVote,
	}
	for _, mode := range allModes {
		for _, recency := range []bool{false, true} {
			opts := SimilarityOptions{Mode: mode, ApplyRecencyWeight: recency, MatchAbstainInSimilarity: true}
			assert.InDelta(t, 1.0, Similarity(self, self, proposals, tallies, opts), 1e-12, "mode=%s recency=%v", mode, recency)
		}
	}
}

func TestSimilarityCommonModeSymmetric(t *testing.T) {
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = strconv.Itoa(i)
	}
	proposals := proposalsAt(ids...)
	tallies := make(map[string]PowerTally, len(ids))
	a, b := VoteMap{}, VoteMap{}
	options := []governance.VoteOption{governance.OptionYes, governance.OptionNo, governance.OptionAbstain, governance.OptionNoWithVeto}
	for i, id := range ids {
		tallies[id] = PowerTally{Yes: float64(i + 1), No: float64(12 - i), Abstain: float64(i % 3)}
		if i%5 != 0 {
			a[id] = options[i%4]
		}
		if i%4 != 1 {
			b[id] = options[(i*3)%4]
		}
	}

	engine := NewSimilarityEngine(proposals, tallies)
	for _, recency := range []bool{false, true} {
		for _, matchAbstain := range []bool{false, true} {
			opts := SimilarityOptions{Mode: ModeCommon, ApplyRecencyWeight: recency, MatchAbstainInSimilarity: matchAbstain}
			assert.Equal(t, engine.Score(a, b, opts), engine.Score(b, a, opts))
		}
	}
}

func TestSimilarityEmptyUniverse(t *testing.T) {
	proposals := proposalsAt("1", "2")
	tallies := map[string]PowerTally{"1": {Yes: 1}, "2": {No: 1}}
	a := VoteMap{"1": governance.OptionYes}
	b := VoteMap{"2": governance.OptionNo}

	engine := NewSimilarityEngine(proposals, tallies)
	r := engine.Compare(a, b, SimilarityOptions{Mode: ModeCommon})
	assert.Equal(t, 0.0, r.Score)
	assert.Equal(t, 0, r.Compared)

	assert.Equal(t, 0.0, engine.Score(VoteMap{}, b, SimilarityOptions{Mode: ModeBase}))
	assert.Equal(t, 0.0, engine.Score(VoteMap{}, VoteMap{}, SimilarityOptions{Mode: ModeComprehensive}))
	assert.Equal(t, 0.0, Similarity(a, a, nil, nil, SimilarityOptions{}))
}

// A split proposal carries more weight than a near-unanimous one, so
// disagreeing on the split proposal costs more.
func TestSimilarityWeightsDispersedProposals(t *testing.T) {
	proposals := proposalsAt("P1", "P2", "P3", "P4", "P5")
	tallies := map[string]PowerTally{
		"P1": {Yes: 100},
		"P2": {Yes: 100},
		"P3": {Yes: 100},
		"P4": {Yes: 90, No: 10},
		"P5": {Yes: 50, No: 50},
	}
	allYes := VoteMap{}
	for _, p := range proposals {
		allYes[p.ID] = governance.OptionYes
	}
	without := func(id string) VoteMap {
		out := VoteMap{}
		for k, v := range allYes {
			out[k] = v
		}
		out[id] = governance.OptionNo
		return out
	}

	engine := NewSimilarityEngine(proposals, tallies)
	opts := SimilarityOptions{Mode: ModeCommon}

	assert.InDelta(t, 1.0, engine.Score(allYes, allYes, opts), 1e-12)

	odiP4 := 0.18/0.75 + Epsilon
	odiP5 := 0.5/0.75 + Epsilon
	den := 3*Epsilon + odiP4 + odiP5

	disagreeP4 := engine.Score(allYes, without("P4"), opts)
	disagreeP5 := engine.Score(allYes, without("P5"), opts)
	assert.InDelta(t, (3*Epsilon+odiP5)/den, disagreeP4, 1e-12)
	assert.InDelta(t, (3*Epsilon+odiP4)/den, disagreeP5, 1e-12)
	assert.Less(t, disagreeP5, disagreeP4)
}

func TestSimilarityContrarianAgreementWeighsMore(t *testing.T) {
	proposals := proposalsAt("1", "2")
	tallies := map[string]PowerTally{
		"1": {Yes: 90, No: 10},
		"2": {Yes: 90, No: 10},
	}
	base := VoteMap{"1": governance.OptionNo, "2": governance.OptionYes}
	target := VoteMap{"1": governance.OptionNo, "2": governance.OptionNo}

	odi := 0.18/0.75 + Epsilon
	want := (odi + 0.9) / (odi + 0.9 + odi)
	assert.InDelta(t, want, Similarity(base, target, proposals, tallies, SimilarityOptions{}), 1e-12)
}

func TestSimilarityRecencyWeight(t *testing.T) {
	// Submission order is the reverse of id order.
	proposals := []governance.Proposal{
		{ID: "a", SubmitTime: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "b", SubmitTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	tallies := map[string]PowerTally{"a": {Yes: 1, No: 1}, "b": {Yes: 1, No: 1}}
	base := VoteMap{"a": governance.OptionYes, "b": governance.OptionYes}
	target := VoteMap{"a": governance.OptionYes, "b": governance.OptionNo}

	engine := NewSimilarityEngine(proposals, tallies)
	assert.Equal(t, 1, engine.Rank("b"))
	assert.Equal(t, 2, engine.Rank("a"))
	assert.Equal(t, 0, engine.Rank("missing"))
	assert.Equal(t, 2, engine.Proposals())

	assert.InDelta(t, 0.5, engine.Score(base, target, SimilarityOptions{}), 1e-12)
	assert.InDelta(t, 2.0/3.0, engine.Score(base, target, SimilarityOptions{ApplyRecencyWeight: true}), 1e-12)
}

func TestSimilarityModes(t *testing.T) {
	proposals := proposalsAt("1", "2", "3")
	tallies := map[string]PowerTally{"1": {Yes: 1, No: 1}, "2": {Yes: 1, No: 1}, "3": {Yes: 1, No: 1}}
	base := VoteMap{"1": governance.OptionYes, "2": governance.OptionYes}
	target := VoteMap{"1": governance.OptionYes, "3": governance.OptionNo}
	engine := NewSimilarityEngine(proposals, tallies)

	common := engine.Compare(base, target, SimilarityOptions{Mode: ModeCommon})
	assert.Equal(t, 1, common.Compared)
	assert.InDelta(t, 1.0, common.Score, 1e-12)

	baseMode := engine.Compare(base, target, SimilarityOptions{Mode: ModeBase})
	assert.Equal(t, 2, baseMode.Compared)
	assert.InDelta(t, 0.5, baseMode.Score, 1e-12)

	union := engine.Compare(base, target, SimilarityOptions{Mode: ModeComprehensive})
	assert.Equal(t, 3, union.Compared)
	assert.InDelta(t, 1.0/3.0, union.Score, 1e-12)

	// Base mode follows the base validator's record, so swapping sides changes
	// the universe.
	swapped := engine.Compare(target, base, SimilarityOptions{Mode: ModeBase})
	assert.Equal(t, 2, swapped.Compared)
}

func TestSimilarityAbstainHandling(t *testing.T) {
	proposals := proposalsAt("1")
	tallies := map[string]PowerTally{"1": {Yes: 1, No: 1}}
	base := VoteMap{"1": governance.OptionAbstain}

	assert.Equal(t, 0.0, Similarity(base, base, proposals, tallies, SimilarityOptions{}))
	assert.Equal(t, 1.0, Similarity(base, base, proposals, tallies, SimilarityOptions{MatchAbstainInSimilarity: true}))
	assert.Equal(t, PartialAgreement, Similarity(base, VoteMap{"1": governance.OptionYes}, proposals, tallies, SimilarityOptions{}))
}
