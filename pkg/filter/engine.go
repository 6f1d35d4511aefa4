package filter

import (
	"context"
	"sort"
	"strings"

	"github.com/alitto/pond/v2"
	"github.com/shopspring/decimal"

	"github.com/canopy-network/govlens/pkg/analytics"
	"github.com/canopy-network/govlens/pkg/governance"
	"github.com/canopy-network/govlens/pkg/utils"
)

// ValidatorMetrics are the per-validator figures derived for one query.
type ValidatorMetrics struct {
	governance.Validator   `yaml:",inline"`
	AvgPower               float64 `json:"avg_power" yaml:"avg_power"`
	TotalPower             float64 `json:"total_power" yaml:"total_power"`
	VoteCount              int     `json:"vote_count" yaml:"vote_count"`
	ParticipationRate      float64 `json:"participation_rate" yaml:"participation_rate"`
	PowerRatio             float64 `json:"power_ratio" yaml:"power_ratio"`
	PowerRank              int     `json:"power_rank" yaml:"power_rank"`
	IsPinnedAndFilteredOut bool    `json:"is_pinned_and_filtered_out" yaml:"is_pinned_and_filtered_out"`
}

// Result is the scoped view of a dataset under one Spec.
type Result struct {
	Chain string `json:"chain"`
	// Proposals in scope, in dataset order.
	Proposals []governance.Proposal `json:"proposals"`
	// Validators that passed the filters, plus the pinned validator, by power rank.
	Validators []ValidatorMetrics `json:"validators"`
	// Votes on in-scope proposals by on-chain validators, one per pair.
	Votes []governance.Vote `json:"votes"`
	// Tallies of the in-scope proposals keyed by proposal id.
	Tallies map[string]analytics.PowerTally `json:"tallies"`
	// EligibleProposals is the participation denominator.
	EligibleProposals int `json:"eligible_proposals"`
}

// VoteMaps returns validator -> proposal -> option for the result's validators.
func (r *Result) VoteMaps() map[string]analytics.VoteMap {
	keep := make(map[string]struct{}, len(r.Validators))
	for _, v := range r.Validators {
		keep[v.ID] = struct{}{}
	}
	out := make(map[string]analytics.VoteMap, len(r.Validators))
	for id, m := range governance.GroupByValidator(r.Votes) {
		if _, ok := keep[id]; ok {
			out[id] = m
		}
	}
	return out
}

// Engine builds a similarity engine over the in-scope proposals.
func (r *Result) Engine() *analytics.SimilarityEngine {
	return analytics.NewSimilarityEngine(r.Proposals, r.Tallies)
}

// Validator looks up a validator of the result by id.
func (r *Result) Validator(id string) (ValidatorMetrics, bool) {
	for _, v := range r.Validators {
		if v.ID == id {
			return v, true
		}
	}
	return ValidatorMetrics{}, false
}

// ApprovalRate is the YES share of the tallied power in percent, 0 when no
// power was tallied.
func ApprovalRate(t analytics.PowerTally) float64 {
	return t.Share(governance.OptionYes) * 100
}

type powerAcc struct {
	total decimal.Decimal
	n     int64
}

type tallyFunc func(votes []governance.Vote, proposals map[string]struct{}) (map[string]analytics.PowerTally, error)

func sequentialTallies(votes []governance.Vote, proposals map[string]struct{}) (map[string]analytics.PowerTally, error) {
	return analytics.BuildPowerTallies(votes, proposals), nil
}

// Apply scopes ds to spec. It is a pure function: the dataset is not modified
// and nothing is retained between calls.
func Apply(ds *governance.Dataset, spec Spec) (*Result, error) {
	return apply(ds, spec, sequentialTallies)
}

// ApplyParallel is Apply with the proposal tallies sharded over pool. The
// result is identical to Apply's.
func ApplyParallel(ctx context.Context, pool pond.Pool, shards int, ds *governance.Dataset, spec Spec) (*Result, error) {
	return apply(ds, spec, func(votes []governance.Vote, proposals map[string]struct{}) (map[string]analytics.PowerTally, error) {
		return analytics.BuildPowerTalliesParallel(ctx, pool, votes, proposals, shards)
	})
}

func apply(ds *governance.Dataset, spec Spec, buildTallies tallyFunc) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	spec = spec.Normalized()
	chain := spec.Chain

	validators := make(map[string]governance.Validator)
	for _, v := range ds.Validators {
		if v.ChainID == chain {
			validators[v.ID] = v
		}
	}

	// Chain votes by known validators, one record per pair.
	var chainVotes []governance.Vote
	for _, v := range ds.Votes {
		if v.ChainID != chain {
			continue
		}
		if _, ok := validators[v.ValidatorID]; !ok {
			continue
		}
		chainVotes = append(chainVotes, v)
	}
	chainVotes = governance.LatestVotes(chainVotes)

	categories := utils.StringSet(spec.Categories)
	topics := utils.StringSet(spec.Topics)
	candidates := make(map[string]struct{})
	var labelled []governance.Proposal
	for _, p := range ds.Proposals {
		if p.ChainID != chain {
			continue
		}
		if _, dup := candidates[p.ID]; dup {
			continue
		}
		if categories != nil {
			if _, ok := categories[p.CategoryOrUnknown()]; !ok {
				continue
			}
		}
		if topics != nil {
			if _, ok := topics[p.TopicOrUnknown()]; !ok {
				continue
			}
		}
		candidates[p.ID] = struct{}{}
		labelled = append(labelled, p)
	}

	tallies, err := buildTallies(chainVotes, candidates)
	if err != nil {
		return nil, err
	}
	res := &Result{Chain: chain, Tallies: make(map[string]analytics.PowerTally)}
	inScope := make(map[string]struct{}, len(labelled))
	for _, p := range labelled {
		t := tallies[p.ID]
		if !spec.Approval.IsZero() && !spec.Approval.Contains(ApprovalRate(t)) {
			continue
		}
		inScope[p.ID] = struct{}{}
		res.Proposals = append(res.Proposals, p)
		res.Tallies[p.ID] = t
	}

	counted := func(o governance.VoteOption) bool {
		return o != governance.OptionNoVote || spec.CountNoVoteAsParticipation
	}

	eligible := make(map[string]struct{})
	voteCount := make(map[string]int)
	power := make(map[string]*powerAcc)
	for _, v := range chainVotes {
		if _, ok := inScope[v.ProposalID]; !ok {
			continue
		}
		res.Votes = append(res.Votes, v)
		if counted(v.Option) {
			eligible[v.ProposalID] = struct{}{}
			voteCount[v.ValidatorID]++
		}
		if v.Option == governance.OptionNoVote {
			continue
		}
		p, ok := governance.ParsePower(v.VotingPower)
		if !ok {
			continue
		}
		acc, ok := power[v.ValidatorID]
		if !ok {
			acc = &powerAcc{}
			power[v.ValidatorID] = acc
		}
		acc.total = acc.total.Add(p)
		acc.n++
	}
	res.EligibleProposals = len(eligible)

	metrics := make([]ValidatorMetrics, 0, len(validators))
	for _, v := range validators {
		m := ValidatorMetrics{Validator: v, VoteCount: voteCount[v.ID]}
		if acc, ok := power[v.ID]; ok {
			m.TotalPower = acc.total.InexactFloat64()
			m.AvgPower = acc.total.Div(decimal.NewFromInt(acc.n)).InexactFloat64()
		}
		if res.EligibleProposals > 0 {
			m.ParticipationRate = float64(m.VoteCount) / float64(res.EligibleProposals) * 100
		}
		metrics = append(metrics, m)
	}
	rankByPower(metrics, power)

	search := strings.ToLower(spec.Search)
	for _, m := range metrics {
		if matches(m, spec, search) {
			res.Validators = append(res.Validators, m)
			continue
		}
		if m.ID == spec.PinnedValidator {
			m.IsPinnedAndFilteredOut = true
			res.Validators = append(res.Validators, m)
		}
	}
	return res, nil
}

// rankByPower orders metrics by average power (ties by id), assigns 1-based
// ranks and the ratio to the mean average power of validators with power.
func rankByPower(metrics []ValidatorMetrics, power map[string]*powerAcc) {
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].AvgPower != metrics[j].AvgPower {
			return metrics[i].AvgPower > metrics[j].AvgPower
		}
		return metrics[i].ID < metrics[j].ID
	})

	sum := decimal.Zero
	n := 0
	for i := range metrics {
		metrics[i].PowerRank = i + 1
		if _, ok := power[metrics[i].ID]; ok {
			sum = sum.Add(decimal.NewFromFloat(metrics[i].AvgPower))
			n++
		}
	}
	if n == 0 || sum.IsZero() {
		return
	}
	mean := sum.Div(decimal.NewFromInt(int64(n))).InexactFloat64()
	for i := range metrics {
		metrics[i].PowerRatio = metrics[i].AvgPower / mean * 100
	}
}

func matches(m ValidatorMetrics, spec Spec, search string) bool {
	if search != "" {
		name := m.Moniker
		if name == "" {
			name = m.ID
		}
		if !strings.Contains(strings.ToLower(name), search) {
			return false
		}
	}
	if !spec.VotingPower.IsZero() {
		v := m.PowerRatio
		if spec.PowerMode == PowerRank {
			v = float64(m.PowerRank)
		}
		if !spec.VotingPower.Contains(v) {
			return false
		}
	}
	if !spec.Participation.IsZero() && !spec.Participation.Contains(m.ParticipationRate) {
		return false
	}
	return true
}
