package analytics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/canopy-network/govlens/pkg/governance"
)

const (
	// PartialAgreement scores a pair where exactly one side abstained.
	PartialAgreement = 0.25
	// MinorityThreshold is the power share under which a jointly held
	// position earns the contrarian bonus.
	MinorityThreshold = 0.30
)

// Mode selects which proposals are compared.
type Mode uint8

const (
	// ModeCommon compares proposals both validators voted on.
	ModeCommon Mode = iota
	// ModeBase compares every proposal the base validator voted on.
	ModeBase
	// ModeComprehensive compares proposals either validator voted on.
	ModeComprehensive
)

func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "common":
		return ModeCommon, nil
	case "base":
		return ModeBase, nil
	case "comprehensive", "union":
		return ModeComprehensive, nil
	}
	return ModeCommon, fmt.Errorf("unknown similarity mode %q", raw)
}

func (m Mode) String() string {
	switch m {
	case ModeCommon:
		return "common"
	case ModeBase:
		return "base"
	case ModeComprehensive:
		return "comprehensive"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// SimilarityOptions are the caller controlled knobs of a similarity query.
type SimilarityOptions struct {
	ApplyRecencyWeight       bool `json:"apply_recency_weight" yaml:"apply_recency_weight"`
	MatchAbstainInSimilarity bool `json:"match_abstain" yaml:"match_abstain"`
	Mode                     Mode `json:"mode" yaml:"mode"`
}

// VoteMap holds one validator's recorded option per proposal id.
type VoteMap = map[string]governance.VoteOption

// SimilarityResult is a score plus the number of proposals that fed it.
type SimilarityResult struct {
	Score    float64 `json:"score"`
	Compared int     `json:"compared"`
}

// Agreement scores two recorded options. A side that did not vote never
// matches, so non participation counts as disagreement; the only partial
// credit is when exactly one side abstained.
func Agreement(base, target governance.VoteOption, baseVoted, targetVoted, matchAbstain bool) float64 {
	if baseVoted && targetVoted && base == target {
		if base == governance.OptionAbstain && !matchAbstain {
			return 0
		}
		return 1
	}
	baseAbstained := baseVoted && base == governance.OptionAbstain
	targetAbstained := targetVoted && target == governance.OptionAbstain
	if baseAbstained != targetAbstained {
		return PartialAgreement
	}
	return 0
}

// ContrarianBonus rewards agreement on a position held by less than
// MinorityThreshold of the tallied power: the rarer the position, the larger
// the bonus. Options without power (NO_VOTE, OTHER) and empty tallies get none.
func ContrarianBonus(agreed governance.VoteOption, t PowerTally) float64 {
	if !agreed.IsTallied() || t.Total() <= 0 {
		return 0
	}
	share := t.Share(agreed)
	if share < MinorityThreshold {
		return 1 - share
	}
	return 0
}

// SimilarityEngine scores validator pairs against a fixed set of known
// proposals and their tallies. It is immutable after construction and safe
// for concurrent use.
type SimilarityEngine struct {
	order      []string
	rank       map[string]int
	dispersion map[string]float64
	tallies    map[string]PowerTally
}

// NewSimilarityEngine orders the proposals by submission time (ties by id) to
// assign recency ranks 1..n and caches each proposal's dispersion weight.
// Proposals missing from tallies are treated as having an empty tally.
func NewSimilarityEngine(proposals []governance.Proposal, tallies map[string]PowerTally) *SimilarityEngine {
	seen := make(map[string]struct{}, len(proposals))
	sorted := make([]governance.Proposal, 0, len(proposals))
	for _, p := range proposals {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		sorted = append(sorted, p)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].SubmitTime.Equal(sorted[j].SubmitTime) {
			return sorted[i].SubmitTime.Before(sorted[j].SubmitTime)
		}
		return sorted[i].ID < sorted[j].ID
	})

	e := &SimilarityEngine{
		order:      make([]string, len(sorted)),
		rank:       make(map[string]int, len(sorted)),
		dispersion: make(map[string]float64, len(sorted)),
		tallies:    make(map[string]PowerTally, len(sorted)),
	}
	for i, p := range sorted {
		t := tallies[p.ID]
		e.order[i] = p.ID
		e.rank[p.ID] = i + 1
		e.tallies[p.ID] = t
		e.dispersion[p.ID] = OpinionDispersion(t)
	}
	return e
}

// Proposals is the number of known proposals (n of the recency weight).
func (e *SimilarityEngine) Proposals() int { return len(e.order) }

// Rank returns the 1-based recency rank of a proposal, 0 when unknown.
func (e *SimilarityEngine) Rank(proposalID string) int { return e.rank[proposalID] }

func inUniverse(mode Mode, baseVoted, targetVoted bool) bool {
	switch mode {
	case ModeBase:
		return baseVoted
	case ModeComprehensive:
		return baseVoted || targetVoted
	default:
		return baseVoted && targetVoted
	}
}

// Score returns the weighted agreement of target with base.
func (e *SimilarityEngine) Score(base, target VoteMap, opts SimilarityOptions) float64 {
	return e.Compare(base, target, opts).Score
}

// Compare is Score plus the size of the comparison universe. Each proposal
// contributes agreement A with weight (ODI + C) x T, where C is the contrarian
// bonus on perfect agreement and T is r/n under recency weighting.
func (e *SimilarityEngine) Compare(base, target VoteMap, opts SimilarityOptions) SimilarityResult {
	n := float64(len(e.order))
	var num, den float64
	compared := 0
	for _, id := range e.order {
		b, baseVoted := base[id]
		t, targetVoted := target[id]
		if !inUniverse(opts.Mode, baseVoted, targetVoted) {
			continue
		}
		compared++

		a := Agreement(b, t, baseVoted, targetVoted, opts.MatchAbstainInSimilarity)
		w := e.dispersion[id]
		if a == 1 {
			w += ContrarianBonus(b, e.tallies[id])
		}
		if opts.ApplyRecencyWeight {
			w *= float64(e.rank[id]) / n
		}
		num += a * w
		den += w
	}
	if den <= 0 {
		return SimilarityResult{Compared: compared}
	}
	return SimilarityResult{Score: num / den, Compared: compared}
}

// Similarity is the one-shot form of SimilarityEngine.Score. The base side is
// the selected (pinned) validator; in ModeBase the result is not symmetric.
func Similarity(base, target VoteMap, proposals []governance.Proposal, tallies map[string]PowerTally, opts SimilarityOptions) float64 {
	return NewSimilarityEngine(proposals, tallies).Score(base, target, opts)
}
