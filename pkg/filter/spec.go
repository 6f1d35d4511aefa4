package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/canopy-network/govlens/pkg/utils"
)

var (
	// ErrChainRequired is returned when a spec does not name a chain.
	ErrChainRequired = errors.New("filter: chain is required")
	// ErrInvalidSpec wraps every other validation failure.
	ErrInvalidSpec = errors.New("filter: invalid spec")
)

// PowerMode selects how the voting power range is interpreted.
type PowerMode string

const (
	// PowerRatio compares a validator's average power to the chain mean, in percent.
	PowerRatio PowerMode = "ratio"
	// PowerRank compares the 1-based rank by average power.
	PowerRank PowerMode = "rank"
)

// Range is an inclusive interval; a nil bound is open.
type Range struct {
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Between builds a closed range.
func Between(lo, hi float64) Range {
	return Range{Min: &lo, Max: &hi}
}

func (r Range) IsZero() bool { return r.Min == nil && r.Max == nil }

func (r Range) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

func (r Range) validate(name string) error {
	for _, b := range []*float64{r.Min, r.Max} {
		if b != nil && (math.IsNaN(*b) || math.IsInf(*b, 0)) {
			return fmt.Errorf("%w: %s bound %g is not finite", ErrInvalidSpec, name, *b)
		}
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return fmt.Errorf("%w: %s min %g is above max %g", ErrInvalidSpec, name, *r.Min, *r.Max)
	}
	return nil
}

// Spec is the full set of filter dimensions of one query.
type Spec struct {
	Chain                      string    `json:"chain" yaml:"chain"`
	Categories                 []string  `json:"categories,omitempty" yaml:"categories,omitempty"`
	Topics                     []string  `json:"topics,omitempty" yaml:"topics,omitempty"`
	Search                     string    `json:"search,omitempty" yaml:"search,omitempty"`
	VotingPower                Range     `json:"voting_power" yaml:"voting_power"`
	PowerMode                  PowerMode `json:"power_mode,omitempty" yaml:"power_mode,omitempty"`
	Participation              Range     `json:"participation" yaml:"participation"`
	Approval                   Range     `json:"approval" yaml:"approval"`
	CountNoVoteAsParticipation bool      `json:"count_no_vote_as_participation" yaml:"count_no_vote_as_participation"`
	PinnedValidator            string    `json:"pinned_validator,omitempty" yaml:"pinned_validator,omitempty"`
}

// Validate checks the spec without touching any data.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Chain) == "" {
		return ErrChainRequired
	}
	switch s.PowerMode {
	case "", PowerRatio, PowerRank:
	default:
		return fmt.Errorf("%w: unknown power mode %q", ErrInvalidSpec, s.PowerMode)
	}
	if err := s.VotingPower.validate("voting_power"); err != nil {
		return err
	}
	if err := s.Participation.validate("participation"); err != nil {
		return err
	}
	return s.Approval.validate("approval")
}

// Normalized returns the canonical form of the spec: trimmed chain and
// search, deduplicated and sorted sets, explicit power mode.
func (s Spec) Normalized() Spec {
	s.Chain = strings.TrimSpace(s.Chain)
	s.Search = strings.TrimSpace(s.Search)
	s.Categories = sortedSet(s.Categories)
	s.Topics = sortedSet(s.Topics)
	if s.PowerMode == "" {
		s.PowerMode = PowerRatio
	}
	return s
}

// Hash identifies the normalized spec; equivalent specs hash equally.
func (s Spec) Hash() uint64 {
	raw, err := json.Marshal(s.Normalized())
	if err != nil {
		// Spec holds only strings, floats and bools.
		panic(fmt.Sprintf("filter: marshal spec: %v", err))
	}
	return xxhash.Sum64(raw)
}

func sortedSet(values []string) []string {
	out := utils.Dedup(values)
	sort.Strings(out)
	return out
}

// LoadSpecFile reads a YAML filter spec.
func LoadSpecFile(path string) (Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read filter spec %s: %w", path, err)
	}
	var s Spec
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Spec{}, fmt.Errorf("parse filter spec %s: %w", path, err)
	}
	return s, nil
}
