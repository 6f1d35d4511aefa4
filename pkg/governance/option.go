package governance

import (
	"fmt"
	"strings"
)

// VoteOption is the closed set of governance vote choices. Anything the chain
// reports outside the five recognised choices (WEIGHTED_VOTE, UNKNOWN, typos)
// collapses into OptionOther and never reaches a tally or distribution.
type VoteOption uint8

const (
	OptionOther VoteOption = iota
	OptionYes
	OptionNo
	OptionAbstain
	OptionNoWithVeto
	OptionNoVote
)

// TalliedOptions are the options that carry voting power into a PowerTally.
var TalliedOptions = []VoteOption{OptionYes, OptionNo, OptionNoWithVeto, OptionAbstain}

// KnownOptions are the options bucketed by the distribution aggregator.
var KnownOptions = []VoteOption{OptionYes, OptionNo, OptionAbstain, OptionNoWithVeto, OptionNoVote}

var optionNames = map[VoteOption]string{
	OptionOther:      "OTHER",
	OptionYes:        "YES",
	OptionNo:         "NO",
	OptionAbstain:    "ABSTAIN",
	OptionNoWithVeto: "NO_WITH_VETO",
	OptionNoVote:     "NO_VOTE",
}

// ParseVoteOption maps a raw option string onto the enumeration. Cosmos SDK
// spellings (VOTE_OPTION_YES) are accepted as well as the short forms.
func ParseVoteOption(raw string) VoteOption {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "VOTE_OPTION_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	switch s {
	case "YES":
		return OptionYes
	case "NO":
		return OptionNo
	case "ABSTAIN":
		return OptionAbstain
	case "NO_WITH_VETO", "NOWITHVETO", "VETO":
		return OptionNoWithVeto
	case "NO_VOTE", "NOVOTE", "DID_NOT_VOTE":
		return OptionNoVote
	default:
		return OptionOther
	}
}

func (o VoteOption) String() string {
	if name, ok := optionNames[o]; ok {
		return name
	}
	return fmt.Sprintf("VoteOption(%d)", uint8(o))
}

// IsTallied reports whether votes with this option carry power into a tally.
func (o VoteOption) IsTallied() bool {
	switch o {
	case OptionYes, OptionNo, OptionNoWithVeto, OptionAbstain:
		return true
	}
	return false
}

// IsKnown reports whether the option is one of the five recognised choices.
func (o VoteOption) IsKnown() bool {
	return o.IsTallied() || o == OptionNoVote
}

func (o VoteOption) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *VoteOption) UnmarshalText(text []byte) error {
	*o = ParseVoteOption(string(text))
	return nil
}
