package controller

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/canopy-network/govlens/pkg/analytics"
	"github.com/canopy-network/govlens/pkg/filter"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }

var (
	errInvalidLimit = &parseError{msg: "invalid limit"}
	errMissingBase  = &parseError{msg: "base is required"}
)

func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errInvalidLimit
	}
	return min(n, maxLimit), nil
}

// listParam accepts both repeated keys and comma separated values.
func listParam(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func floatParam(r *http.Request, key string) (*float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, &parseError{msg: "invalid " + key}
	}
	return &f, nil
}

func boolParam(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &parseError{msg: "invalid " + key}
	}
	return b, nil
}

func rangeParam(r *http.Request, name string) (filter.Range, error) {
	lo, err := floatParam(r, name+"_min")
	if err != nil {
		return filter.Range{}, err
	}
	hi, err := floatParam(r, name+"_max")
	if err != nil {
		return filter.Range{}, err
	}
	return filter.Range{Min: lo, Max: hi}, nil
}

// parseSpec builds a filter spec for chain from the query string:
// categories, topics, search, power_min/max, power_mode,
// participation_min/max, approval_min/max, count_no_vote and pinned.
func parseSpec(r *http.Request, chain string) (filter.Spec, error) {
	q := r.URL.Query()
	spec := filter.Spec{
		Chain:           chain,
		Categories:      listParam(r, "categories"),
		Topics:          listParam(r, "topics"),
		Search:          q.Get("search"),
		PowerMode:       filter.PowerMode(q.Get("power_mode")),
		PinnedValidator: q.Get("pinned"),
	}
	var err error
	if spec.VotingPower, err = rangeParam(r, "power"); err != nil {
		return filter.Spec{}, err
	}
	if spec.Participation, err = rangeParam(r, "participation"); err != nil {
		return filter.Spec{}, err
	}
	if spec.Approval, err = rangeParam(r, "approval"); err != nil {
		return filter.Spec{}, err
	}
	if spec.CountNoVoteAsParticipation, err = boolParam(r, "count_no_vote"); err != nil {
		return filter.Spec{}, err
	}
	return spec, spec.Validate()
}

func parseSimilarityOptions(r *http.Request) (analytics.SimilarityOptions, error) {
	var opts analytics.SimilarityOptions
	mode, err := analytics.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		return opts, &parseError{msg: err.Error()}
	}
	opts.Mode = mode
	if opts.ApplyRecencyWeight, err = boolParam(r, "recency"); err != nil {
		return opts, err
	}
	if opts.MatchAbstainInSimilarity, err = boolParam(r, "match_abstain"); err != nil {
		return opts, err
	}
	return opts, nil
}
