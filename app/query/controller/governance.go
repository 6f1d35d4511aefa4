package controller

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/canopy-network/govlens/pkg/analytics"
	"github.com/canopy-network/govlens/pkg/filter"
	"github.com/canopy-network/govlens/pkg/governance"
)

var errValidatorNotFound = errors.New("validator not found")

type validatorsResponse struct {
	Chain             string                    `json:"chain"`
	Proposals         int                       `json:"proposals"`
	EligibleProposals int                       `json:"eligible_proposals"`
	Total             int                       `json:"total"`
	Validators        []filter.ValidatorMetrics `json:"validators"`
}

type similarityResponse struct {
	Chain     string                      `json:"chain"`
	Base      string                      `json:"base"`
	Options   analytics.SimilarityOptions `json:"options"`
	Proposals int                         `json:"proposals"`
	Scores    []analytics.PairScore       `json:"scores"`
}

type matrixResponse struct {
	Chain     string                      `json:"chain"`
	Options   analytics.SimilarityOptions `json:"options"`
	Proposals int                         `json:"proposals"`
	Matrix    *analytics.Matrix           `json:"matrix"`
}

// HandleChains lists the chains of the source.
func (c *Controller) HandleChains(w http.ResponseWriter, r *http.Request) {
	chains, err := c.App.Loader.Chains(r.Context())
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"chains": chains})
}

// HandleStats returns the category and topic distributions of one chain.
func (c *Controller) HandleStats(w http.ResponseWriter, r *http.Request) {
	ds, err := c.App.LoadDataset(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics.AggregateDataset(ds))
}

// HandleStatsAll returns the distributions of every chain combined.
func (c *Controller) HandleStatsAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chains, err := c.App.Loader.Chains(ctx)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	parts := make([]*governance.Dataset, 0, len(chains))
	for _, chain := range chains {
		ds, err := c.App.LoadDataset(ctx, chain)
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		parts = append(parts, ds)
	}
	writeJSON(w, http.StatusOK, analytics.AggregateDataset(governance.Merge(parts...)))
}

func (c *Controller) apply(r *http.Request, spec filter.Spec) (*filter.Result, error) {
	ds, err := c.App.LoadDataset(r.Context(), spec.Chain)
	if err != nil {
		return nil, err
	}
	return c.App.Memo.Apply(r.Context(), ds, spec)
}

// HandleValidators returns the filtered validators of a chain, by power rank.
func (c *Controller) HandleValidators(w http.ResponseWriter, r *http.Request) {
	spec, err := parseSpec(r, mux.Vars(r)["id"])
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	res, err := c.apply(r, spec)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	validators := res.Validators
	if len(validators) > limit {
		validators = validators[:limit]
	}
	writeJSON(w, http.StatusOK, validatorsResponse{
		Chain:             res.Chain,
		Proposals:         len(res.Proposals),
		EligibleProposals: res.EligibleProposals,
		Total:             len(res.Validators),
		Validators:        validators,
	})
}

// HandleSimilarity scores validators against ?base=, or only ?target= when given.
// The base validator is pinned so filters never drop it.
func (c *Controller) HandleSimilarity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	base, target := q.Get("base"), q.Get("target")
	if base == "" {
		c.writeError(w, r, errMissingBase)
		return
	}
	spec, err := parseSpec(r, mux.Vars(r)["id"])
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	spec.PinnedValidator = base
	opts, err := parseSimilarityOptions(r)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	res, err := c.apply(r, spec)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	for _, id := range []string{base, target} {
		if id == "" {
			continue
		}
		if _, ok := res.Validator(id); !ok {
			c.writeError(w, r, fmt.Errorf("%w: %q", errValidatorNotFound, id))
			return
		}
	}

	engine := res.Engine()
	votes := res.VoteMaps()
	out := similarityResponse{Chain: res.Chain, Base: base, Options: opts, Proposals: engine.Proposals()}
	if target != "" {
		cmp := engine.Compare(votes[base], votes[target], opts)
		out.Scores = []analytics.PairScore{{Base: base, Target: target, Score: cmp.Score, Compared: cmp.Compared}}
		writeJSON(w, http.StatusOK, out)
		return
	}

	scores, err := analytics.RankSimilarValidators(r.Context(), c.App.Pool, engine, base, votes, opts)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	if len(scores) > limit {
		scores = scores[:limit]
	}
	out.Scores = scores
	writeJSON(w, http.StatusOK, out)
}

// HandleSimilarityMatrix scores every ordered pair of the filtered validators,
// the first ?limit= of them by power rank.
func (c *Controller) HandleSimilarityMatrix(w http.ResponseWriter, r *http.Request) {
	spec, err := parseSpec(r, mux.Vars(r)["id"])
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	opts, err := parseSimilarityOptions(r)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	res, err := c.apply(r, spec)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	ids := make([]string, 0, min(len(res.Validators), limit))
	for _, v := range res.Validators {
		if len(ids) == limit {
			break
		}
		ids = append(ids, v.ID)
	}
	engine := res.Engine()
	m, err := analytics.SimilarityMatrix(r.Context(), c.App.Pool, engine, ids, res.VoteMaps(), opts)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matrixResponse{Chain: res.Chain, Options: opts, Proposals: engine.Proposals(), Matrix: m})
}

// HandleInvalidate drops cached datasets: ?chain= for one chain, all otherwise.
func (c *Controller) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	c.App.Invalidate(r.URL.Query().Get("chain"))
	w.WriteHeader(http.StatusNoContent)
}
