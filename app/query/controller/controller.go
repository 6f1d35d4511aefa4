package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/canopy-network/govlens/app/query/types"
	"github.com/canopy-network/govlens/pkg/filter"
	"github.com/canopy-network/govlens/pkg/source"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// NewRouter returns a new router with all the routes defined in this package.
func (c *Controller) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	r.HandleFunc("/chains", c.HandleChains).Methods(http.MethodGet)
	r.HandleFunc("/stats", c.HandleStatsAll).Methods(http.MethodGet)
	r.HandleFunc("/chains/{id}/stats", c.HandleStats).Methods(http.MethodGet)
	r.HandleFunc("/chains/{id}/validators", c.HandleValidators).Methods(http.MethodGet)
	r.HandleFunc("/chains/{id}/similarity", c.HandleSimilarity).Methods(http.MethodGet)
	r.HandleFunc("/chains/{id}/similarity/matrix", c.HandleSimilarityMatrix).Methods(http.MethodGet)
	r.HandleFunc("/cache", c.HandleInvalidate).Methods(http.MethodDelete)

	return r
}

// WithCORS allows cross-origin access from any dashboard.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodDelete+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes; anything unknown is a 500.
func (c *Controller) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	var pe *parseError
	switch {
	case errors.As(err, &pe), errors.Is(err, filter.ErrChainRequired), errors.Is(err, filter.ErrInvalidSpec):
		code = http.StatusBadRequest
	case errors.Is(err, source.ErrUnknownChain), errors.Is(err, errValidatorNotFound):
		code = http.StatusNotFound
	default:
		c.App.Logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
