package query

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/canopy-network/govlens/app/query/controller"
	"github.com/canopy-network/govlens/app/query/types"
)

// NewServer attaches the HTTP server to app. Use <ip>:<port> to bind to a
// specific interface or :<port> to bind to all interfaces.
func NewServer(app *types.App, addr string) {
	ctler := controller.NewController(app)
	app.Server = &http.Server{
		Addr:              addr,
		Handler:           controller.WithCORS(ctler.NewRouter()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.Logger.Info("Starting server", zap.String("addr", addr))
}
