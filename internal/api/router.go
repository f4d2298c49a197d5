package api

import (
	"net/http"

	"github.com/wardenlabs/warden/internal/auth"
	"github.com/wardenlabs/warden/internal/chread"
	"github.com/wardenlabs/warden/internal/storage"
	"github.com/wardenlabs/warden/internal/validator"
	"go.uber.org/zap"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Validator *validator.Validator
	Auth      auth.Authenticator
	Writer    storage.EventWriter
	Reader    *chread.Reader // nil if ClickHouse unavailable
	Logger    *zap.Logger
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Validation endpoints (auth required via Bearer wsk_ token)
	mux.HandleFunc("POST /v1/validate", deps.authMiddleware(deps.handleValidate))
	mux.HandleFunc("POST /v1/validate/output-formats", deps.authMiddleware(deps.handleOutputFormats))
	mux.HandleFunc("POST /v1/tools/filter", deps.authMiddleware(deps.handleFilterTools))

	// Audit endpoints (no auth)
	mux.HandleFunc("GET /api/warden/events", deps.handleListEvents)
	mux.HandleFunc("GET /api/warden/summary", deps.handleSummary)

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
