package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/robalyx/vaultstats/internal/rest/convert"
	restTypes "github.com/robalyx/vaultstats/internal/rest/types"
	"github.com/robalyx/vaultstats/internal/stats"
	"github.com/robalyx/vaultstats/internal/vaultwarden"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// MissingTokenMessage is returned to clients when no admin secret is configured.
const MissingTokenMessage = "ADMIN_TOKEN environment variable is required"

// StatsProvider returns the current statistics snapshot.
type StatsProvider interface {
	GetStats(ctx context.Context) (*stats.Snapshot, error)
}

// StatsHandler handles the statistics REST endpoint.
type StatsHandler struct {
	stats  StatsProvider
	logger *zap.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(provider StatsProvider, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		stats:  provider,
		logger: logger,
	}
}

// GetStats serves the cached statistics, refreshing them when stale.
func (h *StatsHandler) GetStats(w http.ResponseWriter, req bunrouter.Request) error {
	snapshot, err := h.stats.GetStats(req.Context())
	if err != nil {
		var configErr *vaultwarden.ConfigError
		if errors.As(err, &configErr) {
			h.logger.Error("Stats requested without admin token configured")
			return writeJSON(w, http.StatusInternalServerError, restTypes.ErrorResponse{Error: MissingTokenMessage})
		}

		h.logger.Error("Failed to get stats", zap.Error(err))
		return writeJSON(w, http.StatusInternalServerError, restTypes.ErrorResponse{Error: err.Error()})
	}

	return writeJSON(w, http.StatusOK, convert.Stats(snapshot))
}

// Health reports liveness without touching upstream state.
func Health(w http.ResponseWriter, _ bunrouter.Request) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write([]byte("OK"))
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}
