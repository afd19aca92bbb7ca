package rest

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/robalyx/vaultstats/internal/rest/handler"
	"github.com/robalyx/vaultstats/internal/rest/middleware"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// Server implements the REST API service.
type Server struct {
	statsHandler *handler.StatsHandler
}

// NewServer creates the HTTP handler serving /health and /stats.
func NewServer(provider handler.StatsProvider, logger *zap.Logger) http.Handler {
	logger = logger.Named("rest")

	server := &Server{
		statsHandler: handler.NewStatsHandler(provider, logger),
	}

	logging := middleware.NewLogging(logger)

	router := bunrouter.New(
		bunrouter.Use(logging.AsRESTMiddleware),
	)

	router.GET("/health", handler.Health)
	router.GET("/stats", server.statsHandler.GetStats)

	// Add gzip compression
	return gzhttp.GzipHandler(router)
}
