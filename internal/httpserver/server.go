package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/atlasformation/funnel-engine/internal/analytics"
	"github.com/atlasformation/funnel-engine/internal/cache"
	"github.com/atlasformation/funnel-engine/internal/config"
	"github.com/atlasformation/funnel-engine/internal/database"
	"github.com/atlasformation/funnel-engine/internal/geo"
	"github.com/atlasformation/funnel-engine/internal/ledger"
	"github.com/atlasformation/funnel-engine/internal/metrics"
	"github.com/atlasformation/funnel-engine/internal/middleware"
	"github.com/atlasformation/funnel-engine/internal/storage"
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	Store   storage.EventStore
	Redis   *database.RedisDB
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Server wraps HTTP handlers around the analytics engine.
type Server struct {
	service *analytics.Service
	logger  *zap.Logger
	config  *config.Config
}

// NewServer wires the engine and returns the root http.Handler with all
// routes and middleware registered.
func NewServer(deps *Dependencies) http.Handler {
	cfg := deps.Config

	// Result cache: shared via Redis when configured, process-local
	// otherwise.
	var results cache.Cache
	if deps.Redis != nil {
		results = cache.NewRedisCache(deps.Redis.Client, cfg.Cache.TTL, deps.Logger)
	} else {
		results = cache.NewMemoryCache(cfg.Cache.TTL)
	}

	reader := ledger.NewReader(ledger.NewHTTPRowSource(cfg.Ledger, deps.Logger), deps.Logger)

	var geoProvider geo.Provider
	if cfg.Geo.Enabled {
		p, err := geo.NewMaxMindProvider(cfg.Geo.DatabasePath)
		if err != nil {
			deps.Logger.Warn("failed to initialize geo provider, enrichment disabled", zap.Error(err))
		} else {
			geoProvider = p
		}
	}

	svc := analytics.NewService(deps.Store, reader, results, geoProvider, deps.Metrics, deps.Logger)

	s := &Server{
		service: svc,
		logger:  deps.Logger,
		config:  cfg,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	// Event ingestion and queries
	mux.HandleFunc("/events", s.handleEvents)

	// Analytics
	mux.HandleFunc("/analytics/summary", s.handleSummary)
	mux.HandleFunc("/analytics/funnel", s.handleFunnel)
	mux.HandleFunc("/analytics/timeseries", s.handleTimeSeries)
	mux.HandleFunc("/analytics/attribution", s.handleAttribution)

	// Normalized ledger snapshot for the admin table view
	mux.HandleFunc("/ledger/records", s.handleLedgerRecords)

	var handler http.Handler = mux
	handler = middleware.NewRateLimitMiddleware(cfg.RateLimit, deps.Metrics, deps.Logger).Handler(handler)
	handler = middleware.NewAuthMiddleware(cfg.Auth, deps.Logger).Handler(handler)
	handler = middleware.NewLoggingMiddleware(deps.Logger).Handler(handler)
	handler = middleware.NewRequestIDMiddleware().Handler(handler)
	handler = middleware.NewRecoveryMiddleware(deps.Logger).Handler(handler)
	return handler
}
