// Package api exposes the HTTP surface: cron-triggered trading cycles,
// pricing fan-out, trading history and a websocket metrics stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"crypto-ai-trader/config"
	"crypto-ai-trader/internal/auth"
	"crypto-ai-trader/internal/cache"
	"crypto-ai-trader/internal/database"
	"crypto-ai-trader/internal/market"
	"crypto-ai-trader/internal/scheduler"
)

// Store is the read side of persistence the handlers need.
type Store interface {
	ListChats(ctx context.Context, limit int) ([]database.Chat, error)
	ListCompletedTrades(ctx context.Context, limit int) ([]database.Trade, error)
	GetLatestMetrics(ctx context.Context, name string) (*database.MetricsDocument, error)
}

// Server wires the router, its collaborators and the HTTP listener.
type Server struct {
	router        *gin.Engine
	httpServer    *http.Server
	market        *market.Service
	scheduler     *scheduler.Scheduler
	store         Store
	responseCache *cache.ResponseCache
	tokenManager  *auth.TokenManager
	hub           *MetricsHub
	cfg           config.ServerConfig
	pricing       []string
	logger        zerolog.Logger
}

// NewServer builds the router and registers all routes. responseCache
// may be nil when Redis is disabled; the metrics endpoint then serves
// straight from the database.
func NewServer(
	cfg config.ServerConfig,
	pricingSymbols []string,
	marketSvc *market.Service,
	sched *scheduler.Scheduler,
	store Store,
	responseCache *cache.ResponseCache,
	tokenManager *auth.TokenManager,
	logger zerolog.Logger,
) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins != "" {
		corsConfig.AllowOrigins = splitOrigins(cfg.AllowedOrigins)
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:        router,
		market:        marketSvc,
		scheduler:     sched,
		store:         store,
		responseCache: responseCache,
		tokenManager:  tokenManager,
		hub:           NewMetricsHub(logger),
		cfg:           cfg,
		pricing:       pricingSymbols,
		logger:        logger.With().Str("component", "api").Logger(),
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleRoot)
	s.router.GET("/health", s.handleHealth)

	cron := s.router.Group("/api/cron", auth.TokenMiddleware(s.tokenManager))
	{
		cron.GET("/3-minutes-run-interval", s.handleDecisionCycle)
		cron.GET("/20-seconds-metrics-interval", s.handleMetricsCycle)
	}

	api := s.router.Group("/api")
	{
		api.GET("/metrics", s.handleMetrics)
		api.GET("/pricing", s.handlePricing)
		api.GET("/pricing/simple", s.handleSimplePricing)
		api.GET("/trading/chats", s.handleChats)
		api.GET("/trading/completed-trades", s.handleCompletedTrades)
	}

	s.router.GET("/ws/metrics", s.handleMetricsWebsocket)
}

// Start runs the hub and the HTTP listener. Blocks until the listener
// exits.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  secondsOr(s.cfg.ReadTimeout, 15),
		WriteTimeout: secondsOr(s.cfg.WriteTimeout, 30),
	}

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub exposes the websocket hub so the scheduler can publish to it.
func (s *Server) Hub() *MetricsHub {
	return s.hub
}

func splitOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func secondsOr(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}
