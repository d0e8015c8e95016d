package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"crypto-ai-trader/internal/cache"
	"crypto-ai-trader/internal/database"
	"crypto-ai-trader/internal/scheduler"
)

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "crypto-ai-trader",
		"status":  "running",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleDecisionCycle runs one full market-analysis-and-trade cycle.
// Called by an external cron every 3 minutes.
func (s *Server) handleDecisionCycle(c *gin.Context) {
	summary, err := s.scheduler.RunDecisionCycle(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("decision cycle failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.hub.Publish(gin.H{"type": "decision", "payload": summary})
	c.JSON(http.StatusOK, gin.H{
		"message":          summary.Message,
		"decision":         summary.Decision,
		"execution_result": summary.ExecutionResult,
	})
}

// handleMetricsCycle appends one account snapshot to the rolling
// metrics document. Called by an external cron every 20 seconds.
func (s *Server) handleMetricsCycle(c *gin.Context) {
	summary, err := s.scheduler.RunMetricsCycle(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("metrics cycle failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.hub.Publish(gin.H{"type": "metrics", "payload": summary})
	c.JSON(http.StatusOK, gin.H{
		"message":       summary.Message,
		"metrics_count": summary.MetricsCount,
	})
}

// handleMetrics serves the rolling metrics document, going through the
// Redis response cache when it is available and healthy.
func (s *Server) handleMetrics(c *gin.Context) {
	ctx := c.Request.Context()

	if s.responseCache != nil && s.responseCache.IsHealthy() {
		var cached map[string]interface{}
		if err := s.responseCache.GetJSON(ctx, cache.KeyMetricsResponse, &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	doc, err := s.store.GetLatestMetrics(ctx, scheduler.MetricsCollectorName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"metrics": []any{}}})
			return
		}
		s.logger.Error().Err(err).Msg("failed to load metrics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load metrics"})
		return
	}

	response := gin.H{"success": true, "data": gin.H{
		"name":    doc.Name,
		"model":   doc.Model,
		"metrics": doc.Metrics,
	}}

	if s.responseCache != nil && s.responseCache.IsHealthy() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.responseCache.SetJSON(cacheCtx, cache.KeyMetricsResponse, response, cache.DefaultResponseTTL); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache metrics response")
		}
	}

	c.JSON(http.StatusOK, response)
}

// handlePricing returns full market snapshots for the configured
// symbols, keyed by lowercase base asset.
func (s *Server) handlePricing(c *gin.Context) {
	states := s.market.GetMarketStates(s.pricing)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"pricing": states}})
}

// handleSimplePricing returns just current prices, same shape.
func (s *Server) handleSimplePricing(c *gin.Context) {
	prices := s.market.GetSimplePrices(s.pricing)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"pricing": prices}})
}

func (s *Server) handleChats(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	chats, err := s.store.ListChats(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list chats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list chats"})
		return
	}
	if chats == nil {
		chats = []database.Chat{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"chats": chats}})
}

func (s *Server) handleCompletedTrades(c *gin.Context) {
	limit := queryInt(c, "limit", 100)
	trades, err := s.store.ListCompletedTrades(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list trades")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list trades"})
		return
	}
	if trades == nil {
		trades = []database.Trade{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"trades": trades}})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
