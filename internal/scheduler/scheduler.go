// Package scheduler runs the periodic trading cycles: a decision cycle
// that consults the advisor and executes its recommendation, and a
// metrics cycle that snapshots account state. Both can be driven by the
// in-process tickers or invoked directly from the cron HTTP endpoints.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"crypto-ai-trader/internal/advisor"
	"crypto-ai-trader/internal/database"
	"crypto-ai-trader/internal/executor"
	"crypto-ai-trader/internal/market"
)

// MetricsCollectorName is the rolling metrics document the metrics
// cycle appends to.
const MetricsCollectorName = "20-seconds-metrics"

// Store is the persistence surface the scheduler needs.
type Store interface {
	SaveChat(ctx context.Context, chat *database.Chat) error
	SaveTrade(ctx context.Context, trade *database.Trade) error
	AppendMetric(ctx context.Context, name, model string, entry any) (int, error)
}

// Config holds the scheduler wiring that is not a collaborator.
type Config struct {
	Symbol           string
	ModelLabel       string
	DecisionInterval time.Duration
	MetricsInterval  time.Duration
}

// DecisionSummary is the decision cycle result returned to cron callers.
type DecisionSummary struct {
	Message         string               `json:"message"`
	Decision        advisor.Decision     `json:"decision"`
	ExecutionResult executor.TradeAction `json:"execution_result"`
}

// MetricsSummary is the metrics cycle result returned to cron callers.
type MetricsSummary struct {
	Message      string `json:"message"`
	MetricsCount int    `json:"metrics_count"`
}

// Scheduler owns the two periodic cycles.
type Scheduler struct {
	market   *market.Service
	advisor  *advisor.Advisor
	executor *executor.Executor
	store    Store
	logger   zerolog.Logger
	cfg      Config
	now      func() time.Time
}

func New(m *market.Service, a *advisor.Advisor, e *executor.Executor, store Store, cfg Config, logger zerolog.Logger) *Scheduler {
	if cfg.DecisionInterval <= 0 {
		cfg.DecisionInterval = 3 * time.Minute
	}
	if cfg.MetricsInterval <= 0 {
		cfg.MetricsInterval = 20 * time.Second
	}
	return &Scheduler{
		market:   m,
		advisor:  a,
		executor: e,
		store:    store,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		cfg:      cfg,
		now:      time.Now,
	}
}

// RunDecisionCycle gathers market and account state, asks the advisor
// for a decision, persists the conversation and executes the trade.
// Persistence failures are logged but do not block execution; the
// exchange is the source of truth, the database is bookkeeping.
func (s *Scheduler) RunDecisionCycle(ctx context.Context) (*DecisionSummary, error) {
	symbol := s.cfg.Symbol

	snapshot, err := s.market.GetSnapshot(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get market state: %w", err)
	}
	account, err := s.market.GetAccountState(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get account state: %w", err)
	}

	result, err := s.advisor.Decide(symbol, snapshot, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get trading decision: %w", err)
	}

	chat := &database.Chat{
		Model:      s.cfg.ModelLabel,
		Chat:       result.Content,
		Reasoning:  result.Reasoning,
		UserPrompt: s.buildUserPromptRecord(snapshot, account),
	}
	chatSaved := true
	if err := s.store.SaveChat(ctx, chat); err != nil {
		chatSaved = false
		s.logger.Error().Err(err).Msg("failed to save chat")
	}

	action := s.executor.ExecuteTrade(symbol, result.Decision)

	if action.Status == executor.StatusSuccess && action.Operation != "" {
		trade := &database.Trade{
			Symbol:    symbol,
			Operation: action.Operation,
			Amount:    action.Amount,
			Pricing:   action.Price,
			Leverage:  action.Leverage,
		}
		if action.Leverage == 0 {
			trade.Leverage = 1
		}
		if result.Decision.StopLoss > 0 {
			v := float64(result.Decision.StopLoss)
			trade.StopLoss = &v
		}
		if result.Decision.TakeProfit > 0 {
			v := float64(result.Decision.TakeProfit)
			trade.TakeProfit = &v
		}
		if chatSaved {
			id := chat.ID
			trade.ChatID = &id
		}
		if err := s.store.SaveTrade(ctx, trade); err != nil {
			s.logger.Error().Err(err).Msg("failed to save trade")
		}
	}

	s.logger.Info().
		Str("symbol", symbol).
		Str("recommendation", result.Decision.Recommendation).
		Str("status", action.Status).
		Str("action", action.Action).
		Msg("decision cycle complete")

	return &DecisionSummary{
		Message:         "Trading decision executed successfully",
		Decision:        result.Decision,
		ExecutionResult: action,
	}, nil
}

// RunMetricsCycle snapshots the account state into the rolling metrics
// document.
func (s *Scheduler) RunMetricsCycle(ctx context.Context) (*MetricsSummary, error) {
	account, err := s.market.GetAccountState(s.cfg.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get account state: %w", err)
	}

	entry := map[string]interface{}{
		"accountInformationAndPerformance": account,
		"createdAt":                        s.now().UTC().Format(time.RFC3339),
	}

	count, err := s.store.AppendMetric(ctx, MetricsCollectorName, s.cfg.ModelLabel, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to save metrics: %w", err)
	}

	return &MetricsSummary{
		Message:      "Metrics collected successfully",
		MetricsCount: count,
	}, nil
}

// Run drives both cycles on their tickers until the context ends.
func (s *Scheduler) Run(ctx context.Context) {
	decisionTicker := time.NewTicker(s.cfg.DecisionInterval)
	defer decisionTicker.Stop()
	metricsTicker := time.NewTicker(s.cfg.MetricsInterval)
	defer metricsTicker.Stop()

	s.logger.Info().
		Dur("decision_interval", s.cfg.DecisionInterval).
		Dur("metrics_interval", s.cfg.MetricsInterval).
		Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return
		case <-decisionTicker.C:
			if _, err := s.RunDecisionCycle(ctx); err != nil {
				s.logger.Error().Err(err).Msg("decision cycle failed")
			}
		case <-metricsTicker.C:
			if _, err := s.RunMetricsCycle(ctx); err != nil {
				s.logger.Error().Err(err).Msg("metrics cycle failed")
			}
		}
	}
}

// buildUserPromptRecord stores the cycle inputs alongside the chat so
// decisions can be audited later.
func (s *Scheduler) buildUserPromptRecord(snapshot *market.Snapshot, account *market.AccountState) string {
	record, err := json.Marshal(map[string]interface{}{
		"market_state": snapshot,
		"account_info": account,
	})
	if err != nil {
		return ""
	}
	return string(record)
}
