package advisor

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"crypto-ai-trader/internal/market"
)

// Result carries the parsed decision together with the raw completion
// and the prompt, which the caller persists alongside the trade.
type Result struct {
	Decision   Decision
	Content    string
	Reasoning  string
	UserPrompt string
}

// Advisor prompts the configured LLM for a trading decision.
type Advisor struct {
	client Completer
	logger zerolog.Logger
	now    func() time.Time
}

func New(client Completer, logger zerolog.Logger) *Advisor {
	return &Advisor{
		client: client,
		logger: logger.With().Str("component", "advisor").Logger(),
		now:    time.Now,
	}
}

// Decide asks the provider for a recommendation. Transport failures are
// returned as errors; an unparseable completion degrades to HOLD.
func (a *Advisor) Decide(symbol string, snap *market.Snapshot, account *market.AccountState) (*Result, error) {
	systemPrompt := SystemPrompt(a.now())
	userPrompt := UserPrompt(symbol, snap, account)

	content, err := a.client.Complete(systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	decision := ParseDecision(content)
	a.logger.Info().
		Str("symbol", symbol).
		Str("recommendation", decision.Recommendation).
		Str("risk_level", decision.RiskLevel).
		Msg("trading decision received")

	return &Result{
		Decision:   decision,
		Content:    content,
		Reasoning:  "AI analysis based on market data and account information",
		UserPrompt: userPrompt,
	}, nil
}
