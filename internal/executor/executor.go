// Package executor reconciles a trading recommendation with the
// exchange-reported position and places the resulting order. The
// position is read fresh from the exchange every call; the executor
// keeps no ledger of its own.
package executor

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"crypto-ai-trader/internal/advisor"
	"crypto-ai-trader/internal/binance"
)

// Status values of a trade action.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Action tags describing what the reconciliation decided.
const (
	ActionOpenLong   = "OPEN_LONG"
	ActionOpenShort  = "OPEN_SHORT"
	ActionCloseLong  = "CLOSE_LONG"
	ActionCloseShort = "CLOSE_SHORT"
	ActionHoldLong   = "HOLD_LONG"
	ActionHoldShort  = "HOLD_SHORT"
	ActionNoAction   = "NO_ACTION"
)

// TradeAction is the executor's output contract: what happened, with
// the figures the caller persists. Price stays 0 for closing orders;
// the fill price is not looked up.
type TradeAction struct {
	Status       string                 `json:"status"`
	Message      string                 `json:"message"`
	Action       string                 `json:"action,omitempty"`
	Operation    string                 `json:"operation,omitempty"`
	Amount       float64                `json:"amount,omitempty"`
	Price        float64                `json:"price"`
	Leverage     int                    `json:"leverage,omitempty"`
	PositionSize string                 `json:"position_size,omitempty"`
	AmountUSDT   float64                `json:"amount_usdt,omitempty"`
	Order        *binance.OrderResponse `json:"order,omitempty"`
	Details      string                 `json:"details,omitempty"`
}

// Config holds the sizing and leverage parameters.
type Config struct {
	Leverage       int
	MinNotional    float64
	DefaultSizePct float64
	DryRun         bool
}

// Executor maps (position state, recommendation) to a concrete order.
type Executor struct {
	exchange binance.Exchange
	logger   zerolog.Logger
	cfg      Config
}

func New(exchange binance.Exchange, cfg Config, logger zerolog.Logger) *Executor {
	if cfg.Leverage == 0 {
		cfg.Leverage = 5
	}
	if cfg.MinNotional == 0 {
		cfg.MinNotional = MinNotionalValue
	}
	if cfg.DefaultSizePct == 0 {
		cfg.DefaultSizePct = DefaultSizePct
	}
	return &Executor{
		exchange: exchange,
		logger:   logger.With().Str("component", "executor").Logger(),
		cfg:      cfg,
	}
}

// ExecuteTrade runs the reconciliation for one decision. Every failure
// mode resolves to a TradeAction status; nothing escapes the boundary,
// so one bad cycle cannot take down the scheduler.
func (e *Executor) ExecuteTrade(symbol string, decision advisor.Decision) (result TradeAction) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Str("symbol", symbol).Msg("trade execution panicked")
			result = TradeAction{Status: StatusError, Message: fmt.Sprint(r)}
		}
	}()

	recommendation := strings.ToUpper(strings.TrimSpace(decision.Recommendation))
	switch recommendation {
	case advisor.RecommendationBuy:
		return e.executeBuy(symbol, decision)
	case advisor.RecommendationSell:
		return e.executeSell(symbol, decision)
	case advisor.RecommendationHold:
		return TradeAction{
			Status:  StatusSkipped,
			Message: "HOLD recommendation - no trade executed",
			Details: "AI recommends holding current position",
		}
	default:
		return TradeAction{
			Status:  StatusSkipped,
			Message: fmt.Sprintf("Unknown recommendation: %s", recommendation),
		}
	}
}

func (e *Executor) executeBuy(symbol string, decision advisor.Decision) TradeAction {
	position := e.positionSnapshot(symbol)

	balance, err := e.exchange.GetBalance()
	if err != nil {
		return TradeAction{Status: StatusError, Message: fmt.Sprintf("Failed to execute BUY order: %v", err)}
	}

	e.setLeverage(symbol)

	switch position.Direction() {
	case binance.PositionSideFlat:
		return e.openPosition(symbol, decision, balance.Available, "BUY", ActionOpenLong,
			fmt.Sprintf("Long position opened successfully with %dx leverage", e.cfg.Leverage))
	case binance.PositionSideShort:
		return e.closePosition(symbol, position, "BUY", ActionCloseShort, "Short position closed successfully")
	default:
		return TradeAction{
			Status:  StatusSkipped,
			Message: "Already in long position or no action needed",
			Action:  ActionHoldLong,
		}
	}
}

func (e *Executor) executeSell(symbol string, decision advisor.Decision) TradeAction {
	position := e.positionSnapshot(symbol)

	balance, err := e.exchange.GetBalance()
	if err != nil {
		return TradeAction{Status: StatusError, Message: fmt.Sprintf("Failed to execute SELL order: %v", err)}
	}

	e.setLeverage(symbol)

	switch position.Direction() {
	case binance.PositionSideFlat:
		return e.openPosition(symbol, decision, balance.Available, "SELL", ActionOpenShort,
			fmt.Sprintf("Short position opened successfully with %dx leverage", e.cfg.Leverage))
	case binance.PositionSideLong:
		return e.closePosition(symbol, position, "SELL", ActionCloseLong, "Long position closed successfully")
	case binance.PositionSideShort:
		return TradeAction{
			Status:  StatusSkipped,
			Message: "Already in short position",
			Action:  ActionHoldShort,
		}
	default:
		return TradeAction{
			Status:  StatusSkipped,
			Message: "No action needed",
			Action:  ActionNoAction,
		}
	}
}

// openPosition sizes and places a new market order in the recommended
// direction.
func (e *Executor) openPosition(symbol string, decision advisor.Decision, available float64, operation, action, successMsg string) TradeAction {
	if available <= 0 {
		return TradeAction{Status: StatusFailed, Message: "Insufficient USDT balance"}
	}

	entryPrice := decision.DesiredEntryPrice()
	if entryPrice <= 0 {
		price, err := e.exchange.GetCurrentPrice(symbol)
		if err != nil {
			return TradeAction{Status: StatusError, Message: fmt.Sprintf("Failed to execute %s order: %v", operation, err)}
		}
		entryPrice = price
	}
	if entryPrice <= 0 {
		return TradeAction{Status: StatusFailed, Message: "Invalid entry price"}
	}

	sizeSuggestion := string(decision.PositionSizeSuggestion)
	if sizeSuggestion == "" {
		sizeSuggestion = "3%"
	}
	pct := ParseSizeSuggestion(sizeSuggestion, e.cfg.DefaultSizePct)
	spend, amount := OrderSize(available, pct, e.cfg.MinNotional, e.cfg.Leverage, entryPrice)

	order, err := e.placeOrder(symbol, operation, amount)
	if err != nil {
		return TradeAction{Status: StatusError, Message: fmt.Sprintf("Failed to execute %s order: %v", operation, err)}
	}

	e.logger.Info().
		Str("symbol", symbol).
		Str("action", action).
		Float64("amount", amount).
		Float64("spend_usdt", spend).
		Float64("entry_price", entryPrice).
		Msg("position opened")

	return TradeAction{
		Status:       StatusSuccess,
		Message:      successMsg,
		Action:       action,
		Operation:    operation,
		Amount:       amount,
		Price:        entryPrice,
		Leverage:     e.cfg.Leverage,
		PositionSize: sizeSuggestion,
		AmountUSDT:   spend,
		Order:        order,
	}
}

// closePosition flattens the reported position with a market order of
// its exact magnitude. The recorded price stays 0; see package notes.
func (e *Executor) closePosition(symbol string, position *binance.Position, operation, action, successMsg string) TradeAction {
	amount := math.Abs(position.Contracts)

	order, err := e.placeOrder(symbol, operation, amount)
	if err != nil {
		return TradeAction{Status: StatusError, Message: fmt.Sprintf("Failed to execute %s order: %v", operation, err)}
	}

	e.logger.Info().
		Str("symbol", symbol).
		Str("action", action).
		Float64("amount", amount).
		Msg("position closed")

	return TradeAction{
		Status:    StatusSuccess,
		Message:   successMsg,
		Action:    action,
		Operation: operation,
		Amount:    amount,
		Price:     0,
		Order:     order,
	}
}

func (e *Executor) placeOrder(symbol, side string, amount float64) (*binance.OrderResponse, error) {
	if e.cfg.DryRun {
		e.logger.Info().Str("symbol", symbol).Str("side", side).Float64("amount", amount).
			Msg("dry run: order not placed")
		return nil, nil
	}
	return e.exchange.PlaceMarketOrder(symbol, side, amount)
}

// positionSnapshot reads the current position; a fetch failure is
// logged and treated as flat, matching the exchange-is-truth model.
func (e *Executor) positionSnapshot(symbol string) *binance.Position {
	position, err := e.exchange.GetPosition(symbol)
	if err != nil {
		e.logger.Error().Err(err).Str("symbol", symbol).Msg("error fetching position info")
		return &binance.Position{Symbol: symbol, Side: binance.PositionSideFlat}
	}
	return position
}

// setLeverage applies the fixed leverage before sizing. Best-effort:
// failures are logged and the trade continues.
func (e *Executor) setLeverage(symbol string) {
	if err := e.exchange.SetLeverage(symbol, e.cfg.Leverage); err != nil {
		e.logger.Warn().Err(err).Str("symbol", symbol).Int("leverage", e.cfg.Leverage).
			Msg("failed to set leverage")
		return
	}
	e.logger.Info().Str("symbol", symbol).Int("leverage", e.cfg.Leverage).Msg("leverage set")
}
