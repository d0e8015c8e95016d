package executor

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"crypto-ai-trader/internal/advisor"
	"crypto-ai-trader/internal/binance"
)

const floatTolerance = 1e-9

func newTestExecutor(mock *binance.MockExchange) *Executor {
	return New(mock, Config{Leverage: 5, MinNotional: 5.0, DefaultSizePct: 0.03}, zerolog.Nop())
}

func setPosition(mock *binance.MockExchange, symbol string, contracts float64) {
	pos := &binance.Position{Symbol: symbol, Contracts: contracts, EntryPrice: 0.2, Leverage: 5}
	pos.Side = pos.Direction()
	mock.Positions[symbol] = pos
}

func TestReconciliationTable(t *testing.T) {
	tests := []struct {
		name           string
		recommendation string
		contracts      float64
		wantStatus     string
		wantAction     string
	}{
		{"buy while flat opens long", "BUY", 0, StatusSuccess, ActionOpenLong},
		{"buy while long holds", "BUY", 500, StatusSkipped, ActionHoldLong},
		{"buy while short closes short", "BUY", -500, StatusSuccess, ActionCloseShort},
		{"sell while flat opens short", "SELL", 0, StatusSuccess, ActionOpenShort},
		{"sell while long closes long", "SELL", 500, StatusSuccess, ActionCloseLong},
		{"sell while short holds", "SELL", -500, StatusSkipped, ActionHoldShort},
		{"hold while flat skips", "HOLD", 0, StatusSkipped, ""},
		{"hold while long skips", "HOLD", 500, StatusSkipped, ""},
		{"hold while short skips", "HOLD", -500, StatusSkipped, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := binance.NewMockExchange()
			mock.Balance = binance.Balance{Total: 1000, Available: 1000}
			mock.Prices["DOGEUSDT"] = 0.2
			setPosition(mock, "DOGEUSDT", tt.contracts)

			e := newTestExecutor(mock)
			got := e.ExecuteTrade("DOGEUSDT", advisor.Decision{Recommendation: tt.recommendation})

			if got.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q (message: %s)", got.Status, tt.wantStatus, got.Message)
			}
			if got.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", got.Action, tt.wantAction)
			}
			if tt.wantStatus == StatusSkipped && len(mock.PlacedOrders) != 0 {
				t.Errorf("skipped action placed %d orders", len(mock.PlacedOrders))
			}
		})
	}
}

func TestOpenLongScenario(t *testing.T) {
	// FLAT, BUY, balance 1000, 3%, entry 0.2: spend 30, amount (30*5)/0.2 = 750.
	mock := binance.NewMockExchange()
	mock.Balance = binance.Balance{Total: 1000, Available: 1000}

	e := newTestExecutor(mock)
	got := e.ExecuteTrade("DOGEUSDT", advisor.Decision{
		Recommendation:         "BUY",
		TargetEntryPrice:       0.2,
		PositionSizeSuggestion: "3%",
	})

	if got.Status != StatusSuccess {
		t.Fatalf("Status = %q (%s), want success", got.Status, got.Message)
	}
	if got.Action != ActionOpenLong {
		t.Errorf("Action = %q, want OPEN_LONG", got.Action)
	}
	if math.Abs(got.Amount-750) > floatTolerance {
		t.Errorf("Amount = %v, want 750", got.Amount)
	}
	if math.Abs(got.AmountUSDT-30) > floatTolerance {
		t.Errorf("AmountUSDT = %v, want 30", got.AmountUSDT)
	}
	if got.Leverage != 5 {
		t.Errorf("Leverage = %d, want 5", got.Leverage)
	}
	if got.Message != "Long position opened successfully with 5x leverage" {
		t.Errorf("unexpected message %q", got.Message)
	}
	if len(mock.PlacedOrders) != 1 || mock.PlacedOrders[0].Side != "BUY" {
		t.Errorf("unexpected orders: %+v", mock.PlacedOrders)
	}
	if len(mock.LeverageCalls) != 1 || mock.LeverageCalls[0].Leverage != 5 {
		t.Errorf("leverage not applied before sizing: %+v", mock.LeverageCalls)
	}
}

func TestCloseLongScenario(t *testing.T) {
	// LONG 500 contracts, SELL: close the exact magnitude, record price 0.
	mock := binance.NewMockExchange()
	mock.Balance = binance.Balance{Total: 1000, Available: 1000}
	setPosition(mock, "DOGEUSDT", 500)

	e := newTestExecutor(mock)
	got := e.ExecuteTrade("DOGEUSDT", advisor.Decision{Recommendation: "SELL"})

	if got.Status != StatusSuccess || got.Action != ActionCloseLong {
		t.Fatalf("got %q/%q (%s), want success/CLOSE_LONG", got.Status, got.Action, got.Message)
	}
	if got.Amount != 500 {
		t.Errorf("Amount = %v, want 500", got.Amount)
	}
	if got.Price != 0 {
		t.Errorf("Price = %v, closes record 0", got.Price)
	}
	if got.Message != "Long position closed successfully" {
		t.Errorf("unexpected message %q", got.Message)
	}
}

func TestCloseShortUsesMagnitude(t *testing.T) {
	mock := binance.NewMockExchange()
	mock.Balance = binance.Balance{Total: 1000, Available: 1000}
	setPosition(mock, "DOGEUSDT", -250)

	e := newTestExecutor(mock)
	got := e.ExecuteTrade("DOGEUSDT", advisor.Decision{Recommendation: "BUY"})

	if got.Status != StatusSuccess || got.Action != ActionCloseShort {
		t.Fatalf("got %q/%q, want success/CLOSE_SHORT", got.Status, got.Action)
	}
	if got.Amount != 250 {
		t.Errorf("Amount = %v, want 250", got.Amount)
	}
	if len(mock.PlacedOrders) != 1 || mock.PlacedOrders[0].Side != "BUY" || mock.PlacedOrders[0].Quantity != 250 {
		t.Errorf("unexpected orders: %+v", mock.PlacedOrders)
	}
}

func TestMinNotionalClamp(t *testing.T) {
	// balance 100, 1%, entry 1.0: raw spend 1.0 clamps to 5.0, amount 25.
	mock := binance.NewMockExchange()
	mock.Balance = binance.Balance{Total: 100, Available: 100}

	e := newTestExecutor(mock)
	got := e.ExecuteTrade("DOGEUSDT", advisor.Decision{
		Recommendation:         "BUY",
		TargetEntryPrice:       1.0,
		PositionSizeSuggestion: "1%",
	})

	if got.Status != StatusSuccess {
		t.Fatalf("Status = %q (%s), want success", got.Status, got.Message)
	}
	if math.Abs(got.AmountUSDT-5.0) > floatTolerance {
		t.Errorf("AmountUSDT = %v, want clamped 5.0", got.AmountUSDT)
	}
	if math.Abs(got.Amount-25.0) > floatTolerance {
		t.Errorf("Amount = %v, want 25.0", got.Amount)
	}
}

func TestUnparseableSizeFallsBack(t *testing.T) {
	// "abc%" falls back to 3% without raising: spend 30, amount 750.
	mock := binance.NewMockExchange()
	mock.Balance = binance.Balance{Total: 1000, Available: 1000}

	e := newTestExecutor(mock)
	got := e.ExecuteTrade("DOGEUSDT", advisor.Decision{
		Recommendation:         "BUY",
		TargetEntryPrice:       0.2,
		PositionSizeSuggestion: "abc%",
	})

	if got.Status != StatusSuccess {
		t.Fatalf("Status = %q (%s), want success", got.Status, got.Message)
	}
	if math.Abs(got.Amount-750) > floatTolerance {
		t.Errorf("Amount = %v, want 750 from the 3%% default", got.Amount)
	}
}

func TestInsufficientBalance(t *testing.T) {
	mock := binance.NewMockExchange()
	mock.Balance = binance.Balance{Total: 0, Available: 0}

	e := newTestExecutor(mock)
	got := e.ExecuteTrade("DOGEUSDT", advisor.Decision{Recommendation: "BUY", TargetEntryPrice: 0.2})

	if got.Status != StatusFailed {
		t.Fatalf("Status = %q, want failed", got.Status)
	}
	if got.Message != "Insufficient USDT balance" {
		t.Errorf("Message = %q", got.Message)
	}
	if len(mock.PlacedOrders) != 0 {
		t.Error("order placed despite zero balance")
	}
}

func TestEntryPriceFallsBackToTicker(t *testing.T) {
	mock := binance.NewMockExchange()
	mock.Balance = binance.Balance{Total: 1000, Available: 1000}
	mock.Prices["DOGEUSDT"] = 0.25

	e := newTestExecutor(mock)
	got := e.ExecuteTrade("DOGEUSDT", advisor.Decision{Recommendation: "BUY"})

	if got.Status != StatusSuccess {
		t.Fatalf("Status = %q (%s), want success", got.Status, got.Message)
	}
	if got.Price != 0.25 {
		t.Errorf("Price = %v, want market 0.25", got.Price)
	}
}

func TestInvalidEntryPrice(t *testing.T) {
	// No decision price and the ticker reports zero.
	mock := binance.NewMockExchange()
	mock.Balance = binance.Balance{Total: 1000, Available: 1000}

	e := newTestExecutor(mock)
	got := e.ExecuteTrade("DOGEUSDT", advisor.Decision{Recommendation: "SELL"})

	if got.Status != StatusFailed {
		t.Fatalf("Status = %q, want failed", got.Status)
	}
	if got.Message != "Invalid entry price" {
		t.Errorf("Message = %q", got.Message)
	}
}

func TestUnknownRecommendationSkips(t *testing.T) {
	mock := binance.NewMockExchange()
	e := newTestExecutor(mock)

	got := e.ExecuteTrade("DOGEUSDT", advisor.Decision{Recommendation: "REBALANCE"})
	if got.Status != StatusSkipped {
		t.Fatalf("Status = %q, want skipped", got.Status)
	}
	if got.Message != "Unknown recommendation: REBALANCE" {
		t.Errorf("Message = %q", got.Message)
	}
}

func TestLeverageFailureDoesNotAbort(t *testing.T) {
	mock := binance.NewMockExchange()
	mock.Balance = binance.Balance{Total: 1000, Available: 1000}
	mock.LeverageErr = errors.New("leverage endpoint down")

	e := newTestExecutor(mock)
	got := e.ExecuteTrade("DOGEUSDT", advisor.Decision{Recommendation: "BUY", TargetEntryPrice: 0.2})

	if got.Status != StatusSuccess {
		t.Errorf("Status = %q (%s), leverage failure must not abort", got.Status, got.Message)
	}
}

func TestBalanceFetchFailureIsError(t *testing.T) {
	mock := binance.NewMockExchange()
	mock.BalanceErr = errors.New("network down")

	e := newTestExecutor(mock)
	got := e.ExecuteTrade("DOGEUSDT", advisor.Decision{Recommendation: "BUY"})

	if got.Status != StatusError {
		t.Errorf("Status = %q, want error", got.Status)
	}
}

func TestOrderFailureIsError(t *testing.T) {
	mock := binance.NewMockExchange()
	mock.Balance = binance.Balance{Total: 1000, Available: 1000}
	mock.OrderErr = errors.New("rejected")

	e := newTestExecutor(mock)
	got := e.ExecuteTrade("DOGEUSDT", advisor.Decision{Recommendation: "BUY", TargetEntryPrice: 0.2})

	if got.Status != StatusError {
		t.Errorf("Status = %q, want error", got.Status)
	}
}

func TestPositionFetchFailureTreatedAsFlat(t *testing.T) {
	mock := binance.NewMockExchange()
	mock.Balance = binance.Balance{Total: 1000, Available: 1000}
	mock.PositionErr = errors.New("position endpoint down")

	e := newTestExecutor(mock)
	got := e.ExecuteTrade("DOGEUSDT", advisor.Decision{Recommendation: "BUY", TargetEntryPrice: 0.2})

	if got.Status != StatusSuccess || got.Action != ActionOpenLong {
		t.Errorf("got %q/%q, want success/OPEN_LONG when position state is unavailable", got.Status, got.Action)
	}
}

func TestParseSizeSuggestion(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"3%", 0.03},
		{"1%", 0.01},
		{"10%", 0.10},
		{" 5% ", 0.05},
		{"abc%", 0.03},
		{"0.05", 0.03},
		{"", 0.03},
	}

	for _, tt := range tests {
		if got := ParseSizeSuggestion(tt.in, 0.03); math.Abs(got-tt.want) > floatTolerance {
			t.Errorf("ParseSizeSuggestion(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOrderSize(t *testing.T) {
	tests := []struct {
		name     string
		balance  float64
		pct      float64
		entry    float64
		wantUSDT float64
		wantQty  float64
	}{
		{"no clamp", 1000, 0.03, 0.2, 30, 750},
		{"clamped to min notional", 100, 0.01, 1.0, 5.0, 25},
		{"exactly at min notional", 100, 0.05, 1.0, 5.0, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spend, qty := OrderSize(tt.balance, tt.pct, 5.0, 5, tt.entry)
			if math.Abs(spend-tt.wantUSDT) > floatTolerance {
				t.Errorf("spend = %v, want %v", spend, tt.wantUSDT)
			}
			if math.Abs(qty-tt.wantQty) > floatTolerance {
				t.Errorf("quantity = %v, want %v", qty, tt.wantQty)
			}
		})
	}
}
