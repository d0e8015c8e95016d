package binance

import (
	"fmt"
	"sync"
)

// MockExchange is an in-memory Exchange implementation for tests and dry
// runs. Fields are plain values looked up per symbol; error fields force
// failures for the matching call.
type MockExchange struct {
	mu sync.Mutex

	Prices       map[string]float64
	Tickers      map[string]*Ticker24hr
	Klines       map[string][]Kline // keyed "SYMBOL:interval"
	OpenInterest map[string]float64
	FundingRates map[string]float64
	Balance      Balance
	Positions    map[string]*Position

	PriceErr        error
	TickerErr       error
	KlinesErr       error
	OpenInterestErr error
	FundingErr      error
	BalanceErr      error
	PositionErr     error
	LeverageErr     error
	OrderErr        error

	LeverageCalls []LeverageCall
	PlacedOrders  []PlacedOrder
	nextOrderID   int64
}

type LeverageCall struct {
	Symbol   string
	Leverage int
}

type PlacedOrder struct {
	Symbol   string
	Side     string
	Quantity float64
}

// NewMockExchange returns a mock with empty lookup tables.
func NewMockExchange() *MockExchange {
	return &MockExchange{
		Prices:       make(map[string]float64),
		Tickers:      make(map[string]*Ticker24hr),
		Klines:       make(map[string][]Kline),
		OpenInterest: make(map[string]float64),
		FundingRates: make(map[string]float64),
		Positions:    make(map[string]*Position),
	}
}

func (m *MockExchange) GetCurrentPrice(symbol string) (float64, error) {
	if m.PriceErr != nil {
		return 0, m.PriceErr
	}
	return m.Prices[NormalizeSymbol(symbol)], nil
}

func (m *MockExchange) Get24hrTicker(symbol string) (*Ticker24hr, error) {
	if m.TickerErr != nil {
		return nil, m.TickerErr
	}
	if t, ok := m.Tickers[NormalizeSymbol(symbol)]; ok {
		return t, nil
	}
	return &Ticker24hr{Symbol: NormalizeSymbol(symbol), LastPrice: m.Prices[NormalizeSymbol(symbol)]}, nil
}

func (m *MockExchange) GetKlines(symbol, interval string, limit int) ([]Kline, error) {
	if m.KlinesErr != nil {
		return nil, m.KlinesErr
	}
	klines := m.Klines[NormalizeSymbol(symbol)+":"+interval]
	if len(klines) > limit {
		klines = klines[len(klines)-limit:]
	}
	return klines, nil
}

func (m *MockExchange) GetOpenInterest(symbol string) (float64, error) {
	if m.OpenInterestErr != nil {
		return 0, m.OpenInterestErr
	}
	return m.OpenInterest[NormalizeSymbol(symbol)], nil
}

func (m *MockExchange) GetFundingRate(symbol string) (float64, error) {
	if m.FundingErr != nil {
		return 0, m.FundingErr
	}
	return m.FundingRates[NormalizeSymbol(symbol)], nil
}

func (m *MockExchange) GetBalance() (*Balance, error) {
	if m.BalanceErr != nil {
		return nil, m.BalanceErr
	}
	b := m.Balance
	return &b, nil
}

func (m *MockExchange) GetPosition(symbol string) (*Position, error) {
	if m.PositionErr != nil {
		return nil, m.PositionErr
	}
	if p, ok := m.Positions[NormalizeSymbol(symbol)]; ok {
		cp := *p
		return &cp, nil
	}
	return &Position{Symbol: NormalizeSymbol(symbol), Side: PositionSideFlat}, nil
}

func (m *MockExchange) SetLeverage(symbol string, leverage int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LeverageCalls = append(m.LeverageCalls, LeverageCall{Symbol: NormalizeSymbol(symbol), Leverage: leverage})
	return m.LeverageErr
}

func (m *MockExchange) PlaceMarketOrder(symbol, side string, quantity float64) (*OrderResponse, error) {
	if m.OrderErr != nil {
		return nil, m.OrderErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextOrderID++
	m.PlacedOrders = append(m.PlacedOrders, PlacedOrder{
		Symbol:   NormalizeSymbol(symbol),
		Side:     side,
		Quantity: quantity,
	})
	return &OrderResponse{
		OrderID:       m.nextOrderID,
		Symbol:        NormalizeSymbol(symbol),
		Status:        "FILLED",
		ClientOrderID: fmt.Sprintf("mock-%d", m.nextOrderID),
		Side:          side,
		Type:          "MARKET",
		OrigQty:       quantity,
	}, nil
}
