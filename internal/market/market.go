// Package market assembles the per-symbol technical snapshot the
// decision cycle feeds to the recommendation provider, plus the account
// state and the multi-symbol pricing fan-out served by the API.
package market

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"crypto-ai-trader/internal/binance"
	"crypto-ai-trader/internal/cache"
	"crypto-ai-trader/internal/indicator"
)

const (
	shortInterval = "1m"
	shortLimit    = 100
	longInterval  = "4h"
	longLimit     = 50

	// CacheTTL bounds the staleness of cached snapshots and prices.
	CacheTTL = 30 * time.Second

	// trailing window length for the rolling indicator series
	seriesKeep = 10

	// bounded concurrency for the pricing fan-outs
	fullStateConcurrency   = 3
	simplePriceConcurrency = 5
)

// OpenInterestInfo carries the latest open interest and its average.
// The average is the latest value for now; history is not tracked.
type OpenInterestInfo struct {
	Latest  float64 `json:"latest"`
	Average float64 `json:"average"`
}

// VolumeInfo compares current 24h volume against recent candle volume.
type VolumeInfo struct {
	Current float64 `json:"current"`
	Average float64 `json:"average"`
}

// IntradaySeries holds the trailing short-timeframe series for trend
// context, oldest to latest.
type IntradaySeries struct {
	MidPrices   []float64 `json:"mid_prices"`
	EMA20Series []float64 `json:"ema20_series"`
	MACDSeries  []float64 `json:"macd_series"`
	RSI7Series  []float64 `json:"rsi7_series"`
	RSI14Series []float64 `json:"rsi14_series"`
}

// LongTermContext holds the trailing long-timeframe series.
type LongTermContext struct {
	EMA20Series []float64 `json:"ema20_4h_series"`
	MACDSeries  []float64 `json:"macd_4h_series"`
	RSI14Series []float64 `json:"rsi14_4h_series"`
}

// Snapshot is the immutable market state assembled once per decision
// cycle. Field names mirror the served JSON payload.
type Snapshot struct {
	CurrentPrice float64              `json:"current_price"`
	EMA20Short   float64              `json:"current_ema20_1m"`
	EMA20Long    float64              `json:"current_ema20_4h"`
	EMA50Long    float64              `json:"current_ema50_4h"`
	MACDShort    indicator.MACDResult `json:"current_macd_1m"`
	MACDLong     indicator.MACDResult `json:"current_macd_4h"`
	RSI7         float64              `json:"current_rsi7"`
	RSI14Short   float64              `json:"current_rsi14_1m"`
	RSI14Long    float64              `json:"current_rsi14_4h"`
	ATR3Long     float64              `json:"atr3_4h"`
	ATR14Long    float64              `json:"atr14_4h"`
	OpenInterest OpenInterestInfo     `json:"open_interest"`
	FundingRate  float64              `json:"funding_rate"`
	Volume       VolumeInfo           `json:"volume"`
	Intraday     IntradaySeries       `json:"intraday"`
	LongTerm     LongTermContext      `json:"long_term_context"`
}

// AccountState is the exchange-reported account snapshot with the
// cumulative return against the configured initial capital.
type AccountState struct {
	TotalCashValue     float64            `json:"totalCashValue"`
	AvailableCash      float64            `json:"availableCash"`
	CurrentTotalReturn float64            `json:"currentTotalReturn"`
	Positions          []binance.Position `json:"positions"`
}

// Service fetches exchange data and builds snapshots, with a short TTL
// cache in front of the external calls.
type Service struct {
	exchange       binance.Exchange
	cache          *cache.TTLCache
	logger         zerolog.Logger
	initialCapital float64
}

func NewService(exchange binance.Exchange, ttlCache *cache.TTLCache, initialCapital float64, logger zerolog.Logger) *Service {
	return &Service{
		exchange:       exchange,
		cache:          ttlCache,
		logger:         logger.With().Str("component", "market").Logger(),
		initialCapital: initialCapital,
	}
}

// GetCurrentPrice returns the latest price for a symbol, cached briefly.
func (s *Service) GetCurrentPrice(symbol string) (float64, error) {
	cacheKey := "current_price_" + symbol
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(float64), nil
	}

	price, err := s.exchange.GetCurrentPrice(symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch current price for %s: %w", symbol, err)
	}

	s.cache.Set(cacheKey, price)
	return price, nil
}

// GetSnapshot assembles the full market state for a symbol, cached
// briefly. Insufficient history degrades to documented defaults instead
// of failing; open interest and funding rate are best-effort.
func (s *Service) GetSnapshot(symbol string) (*Snapshot, error) {
	cacheKey := "market_state_" + symbol
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(*Snapshot), nil
	}

	ticker, err := s.exchange.Get24hrTicker(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticker for %s: %w", symbol, err)
	}

	klinesShort, err := s.exchange.GetKlines(symbol, shortInterval, shortLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s klines for %s: %w", shortInterval, symbol, err)
	}
	klinesLong, err := s.exchange.GetKlines(symbol, longInterval, longLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s klines for %s: %w", longInterval, symbol, err)
	}

	closesShort := closes(klinesShort)
	closesLong := closes(klinesLong)
	candlesLong := toCandles(klinesLong)

	currentPrice := ticker.LastPrice
	if currentPrice == 0 && len(closesShort) > 0 {
		currentPrice = closesShort[len(closesShort)-1]
	}

	snap := &Snapshot{
		CurrentPrice: currentPrice,
		EMA20Short:   indicator.EMA(closesShort, 20),
		EMA20Long:    currentPrice,
		EMA50Long:    currentPrice,
		MACDShort:    indicator.MACD(closesShort, 12, 26, 9),
		RSI7:         indicator.RSI(closesShort, 7),
		RSI14Short:   indicator.RSI(closesShort, 14),
		RSI14Long:    50,
		ATR3Long:     indicator.ATR(candlesLong, 3),
		ATR14Long:    indicator.ATR(candlesLong, 14),
	}
	if len(closesLong) >= 20 {
		snap.EMA20Long = indicator.EMA(closesLong, 20)
	}
	if len(closesLong) >= 50 {
		snap.EMA50Long = indicator.EMA(closesLong, 50)
	}
	if len(closesLong) >= 26 {
		snap.MACDLong = indicator.MACD(closesLong, 12, 26, 9)
	}
	if len(closesLong) >= 14 {
		snap.RSI14Long = indicator.RSI(closesLong, 14)
	}

	// Open interest and funding rate are enrichments, never fatal.
	openInterest, err := s.exchange.GetOpenInterest(symbol)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("could not fetch open interest")
		openInterest = 0
	}
	fundingRate, err := s.exchange.GetFundingRate(symbol)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("could not fetch funding rate")
		fundingRate = 0
	}
	snap.OpenInterest = OpenInterestInfo{Latest: openInterest, Average: openInterest}
	snap.FundingRate = fundingRate

	snap.Volume = VolumeInfo{Current: ticker.Volume, Average: ticker.Volume}
	if len(klinesLong) >= seriesKeep {
		var total float64
		for _, k := range klinesLong[len(klinesLong)-seriesKeep:] {
			total += k.Volume
		}
		snap.Volume.Average = total / float64(seriesKeep)
	}

	snap.Intraday = IntradaySeries{
		MidPrices:   lastCloses(closesShort, seriesKeep),
		EMA20Series: indicator.EMASeries(closesShort, 20, seriesKeep),
		MACDSeries:  indicator.MACDSeries(closesShort, 12, 26, 9, seriesKeep),
		RSI7Series:  indicator.RSISeries(closesShort, 7, seriesKeep),
		RSI14Series: indicator.RSISeries(closesShort, 14, seriesKeep),
	}
	snap.LongTerm = LongTermContext{
		EMA20Series: indicator.EMASeries(closesLong, 20, seriesKeep),
		MACDSeries:  indicator.MACDSeries(closesLong, 12, 26, 9, seriesKeep),
		RSI14Series: indicator.RSISeries(closesLong, 14, seriesKeep),
	}

	s.cache.Set(cacheKey, snap)
	return snap, nil
}

// GetAccountState fetches balances and positions and derives the return
// against the initial-capital baseline. Position fetch failures degrade
// to an empty list.
func (s *Service) GetAccountState(symbol string) (*AccountState, error) {
	balance, err := s.exchange.GetBalance()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balance: %w", err)
	}

	var totalReturn float64
	if s.initialCapital > 0 {
		totalReturn = (balance.Total - s.initialCapital) / s.initialCapital
	}

	positions := []binance.Position{}
	pos, err := s.exchange.GetPosition(symbol)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("could not fetch positions")
	} else if pos.Contracts != 0 {
		positions = append(positions, *pos)
	}

	return &AccountState{
		TotalCashValue:     balance.Total,
		AvailableCash:      balance.Available,
		CurrentTotalReturn: totalReturn,
		Positions:          positions,
	}, nil
}

// GetMarketStates fetches the full snapshot for every symbol
// concurrently, bounded to respect upstream rate limits. Per-symbol
// failures become error entries, never an aborted batch. Keys are the
// lowercase base asset names.
func (s *Service) GetMarketStates(symbols []string) map[string]interface{} {
	return s.fanOut(symbols, fullStateConcurrency, func(symbol string) (interface{}, error) {
		return s.GetSnapshot(symbol)
	})
}

// GetSimplePrices fetches only the current price for every symbol,
// concurrently with a higher bound since the calls are cheap.
func (s *Service) GetSimplePrices(symbols []string) map[string]interface{} {
	return s.fanOut(symbols, simplePriceConcurrency, func(symbol string) (interface{}, error) {
		price, err := s.GetCurrentPrice(symbol)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"current_price": price}, nil
	})
}

func (s *Service) fanOut(symbols []string, limit int, fetch func(string) (interface{}, error)) map[string]interface{} {
	results := make(map[string]interface{}, len(symbols))
	var mu sync.Mutex

	g := &errgroup.Group{}
	g.SetLimit(limit)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			key := resultKey(symbol)
			value, err := fetch(symbol)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error().Err(err).Str("symbol", symbol).Msg("pricing fetch failed")
				results[key] = map[string]interface{}{
					"current_price": 0,
					"error":         err.Error(),
				}
				return nil
			}
			results[key] = value
			return nil
		})
	}
	g.Wait()

	return results
}

// resultKey maps "BTCUSDT" to "btc" for the served pricing payload.
func resultKey(symbol string) string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	return strings.TrimSuffix(s, "usdt")
}

func closes(klines []binance.Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Close
	}
	return out
}

func lastCloses(values []float64, n int) []float64 {
	if len(values) <= n {
		return append([]float64{}, values...)
	}
	return append([]float64{}, values[len(values)-n:]...)
}

func toCandles(klines []binance.Kline) []indicator.Candle {
	out := make([]indicator.Candle, len(klines))
	for i, k := range klines {
		out[i] = indicator.Candle{
			Open:   k.Open,
			High:   k.High,
			Low:    k.Low,
			Close:  k.Close,
			Volume: k.Volume,
		}
	}
	return out
}
