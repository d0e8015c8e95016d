package binance

// Kline represents a single futures candlestick.
type Kline struct {
	OpenTime  int64   `json:"open_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"close_time"`
}

// Ticker24hr holds 24 hour price change statistics for a symbol.
type Ticker24hr struct {
	Symbol             string  `json:"symbol"`
	LastPrice          float64 `json:"lastPrice,string"`
	PriceChangePercent float64 `json:"priceChangePercent,string"`
	HighPrice          float64 `json:"highPrice,string"`
	LowPrice           float64 `json:"lowPrice,string"`
	Volume             float64 `json:"volume,string"`
	QuoteVolume        float64 `json:"quoteVolume,string"`
}

// Balance holds the USDT futures wallet figures.
type Balance struct {
	Total     float64 `json:"total"`
	Available float64 `json:"available"`
}

// PositionSide is the direction of an open position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
	PositionSideFlat  PositionSide = "flat"
)

// Position is the exchange-reported position snapshot for one symbol.
// Contracts is signed: negative for shorts.
type Position struct {
	Symbol        string       `json:"symbol"`
	Side          PositionSide `json:"side"`
	Contracts     float64      `json:"contracts"`
	EntryPrice    float64      `json:"entry_price"`
	UnrealizedPnL float64      `json:"unrealized_pnl"`
	Leverage      int          `json:"leverage"`
}

// Direction derives the position side from the signed contract amount.
func (p Position) Direction() PositionSide {
	switch {
	case p.Contracts > 0:
		return PositionSideLong
	case p.Contracts < 0:
		return PositionSideShort
	default:
		return PositionSideFlat
	}
}

// OrderResponse is the exchange confirmation for a placed order.
type OrderResponse struct {
	OrderID       int64   `json:"orderId"`
	Symbol        string  `json:"symbol"`
	Status        string  `json:"status"`
	ClientOrderID string  `json:"clientOrderId"`
	Side          string  `json:"side"`
	Type          string  `json:"type"`
	OrigQty       float64 `json:"origQty,string"`
	AvgPrice      float64 `json:"avgPrice,string"`
}

// rawPosition matches the /fapi/v2/positionRisk response shape.
type rawPosition struct {
	Symbol           string  `json:"symbol"`
	PositionAmt      float64 `json:"positionAmt,string"`
	EntryPrice       float64 `json:"entryPrice,string"`
	UnRealizedProfit float64 `json:"unRealizedProfit,string"`
	Leverage         int     `json:"leverage,string"`
}

// rawAccountAsset matches an entry of the /fapi/v2/account assets array.
type rawAccountAsset struct {
	Asset            string  `json:"asset"`
	WalletBalance    float64 `json:"walletBalance,string"`
	AvailableBalance float64 `json:"availableBalance,string"`
}

type rawAccountInfo struct {
	Assets []rawAccountAsset `json:"assets"`
}

type rawOpenInterest struct {
	Symbol       string  `json:"symbol"`
	OpenInterest float64 `json:"openInterest,string"`
}

type rawPremiumIndex struct {
	Symbol          string  `json:"symbol"`
	MarkPrice       float64 `json:"markPrice,string"`
	LastFundingRate float64 `json:"lastFundingRate,string"`
}
