package executor

import (
	"strconv"
	"strings"
)

// DefaultSizePct is the fallback position size fraction when the
// suggestion is absent or unparseable.
const DefaultSizePct = 0.03

// MinNotionalValue is the exchange minimum order value in USDT.
const MinNotionalValue = 5.0

// ParseSizeSuggestion converts a "%"-suffixed suggestion into a
// fraction. Anything else, including bare numbers and parse failures,
// falls back to the default.
func ParseSizeSuggestion(suggestion string, defaultPct float64) float64 {
	s := strings.TrimSpace(suggestion)
	if !strings.HasSuffix(s, "%") {
		return defaultPct
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return defaultPct
	}
	return v / 100
}

// OrderSize computes the USDT spend and the contract quantity for a new
// position. The spend is clamped up to the minimum notional even when
// that exceeds the suggested percentage of balance.
func OrderSize(balance, pct, minNotional float64, leverage int, entryPrice float64) (spend, quantity float64) {
	spend = balance * pct
	if spend < minNotional {
		spend = minNotional
	}
	quantity = (spend * float64(leverage)) / entryPrice
	return spend, quantity
}
