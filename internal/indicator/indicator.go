// Package indicator implements the technical indicators used to build
// market snapshots: EMA, MACD, RSI and ATR, plus short rolling series
// for trend context. All functions are pure and operate on chronological
// series, oldest first.
package indicator

import "math"

// Candle is the OHLCV bar the indicators consume.
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// MACDResult holds the MACD line, signal line and histogram values.
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// EMA computes the exponential moving average of the series.
// With fewer values than the period it returns the last value,
// or 0 for an empty series.
func EMA(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(values) < period {
		return values[len(values)-1]
	}

	ema := sum(values[:period]) / float64(period)
	multiplier := 2.0 / float64(period+1)
	for _, v := range values[period:] {
		ema = (v-ema)*multiplier + ema
	}
	return ema
}

// emaSequence returns an EMA value for every index of the input. Indexes
// before the warm-up completes carry the seed simple average so the
// sequence stays aligned with the input; the recursion starts on the last
// warm-up index, which the seed already includes. Requires
// len(values) >= period.
func emaSequence(values []float64, period int) []float64 {
	seed := sum(values[:period]) / float64(period)
	multiplier := 2.0 / float64(period+1)

	seq := make([]float64, len(values))
	ema := seed
	for i, v := range values {
		if i < period-1 {
			seq[i] = seed
			continue
		}
		ema = (v-ema)*multiplier + ema
		seq[i] = ema
	}
	return seq
}

// MACD computes the MACD triple over the series. With fewer values than
// the slow period it returns a zero triple. The signal line is an EMA
// over the trailing signal-period slice of the MACD line, seeded by its
// simple average and advanced across the rest of the slice.
func MACD(values []float64, fast, slow, signal int) MACDResult {
	if len(values) < slow {
		return MACDResult{}
	}

	fastSeq := emaSequence(values, fast)
	slowSeq := emaSequence(values, slow)

	macdLine := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastSeq[i] - slowSeq[i]
	}

	tail := macdLine
	if len(tail) > signal {
		tail = tail[len(tail)-signal:]
	}
	var seed float64
	if len(macdLine) >= signal {
		seed = sum(tail) / float64(signal)
	}
	multiplier := 2.0 / float64(signal+1)
	signalVal := seed
	ema := seed
	for i, m := range tail {
		if i == 0 {
			continue
		}
		ema = (m-ema)*multiplier + ema
		signalVal = ema
	}

	macdVal := macdLine[len(macdLine)-1]
	return MACDResult{
		MACD:      macdVal,
		Signal:    signalVal,
		Histogram: macdVal - signalVal,
	}
}

// RSI computes the relative strength index with Wilder smoothing.
// Returns the neutral 50 with insufficient history and 100 when the
// average loss is zero.
func RSI(values []float64, period int) float64 {
	if len(values) < period+1 {
		return 50
	}

	gains := make([]float64, 0, len(values)-1)
	losses := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains = append(gains, delta)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -delta)
		}
	}

	avgGain := sum(gains[:period]) / float64(period)
	avgLoss := sum(losses[:period]) / float64(period)
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ATR computes the average true range as the simple mean of the last
// period true ranges. Returns 0 with fewer than period+1 candles.
func ATR(candles []Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}

	trueRanges := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prevClose := candles[i-1].Close
		tr := math.Max(candles[i].High-candles[i].Low,
			math.Max(math.Abs(candles[i].High-prevClose), math.Abs(candles[i].Low-prevClose)))
		trueRanges = append(trueRanges, tr)
	}

	window := trueRanges[len(trueRanges)-period:]
	return sum(window) / float64(period)
}

// EMASeries recomputes the EMA over every growing prefix of the series,
// starting once a full period is available, and returns the last keep
// values. Quadratic by construction, which is fine for the capped series
// lengths the assembler feeds in. Empty when the series is shorter than
// the period.
func EMASeries(values []float64, period, keep int) []float64 {
	if len(values) < period {
		return []float64{}
	}
	series := make([]float64, 0, len(values)-period+1)
	for i := period; i <= len(values); i++ {
		series = append(series, EMA(values[:i], period))
	}
	return lastN(series, keep)
}

// MACDSeries returns the last keep MACD-line values, one per prefix from
// the slow period onward. Empty when the series is shorter than slow.
func MACDSeries(values []float64, fast, slow, signal, keep int) []float64 {
	if len(values) < slow {
		return []float64{}
	}
	series := make([]float64, 0, len(values)-slow+1)
	for i := slow; i <= len(values); i++ {
		series = append(series, MACD(values[:i], fast, slow, signal).MACD)
	}
	return lastN(series, keep)
}

// RSISeries returns the last keep RSI values, one per prefix from the
// period onward. Empty when the series is shorter than the period.
func RSISeries(values []float64, period, keep int) []float64 {
	if len(values) < period {
		return []float64{}
	}
	series := make([]float64, 0, len(values)-period+1)
	for i := period; i <= len(values); i++ {
		series = append(series, RSI(values[:i], period))
	}
	return lastN(series, keep)
}

func lastN(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
