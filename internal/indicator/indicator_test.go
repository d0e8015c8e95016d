package indicator

import (
	"math"
	"testing"
)

const tolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func constantSeries(value float64, n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = value
	}
	return s
}

func risingSeries(start, step float64, n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = start + step*float64(i)
	}
	return s
}

func TestEMA(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		period int
		want   float64
	}{
		{"empty series", nil, 20, 0},
		{"shorter than period returns last", []float64{1.0, 2.0, 3.0}, 20, 3.0},
		{"exact period returns simple average", []float64{2.0, 4.0, 6.0}, 3, 4.0},
		{"constant series equals the constant", constantSeries(42.5, 50), 20, 42.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EMA(tt.values, tt.period)
			if !almostEqual(got, tt.want) {
				t.Errorf("EMA() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEMARecursion(t *testing.T) {
	// One step past the seed: ema = (price - seed)*k + seed.
	values := []float64{1.0, 2.0, 3.0, 10.0}
	seed := 2.0
	k := 2.0 / 4.0
	want := (10.0-seed)*k + seed

	if got := EMA(values, 3); !almostEqual(got, want) {
		t.Errorf("EMA() = %v, want %v", got, want)
	}
}

func TestMACD(t *testing.T) {
	t.Run("insufficient history returns zero triple", func(t *testing.T) {
		got := MACD(constantSeries(100, 25), 12, 26, 9)
		if got.MACD != 0 || got.Signal != 0 || got.Histogram != 0 {
			t.Errorf("MACD() = %+v, want zero triple", got)
		}
	})

	t.Run("constant series yields zero lines", func(t *testing.T) {
		got := MACD(constantSeries(100, 60), 12, 26, 9)
		if !almostEqual(got.MACD, 0) || !almostEqual(got.Signal, 0) || !almostEqual(got.Histogram, 0) {
			t.Errorf("MACD() = %+v, want zeros", got)
		}
	})

	t.Run("rising series has positive macd line", func(t *testing.T) {
		got := MACD(risingSeries(100, 1, 60), 12, 26, 9)
		if got.MACD <= 0 {
			t.Errorf("MACD line = %v, want > 0 for a rising series", got.MACD)
		}
	})
}

func TestMACDHistogramIdentity(t *testing.T) {
	seriesSet := [][]float64{
		risingSeries(50, 0.5, 40),
		risingSeries(200, -1.5, 80),
		constantSeries(10, 30),
	}

	for _, values := range seriesSet {
		got := MACD(values, 12, 26, 9)
		if !almostEqual(got.Histogram, got.MACD-got.Signal) {
			t.Errorf("histogram %v != macd %v - signal %v", got.Histogram, got.MACD, got.Signal)
		}
	}
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		period int
		want   float64
	}{
		{"insufficient history is neutral", risingSeries(1, 1, 10), 14, 50},
		{"all gains pegs at 100", risingSeries(1, 1, 30), 14, 100},
		{"constant series has zero loss", constantSeries(5, 30), 14, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RSI(tt.values, tt.period)
			if !almostEqual(got, tt.want) {
				t.Errorf("RSI() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRSIBounds(t *testing.T) {
	// Alternating gains and losses must stay strictly inside [0, 100].
	values := make([]float64, 60)
	price := 100.0
	for i := range values {
		if i%2 == 0 {
			price += 2.0
		} else {
			price -= 1.0
		}
		values[i] = price
	}

	got := RSI(values, 14)
	if got < 0 || got > 100 {
		t.Fatalf("RSI() = %v, out of [0, 100]", got)
	}
	if got == 0 || got == 100 || got == 50 {
		t.Errorf("RSI() = %v, expected an interior value for mixed deltas", got)
	}
}

func TestATR(t *testing.T) {
	t.Run("insufficient candles returns zero", func(t *testing.T) {
		candles := []Candle{{High: 10, Low: 9, Close: 9.5}}
		if got := ATR(candles, 3); got != 0 {
			t.Errorf("ATR() = %v, want 0", got)
		}
	})

	t.Run("constant range", func(t *testing.T) {
		candles := make([]Candle, 20)
		for i := range candles {
			candles[i] = Candle{High: 101, Low: 99, Close: 100}
		}
		// high-low = 2 dominates each true range.
		if got := ATR(candles, 14); !almostEqual(got, 2.0) {
			t.Errorf("ATR() = %v, want 2.0", got)
		}
	})

	t.Run("gap dominates true range", func(t *testing.T) {
		candles := []Candle{
			{High: 100, Low: 100, Close: 100},
			{High: 110, Low: 109, Close: 110},
			{High: 110, Low: 109, Close: 109},
		}
		// TR1 = max(1, |110-100|, |109-100|) = 10, TR2 = max(1, 0, 1) = 1.
		if got := ATR(candles, 2); !almostEqual(got, 5.5) {
			t.Errorf("ATR() = %v, want 5.5", got)
		}
	})

	t.Run("never negative", func(t *testing.T) {
		candles := make([]Candle, 30)
		price := 50.0
		for i := range candles {
			price -= 0.5
			candles[i] = Candle{High: price + 0.2, Low: price - 0.2, Close: price}
		}
		if got := ATR(candles, 14); got < 0 {
			t.Errorf("ATR() = %v, want >= 0", got)
		}
	})
}

func TestRollingSeries(t *testing.T) {
	values := risingSeries(100, 1, 40)

	t.Run("caps at requested length", func(t *testing.T) {
		if got := EMASeries(values, 20, 10); len(got) != 10 {
			t.Fatalf("EMASeries length = %d, want 10", len(got))
		}
		if got := RSISeries(values, 7, 10); len(got) != 10 {
			t.Fatalf("RSISeries length = %d, want 10", len(got))
		}
		if got := MACDSeries(values, 12, 26, 9, 10); len(got) != 10 {
			t.Fatalf("MACDSeries length = %d, want 10", len(got))
		}
	})

	t.Run("short input yields empty series", func(t *testing.T) {
		if got := EMASeries(values[:4], 20, 10); len(got) != 0 {
			t.Fatalf("EMASeries length = %d, want 0", len(got))
		}
		if got := MACDSeries(values[:10], 12, 26, 9, 10); len(got) != 0 {
			t.Fatalf("MACDSeries length = %d, want 0", len(got))
		}
	})

	t.Run("partial warm-up keeps available prefixes", func(t *testing.T) {
		// 25 values with period 20 yields prefixes of length 20..25.
		if got := EMASeries(values[:25], 20, 10); len(got) != 6 {
			t.Fatalf("EMASeries length = %d, want 6", len(got))
		}
	})

	t.Run("matches naive prefix recomputation", func(t *testing.T) {
		series := EMASeries(values, 20, 10)
		for i, got := range series {
			prefixLen := len(values) - len(series) + i + 1
			want := EMA(values[:prefixLen], 20)
			if !almostEqual(got, want) {
				t.Errorf("EMASeries[%d] = %v, want %v", i, got, want)
			}
		}
	})

	t.Run("last entry equals point calculation", func(t *testing.T) {
		rsiSeries := RSISeries(values, 14, 10)
		if got, want := rsiSeries[len(rsiSeries)-1], RSI(values, 14); !almostEqual(got, want) {
			t.Errorf("RSISeries last = %v, want %v", got, want)
		}
		macdSeries := MACDSeries(values, 12, 26, 9, 10)
		if got, want := macdSeries[len(macdSeries)-1], MACD(values, 12, 26, 9).MACD; !almostEqual(got, want) {
			t.Errorf("MACDSeries last = %v, want %v", got, want)
		}
	})
}
