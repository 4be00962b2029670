// Package formulas provides technical indicators and return statistics used
// to describe a symbol's recent price action.
package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// CalculateRSI calculates the Relative Strength Index
//
// RSI Formula:
//
//	RSI = 100 - (100 / (1 + RS))
//	where RS = Average Gain / Average Loss over N periods
//
// Returns the current RSI value (0-100) or nil if there is insufficient data.
func CalculateRSI(closes []float64, length int) *float64 {
	if length < 2 || len(closes) < length+1 {
		return nil
	}
	return lastValid(talib.Rsi(closes, length))
}

// CalculateSMA calculates the Simple Moving Average over the last length closes
func CalculateSMA(closes []float64, length int) *float64 {
	if length < 1 || len(closes) < length {
		return nil
	}
	return lastValid(talib.Sma(closes, length))
}

// CalculateEMA calculates the Exponential Moving Average.
// Falls back to the mean of the available closes when there are fewer than length.
func CalculateEMA(closes []float64, length int) *float64 {
	if len(closes) == 0 || length < 1 {
		return nil
	}
	if len(closes) < length {
		m := Mean(closes)
		return &m
	}
	if v := lastValid(talib.Ema(closes, length)); v != nil {
		return v
	}
	m := Mean(closes[len(closes)-length:])
	return &m
}

// BollingerBands holds the latest band values
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// CalculateBollingerBands calculates Bollinger Bands (SMA +/- stdDevs)
func CalculateBollingerBands(closes []float64, length int, stdDevs float64) *BollingerBands {
	if length < 2 || len(closes) < length {
		return nil
	}
	upper, middle, lower := talib.BBands(closes, length, stdDevs, stdDevs, talib.SMA)
	u, m, l := lastValid(upper), lastValid(middle), lastValid(lower)
	if u == nil || m == nil || l == nil {
		return nil
	}
	return &BollingerBands{Upper: *u, Middle: *m, Lower: *l}
}

// MACD holds the latest MACD line, signal line and histogram
type MACD struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// CalculateMACD calculates MACD with the standard 12/26/9 periods.
// Needs at least 34 closes.
func CalculateMACD(closes []float64) *MACD {
	const fast, slow, signal = 12, 26, 9
	if len(closes) < slow+signal-1 {
		return nil
	}
	line, sig, hist := talib.Macd(closes, fast, slow, signal)
	l, s, h := lastValid(line), lastValid(sig), lastValid(hist)
	if l == nil || s == nil || h == nil {
		return nil
	}
	return &MACD{Line: *l, Signal: *s, Histogram: *h}
}

func lastValid(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
