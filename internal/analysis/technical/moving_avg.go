// Package technical implements the price-structure signals used by the
// SIP audit: exponential moving averages, six-month HH/HL structure, and
// the per-ticker snapshot that combines them with fundamentals.
package technical

import "math"

// EMA calculates the Exponential Moving Average for the given span.
// The series is seeded with the first value (no SMA warm-up), so the
// output has the same length as the input and ema[0] == data[0].
func EMA(data []float64, span int) []float64 {
	n := len(data)
	if n == 0 || span <= 0 {
		return nil
	}

	ema := make([]float64, n)
	alpha := 2.0 / float64(span+1)

	ema[0] = data[0]
	for i := 1; i < n; i++ {
		ema[i] = alpha*data[i] + (1-alpha)*ema[i-1]
	}

	return ema
}

// EMALatest returns the most recent EMA value, or 0 for empty input.
func EMALatest(data []float64, span int) float64 {
	vals := EMA(data, span)
	if len(vals) == 0 {
		return 0
	}
	return vals[len(vals)-1]
}

// round2 rounds to two decimal places for presentation.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
