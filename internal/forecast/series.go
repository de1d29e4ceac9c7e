package forecast

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Difference applies first differencing order times. Each pass shortens the
// series by one, so an order at or beyond the series length yields an empty
// slice rather than an error.
func Difference(series []float64, order int) []float64 {
	current := append([]float64(nil), series...)
	for d := 0; d < order; d++ {
		if len(current) <= 1 {
			return []float64{}
		}
		next := make([]float64, len(current)-1)
		for i := 1; i < len(current); i++ {
			next[i-1] = current[i] - current[i-1]
		}
		current = next
	}
	return current
}

// SeasonalDifference returns x[i] - x[i-period] for every i from period to the end.
func SeasonalDifference(series []float64, period int) []float64 {
	if period <= 0 || len(series) <= period {
		return []float64{}
	}
	out := make([]float64, len(series)-period)
	for i := period; i < len(series); i++ {
		out[i-period] = series[i] - series[i-period]
	}
	return out
}

// Autocorrelation returns the lag autocorrelation of the series.
// A constant series (or a lag past the end) yields 0 instead of NaN.
func Autocorrelation(series []float64, lag int) float64 {
	n := len(series)
	if lag < 0 || lag >= n {
		return 0
	}

	mean := Mean(series)
	numerator := 0.0
	for i := lag; i < n; i++ {
		numerator += (series[i] - mean) * (series[i-lag] - mean)
	}

	denominator := 0.0
	for _, v := range series {
		denominator += (v - mean) * (v - mean)
	}
	if denominator == 0 {
		return 0
	}

	return numerator / denominator
}

// Mean is the arithmetic mean, 0 for an empty series.
func Mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return stat.Mean(series, nil)
}

// Variance is the population variance (divides by N).
func Variance(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return stat.PopVariance(series, nil)
}

// StdDev is the population standard deviation.
func StdDev(series []float64) float64 {
	return math.Sqrt(Variance(series))
}

// trailingMean averages the last window values, or every value when the
// series is shorter than the window.
func trailingMean(series []float64, window int) float64 {
	if len(series) == 0 {
		return 0
	}
	if window > len(series) {
		window = len(series)
	}
	return floats.Sum(series[len(series)-window:]) / float64(window)
}

func clampNonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
