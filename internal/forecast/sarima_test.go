package forecast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weeklyPattern(weeks int, week []float64) []float64 {
	series := make([]float64, 0, weeks*len(week))
	for w := 0; w < weeks; w++ {
		series = append(series, week...)
	}
	return series
}

func linearSeries(n int) []float64 {
	series := make([]float64, n)
	for i := range series {
		series[i] = float64(i + 1)
	}
	return series
}

func TestSARIMADetectSeasonality(t *testing.T) {
	model := NewSARIMA(1, 1, 1, 1, 0, 1, 7)

	tests := []struct {
		name     string
		series   []float64
		expected bool
	}{
		{
			name:     "repeating week is seasonal",
			series:   weeklyPattern(4, []float64{10, 20, 30, 40, 50, 60, 70}),
			expected: true,
		},
		{
			name:     "steady growth is not seasonal",
			series:   linearSeries(28),
			expected: false,
		},
		{
			name:     "constant series is not seasonal",
			series:   weeklyPattern(3, []float64{5, 5, 5, 5, 5, 5, 5}),
			expected: false,
		},
		{
			name:     "shorter than two periods",
			series:   []float64{10, 20, 30, 40, 50, 60, 70, 10, 20, 30, 40, 50, 60},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, model.DetectSeasonality(tt.series))
		})
	}
}

func TestSARIMAShortSeriesMatchesBaseModel(t *testing.T) {
	series := []float64{12, 15, 11, 18, 14, 16, 13, 19, 17, 15, 20, 18}

	seasonal, err := NewSARIMA(1, 1, 1, 1, 0, 1, 7).Train(series)
	require.NoError(t, err)
	assert.Equal(t, KindBase, seasonal.Kind())
	assert.False(t, seasonal.SeasonalityDetected())

	base, err := NewARIMA(1, 1, 1).Train(series)
	require.NoError(t, err)

	got, err := seasonal.Predict(9)
	require.NoError(t, err)
	want, err := base.Predict(9)
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Equal(t, base.Coefficients(), seasonal.Coefficients())
}

func TestSARIMAShortSeriesPropagatesInsufficientData(t *testing.T) {
	_, err := NewSARIMA(1, 1, 1, 1, 0, 1, 7).Train([]float64{1, 2, 3, 4, 5})

	var insufficient *InsufficientDataError
	assert.True(t, errors.As(err, &insufficient))
}

func TestSARIMASeasonalAdjustment(t *testing.T) {
	week := []float64{10, 20, 30, 40, 50, 60, 70}
	series := weeklyPattern(4, week)

	model, err := NewSARIMA(1, 1, 1, 1, 0, 1, 7).Train(series)
	require.NoError(t, err)
	require.Equal(t, KindSeasonal, model.Kind())

	predictions, err := model.Predict(8)
	require.NoError(t, err)
	require.Len(t, predictions, 8)

	// Seasonal differences are all zero, so phi is zero and only the trend
	// (60/28 per step) remains before the seasonal rescale.
	assert.InDelta(t, 1.59, predictions[0], 1e-9)
	assert.InDelta(t, 3.37, predictions[1], 1e-9)
	assert.InDelta(t, 15.0, predictions[6], 1e-9)

	for i, p := range predictions {
		assert.GreaterOrEqual(t, p, 0.0, "step %d", i)
		assert.InDelta(t, p, roundCents(p), 1e-12, "step %d should be rounded to cents", i)
	}
}

func TestSARIMAZeroLatestValueUsesNeutralFactor(t *testing.T) {
	series := weeklyPattern(4, []float64{5, 10, 15, 20, 25, 30, 0})

	model, err := NewSARIMA(1, 1, 1, 1, 0, 1, 7).Train(series)
	require.NoError(t, err)
	require.True(t, model.SeasonalityDetected())

	predictions, err := model.Predict(5)
	require.NoError(t, err)
	for _, p := range predictions {
		assert.Equal(t, 0.0, p)
	}
}

func TestSARIMANonSeasonalLongSeriesUsesBasePass(t *testing.T) {
	series := linearSeries(30)

	seasonal, err := NewSARIMA(1, 1, 1, 1, 0, 1, 7).Train(series)
	require.NoError(t, err)
	assert.Equal(t, KindBase, seasonal.Kind())

	base, err := NewARIMA(1, 1, 1).Train(series)
	require.NoError(t, err)

	got, err := seasonal.Predict(4)
	require.NoError(t, err)
	want, err := base.Predict(4)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSARIMAPredictBeforeTrain(t *testing.T) {
	_, err := NewSARIMA(1, 1, 1, 1, 0, 1, 7).Predict(2)

	var notTrained *NotTrainedError
	require.True(t, errors.As(err, &notTrained))
	assert.Equal(t, "sarima(1,1,1)(1,0,1,7)", notTrained.Model)
}

func TestSARIMADefaultsPeriod(t *testing.T) {
	model := NewSARIMA(1, 1, 1, 1, 0, 1, 0)
	assert.Equal(t, DefaultSeasonalPeriod, model.SeasonalOrder().S)
}
