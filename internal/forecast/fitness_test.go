package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBacktestRanksModels(t *testing.T) {
	engine := newTestEngine(t, 7)
	series := weeklyPattern(5, []float64{12, 14, 13, 18, 25, 30, 16})

	results, err := Backtest(engine, series, 7)
	require.NoError(t, err)
	require.Len(t, results, len(engine.Models()))

	seen := make(map[ModelName]bool)
	for i, r := range results {
		seen[r.Model] = true
		assert.Equal(t, 7, r.Holdout)
		assert.GreaterOrEqual(t, r.MAE, 0.0)
		assert.GreaterOrEqual(t, r.FitnessScore, 0.0)
		assert.LessOrEqual(t, r.FitnessScore, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].FitnessScore, r.FitnessScore)
		}
	}
	for _, m := range engine.Models() {
		assert.True(t, seen[m], "missing model %s", m)
	}
}

func TestBacktestRejectsBadHoldout(t *testing.T) {
	engine := newTestEngine(t, 7)

	_, err := Backtest(engine, exampleSeries, 0)
	assert.Error(t, err)

	_, err = Backtest(engine, exampleSeries, len(exampleSeries))
	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, len(exampleSeries)+1, insufficient.Required)
}

func TestScoreForecast(t *testing.T) {
	perfect := scoreForecast([]float64{4, 8}, []float64{4, 8})
	assert.Equal(t, 0.0, perfect.MAE)
	assert.Equal(t, 0.0, perfect.MAPE)
	assert.InDelta(t, 1.0, perfect.FitnessScore, 1e-12)

	off := scoreForecast([]float64{10, 0}, []float64{5, 1})
	assert.InDelta(t, 3.0, off.MAE, 1e-12)
	// Only the non-zero actual contributes to MAPE.
	assert.InDelta(t, 50.0, off.MAPE, 1e-12)
	assert.Less(t, off.FitnessScore, 1.0)
}
