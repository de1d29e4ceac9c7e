package forecast

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exampleSeries = []float64{10, 12, 11, 13, 12, 14, 13, 15, 14, 16}

func TestARIMATrainRejectsShortSeries(t *testing.T) {
	for n := 0; n < MinTrainingPoints; n++ {
		series := make([]float64, n)
		_, err := NewARIMA(1, 1, 1).Train(series)

		var insufficient *InsufficientDataError
		require.True(t, errors.As(err, &insufficient), "length %d should be rejected", n)
		assert.Equal(t, MinTrainingPoints, insufficient.Required)
		assert.Equal(t, n, insufficient.Got)
	}
}

func TestARIMAPredictBeforeTrain(t *testing.T) {
	model := NewARIMA(1, 1, 1)
	assert.False(t, model.IsTrained())

	_, err := model.Predict(3)

	var notTrained *NotTrainedError
	require.True(t, errors.As(err, &notTrained))
	assert.Equal(t, "arima(1,1,1)", notTrained.Model)
}

func TestARIMAFailedRetrainClearsModel(t *testing.T) {
	model, err := NewARIMA(1, 1, 1).Train(exampleSeries)
	require.NoError(t, err)
	require.True(t, model.IsTrained())

	_, err = model.Train([]float64{1, 2, 3})
	var insufficient *InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.False(t, model.IsTrained())

	_, err = model.Predict(3)
	var notTrained *NotTrainedError
	assert.True(t, errors.As(err, &notTrained))
}

func TestARIMACoefficientShapes(t *testing.T) {
	model, err := NewARIMA(3, 1, 2).Train(exampleSeries)
	require.NoError(t, err)

	coefs := model.Coefficients()
	assert.Len(t, coefs.Phi, 3)
	assert.Len(t, coefs.Theta, 2)
	assert.InDelta(t, 0.3, coefs.Theta[0], 1e-12)
	assert.InDelta(t, 0.15, coefs.Theta[1], 1e-12)
}

func TestARIMAExampleForecast(t *testing.T) {
	model, err := NewARIMA(1, 1, 1).Train(exampleSeries)
	require.NoError(t, err)

	predictions, err := model.Predict(7)
	require.NoError(t, err)
	require.Len(t, predictions, 7)
	for i, p := range predictions {
		assert.GreaterOrEqual(t, p, 0.0, "step %d", i)
	}

	// The differenced series alternates, so phi is strongly negative and the
	// first step is clamped.
	assert.Equal(t, 0.0, predictions[0])
	assert.InDelta(t, 1.2, predictions[1], 1e-9)
}

func TestARIMAHandComputedForecast(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	model, err := NewARIMA(1, 0, 0).Train(series)
	require.NoError(t, err)

	predictions, err := model.Predict(2)
	require.NoError(t, err)

	// phi = 0.7, trend = 0.9 per step; the second step builds on the first forecast.
	want := []float64{7.9, 7.33}
	if diff := cmp.Diff(want, predictions, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Predict() mismatch (-want +got):\n%s", diff)
	}
}

func TestARIMATrendOnly(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	model, err := NewARIMA(0, 1, 0).Train(series)
	require.NoError(t, err)

	predictions, err := model.Predict(3)
	require.NoError(t, err)

	want := []float64{0.9, 1.8, 2.7}
	if diff := cmp.Diff(want, predictions, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Predict() mismatch (-want +got):\n%s", diff)
	}
}

func TestARIMAConstantSeriesHasZeroCoefficients(t *testing.T) {
	series := []float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5}

	model, err := NewARIMA(2, 1, 1).Train(series)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0}, model.Coefficients().Phi)

	predictions, err := model.Predict(3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, predictions)
}

func TestARIMAPredictRejectsNonPositiveSteps(t *testing.T) {
	model, err := NewARIMA(1, 1, 1).Train(exampleSeries)
	require.NoError(t, err)

	_, err = model.Predict(0)
	var invalid *InvalidStepsError
	assert.True(t, errors.As(err, &invalid))
}

func TestARIMAPredictIsRepeatable(t *testing.T) {
	model, err := NewARIMA(2, 1, 1).Train([]float64{3, 8, 4, 9, 5, 12, 7, 13, 6, 14, 9, 15})
	require.NoError(t, err)

	first, err := model.Predict(10)
	require.NoError(t, err)
	second, err := model.Predict(10)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestARIMATrainCopiesInput(t *testing.T) {
	series := append([]float64(nil), exampleSeries...)
	model, err := NewARIMA(1, 1, 1).Train(series)
	require.NoError(t, err)

	before, err := model.Predict(3)
	require.NoError(t, err)

	series[len(series)-1] = 1000

	after, err := model.Predict(3)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
