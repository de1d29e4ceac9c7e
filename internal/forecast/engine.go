package forecast

import (
	"math"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

// ModelName identifies a forecasting strategy.
type ModelName string

const (
	ModelAuto   ModelName = "auto"
	ModelMA7    ModelName = "ma7"
	ModelSES    ModelName = "ses"
	ModelARIMA  ModelName = "arima"
	ModelSARIMA ModelName = "sarima"
)

const (
	movingAverageWindow = 7
	sesAlpha            = 0.3
	confidenceZ         = 1.96
)

// ConfidenceInterval bounds a single step's point forecast.
type ConfidenceInterval struct {
	Forecast float64 `json:"forecast"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
}

// ForecastResult is what the engine hands back to callers.
type ForecastResult struct {
	Model               string               `json:"model"`
	Predictions         []float64            `json:"predictions"`
	ConfidenceIntervals []ConfidenceInterval `json:"confidence_intervals"`
	Degraded            bool                 `json:"degraded,omitempty"`
}

// Clone returns a copy that shares no slices with r.
func (r *ForecastResult) Clone() *ForecastResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Predictions = slices.Clone(r.Predictions)
	out.ConfidenceIntervals = slices.Clone(r.ConfidenceIntervals)
	return &out
}

// EngineConfig tunes the engine's model construction.
type EngineConfig struct {
	SeasonalPeriod int
}

// DefaultEngineConfig returns the weekly-seasonality configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{SeasonalPeriod: DefaultSeasonalPeriod}
}

// strategy forecasts steps values; degraded reports that a fallback ran.
type strategy func(series []float64, steps int) (predictions []float64, degraded bool)

// Engine picks a forecasting strategy for a series and wraps its output in
// confidence intervals. The strategy table is fixed at construction, so an
// Engine is safe for concurrent use.
type Engine struct {
	strategies map[ModelName]strategy
	period     int
	logger     *logrus.Logger
}

// NewEngine creates a forecasting engine.
func NewEngine(cfg EngineConfig, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.SeasonalPeriod <= 0 {
		cfg.SeasonalPeriod = DefaultSeasonalPeriod
	}

	e := &Engine{
		period: cfg.SeasonalPeriod,
		logger: logger,
	}
	e.strategies = map[ModelName]strategy{
		ModelMA7:    e.repeat(movingAverageForecast),
		ModelSES:    e.repeat(exponentialSmoothingForecast),
		ModelARIMA:  e.arimaForecast,
		ModelSARIMA: e.sarimaForecast,
	}
	return e
}

// SeasonalPeriod returns the period used for the sarima strategy.
func (e *Engine) SeasonalPeriod() int { return e.period }

// Models lists the concrete strategies the engine can run.
func (e *Engine) Models() []ModelName {
	return []ModelName{ModelMA7, ModelSES, ModelARIMA, ModelSARIMA}
}

// SelectBestModel chooses a strategy from the amount of history available.
func SelectBestModel(series []float64) ModelName {
	switch n := len(series); {
	case n < 10:
		return ModelMA7
	case n < 14:
		return ModelSES
	case n < 21:
		return ModelARIMA
	default:
		return ModelSARIMA
	}
}

// ParseModelName normalises a user supplied model hint.
func ParseModelName(raw string) (ModelName, error) {
	name := ModelName(strings.ToLower(strings.TrimSpace(raw)))
	if name == "" {
		return ModelAuto, nil
	}
	switch name {
	case ModelAuto, ModelMA7, ModelSES, ModelARIMA, ModelSARIMA:
		return name, nil
	}
	return "", &UnknownModelError{Model: raw}
}

// ForecastWithConfidence forecasts steps values for series using the given
// model (ModelAuto selects one from the series length). Model failures fall
// back to simpler strategies and are never returned; only a bad horizon or
// an unknown model is an error.
func (e *Engine) ForecastWithConfidence(series []float64, steps int, model ModelName) (*ForecastResult, error) {
	if steps < 1 {
		return nil, &InvalidStepsError{Steps: steps}
	}
	if model == "" || model == ModelAuto {
		model = SelectBestModel(series)
	}
	run, ok := e.strategies[model]
	if !ok {
		return nil, &UnknownModelError{Model: string(model)}
	}

	predictions, degraded := run(series, steps)

	stdDev := StdDev(series)
	intervals := make([]ConfidenceInterval, steps)
	for i := range predictions {
		predictions[i] = clampNonNegative(predictions[i])
		margin := confidenceZ * stdDev * math.Sqrt(float64(i+1))
		intervals[i] = ConfidenceInterval{
			Forecast: predictions[i],
			Lower:    math.Max(0, predictions[i]-margin),
			Upper:    predictions[i] + margin,
		}
	}

	e.logger.WithFields(logrus.Fields{
		"model":    model,
		"points":   len(series),
		"steps":    steps,
		"degraded": degraded,
	}).Debug("forecast generated")

	return &ForecastResult{
		Model:               strings.ToUpper(string(model)),
		Predictions:         predictions,
		ConfidenceIntervals: intervals,
		Degraded:            degraded,
	}, nil
}

// repeat turns a single-value forecaster into a flat multi-step strategy.
func (e *Engine) repeat(single func([]float64) float64) strategy {
	return func(series []float64, steps int) ([]float64, bool) {
		return repeatValue(single(series), steps), false
	}
}

func (e *Engine) arimaForecast(series []float64, steps int) ([]float64, bool) {
	predictions, err := trainAndPredict(NewARIMA(1, 1, 1), series, steps)
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"model":    ModelARIMA,
			"points":   len(series),
			"fallback": ModelSES,
		}).Warn("arima forecast failed, falling back")
		return repeatValue(exponentialSmoothingForecast(series), steps), true
	}
	return predictions, false
}

func (e *Engine) sarimaForecast(series []float64, steps int) ([]float64, bool) {
	model := NewSARIMA(1, 1, 1, 1, 0, 1, e.period)
	if _, err := model.Train(series); err != nil {
		e.logSarimaFallback(err, len(series))
		predictions, _ := e.arimaForecast(series, steps)
		return predictions, true
	}
	predictions, err := model.Predict(steps)
	if err != nil {
		e.logSarimaFallback(err, len(series))
		predictions, _ = e.arimaForecast(series, steps)
		return predictions, true
	}
	return predictions, false
}

func (e *Engine) logSarimaFallback(err error, points int) {
	e.logger.WithError(err).WithFields(logrus.Fields{
		"model":    ModelSARIMA,
		"period":   e.period,
		"points":   points,
		"fallback": ModelARIMA,
	}).Warn("sarima forecast failed, falling back")
}

func trainAndPredict(model *ARIMA, series []float64, steps int) ([]float64, error) {
	if _, err := model.Train(series); err != nil {
		return nil, err
	}
	return model.Predict(steps)
}

// movingAverageForecast is the trailing 7-point mean, or the last point when
// fewer than 7 exist.
func movingAverageForecast(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	if len(series) < movingAverageWindow {
		return series[len(series)-1]
	}
	return trailingMean(series, movingAverageWindow)
}

// exponentialSmoothingForecast runs simple exponential smoothing seeded with
// the first observation.
func exponentialSmoothingForecast(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	level := series[0]
	for _, v := range series[1:] {
		level = sesAlpha*v + (1-sesAlpha)*level
	}
	return level
}

func repeatValue(v float64, steps int) []float64 {
	out := make([]float64, steps)
	for i := range out {
		out[i] = v
	}
	return out
}
