package forecast

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	// DefaultSeasonalPeriod is a weekly cycle over daily data.
	DefaultSeasonalPeriod = 7

	seasonalityRatioThreshold = 0.8
	seasonalBlend             = 0.3
)

// SeasonalOrder holds the seasonal orders and the period length.
type SeasonalOrder struct {
	P int
	D int
	Q int
	S int
}

// SARIMA wraps an ARIMA model with a seasonal adjustment pass. Kind records
// which pass Train settled on: KindBase when the series was too short or
// showed no seasonality, KindSeasonal otherwise.
type SARIMA struct {
	base     *ARIMA
	seasonal SeasonalOrder
	kind     Kind
	history  []float64
	trained  bool
}

// NewSARIMA constructs an untrained SARIMA(p,d,q)(P,D,Q,s) model. A
// non-positive period falls back to DefaultSeasonalPeriod.
func NewSARIMA(p, d, q, sp, sd, sq, period int) *SARIMA {
	if period <= 0 {
		period = DefaultSeasonalPeriod
	}
	return &SARIMA{
		base:     NewARIMA(p, d, q),
		seasonal: SeasonalOrder{P: sp, D: sd, Q: sq, S: period},
		kind:     KindBase,
	}
}

func (m *SARIMA) Name() string {
	o := m.base.Order()
	return fmt.Sprintf("sarima(%d,%d,%d)(%d,%d,%d,%d)", o.P, o.D, o.Q,
		m.seasonal.P, m.seasonal.D, m.seasonal.Q, m.seasonal.S)
}

// IsTrained reports whether Train has succeeded.
func (m *SARIMA) IsTrained() bool { return m.trained }

// Kind reports the pass selected by the last Train.
func (m *SARIMA) Kind() Kind { return m.kind }

// SeasonalityDetected is true when Train found a seasonal pattern.
func (m *SARIMA) SeasonalityDetected() bool { return m.kind == KindSeasonal }

// SeasonalOrder returns the seasonal orders.
func (m *SARIMA) SeasonalOrder() SeasonalOrder { return m.seasonal }

// Coefficients returns the inner model's estimated parameters.
func (m *SARIMA) Coefficients() Coefficients { return m.base.Coefficients() }

// DetectSeasonality compares the mean absolute change across one period with
// the mean absolute day-to-day change. A ratio under 0.8 counts as seasonal.
func (m *SARIMA) DetectSeasonality(series []float64) bool {
	s := m.seasonal.S
	n := len(series)
	if n < 2*s {
		return false
	}

	seasonalSum := 0.0
	for i := s; i < n; i++ {
		seasonalSum += math.Abs(series[i] - series[i-s])
	}
	seasonalAvg := seasonalSum / float64(n-s)

	stepSum := 0.0
	for i := 1; i < n; i++ {
		stepSum += math.Abs(series[i] - series[i-1])
	}
	stepAvg := stepSum / float64(n-1)

	if stepAvg == 0 {
		return false
	}
	return seasonalAvg/stepAvg < seasonalityRatioThreshold
}

// Train fits the model. Series shorter than two periods are handed to the
// inner ARIMA model unchanged.
func (m *SARIMA) Train(series []float64) (*SARIMA, error) {
	m.trained = false
	m.kind = KindBase

	if len(series) < 2*m.seasonal.S || !m.DetectSeasonality(series) {
		if _, err := m.base.Train(series); err != nil {
			return nil, err
		}
	} else {
		if err := m.base.fit(SeasonalDifference(series, m.seasonal.S), series); err != nil {
			return nil, err
		}
		m.kind = KindSeasonal
	}

	m.history = append([]float64(nil), series...)
	m.trained = true
	return m, nil
}

// Predict returns the inner forecasts, rescaled towards last period's values
// when seasonality was detected.
func (m *SARIMA) Predict(steps int) ([]float64, error) {
	if !m.trained {
		return nil, &NotTrainedError{Model: m.Name()}
	}

	predictions, err := m.base.Predict(steps)
	if err != nil {
		return nil, err
	}
	if m.kind != KindSeasonal {
		return predictions, nil
	}

	s := m.seasonal.S
	n := len(m.history)
	latest := m.history[n-1]

	for i, value := range predictions {
		factor := 1.0
		if latest != 0 {
			factor = m.history[n-s+(i%s)] / latest
		}
		adjusted := clampNonNegative(value * ((1 - seasonalBlend) + seasonalBlend*factor))
		predictions[i] = roundCents(adjusted)
	}

	return predictions, nil
}

func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
