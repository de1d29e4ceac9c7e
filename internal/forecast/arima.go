package forecast

import "fmt"

// MinTrainingPoints is the shortest series the ARIMA model will train on.
const MinTrainingPoints = 10

// maDecay is the heuristic numerator for moving-average coefficients (theta[j] = maDecay / lag).
const maDecay = 0.3

// Kind identifies which forecasting pass a model runs.
type Kind int

const (
	KindBase Kind = iota
	KindSeasonal
)

func (k Kind) String() string {
	switch k {
	case KindBase:
		return "base"
	case KindSeasonal:
		return "seasonal"
	default:
		return "unknown"
	}
}

// Model is implemented by every trainable forecaster in this package.
type Model interface {
	Name() string
	Predict(steps int) ([]float64, error)
	IsTrained() bool
}

// Order holds the non-seasonal ARIMA orders.
type Order struct {
	P int // autoregressive terms
	D int // differencing passes
	Q int // moving-average terms
}

// Coefficients is a snapshot of the estimated parameters.
type Coefficients struct {
	Phi   []float64 `json:"phi"`
	Theta []float64 `json:"theta"`
}

// ARIMA is an autoregressive model with closed-form heuristic estimation.
// Phi comes from the lag autocorrelations of the differenced series; theta is
// a fixed decay that is estimated for inspection but not used when forecasting.
type ARIMA struct {
	order   Order
	phi     []float64
	theta   []float64
	history []float64
	trained bool
}

// NewARIMA constructs an untrained ARIMA(p,d,q) model.
func NewARIMA(p, d, q int) *ARIMA {
	return &ARIMA{order: Order{P: p, D: d, Q: q}}
}

func (m *ARIMA) Name() string {
	return fmt.Sprintf("arima(%d,%d,%d)", m.order.P, m.order.D, m.order.Q)
}

// Order returns the configured orders.
func (m *ARIMA) Order() Order { return m.order }

// IsTrained reports whether Train has succeeded.
func (m *ARIMA) IsTrained() bool { return m.trained }

// Coefficients returns copies of phi and theta.
func (m *ARIMA) Coefficients() Coefficients {
	return Coefficients{
		Phi:   append([]float64(nil), m.phi...),
		Theta: append([]float64(nil), m.theta...),
	}
}

// Train estimates the model parameters from series and returns the model so
// calls can be chained.
func (m *ARIMA) Train(series []float64) (*ARIMA, error) {
	if err := m.fit(series, series); err != nil {
		return nil, err
	}
	return m, nil
}

// fit estimates coefficients from estimation while history is kept as the
// forecasting base and trend source.
func (m *ARIMA) fit(estimation, history []float64) error {
	m.trained = false
	if len(history) < MinTrainingPoints {
		return &InsufficientDataError{Required: MinTrainingPoints, Got: len(history)}
	}

	differenced := Difference(estimation, m.order.D)

	phi := make([]float64, m.order.P)
	for j := range phi {
		phi[j] = Autocorrelation(differenced, j+1)
	}

	theta := make([]float64, m.order.Q)
	for j := range theta {
		theta[j] = maDecay / float64(j+1)
	}

	m.phi = phi
	m.theta = theta
	m.history = append([]float64(nil), history...)
	m.trained = true
	return nil
}

// Predict produces steps forecasts. Each value is the autoregressive sum over
// the most recent values (forecasts included once produced) plus a linear
// trend drawn from the training series, clamped at zero.
func (m *ARIMA) Predict(steps int) ([]float64, error) {
	if !m.trained {
		return nil, &NotTrainedError{Model: m.Name()}
	}
	if steps < 1 {
		return nil, &InvalidStepsError{Steps: steps}
	}

	n := len(m.history)
	trend := (m.history[n-1] - m.history[0]) / float64(n)

	buffer := make([]float64, n, n+steps)
	copy(buffer, m.history)

	predictions := make([]float64, steps)
	for i := 0; i < steps; i++ {
		value := 0.0
		for j, coef := range m.phi {
			idx := len(buffer) - 1 - j
			if idx < 0 {
				break
			}
			value += coef * buffer[idx]
		}
		value += trend * float64(i+1)

		value = clampNonNegative(value)
		predictions[i] = value
		buffer = append(buffer, value)
	}

	return predictions, nil
}
