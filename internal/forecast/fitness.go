package forecast

import (
	"math"
	"sort"
)

// ModelFitness summarises how well a strategy predicted a held-out window.
type ModelFitness struct {
	Model        ModelName `json:"model"`
	Holdout      int       `json:"holdout"`
	MAE          float64   `json:"mae"`
	MAPE         float64   `json:"mape"`
	FitnessScore float64   `json:"fitness_score"`
	Degraded     bool      `json:"degraded,omitempty"`
}

// Backtest forecasts the last holdout points of series from the history
// before them with every strategy and ranks the strategies, best first.
//
// Fitness is the mean of exp(-relative error) per step: 1.0 is a perfect
// forecast and large misses decay towards 0. MAPE skips steps whose actual
// value is zero.
func Backtest(engine *Engine, series []float64, holdout int) ([]ModelFitness, error) {
	if holdout < 1 {
		return nil, &InvalidStepsError{Steps: holdout}
	}
	if len(series) <= holdout {
		return nil, &InsufficientDataError{Required: holdout + 1, Got: len(series)}
	}

	split := len(series) - holdout
	history := series[:split]
	actual := series[split:]

	results := make([]ModelFitness, 0, len(engine.Models()))
	for _, model := range engine.Models() {
		result, err := engine.ForecastWithConfidence(history, holdout, model)
		if err != nil {
			return nil, err
		}
		fitness := scoreForecast(actual, result.Predictions)
		fitness.Model = model
		fitness.Holdout = holdout
		fitness.Degraded = result.Degraded
		results = append(results, fitness)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FitnessScore > results[j].FitnessScore
	})
	return results, nil
}

func scoreForecast(actual, predicted []float64) ModelFitness {
	var absSum, pctSum, fitSum float64
	pctCount := 0

	for i, a := range actual {
		absErr := math.Abs(a - predicted[i])
		absSum += absErr

		// Avoid division by zero
		relErr := absErr / math.Max(a, 0.1)
		fitSum += math.Exp(-relErr)

		if a != 0 {
			pctSum += absErr / math.Abs(a)
			pctCount++
		}
	}

	n := float64(len(actual))
	fitness := ModelFitness{
		MAE:          absSum / n,
		FitnessScore: fitSum / n,
	}
	if pctCount > 0 {
		fitness.MAPE = pctSum / float64(pctCount) * 100
	}
	return fitness
}
