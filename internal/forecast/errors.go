package forecast

import "fmt"

// InsufficientDataError is returned when a model is trained on fewer points
// than it needs.
type InsufficientDataError struct {
	Required int
	Got      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need at least %d points, got %d", e.Required, e.Got)
}

// NotTrainedError is returned by Predict when Train has not succeeded yet.
type NotTrainedError struct {
	Model string
}

func (e *NotTrainedError) Error() string {
	return fmt.Sprintf("model %s has not been trained", e.Model)
}

// InvalidStepsError rejects a forecast horizon below one step.
type InvalidStepsError struct {
	Steps int
}

func (e *InvalidStepsError) Error() string {
	return fmt.Sprintf("steps must be at least 1, got %d", e.Steps)
}

// UnknownModelError is returned for a model hint the engine does not know.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unsupported forecasting model: %q", e.Model)
}
