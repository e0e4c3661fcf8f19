package dynest

import "fmt"

// NumericalError is returned when a covariance matrix could not be
// repaired to positive-definite within the allowed number of attempts.
type NumericalError struct {
	// Op is the operation which failed
	Op string
	// Err is the underlying cause
	Err error
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("numerical failure in %s: %v", e.Op, e.Err)
}

func (e *NumericalError) Unwrap() error { return e.Err }

// ModelDivergenceError is returned by a Model whose solver failed to
// converge for the given state. The filter treats it as a point-level
// failure and escalates it to a ForecastFailure for the whole step.
type ModelDivergenceError struct {
	// Reason describes the divergence
	Reason string
}

func (e *ModelDivergenceError) Error() string {
	return fmt.Sprintf("model diverged: %s", e.Reason)
}

// ForecastFailure is returned when any sigma point failed to propagate
// through the model. Partial sigma point sets are never recombined:
// mixing diverged and converged points would corrupt the weighted
// statistics, so the whole step fails and the filter state is left
// untouched.
type ForecastFailure struct {
	// Point is the index of the sigma point which failed
	Point int
	// Err is the point-level cause
	Err error
}

func (e *ForecastFailure) Error() string {
	return fmt.Sprintf("forecast failed at sigma point %d: %v", e.Point, e.Err)
}

func (e *ForecastFailure) Unwrap() error { return e.Err }

// SingularCovarianceError is returned when the predicted measurement
// covariance is not invertible within tolerance during update.
// It is fatal to the run: the filter state can not be recovered
// without external intervention.
type SingularCovarianceError struct {
	// Err is the underlying factorization failure
	Err error
}

func (e *SingularCovarianceError) Error() string {
	return fmt.Sprintf("singular measurement covariance: %v", e.Err)
}

func (e *SingularCovarianceError) Unwrap() error { return e.Err }
