package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dynest/dynest"
	"gonum.org/v1/gonum/mat"
)

// Policy decides what the runner does when a tick fails.
type Policy int

const (
	// Abort stops the run on the first failed tick
	Abort Policy = iota
	// SkipOnForecastFailure records a failed tick and carries on when the
	// failure is a ForecastFailure; the filter posterior is untouched.
	// Every other failure still aborts.
	SkipOnForecastFailure
)

// Tick is a single sample of the measured system.
type Tick struct {
	// Time is the sample timestamp
	Time time.Time
	// U is the system input vector; nil if the system has no inputs
	U mat.Vector
	// Z is the measurement vector
	Z mat.Vector
	// R overrides the measurement noise covariance for this tick;
	// nil selects the filter default
	R mat.Symmetric
}

// Output is the outcome of a single tick.
type Output struct {
	// Time is the tick timestamp
	Time time.Time
	// Result is the filter estimate; nil if the tick failed
	Result dynest.Estimate
	// ConstraintActive flags the state entries clamped on this tick
	ConstraintActive []bool
	// Err is the tick failure; nil if the tick succeeded
	Err error
}

// constraintReporter is implemented by estimates that report which
// state entries were clamped to their bounds.
type constraintReporter interface {
	ConstraintActive() []bool
}

// Config contains runner configuration parameters
type Config struct {
	// Policy decides what happens on a failed tick
	Policy Policy
	// InitStep is the time step assumed for the first tick, before any
	// timestamp pair exists to compute one from; defaults to one second
	InitStep time.Duration
}

// Runner drives a filter over a time series of ticks, strictly in
// order: each step consumes the posterior of the previous one.
type Runner struct {
	// filter is the driven filter
	filter dynest.Filter
	// policy decides what happens on a failed tick
	policy Policy
	// initStep is the time step assumed for the first tick
	initStep time.Duration
}

// New creates a new runner for the given filter and returns it.
func New(filter dynest.Filter, c *Config) (*Runner, error) {
	if filter == nil {
		return nil, fmt.Errorf("invalid filter: nil")
	}

	policy := Abort
	initStep := time.Second
	if c != nil {
		if c.Policy != Abort && c.Policy != SkipOnForecastFailure {
			return nil, fmt.Errorf("invalid policy: %d", c.Policy)
		}
		policy = c.Policy
		if c.InitStep > 0 {
			initStep = c.InitStep
		}
	}

	return &Runner{
		filter:   filter,
		policy:   policy,
		initStep: initStep,
	}, nil
}

// Run steps the filter once per tick and returns the per-tick outputs
// in tick order. Timestamps must be strictly increasing; the time step
// passed to the filter is the gap between consecutive timestamps.
//
// A failed tick aborts the run unless the policy is
// SkipOnForecastFailure and the failure is a ForecastFailure, in which
// case the tick is recorded as failed and the run continues.
// SingularCovarianceError always aborts. On abort the outputs collected
// so far are returned together with the error.
//
// Cancelling ctx stops the run between ticks; an in-flight step always
// runs to completion.
func (r *Runner) Run(ctx context.Context, ticks []Tick) ([]Output, error) {
	outputs := make([]Output, 0, len(ticks))

	var prev time.Time
	for i, tick := range ticks {
		select {
		case <-ctx.Done():
			return outputs, ctx.Err()
		default:
		}

		dt := r.initStep.Seconds()
		if i > 0 {
			if !tick.Time.After(prev) {
				return outputs, fmt.Errorf("tick %d: timestamp %v not after %v", i, tick.Time, prev)
			}
			dt = tick.Time.Sub(prev).Seconds()
		}
		prev = tick.Time

		est, err := r.filter.Step(tick.U, tick.Z, dt, tick.R)
		if err != nil {
			out := Output{Time: tick.Time, Err: fmt.Errorf("tick %d (%v): %w", i, tick.Time, err)}
			outputs = append(outputs, out)

			var sing *dynest.SingularCovarianceError
			if errors.As(err, &sing) {
				return outputs, out.Err
			}

			var ff *dynest.ForecastFailure
			if r.policy == SkipOnForecastFailure && errors.As(err, &ff) {
				continue
			}

			return outputs, out.Err
		}

		out := Output{Time: tick.Time, Result: est}
		if cr, ok := est.(constraintReporter); ok {
			out.ConstraintActive = cr.ConstraintActive()
		}
		outputs = append(outputs, out)
	}

	return outputs, nil
}
