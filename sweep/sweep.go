// Package sweep generates setpoint lists and steps a parameter through them.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// stepTolerance is how far (stop-start)/step may be from an integer, in
// units of steps.
const stepTolerance = 1e-10

// MakeSweep returns evenly spaced points from start to stop, both included.
// Exactly one of step and num must be given; a zero value means "not given".
// With step, the range has to be an integer number of steps.
func MakeSweep(start, stop, step float64, num int) ([]float64, error) {
	if step != 0 && num != 0 {
		return nil, errors.New("step and num are mutually exclusive")
	}
	if step == 0 && num == 0 {
		return nil, errors.New("either step or num is required; to go from start to stop in one step use num=2")
	}
	if num < 0 {
		return nil, fmt.Errorf("num must be positive, got %d", num)
	}
	if math.IsNaN(start) || math.IsNaN(stop) || math.IsNaN(step) || math.IsInf(start, 0) || math.IsInf(stop, 0) || math.IsInf(step, 0) {
		return nil, errors.New("start, stop and step must be finite")
	}
	if step != 0 {
		steps := math.Abs((stop - start) / step)
		lo := math.Floor(steps + stepTolerance)
		hi := math.Ceil(steps - stepTolerance)
		if lo != hi {
			return nil, fmt.Errorf("could not find an integer number of points for start=%v, stop=%v, step=%v", start, stop, step)
		}
		num = int(lo) + 1
	}
	return linspace(start, stop, num), nil
}

// linspace computes each point independently in decimal arithmetic so
// rounding does not accumulate along the sweep.
func linspace(start, stop float64, num int) []float64 {
	if num == 1 {
		return []float64{start}
	}
	out := make([]float64, num)
	lo := decimal.NewFromFloat(start)
	span := decimal.NewFromFloat(stop).Sub(lo)
	intervals := decimal.NewFromInt(int64(num - 1))
	for i := range out {
		point := lo.Add(span.Mul(decimal.NewFromInt(int64(i))).Div(intervals))
		out[i], _ = point.Float64()
	}
	out[0] = start
	out[num-1] = stop
	return out
}

// Setter is anything that accepts a new value, typically a parameter.
type Setter interface {
	Set(value interface{}) error
}

// Run sets every value in order and calls measure after each successful
// set. It stops at the first error or when ctx is done.
func Run(ctx context.Context, target Setter, values []float64, measure func(value float64) error) error {
	if target == nil {
		return errors.New("sweep target must not be nil")
	}
	for _, v := range values {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := target.Set(v); err != nil {
			return fmt.Errorf("sweep set %v: %w", v, err)
		}
		if measure == nil {
			continue
		}
		if err := measure(v); err != nil {
			return fmt.Errorf("sweep measure at %v: %w", v, err)
		}
	}
	return nil
}
