// Package fot contains functions of time: pure, interval-bounded mappings
// from time to a vector value and its derivatives that drive time-dependent
// coordinate maps.
//
// A FunctionOfTime returns the same result for a time t however often and in
// whatever order it is called, provided t lies in its time bounds. Evaluation
// only reads state, so concurrent readers need no locking; mutation through
// concrete update methods must be serialized against readers by the caller.
package fot

import (
	"fmt"
	"math"
)

type FunctionOfTime interface {
	// Kind is the registry name used to serialize the function.
	Kind() string
	// Clone returns a deep copy that shares no state with the receiver.
	Clone() FunctionOfTime
	// TimeBounds is the domain of validity, including any allowed
	// extrapolation past the last supplied data.
	TimeBounds() [2]float64
	Func(t float64) ([1][]float64, error)
	FuncAndDeriv(t float64) ([2][]float64, error)
	FuncAndTwoDerivs(t float64) ([3][]float64, error)
}

// OutOfDomainError is returned when a function is evaluated outside its
// time bounds.
type OutOfDomainError struct {
	Kind   string
	Time   float64
	Bounds [2]float64
}

func (e *OutOfDomainError) Error() string {
	return fmt.Sprintf("%s evaluated at t=%.17g outside its time bounds [%.17g, %.17g]",
		e.Kind, e.Time, e.Bounds[0], e.Bounds[1])
}

func checkBounds(kind string, t float64, bounds [2]float64) error {
	if !(t >= bounds[0] && t <= bounds[1]) {
		return &OutOfDomainError{Kind: kind, Time: t, Bounds: bounds}
	}
	return nil
}

func copyVectors(in [][]float64) [][]float64 {
	out := make([][]float64, len(in))
	for i, v := range in {
		out[i] = append([]float64(nil), v...)
	}
	return out
}

func checkVectors(what string, vectors [][]float64) (int, error) {
	if len(vectors) == 0 {
		return 0, fmt.Errorf("%w: %s has no vectors", ErrInvalidFunction, what)
	}
	n := len(vectors[0])
	if n == 0 {
		return 0, fmt.Errorf("%w: %s has empty vectors", ErrInvalidFunction, what)
	}
	for i, v := range vectors {
		if len(v) != n {
			return 0, fmt.Errorf("%w: %s vector %d has %d components, want %d", ErrInvalidFunction, what, i, len(v), n)
		}
		for _, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return 0, fmt.Errorf("%w: %s vector %d is not finite", ErrInvalidFunction, what, i)
			}
		}
	}
	return n, nil
}
