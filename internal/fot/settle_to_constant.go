package fot

import (
	"encoding/json"
	"fmt"
	"math"
)

const KindSettleToConstant = "SettleToConstant"

// SettleToConstant relaxes exponentially to a constant:
//
//	f(t) = A + (B + C (t - t_m)) exp(-(t - t_m) / tau)
//
// with A, B, C fixed by the value and first two derivatives at t_m.
type SettleToConstant struct {
	a, b, c   []float64
	matchTime float64
	decayTime float64
}

// NewSettleToConstant builds the function from the value, first and second
// derivative at matchTime.
func NewSettleToConstant(initial [3][]float64, matchTime, decayTime float64) (*SettleToConstant, error) {
	n, err := checkVectors("initial data", initial[:])
	if err != nil {
		return nil, err
	}
	if !(decayTime > 0) || math.IsInf(decayTime, 0) {
		return nil, fmt.Errorf("%w: decay time must be positive and finite, got %v", ErrInvalidFunction, decayTime)
	}
	if math.IsNaN(matchTime) || math.IsInf(matchTime, 0) {
		return nil, fmt.Errorf("%w: match time must be finite, got %v", ErrInvalidFunction, matchTime)
	}
	s := &SettleToConstant{
		a:         make([]float64, n),
		b:         make([]float64, n),
		c:         make([]float64, n),
		matchTime: matchTime,
		decayTime: decayTime,
	}
	tau := decayTime
	for i := 0; i < n; i++ {
		f, df, d2f := initial[0][i], initial[1][i], initial[2][i]
		s.b[i] = -tau*tau*d2f - 2*tau*df
		s.c[i] = df + s.b[i]/tau
		s.a[i] = f - s.b[i]
	}
	return s, nil
}

func (s *SettleToConstant) Kind() string { return KindSettleToConstant }

func (s *SettleToConstant) Clone() FunctionOfTime {
	return &SettleToConstant{
		a:         append([]float64(nil), s.a...),
		b:         append([]float64(nil), s.b...),
		c:         append([]float64(nil), s.c...),
		matchTime: s.matchTime,
		decayTime: s.decayTime,
	}
}

func (s *SettleToConstant) TimeBounds() [2]float64 {
	return [2]float64{s.matchTime, math.Inf(1)}
}

func (s *SettleToConstant) Func(t float64) ([1][]float64, error) {
	v, err := s.evaluate(t, 0)
	if err != nil {
		return [1][]float64{}, err
	}
	return [1][]float64{v[0]}, nil
}

func (s *SettleToConstant) FuncAndDeriv(t float64) ([2][]float64, error) {
	v, err := s.evaluate(t, 1)
	if err != nil {
		return [2][]float64{}, err
	}
	return [2][]float64{v[0], v[1]}, nil
}

func (s *SettleToConstant) FuncAndTwoDerivs(t float64) ([3][]float64, error) {
	v, err := s.evaluate(t, 2)
	if err != nil {
		return [3][]float64{}, err
	}
	return [3][]float64{v[0], v[1], v[2]}, nil
}

func (s *SettleToConstant) evaluate(t float64, maxDeriv int) ([3][]float64, error) {
	var out [3][]float64
	if err := checkBounds(s.Kind(), t, s.TimeBounds()); err != nil {
		return out, err
	}
	dt := t - s.matchTime
	tau := s.decayTime
	e := math.Exp(-dt / tau)
	for k := 0; k <= maxDeriv; k++ {
		out[k] = make([]float64, len(s.a))
	}
	for i := range s.a {
		q := s.b[i] + s.c[i]*dt
		out[0][i] = s.a[i] + q*e
		if maxDeriv >= 1 {
			out[1][i] = e * (s.c[i] - q/tau)
		}
		if maxDeriv >= 2 {
			out[2][i] = e * (q/(tau*tau) - 2*s.c[i]/tau)
		}
	}
	return out, nil
}

type settleToConstantState struct {
	A         []float64 `json:"a"`
	B         []float64 `json:"b"`
	C         []float64 `json:"c"`
	MatchTime float64   `json:"match_time"`
	DecayTime float64   `json:"decay_time"`
}

func (s *SettleToConstant) MarshalJSON() ([]byte, error) {
	return json.Marshal(settleToConstantState{A: s.a, B: s.b, C: s.c, MatchTime: s.matchTime, DecayTime: s.decayTime})
}

func (s *SettleToConstant) UnmarshalJSON(data []byte) error {
	var state settleToConstantState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if _, err := checkVectors("settle coefficients", [][]float64{state.A, state.B, state.C}); err != nil {
		return err
	}
	if !(state.DecayTime > 0) {
		return fmt.Errorf("%w: decay time must be positive, got %v", ErrInvalidFunction, state.DecayTime)
	}
	s.a, s.b, s.c = state.A, state.B, state.C
	s.matchTime, s.decayTime = state.MatchTime, state.DecayTime
	return nil
}

func decodeSettleToConstant(payload []byte) (FunctionOfTime, error) {
	s := &SettleToConstant{}
	if err := json.Unmarshal(payload, s); err != nil {
		return nil, err
	}
	return s, nil
}
