package fot

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

const KindPiecewisePolynomial = "PiecewisePolynomial"

type derivInfo struct {
	Time   float64     `json:"time"`
	Derivs [][]float64 `json:"derivs"`
}

// PiecewisePolynomial is a Taylor polynomial of fixed order between update
// times. Each update replaces the highest derivative and keeps the function
// and its lower derivatives continuous.
type PiecewisePolynomial struct {
	derivOrder int
	updates    []derivInfo
	expiration float64
}

// NewPiecewisePolynomial starts a polynomial at time t0. initial holds the
// value followed by derivOrder derivatives.
func NewPiecewisePolynomial(derivOrder int, t0 float64, initial [][]float64, expiration float64) (*PiecewisePolynomial, error) {
	if derivOrder < 0 {
		return nil, fmt.Errorf("%w: negative derivative order %d", ErrInvalidFunction, derivOrder)
	}
	if len(initial) != derivOrder+1 {
		return nil, fmt.Errorf("%w: %d initial vectors for derivative order %d", ErrInvalidFunction, len(initial), derivOrder)
	}
	if _, err := checkVectors("initial data", initial); err != nil {
		return nil, err
	}
	if math.IsNaN(t0) || math.IsInf(t0, 0) || !(expiration >= t0) {
		return nil, fmt.Errorf("%w: invalid time bounds [%v, %v]", ErrInvalidFunction, t0, expiration)
	}
	return &PiecewisePolynomial{
		derivOrder: derivOrder,
		updates:    []derivInfo{{Time: t0, Derivs: copyVectors(initial)}},
		expiration: expiration,
	}, nil
}

func (p *PiecewisePolynomial) Kind() string { return KindPiecewisePolynomial }

func (p *PiecewisePolynomial) DerivOrder() int { return p.derivOrder }

func (p *PiecewisePolynomial) Clone() FunctionOfTime {
	out := &PiecewisePolynomial{
		derivOrder: p.derivOrder,
		updates:    make([]derivInfo, len(p.updates)),
		expiration: p.expiration,
	}
	for i, u := range p.updates {
		out.updates[i] = derivInfo{Time: u.Time, Derivs: copyVectors(u.Derivs)}
	}
	return out
}

func (p *PiecewisePolynomial) TimeBounds() [2]float64 {
	return [2]float64{p.updates[0].Time, p.expiration}
}

func (p *PiecewisePolynomial) Func(t float64) ([1][]float64, error) {
	v, err := p.evaluate(t, 0)
	if err != nil {
		return [1][]float64{}, err
	}
	return [1][]float64{v[0]}, nil
}

func (p *PiecewisePolynomial) FuncAndDeriv(t float64) ([2][]float64, error) {
	v, err := p.evaluate(t, 1)
	if err != nil {
		return [2][]float64{}, err
	}
	return [2][]float64{v[0], v[1]}, nil
}

func (p *PiecewisePolynomial) FuncAndTwoDerivs(t float64) ([3][]float64, error) {
	v, err := p.evaluate(t, 2)
	if err != nil {
		return [3][]float64{}, err
	}
	return [3][]float64{v[0], v[1], v[2]}, nil
}

// Update starts a new piece at time t with the given highest derivative and
// moves the expiration time forward.
func (p *PiecewisePolynomial) Update(t float64, highestDeriv []float64, newExpiration float64) error {
	last := p.updates[len(p.updates)-1]
	if !(t > last.Time) || t > p.expiration {
		return fmt.Errorf("%w: update at t=%v must be after %v and not after expiration %v",
			ErrInvalidUpdate, t, last.Time, p.expiration)
	}
	if !(newExpiration >= p.expiration) {
		return fmt.Errorf("%w: new expiration %v precedes current expiration %v", ErrInvalidUpdate, newExpiration, p.expiration)
	}
	if len(highestDeriv) != len(last.Derivs[0]) {
		return fmt.Errorf("%w: highest derivative has %d components, want %d", ErrInvalidUpdate, len(highestDeriv), len(last.Derivs[0]))
	}
	derivs, err := p.evaluate(t, p.derivOrder)
	if err != nil {
		return err
	}
	derivs[p.derivOrder] = append([]float64(nil), highestDeriv...)
	p.updates = append(p.updates, derivInfo{Time: t, Derivs: derivs})
	p.expiration = newExpiration
	return nil
}

// ResetExpirationTime moves the expiration time forward without new data.
func (p *PiecewisePolynomial) ResetExpirationTime(newExpiration float64) error {
	if !(newExpiration >= p.expiration) {
		return fmt.Errorf("%w: new expiration %v precedes current expiration %v", ErrInvalidUpdate, newExpiration, p.expiration)
	}
	p.expiration = newExpiration
	return nil
}

// evaluate returns the value and derivatives up to maxDeriv at t.
func (p *PiecewisePolynomial) evaluate(t float64, maxDeriv int) ([][]float64, error) {
	if err := checkBounds(p.Kind(), t, p.TimeBounds()); err != nil {
		return nil, err
	}
	i := sort.Search(len(p.updates), func(i int) bool { return p.updates[i].Time > t }) - 1
	piece := p.updates[i]
	dt := t - piece.Time
	n := len(piece.Derivs[0])

	out := make([][]float64, maxDeriv+1)
	for k := range out {
		out[k] = make([]float64, n)
		if k > p.derivOrder {
			continue
		}
		// Horner evaluation of sum_{j>=k} d_j dt^(j-k) / (j-k)!
		for c := 0; c < n; c++ {
			sum := piece.Derivs[p.derivOrder][c]
			for j := p.derivOrder - 1; j >= k; j-- {
				sum = piece.Derivs[j][c] + dt*sum/float64(j-k+1)
			}
			out[k][c] = sum
		}
	}
	return out, nil
}

type piecewisePolynomialState struct {
	DerivOrder int         `json:"deriv_order"`
	Updates    []derivInfo `json:"updates"`
	Expiration boundFloat  `json:"expiration"`
}

func (p *PiecewisePolynomial) MarshalJSON() ([]byte, error) {
	return json.Marshal(piecewisePolynomialState{
		DerivOrder: p.derivOrder,
		Updates:    p.updates,
		Expiration: boundFloat(p.expiration),
	})
}

func (p *PiecewisePolynomial) UnmarshalJSON(data []byte) error {
	var state piecewisePolynomialState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if len(state.Updates) == 0 {
		return fmt.Errorf("%w: piecewise polynomial without updates", ErrInvalidFunction)
	}
	for i, u := range state.Updates {
		if len(u.Derivs) != state.DerivOrder+1 {
			return fmt.Errorf("%w: update %d has %d derivatives for order %d", ErrInvalidFunction, i, len(u.Derivs), state.DerivOrder)
		}
		if _, err := checkVectors("update", u.Derivs); err != nil {
			return err
		}
	}
	p.derivOrder = state.DerivOrder
	p.updates = state.Updates
	p.expiration = float64(state.Expiration)
	return nil
}

func decodePiecewisePolynomial(payload []byte) (FunctionOfTime, error) {
	p := &PiecewisePolynomial{}
	if err := json.Unmarshal(payload, p); err != nil {
		return nil, err
	}
	return p, nil
}
