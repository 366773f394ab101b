package shapemap

import (
	"fmt"

	"shapemap/internal/fot"
)

// FunctionsOfTime builds the third-order piecewise polynomials for the shape
// and size maps, valid from initialTime until expiration.
func (c Coefficients) FunctionsOfTime(initialTime, expiration float64) (shape, size *fot.PiecewisePolynomial, err error) {
	shape, err = fot.NewPiecewisePolynomial(3, initialTime, c.Shape[:], expiration)
	if err != nil {
		return nil, nil, fmt.Errorf("shape function of time: %w", err)
	}
	sizeValues := make([][]float64, len(c.Size))
	for i, v := range c.Size {
		sizeValues[i] = []float64{v}
	}
	size, err = fot.NewPiecewisePolynomial(3, initialTime, sizeValues, expiration)
	if err != nil {
		return nil, nil, fmt.Errorf("size function of time: %w", err)
	}
	return shape, size, nil
}
