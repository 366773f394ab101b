package ylm

import (
	"fmt"
	"math"
)

// Surface is a star-shaped surface r(theta, phi) about an expansion center.
type Surface struct {
	Spherepack   *Spherepack
	Coefficients []float64
	Center       [3]float64
}

// NewSphere returns a surface of constant radius.
func NewSphere(lmax int, radius float64, center [3]float64) (Surface, error) {
	sp, err := New(lmax, lmax)
	if err != nil {
		return Surface{}, err
	}
	coeffs := make([]float64, sp.SpectralSize())
	coeffs[0] = radius * math.Sqrt2
	return Surface{Spherepack: sp, Coefficients: coeffs, Center: center}, nil
}

// NewSurfaceFromRadius projects collocation radii onto the basis.
func NewSurfaceFromRadius(lmax, mmax int, radius []float64, center [3]float64) (Surface, error) {
	sp, err := New(lmax, mmax)
	if err != nil {
		return Surface{}, err
	}
	coeffs, err := sp.PhysToSpec(radius)
	if err != nil {
		return Surface{}, err
	}
	return Surface{Spherepack: sp, Coefficients: coeffs, Center: center}, nil
}

// NewSurface wraps existing coefficients.
func NewSurface(lmax, mmax int, coeffs []float64, center [3]float64) (Surface, error) {
	sp, err := New(lmax, mmax)
	if err != nil {
		return Surface{}, err
	}
	if len(coeffs) != sp.SpectralSize() {
		return Surface{}, fmt.Errorf("%w: got %d coefficients, want %d", ErrSizeMismatch, len(coeffs), sp.SpectralSize())
	}
	return Surface{Spherepack: sp, Coefficients: append([]float64(nil), coeffs...), Center: center}, nil
}

func (s Surface) LMax() int { return s.Spherepack.LMax() }
func (s Surface) MMax() int { return s.Spherepack.MMax() }

// AverageRadius is the l = 0 part of the surface.
func (s Surface) AverageRadius() float64 {
	return s.Coefficients[0] / math.Sqrt2
}

// Radius evaluates the surface in the direction (theta, phi).
func (s Surface) Radius(theta, phi float64) (float64, error) {
	return s.Spherepack.Interpolate(s.Coefficients, theta, phi)
}
