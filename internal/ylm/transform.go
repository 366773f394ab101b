package ylm

import (
	"fmt"
	"math"
)

// PhysToSpec projects collocation values onto the coefficient basis.
// Band-limited input is reproduced exactly up to rounding.
func (s *Spherepack) PhysToSpec(values []float64) ([]float64, error) {
	if len(values) != s.PhysicalSize() {
		return nil, fmt.Errorf("%w: got %d collocation values, want %d", ErrSizeMismatch, len(values), s.PhysicalSize())
	}
	g := s.grid
	coeffs := make([]float64, s.SpectralSize())
	cosSum := make([]float64, g.ntheta)
	sinSum := make([]float64, g.ntheta)
	for m := 0; m <= s.mmax; m++ {
		for i := 0; i < g.ntheta; i++ {
			var c, sn float64
			for j := 0; j < g.nphi; j++ {
				v := values[j*g.ntheta+i]
				c += v * math.Cos(float64(m)*g.phi[j])
				sn += v * math.Sin(float64(m)*g.phi[j])
			}
			cosSum[i], sinSum[i] = c, sn
		}
		norm := 2 / float64(g.nphi)
		if m == 0 {
			norm = 1 / float64(g.nphi)
		}
		for l := m; l <= s.lmax; l++ {
			var a, b float64
			for i := 0; i < g.ntheta; i++ {
				wp := g.w[i] * g.pbar(i, l, m)
				a += wp * cosSum[i]
				b += wp * sinSum[i]
			}
			coeffs[modeIndex(s.lmax, s.mmax, l, m)] = norm * a
			if m > 0 {
				coeffs[modeIndex(s.lmax, s.mmax, l, -m)] = norm * b
			}
		}
	}
	return coeffs, nil
}

// SpecToPhys evaluates coefficients on the collocation grid.
func (s *Spherepack) SpecToPhys(coeffs []float64) ([]float64, error) {
	if len(coeffs) != s.SpectralSize() {
		return nil, fmt.Errorf("%w: got %d coefficients, want %d", ErrSizeMismatch, len(coeffs), s.SpectralSize())
	}
	g := s.grid
	values := make([]float64, s.PhysicalSize())
	for j := 0; j < g.nphi; j++ {
		for i := 0; i < g.ntheta; i++ {
			var sum float64
			for m := 0; m <= s.mmax; m++ {
				cm, sm := math.Cos(float64(m)*g.phi[j]), math.Sin(float64(m)*g.phi[j])
				for l := m; l <= s.lmax; l++ {
					term := coeffs[modeIndex(s.lmax, s.mmax, l, m)] * cm
					if m > 0 {
						term += coeffs[modeIndex(s.lmax, s.mmax, l, -m)] * sm
					}
					sum += g.pbar(i, l, m) * term
				}
			}
			values[j*g.ntheta+i] = sum
		}
	}
	return values, nil
}

// Interpolate evaluates coefficients at an arbitrary direction.
func (s *Spherepack) Interpolate(coeffs []float64, theta, phi float64) (float64, error) {
	if len(coeffs) != s.SpectralSize() {
		return 0, fmt.Errorf("%w: got %d coefficients, want %d", ErrSizeMismatch, len(coeffs), s.SpectralSize())
	}
	table := make([]float64, (s.mmax+1)*(s.lmax+1))
	normalizedLegendre(math.Cos(theta), s.lmax, s.mmax, table)
	var sum float64
	for m := 0; m <= s.mmax; m++ {
		cm, sm := math.Cos(float64(m)*phi), math.Sin(float64(m)*phi)
		for l := m; l <= s.lmax; l++ {
			term := coeffs[modeIndex(s.lmax, s.mmax, l, m)] * cm
			if m > 0 {
				term += coeffs[modeIndex(s.lmax, s.mmax, l, -m)] * sm
			}
			sum += table[m*(s.lmax+1)+l] * term
		}
	}
	return sum, nil
}
