// Package ylm is a fixed-resolution real spherical-harmonic representation of
// scalar fields on a topological sphere.
//
// A field is expanded as
//
//	f(theta, phi) = sum_{l,m>=0} Pbar_l^m(cos theta) (a_lm cos(m phi) + b_lm sin(m phi))
//
// where Pbar_l^m are the associated Legendre functions normalized so that
// the integral of Pbar^2 over [-1, 1] is one. A sphere of radius R therefore
// has a_00 = R*sqrt(2).
//
// Coefficients are stored in a flat slice of SpectralSize(lmax, mmax) entries:
// the cosine block a_lm first, indexed m*(lmax+1)+l, then the sine block b_lm
// at the same offset. Slots with l < m and the m = 0 sine slots are unused
// and always zero.
package ylm

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidResolution = errors.New("invalid spherical harmonic resolution")
	ErrSizeMismatch      = errors.New("spherical harmonic data size mismatch")
	ErrInvalidMode       = errors.New("invalid spherical harmonic mode")
)

// SpectralSize is the number of stored coefficients for the given resolution.
func SpectralSize(lmax, mmax int) int {
	return 2 * (lmax + 1) * (mmax + 1)
}

// PhysicalSize is the number of collocation points for the given resolution.
func PhysicalSize(lmax, mmax int) int {
	return (lmax + 1) * (2*mmax + 1)
}

// Spherepack describes a resolution and owns its collocation grid.
type Spherepack struct {
	lmax int
	mmax int
	grid *grid
}

func New(lmax, mmax int) (*Spherepack, error) {
	if lmax < 0 || mmax < 0 || mmax > lmax {
		return nil, fmt.Errorf("%w: lmax=%d mmax=%d", ErrInvalidResolution, lmax, mmax)
	}
	return &Spherepack{lmax: lmax, mmax: mmax, grid: gridFor(lmax, mmax)}, nil
}

func (s *Spherepack) LMax() int { return s.lmax }
func (s *Spherepack) MMax() int { return s.mmax }

func (s *Spherepack) SpectralSize() int { return SpectralSize(s.lmax, s.mmax) }
func (s *Spherepack) PhysicalSize() int { return PhysicalSize(s.lmax, s.mmax) }

// Index returns the storage position of mode (l, m). Negative m selects the
// sine coefficient b_l|m|.
func (s *Spherepack) Index(l, m int) (int, error) {
	am := m
	if am < 0 {
		am = -am
	}
	if l < 0 || l > s.lmax || am > l || am > s.mmax {
		return 0, fmt.Errorf("%w: (l=%d, m=%d) at lmax=%d mmax=%d", ErrInvalidMode, l, m, s.lmax, s.mmax)
	}
	return modeIndex(s.lmax, s.mmax, l, m), nil
}

func modeIndex(lmax, mmax, l, m int) int {
	if m >= 0 {
		return m*(lmax+1) + l
	}
	return (mmax+1)*(lmax+1) + (-m)*(lmax+1) + l
}

// Mode identifies one stored coefficient.
type Mode struct {
	L     int
	M     int
	Index int
}

// Modes lists every used coefficient in increasing l, then m from -l to l.
func (s *Spherepack) Modes() []Mode {
	modes := make([]Mode, 0, (s.lmax+1)*(s.lmax+1))
	for l := 0; l <= s.lmax; l++ {
		top := min(l, s.mmax)
		for m := -top; m <= top; m++ {
			modes = append(modes, Mode{L: l, M: m, Index: modeIndex(s.lmax, s.mmax, l, m)})
		}
	}
	return modes
}

// ThetaPhiPoints returns the collocation angles. Theta varies fastest.
func (s *Spherepack) ThetaPhiPoints() (theta, phi []float64) {
	g := s.grid
	theta = make([]float64, 0, s.PhysicalSize())
	phi = make([]float64, 0, s.PhysicalSize())
	for j := 0; j < g.nphi; j++ {
		for i := 0; i < g.ntheta; i++ {
			theta = append(theta, g.theta[i])
			phi = append(phi, g.phi[j])
		}
	}
	return theta, phi
}

// ProlongOrRestrict copies coeffs from this resolution into target. Modes
// the target cannot hold are dropped and modes missing here are zero.
func (s *Spherepack) ProlongOrRestrict(coeffs []float64, target *Spherepack) ([]float64, error) {
	if len(coeffs) != s.SpectralSize() {
		return nil, fmt.Errorf("%w: got %d coefficients, want %d", ErrSizeMismatch, len(coeffs), s.SpectralSize())
	}
	out := make([]float64, target.SpectralSize())
	lmax := min(s.lmax, target.lmax)
	mmax := min(s.mmax, target.mmax)
	for l := 0; l <= lmax; l++ {
		top := min(l, mmax)
		for m := -top; m <= top; m++ {
			out[modeIndex(target.lmax, target.mmax, l, m)] = coeffs[modeIndex(s.lmax, s.mmax, l, m)]
		}
	}
	return out, nil
}
