// Package kerr holds analytic relations for Kerr black holes.
package kerr

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidParameters = errors.New("invalid kerr parameters")

// SchildRadiusFromBoyerLindquist returns the Kerr-Schild coordinate radius of
// the points at Boyer-Lindquist radius rBL in the directions (theta[i], phi[i]).
// The spin is the dimensionless spin vector, so the spin parameter is mass*spin.
//
//	r_KS^2 = r_BL^2 + mass^2 (|spin|^2 - (spin . n)^2)
func SchildRadiusFromBoyerLindquist(rBL float64, theta, phi []float64, mass float64, spin [3]float64) ([]float64, error) {
	if len(theta) != len(phi) {
		return nil, fmt.Errorf("%w: %d theta values for %d phi values", ErrInvalidParameters, len(theta), len(phi))
	}
	if !(mass > 0) || math.IsInf(mass, 0) {
		return nil, fmt.Errorf("%w: mass must be positive and finite, got %v", ErrInvalidParameters, mass)
	}
	if !(rBL > 0) || math.IsInf(rBL, 0) {
		return nil, fmt.Errorf("%w: radius must be positive and finite, got %v", ErrInvalidParameters, rBL)
	}

	radius := make([]float64, len(theta))
	spinSquared := spin[0]*spin[0] + spin[1]*spin[1] + spin[2]*spin[2]
	if spinSquared == 0 {
		for i := range radius {
			radius[i] = rBL
		}
		return radius, nil
	}
	massSquared := mass * mass
	for i := range theta {
		st, ct := math.Sin(theta[i]), math.Cos(theta[i])
		sp, cp := math.Sin(phi[i]), math.Cos(phi[i])
		projection := spin[0]*st*cp + spin[1]*st*sp + spin[2]*ct
		radius[i] = math.Sqrt(rBL*rBL + massSquared*(spinSquared-projection*projection))
	}
	return radius, nil
}

// RadialDistortion returns rBL - r_KS in each direction. It is identically
// zero, without rounding, when the spin vanishes.
func RadialDistortion(rBL float64, theta, phi []float64, mass float64, spin [3]float64) ([]float64, error) {
	rKS, err := SchildRadiusFromBoyerLindquist(rBL, theta, phi, mass, spin)
	if err != nil {
		return nil, err
	}
	spinSquared := spin[0]*spin[0] + spin[1]*spin[1] + spin[2]*spin[2]
	out := make([]float64, len(rKS))
	if spinSquared == 0 {
		return out, nil
	}
	for i, r := range rKS {
		st, ct := math.Sin(theta[i]), math.Cos(theta[i])
		projection := spin[0]*st*math.Cos(phi[i]) + spin[1]*st*math.Sin(phi[i]) + spin[2]*ct
		// rBL - r = (rBL^2 - r^2) / (rBL + r), without the cancellation.
		out[i] = -mass * mass * (spinSquared - projection*projection) / (rBL + r)
	}
	return out, nil
}
