// Package shapemap turns the options of a shape map and its companion size
// map into the coefficients that seed their functions of time.
package shapemap

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"shapemap/internal/model"
)

var ErrInvalidOptions = errors.New("invalid shape map options")

// InitialValues selects how the initial horizon shape is produced. It is a
// closed union: Spherical, KerrSchildFromBoyerLindquist or YlmsFromFile.
type InitialValues interface {
	Kind() string
	validate() error
	horizonShape(ctx context.Context, req shapeRequest) (horizonShape, error)
}

// Spherical leaves the shape undistorted. A nil InitialValues means the same.
type Spherical struct{}

func (Spherical) Kind() string    { return "Spherical" }
func (Spherical) validate() error { return nil }

// KerrSchildFromBoyerLindquist distorts the shape so that a sphere of the
// inner radius in Boyer-Lindquist coordinates maps to Kerr-Schild coordinates
// for the given mass and dimensionless spin.
type KerrSchildFromBoyerLindquist struct {
	Mass float64
	Spin [3]float64
}

func (KerrSchildFromBoyerLindquist) Kind() string { return "KerrSchildFromBoyerLindquist" }

func (k KerrSchildFromBoyerLindquist) validate() error {
	if !(k.Mass > 0) || math.IsInf(k.Mass, 0) {
		return fmt.Errorf("%w: Mass must be positive and finite, got %v", ErrInvalidOptions, k.Mass)
	}
	for i, s := range k.Spin {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return fmt.Errorf("%w: Spin[%d] is not finite", ErrInvalidOptions, i)
		}
	}
	return nil
}

// YlmsFromFile reads archived surface coefficients. SubfileNames holds the
// value subfile and, optionally, the time-derivative subfile. A nil
// MatchTimeEpsilon derives the tolerance from the sample spacing.
type YlmsFromFile struct {
	H5Filename       string
	SubfileNames     []string
	MatchTime        float64
	MatchTimeEpsilon *float64
	SetL1CoefsToZero bool
}

func (YlmsFromFile) Kind() string { return "YlmsFromFile" }

func (y YlmsFromFile) validate() error {
	if strings.TrimSpace(y.H5Filename) == "" {
		return fmt.Errorf("%w: H5Filename is required", ErrInvalidOptions)
	}
	if len(y.SubfileNames) < 1 || len(y.SubfileNames) > 2 {
		return fmt.Errorf("%w: SubfileNames needs a value subfile and at most one derivative subfile, got %d names",
			ErrInvalidOptions, len(y.SubfileNames))
	}
	for i, name := range y.SubfileNames {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: SubfileNames[%d] is empty", ErrInvalidOptions, i)
		}
	}
	if math.IsNaN(y.MatchTime) || math.IsInf(y.MatchTime, 0) {
		return fmt.Errorf("%w: MatchTime must be finite", ErrInvalidOptions)
	}
	if y.MatchTimeEpsilon != nil && !(*y.MatchTimeEpsilon >= 0 && !math.IsInf(*y.MatchTimeEpsilon, 0)) {
		return fmt.Errorf("%w: MatchTimeEpsilon must be non-negative and finite, got %v", ErrInvalidOptions, *y.MatchTimeEpsilon)
	}
	return nil
}

// ShapeMapOptions configures the shape map of one object.
type ShapeMapOptions struct {
	LMax int
	// InitialValues is nil for an undistorted initial shape.
	InitialValues InitialValues
	// InitialSizeValues is nil for Auto: the size map is then seeded from
	// the l = 0 part of archived shape data.
	InitialSizeValues *[3]float64
	// TransitionEndsAtCube is only set for domains that support the option.
	TransitionEndsAtCube *bool
	Object               model.ObjectLabel
}

func (o ShapeMapOptions) Name() string {
	return "ShapeMap" + o.Object.String()
}

func (o ShapeMapOptions) SizeMapName() string {
	return "Size" + o.Object.String()
}

func (o ShapeMapOptions) EndsAtCube() bool {
	return o.TransitionEndsAtCube != nil && *o.TransitionEndsAtCube
}

// ResolvedInitialValues returns InitialValues with nil replaced by Spherical.
func (o ShapeMapOptions) ResolvedInitialValues() InitialValues {
	if o.InitialValues == nil {
		return Spherical{}
	}
	return o.InitialValues
}

func (o ShapeMapOptions) Validate() error {
	if o.LMax < 0 {
		return fmt.Errorf("%w: LMax must be non-negative, got %d", ErrInvalidOptions, o.LMax)
	}
	if err := o.ResolvedInitialValues().validate(); err != nil {
		return err
	}
	if o.InitialSizeValues != nil {
		for i, v := range o.InitialSizeValues {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: SizeInitialValues[%d] is not finite", ErrInvalidOptions, i)
			}
		}
	}
	return nil
}
