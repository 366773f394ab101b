package shapemap

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"shapemap/internal/archive"
	"shapemap/internal/kerr"
	"shapemap/internal/ylm"
	"shapemap/internal/ylmio"
)

// InsufficientResolutionError is returned when archived data has a lower
// LMax than the shape map asks for.
type InsufficientResolutionError struct {
	Archive   string
	Subfile   string
	Requested int
	Available int
}

func (e *InsufficientResolutionError) Error() string {
	return fmt.Sprintf("shape map LMax %d exceeds LMax %d of %s in %s",
		e.Requested, e.Available, e.Subfile, e.Archive)
}

// Coefficients seed the shape and size functions of time. Each holds the
// value followed by three derivative slots.
type Coefficients struct {
	Shape [4][]float64
	Size  [4]float64
}

type shapeRequest struct {
	lmax        int
	innerRadius float64
	open        archive.OpenFunc
	logger      *zap.Logger
}

// horizonShape holds shape-map coefficients for the value and, when known,
// its time derivative, plus the archived l = 0 coefficients they came from.
type horizonShape struct {
	coefs  [2][]float64
	l0     [2]float64
	hasL0  [2]bool
	source string
}

// Deriver turns shape-map options into initial coefficients.
type Deriver struct {
	logger *zap.Logger
	open   archive.OpenFunc
}

// Option configures a Deriver.
type Option func(*Deriver)

// WithLogger sets the logger for derivation debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Deriver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithArchiveOpener replaces the SQLite archive reader.
func WithArchiveOpener(open archive.OpenFunc) Option {
	return func(d *Deriver) {
		if open != nil {
			d.open = open
		}
	}
}

// NewDeriver returns a Deriver reading SQLite archives and logging nothing.
func NewDeriver(opts ...Option) *Deriver {
	d := &Deriver{logger: zap.NewNop(), open: archive.OpenSQLiteReader}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// InitialShapeAndSizeFuncs derives the coefficients with the default deriver.
func InitialShapeAndSizeFuncs(ctx context.Context, opts ShapeMapOptions, innerRadius float64) (Coefficients, error) {
	return NewDeriver().Derive(ctx, opts, innerRadius)
}

// HorizonShapeCoefficients returns the shape-map coefficients of the initial
// horizon at resolution lmax.
func HorizonShapeCoefficients(ctx context.Context, values InitialValues, lmax int, innerRadius float64) ([]float64, error) {
	return NewDeriver().HorizonShapeCoefficients(ctx, values, lmax, innerRadius)
}

// HorizonShapeCoefficients returns the shape-map coefficients of the initial
// horizon at resolution lmax.
func (d *Deriver) HorizonShapeCoefficients(ctx context.Context, values InitialValues, lmax int, innerRadius float64) ([]float64, error) {
	opts := ShapeMapOptions{LMax: lmax, InitialValues: values}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := checkInnerRadius(innerRadius); err != nil {
		return nil, err
	}
	shape, err := opts.ResolvedInitialValues().horizonShape(ctx, d.request(lmax, innerRadius))
	if err != nil {
		return nil, err
	}
	return shape.coefs[0], nil
}

// Derive produces the shape and size coefficients for one object whose
// excision sphere has coordinate radius innerRadius.
func (d *Deriver) Derive(ctx context.Context, opts ShapeMapOptions, innerRadius float64) (Coefficients, error) {
	if err := opts.Validate(); err != nil {
		return Coefficients{}, err
	}
	if err := checkInnerRadius(innerRadius); err != nil {
		return Coefficients{}, err
	}
	values := opts.ResolvedInitialValues()
	shape, err := values.horizonShape(ctx, d.request(opts.LMax, innerRadius))
	if err != nil {
		return Coefficients{}, fmt.Errorf("%s initial values: %w", opts.Name(), err)
	}

	var out Coefficients
	size := ylm.SpectralSize(opts.LMax, opts.LMax)
	for i := range out.Shape {
		if i < len(shape.coefs) && shape.coefs[i] != nil {
			out.Shape[i] = shape.coefs[i]
			continue
		}
		out.Shape[i] = make([]float64, size)
	}

	if opts.InitialSizeValues != nil {
		copy(out.Size[:3], opts.InitialSizeValues[:])
	} else {
		// Convert the l = 0 coefficient to the size map's normalization.
		for i, ok := range shape.hasL0 {
			if ok {
				out.Size[i] = -shape.l0[i] * math.Sqrt(0.5*math.Pi)
			}
		}
	}
	out.Size[3] = 0

	d.logger.Debug("derived initial shape and size",
		zap.String("map", opts.Name()),
		zap.String("initial_values", values.Kind()),
		zap.String("source", shape.source),
		zap.Int("lmax", opts.LMax),
		zap.Bool("auto_size", opts.InitialSizeValues == nil),
		zap.Float64s("size", out.Size[:]),
	)
	return out, nil
}

func (d *Deriver) request(lmax int, innerRadius float64) shapeRequest {
	return shapeRequest{lmax: lmax, innerRadius: innerRadius, open: d.open, logger: d.logger}
}

func checkInnerRadius(r float64) error {
	if !(r > 0) || math.IsInf(r, 0) {
		return fmt.Errorf("%w: inner radius must be positive and finite, got %v", ErrInvalidOptions, r)
	}
	return nil
}

func (Spherical) horizonShape(_ context.Context, req shapeRequest) (horizonShape, error) {
	return horizonShape{
		coefs:  [2][]float64{make([]float64, ylm.SpectralSize(req.lmax, req.lmax))},
		source: "spherical",
	}, nil
}

func (k KerrSchildFromBoyerLindquist) horizonShape(_ context.Context, req shapeRequest) (horizonShape, error) {
	sp, err := ylm.New(req.lmax, req.lmax)
	if err != nil {
		return horizonShape{}, err
	}
	theta, phi := sp.ThetaPhiPoints()
	distortion, err := kerr.RadialDistortion(req.innerRadius, theta, phi, k.Mass, k.Spin)
	if err != nil {
		return horizonShape{}, err
	}
	coefs, err := sp.PhysToSpec(distortion)
	if err != nil {
		return horizonShape{}, err
	}
	return horizonShape{coefs: [2][]float64{coefs}, source: "kerr-schild"}, nil
}

func (y YlmsFromFile) horizonShape(ctx context.Context, req shapeRequest) (shape horizonShape, err error) {
	reader, err := req.open(ctx, y.H5Filename)
	if err != nil {
		return horizonShape{}, err
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", y.H5Filename, closeErr)
		}
	}()

	target, err := ylm.New(req.lmax, req.lmax)
	if err != nil {
		return horizonShape{}, err
	}
	shape.source = y.H5Filename
	for i, subfile := range y.SubfileNames {
		snapshot, err := ylmio.ReadSurfaceSingleTime(ctx, reader, subfile, y.MatchTime, y.MatchTimeEpsilon)
		if err != nil {
			return horizonShape{}, fmt.Errorf("%s: %w", y.H5Filename, err)
		}
		if fileL := snapshot.Surface.LMax(); req.lmax > fileL {
			return horizonShape{}, &InsufficientResolutionError{
				Archive:   y.H5Filename,
				Subfile:   subfile,
				Requested: req.lmax,
				Available: fileL,
			}
		}
		coefs, err := snapshot.Surface.Spherepack.ProlongOrRestrict(snapshot.Surface.Coefficients, target)
		if err != nil {
			return horizonShape{}, err
		}
		// Archived surfaces store radius coefficients; the shape map
		// stores their negatives.
		for j := range coefs {
			coefs[j] = -coefs[j]
		}
		if y.SetL1CoefsToZero {
			for _, mode := range target.Modes() {
				if mode.L > 1 {
					break
				}
				coefs[mode.Index] = 0
			}
		}
		shape.coefs[i] = coefs
		shape.l0[i] = snapshot.Surface.Coefficients[0]
		shape.hasL0[i] = true

		req.logger.Debug("matched archived surface",
			zap.String("archive", y.H5Filename),
			zap.String("subfile", subfile),
			zap.Float64("match_time", y.MatchTime),
			zap.Float64("sample_time", snapshot.Time),
			zap.Float64("epsilon", snapshot.Epsilon),
			zap.Int("file_lmax", snapshot.Surface.LMax()),
			zap.Int("lmax", req.lmax),
		)
	}
	return shape, nil
}
