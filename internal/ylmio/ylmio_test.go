package ylmio

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shapemap/internal/archive"
	"shapemap/internal/ylm"
)

func randomSurface(t *testing.T, rng *rand.Rand, lmax int) ylm.Surface {
	t.Helper()
	sp, err := ylm.New(lmax, lmax)
	require.NoError(t, err)
	radius := make([]float64, sp.PhysicalSize())
	for i := range radius {
		radius[i] = 0.1 + 1.9*rng.Float64()
	}
	surface, err := ylm.NewSurfaceFromRadius(lmax, lmax, radius, [3]float64{0.1, -0.2, 0.3})
	require.NoError(t, err)
	return surface
}

func TestLegendLayout(t *testing.T) {
	legend := Legend(1)
	assert.Equal(t, []string{
		"Time", "InertialExpansionCenter_x", "InertialExpansionCenter_y", "InertialExpansionCenter_z", "Lmax",
		"coef(0,0)", "coef(1,-1)", "coef(1,0)", "coef(1,1)",
	}, legend)

	l, err := checkLegend("s", Legend(4))
	require.NoError(t, err)
	assert.Equal(t, 4, l)

	_, err = checkLegend("s", append(Legend(1), "coef(2,-2)"))
	require.ErrorIs(t, err, ErrMalformedLegend)
	_, err = checkLegend("s", []string{"Time", "x", "y", "z", "Lmax", "coef(0,0)"})
	require.ErrorIs(t, err, ErrMalformedLegend)
}

func TestWriteAndReadSurface(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(3))
	mem := archive.NewMemory()

	coarse := randomSurface(t, rng, 4)
	fine := randomSurface(t, rng, 6)
	require.NoError(t, WriteSurfaces(ctx, mem, "Ylm_coefs", []float64{1.0, 1.5}, []ylm.Surface{coarse, fine}))

	snap, err := ReadSurfaceSingleTime(ctx, mem, "Ylm_coefs", 1.0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap.Time)
	assert.Equal(t, 0.25, snap.Epsilon)
	assert.Equal(t, 4, snap.Surface.LMax())
	assert.Equal(t, coarse.Coefficients, snap.Surface.Coefficients)
	assert.Equal(t, coarse.Center, snap.Surface.Center)

	snap, err = ReadSurfaceSingleTime(ctx, mem, "Ylm_coefs", 1.6, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, snap.Surface.LMax())
	assert.Equal(t, fine.Coefficients, snap.Surface.Coefficients)
}

func TestTimeMatching(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(5))
	mem := archive.NewMemory()
	s := randomSurface(t, rng, 2)
	require.NoError(t, WriteSurfaces(ctx, mem, "close", []float64{1.7, 1.7 + 1e-10, 3.0}, []ylm.Surface{s, s, s}))

	eps := 1e-8
	_, err := ReadSurfaceSingleTime(ctx, mem, "close", 1.7, &eps)
	var matchErr *TimeMatchError
	require.True(t, errors.As(err, &matchErr))
	assert.Len(t, matchErr.Matches, 2)
	assert.Equal(t, 1.7, matchErr.MatchTime)

	_, err = ReadSurfaceSingleTime(ctx, mem, "close", 2.0, &eps)
	require.True(t, errors.As(err, &matchErr))
	assert.Empty(t, matchErr.Matches)
	assert.Contains(t, err.Error(), "no sample")

	tight := 1e-14
	snap, err := ReadSurfaceSingleTime(ctx, mem, "close", 1.7, &tight)
	require.NoError(t, err)
	assert.Equal(t, 1.7, snap.Time)

	// Auto picks half the smallest spacing, so the nearer of the two wins.
	snap, err = ReadSurfaceSingleTime(ctx, mem, "close", 1.7+9e-11, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.7+1e-10, snap.Time)
}

func TestAutoEpsilon(t *testing.T) {
	assert.Equal(t, 0.25, AutoEpsilon([]float64{2, 1, 1.5, 3}, 0))
	assert.Equal(t, 0.5, AutoEpsilon([]float64{1, 1, 2}, 0))
	assert.Equal(t, 1e-12, AutoEpsilon([]float64{1.7}, 0.5))
	assert.Equal(t, 2e-12, AutoEpsilon(nil, -2))
}

func TestReadRejectsBadLmax(t *testing.T) {
	ctx := context.Background()
	mem := archive.NewMemory()
	require.NoError(t, mem.InsertSubfile(ctx, "bad", Legend(1)))
	require.NoError(t, mem.Append(ctx, "bad", []float64{0, 0, 0, 0, 3, 1, 0, 0, 0}))

	_, err := ReadSurfaceSingleTime(ctx, mem, "bad", 0, nil)
	require.ErrorIs(t, err, ErrMalformedRow)
}
