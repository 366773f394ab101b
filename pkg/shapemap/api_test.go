package shapemap

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"shapemap/internal/archive"
	"shapemap/internal/fot"
	"shapemap/internal/ylm"
	"shapemap/internal/ylmio"
)

const domainConfig = `InitialTime: 1.0
ExpirationTime: 20.0
Objects:
  A:
    InnerRadius: 0.5
    ShapeMap:
      LMax: 4
      InitialValues:
        H5Filename: horizons.h5
        SubfileNames: [Ylm_coefs]
        MatchTime: 1.0
        MatchTimeEpsilon: Auto
        SetL1CoefsToZero: true
      SizeInitialValues: Auto
  B:
    InnerRadius: 0.8
    ShapeMap:
      LMax: 4
      InitialValues:
        Mass: 1.0
        Spin: [0.0, 0.0, 0.0]
      SizeInitialValues: [0.5, 1.0, 2.4]
`

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "domain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func horizonArchive(t *testing.T) (*archive.Memory, ylm.Surface) {
	t.Helper()
	surface, err := ylm.NewSphere(6, 1.25, [3]float64{})
	require.NoError(t, err)
	mem := archive.NewMemory()
	require.NoError(t, ylmio.WriteSurfaces(context.Background(), mem, "Ylm_coefs",
		[]float64{0.5, 1.0, 1.5}, []ylm.Surface{surface, surface, surface}))
	return mem, surface
}

func newClient(t *testing.T, opts Options) *Client {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}
	client, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, client.Init(context.Background()))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestDeriveStoresEveryMap(t *testing.T) {
	ctx := context.Background()
	mem, surface := horizonArchive(t)
	client := newClient(t, Options{ArchiveOpener: archive.MemoryOpener(map[string]*archive.Memory{"horizons.h5": mem})})

	summary, err := client.Derive(ctx, DeriveRequest{ConfigPath: writeConfig(t, domainConfig), RunID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 20.0, summary.ExpirationTime)

	names := make([]string, 0, len(summary.Maps))
	for _, m := range summary.Maps {
		names = append(names, m.Name)
		assert.Equal(t, fot.KindPiecewisePolynomial, m.Kind)
	}
	assert.Equal(t, []string{"ShapeMapA", "SizeA", "ShapeMapB", "SizeB"}, names)
	assert.Equal(t, ylm.SpectralSize(4, 4), summary.Maps[0].Components)
	assert.Equal(t, 1, summary.Maps[1].Components)
	assert.Zero(t, mem.OpenHandles())

	size, err := client.Evaluate(ctx, EvaluateRequest{RunID: "run-1", Name: "SizeA", Time: 1.0, Derivs: 2})
	require.NoError(t, err)
	require.Len(t, size.Values, 3)
	assert.Equal(t, -surface.Coefficients[0]*math.Sqrt(0.5*math.Pi), size.Values[0][0])

	sizeB, err := client.Evaluate(ctx, EvaluateRequest{RunID: "run-1", Name: "SizeB", Time: 2.0})
	require.NoError(t, err)
	assert.InDelta(t, 0.5+1.0+2.4/2, sizeB.Values[0][0], 1e-14)

	runs, err := client.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, runs)
}

func TestDeriveGeneratesRunID(t *testing.T) {
	ctx := context.Background()
	mem, _ := horizonArchive(t)
	client := newClient(t, Options{
		StoreKind:     "sqlite",
		DBPath:        filepath.Join(t.TempDir(), "runs.db"),
		ArchiveOpener: archive.MemoryOpener(map[string]*archive.Memory{"horizons.h5": mem}),
	})

	summary, err := client.Derive(ctx, DeriveRequest{ConfigPath: writeConfig(t, domainConfig)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(summary.RunID, "run-"))

	functions, err := client.Restore(ctx, summary.RunID)
	require.NoError(t, err)
	assert.Len(t, functions, 4)
	assert.Equal(t, [2]float64{1, 20}, functions["ShapeMapB"].TimeBounds())
}

func TestEvaluateErrors(t *testing.T) {
	ctx := context.Background()
	mem, _ := horizonArchive(t)
	client := newClient(t, Options{ArchiveOpener: archive.MemoryOpener(map[string]*archive.Memory{"horizons.h5": mem})})
	_, err := client.Derive(ctx, DeriveRequest{ConfigPath: writeConfig(t, domainConfig), RunID: "run-1"})
	require.NoError(t, err)

	_, err = client.Evaluate(ctx, EvaluateRequest{RunID: "missing", Name: "SizeA"})
	require.ErrorIs(t, err, ErrRunNotFound)

	_, err = client.Evaluate(ctx, EvaluateRequest{RunID: "run-1", Name: "ShapeMapC", Time: 1})
	require.Error(t, err)

	_, err = client.Evaluate(ctx, EvaluateRequest{RunID: "run-1", Name: "SizeA", Time: 1, Derivs: 3})
	require.Error(t, err)

	_, err = client.Evaluate(ctx, EvaluateRequest{RunID: "run-1", Name: "SizeA", Time: 25})
	var domainErr *fot.OutOfDomainError
	require.True(t, errors.As(err, &domainErr))
}

func TestDeriveFailsWithoutArchive(t *testing.T) {
	client := newClient(t, Options{ArchiveOpener: archive.MemoryOpener(nil)})
	_, err := client.Derive(context.Background(), DeriveRequest{ConfigPath: writeConfig(t, domainConfig)})
	require.ErrorIs(t, err, archive.ErrNotFound)

	runs, err := client.Runs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestInspectArchive(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "horizons.h5")
	db, err := archive.CreateSQLite(ctx, path, true)
	require.NoError(t, err)
	surface, err := ylm.NewSphere(2, 1.0, [3]float64{})
	require.NoError(t, err)
	require.NoError(t, ylmio.WriteSurfaces(ctx, db, "Ylm_coefs", []float64{0.5, 1.5}, []ylm.Surface{surface, surface}))
	require.NoError(t, db.Close())

	info, err := InspectArchive(ctx, path)
	require.NoError(t, err)
	assert.Positive(t, info.Bytes)
	require.Len(t, info.Subfiles, 1)
	assert.Equal(t, SubfileInfo{Name: "Ylm_coefs", Columns: len(ylmio.Legend(2)), Rows: 2, FirstTime: 0.5, LastTime: 1.5}, info.Subfiles[0])
}
