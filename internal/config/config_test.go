package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shapemap/internal/model"
	"shapemap/internal/shapemap"
)

const binaryDomain = `InitialTime: 0.0
ExpirationTime: Auto
Objects:
  B:
    InnerRadius: 0.8
    ShapeMap:
      LMax: 6
      InitialValues:
        Mass: 0.5
        Spin: [0.0, 0.0, 0.2]
      SizeInitialValues: Auto
  A:
    InnerRadius: 0.5
    TransitionEndsAtCubeSupported: true
    ShapeMap:
      LMax: 8
      InitialValues: Spherical
      SizeInitialValues: [0.5, 1.0, 2.4]
      TransitionEndsAtCube: false
`

func TestLoadBinaryDomain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(binaryDomain), 0o644))

	domain, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, domain.InitialTime)
	assert.True(t, math.IsInf(domain.ExpirationTime, 1))
	require.Len(t, domain.Objects, 2)

	a, b := domain.Objects[0], domain.Objects[1]
	assert.Equal(t, model.ObjectA, a.Label)
	assert.Equal(t, 0.5, a.InnerRadius)
	assert.True(t, a.TransitionEndsAtCubeSupported)
	assert.Equal(t, "ShapeMapA", a.ShapeMap.Name())
	require.NotNil(t, a.ShapeMap.TransitionEndsAtCube)
	assert.False(t, a.ShapeMap.EndsAtCube())

	assert.Equal(t, model.ObjectB, b.Label)
	assert.Equal(t, "ShapeMapB", b.ShapeMap.Name())
	assert.IsType(t, shapemap.KerrSchildFromBoyerLindquist{}, b.ShapeMap.InitialValues)
	assert.Nil(t, b.ShapeMap.TransitionEndsAtCube)
}

func TestParseSingleObject(t *testing.T) {
	domain, err := Parse([]byte(`ExpirationTime: 10
Objects:
  None:
    InnerRadius: 1.5
    ShapeMap: {LMax: 4, SizeInitialValues: Auto}
`))
	require.NoError(t, err)
	assert.Equal(t, 10.0, domain.ExpirationTime)
	require.Len(t, domain.Objects, 1)
	assert.Equal(t, "ShapeMap", domain.Objects[0].ShapeMap.Name())
	assert.Nil(t, domain.Objects[0].ShapeMap.InitialValues)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"not a mapping":       "- a",
		"unknown key":         "Objects: {A: {InnerRadius: 1, ShapeMap: {LMax: 2}}}\nColor: red",
		"no objects":          "InitialTime: 0",
		"bad label":           "Objects: {C: {InnerRadius: 1, ShapeMap: {LMax: 2}}}",
		"none with others":    "Objects: {None: {InnerRadius: 1, ShapeMap: {LMax: 2}}, A: {InnerRadius: 1, ShapeMap: {LMax: 2}}}",
		"missing radius":      "Objects: {A: {ShapeMap: {LMax: 2}}}",
		"negative radius":     "Objects: {A: {InnerRadius: -1, ShapeMap: {LMax: 2}}}",
		"missing shape map":   "Objects: {A: {InnerRadius: 1}}",
		"expiration too soon": "InitialTime: 5\nExpirationTime: 1\nObjects: {A: {InnerRadius: 1, ShapeMap: {LMax: 2}}}",
		"cube not supported":  "Objects: {A: {InnerRadius: 1, ShapeMap: {LMax: 2, TransitionEndsAtCube: true}}}",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(text))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := Parse([]byte("Objects: {A: {InnerRadius: 1, ShapeMap: {LMax: -2}}}"))
	require.ErrorIs(t, err, shapemap.ErrInvalidOptions)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
