package model

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/bikecast/pkg/errors"
)

type stubModel struct {
	State   *StateManager
	Weights []float64
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("MLP", "Predict")
	var nfe *errors.NotFittedError
	require.True(t, errors.As(err, &nfe))
	assert.Equal(t, "MLP", nfe.ModelName)

	s.SetFitted(13, 292)
	assert.True(t, s.IsFitted())
	assert.NoError(t, s.RequireFitted("MLP", "Predict"))

	nf, ns := s.GetDimensions()
	assert.Equal(t, 13, nf)
	assert.Equal(t, 292, ns)

	assert.NoError(t, s.CheckFeatures("Predict", 13))
	var de *errors.DimensionError
	require.True(t, errors.As(s.CheckFeatures("Predict", 12), &de))
	assert.Equal(t, 13, de.Expected)
	assert.Equal(t, 12, de.Got)

	s.Reset()
	assert.False(t, s.IsFitted())
}

func TestGobRoundTrip(t *testing.T) {
	orig := &stubModel{State: NewStateManager(), Weights: []float64{0.5, -1.25}}
	orig.State.SetFitted(2, 10)

	var buf bytes.Buffer
	require.NoError(t, SaveModelToWriter(orig, &buf))

	var got stubModel
	require.NoError(t, LoadModelFromReader(&got, &buf))
	assert.Equal(t, orig.Weights, got.Weights)
	assert.True(t, got.State.IsFitted())

	path := filepath.Join(t.TempDir(), "m.gob")
	require.NoError(t, SaveModel(orig, path))
	var fromFile stubModel
	require.NoError(t, LoadModel(&fromFile, path))
	assert.Equal(t, orig.Weights, fromFile.Weights)
}

func TestJSONArtifacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.json")
	names := []string{"day_of_year", "is_weekend", "lag_1"}
	require.NoError(t, SaveJSON(names, path))

	var got []string
	require.NoError(t, LoadJSON(&got, path))
	assert.Equal(t, names, got)

	assert.Error(t, LoadJSON(&got, filepath.Join(t.TempDir(), "missing.json")))
}

func TestEarlyStopping(t *testing.T) {
	es := NewEarlyStopping(2)
	assert.False(t, es.Update(0, 5))
	assert.False(t, es.Update(1, 4))
	assert.False(t, es.Update(2, 4.5))
	assert.True(t, es.Update(3, 4.1))
	assert.Equal(t, 1, es.BestIteration)
	assert.Equal(t, 4.0, es.BestScore)

	disabled := NewEarlyStopping(0)
	for i := 0; i < 10; i++ {
		assert.False(t, disabled.Update(i, float64(i)))
	}
	assert.Equal(t, 0, disabled.BestIteration)
}
