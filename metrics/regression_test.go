package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecast/pkg/errors"
)

func TestMSE(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   *mat.VecDense
		yPred   *mat.VecDense
		want    float64
		wantErr bool
	}{
		{
			name:  "perfect prediction",
			yTrue: mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0}),
			yPred: mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0}),
			want:  0.0,
		},
		{
			name:  "simple case",
			yTrue: mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0}),
			yPred: mat.NewVecDense(4, []float64{1.5, 2.5, 2.5, 3.5}),
			want:  0.25,
		},
		{
			name:  "larger errors",
			yTrue: mat.NewVecDense(3, []float64{10.0, 20.0, 30.0}),
			yPred: mat.NewVecDense(3, []float64{12.0, 18.0, 33.0}),
			want:  17.0 / 3.0, // (4 + 4 + 9) / 3
		},
		{
			name:    "dimension mismatch",
			yTrue:   mat.NewVecDense(3, []float64{1.0, 2.0, 3.0}),
			yPred:   mat.NewVecDense(2, []float64{1.0, 2.0}),
			wantErr: true,
		},
		{
			name:    "empty vectors",
			yTrue:   &mat.VecDense{},
			yPred:   &mat.VecDense{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-10)
		})
	}
}

func TestRMSEAndMAE(t *testing.T) {
	tests := []struct {
		name     string
		yTrue    []float64
		yPred    []float64
		wantMAE  float64
		wantRMSE float64
	}{
		{"perfect", []float64{1, 2, 3}, []float64{1, 2, 3}, 0, 0},
		{"constant offset", []float64{1, 2, 3, 4}, []float64{2, 3, 4, 5}, 1, 1},
		{"mixed signs", []float64{10, 20, 30}, []float64{12, 18, 33}, 7.0 / 3.0, math.Sqrt(17.0 / 3.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yTrue := mat.NewVecDense(len(tt.yTrue), tt.yTrue)
			yPred := mat.NewVecDense(len(tt.yPred), tt.yPred)

			mae, err := MAE(yTrue, yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantMAE, mae, 1e-10)

			rmse, err := RMSE(yTrue, yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantRMSE, rmse, 1e-10)
			assert.GreaterOrEqual(t, rmse, mae)
		})
	}
}

func TestR2Score(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{1, 2, 3, 4})

	r2, err := R2Score(yTrue, mat.NewVecDense(4, []float64{1, 2, 3, 4}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r2, 1e-10)

	// 平均値のみを予測すると 0
	r2, err = R2Score(yTrue, mat.NewVecDense(4, []float64{2.5, 2.5, 2.5, 2.5}))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, r2, 1e-10)

	_, err = R2Score(mat.NewVecDense(3, []float64{5, 5, 5}), mat.NewVecDense(3, []float64{1, 2, 3}))
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	t.Run("three day holdout", func(t *testing.T) {
		yTrue := mat.NewVecDense(3, []float64{10, 12, 14})
		yPred := mat.NewVecDense(3, []float64{11, 11, 15})

		res, err := Evaluate(yTrue, yPred)
		require.NoError(t, err)
		// 絶対誤差はすべて 1
		assert.InDelta(t, 1.0, res.MAE, 1e-12)
		assert.InDelta(t, 1.0, res.RMSE, 1e-12)
		assert.Equal(t, 3, res.N)
		assert.Contains(t, res.String(), "MAE=1.0000")
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := Evaluate(mat.NewVecDense(3, []float64{1, 2, 3}), mat.NewVecDense(2, []float64{1, 2}))
		require.Error(t, err)
		var dimErr *errors.DimensionError
		assert.True(t, errors.As(err, &dimErr))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Evaluate(&mat.VecDense{}, &mat.VecDense{})
		assert.Error(t, err)
	})
}

func TestColumnVector(t *testing.T) {
	m := mat.NewDense(3, 1, []float64{1, 2, 3})
	v, err := ColumnVector(m)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, mat.Col(nil, 0, v))

	_, err = ColumnVector(mat.NewDense(2, 2, nil))
	assert.Error(t, err)
}
