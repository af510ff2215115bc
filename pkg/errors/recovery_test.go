package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func fitWithPanic(v interface{}, prior error) (err error) {
	defer Recover(&err, "MLP.Fit")
	err = prior
	panic(v)
}

func TestRecover(t *testing.T) {
	t.Run("panic becomes PanicError", func(t *testing.T) {
		err := fitWithPanic("boom", nil)

		var pe *PanicError
		require.True(t, As(err, &pe), "got %T", err)
		assert.Equal(t, "MLP.Fit", pe.Operation)
		assert.Equal(t, "boom", pe.PanicValue)
		assert.NotEmpty(t, pe.StackTrace)
		assert.Equal(t, "panic in MLP.Fit: boom", pe.Error())
		assert.Contains(t, pe.String(), "Stack trace:")
	})

	t.Run("existing error is kept", func(t *testing.T) {
		prior := fmt.Errorf("batch 3 diverged")
		err := fitWithPanic("boom", prior)

		require.Error(t, err)
		assert.True(t, Is(err, prior))
		assert.Contains(t, err.Error(), "panic in MLP.Fit")
		assert.Contains(t, err.Error(), "original error")
	})

	t.Run("no panic", func(t *testing.T) {
		fn := func() (err error) {
			defer Recover(&err, "MLP.Fit")
			return nil
		}
		assert.NoError(t, fn())
	})

	t.Run("gonum dimension mismatch", func(t *testing.T) {
		fn := func() (err error) {
			defer Recover(&err, "GBDTRegressor.Predict")
			var c mat.Dense
			c.Mul(mat.NewDense(2, 3, nil), mat.NewDense(2, 3, nil))
			return nil
		}
		var pe *PanicError
		require.True(t, As(fn(), &pe))
		assert.Equal(t, "GBDTRegressor.Predict", pe.Operation)
	})
}

func TestSafeExecute(t *testing.T) {
	sentinel := New("chart has no data")

	tests := []struct {
		name      string
		fn        func() error
		wantErr   error
		wantPanic bool
	}{
		{"success", func() error { return nil }, nil, false},
		{"returned error", func() error { return sentinel }, sentinel, false},
		{"panic", func() error { panic("nil plotter") }, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SafeExecute("render fig_daily_timeseries_zh.png", tt.fn)
			switch {
			case tt.wantPanic:
				var pe *PanicError
				require.True(t, As(err, &pe))
				assert.Equal(t, "nil plotter", pe.PanicValue)
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}
