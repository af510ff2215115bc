package errors

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "bikecast: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "bikecast: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースにテストファイルが含まれること
			assert.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	tests := []struct {
		name string
		axis int
		want string
	}{
		{"rows", 0, "bikecast: Predict: dimension mismatch on axis 0 (rows). Expected 10, got 8"},
		{"features", 1, "bikecast: Predict: dimension mismatch on axis 1 (features). Expected 10, got 8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDimensionError("Predict", 10, 8, tt.axis)
			assert.Equal(t, tt.want, err.Error())

			var dimErr *DimensionError
			require.True(t, As(err, &dimErr))
			assert.Equal(t, tt.axis, dimErr.Axis)
		})
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("GBDTRegressor", "Predict")

	want := "bikecast: GBDTRegressor: this model is not fitted yet. Call Fit() before using Predict()"
	assert.Equal(t, want, err.Error())

	var notFittedErr *NotFittedError
	assert.True(t, As(err, &notFittedErr))
}

func TestNewValueError(t *testing.T) {
	err := NewValueError("Evaluate", "length mismatch: 3 vs 2")
	assert.Equal(t, "bikecast: Evaluate: length mismatch: 3 vs 2", err.Error())

	var valErr *ValueError
	require.True(t, As(err, &valErr))
	assert.Equal(t, "Evaluate", valErr.Op)
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("learning_rate", "must be positive", -0.5)
	assert.Equal(t, "bikecast: validation failed for parameter 'learning_rate': must be positive (got: -0.5)", err.Error())

	var vErr *ValidationError
	assert.True(t, As(err, &vErr))
}

func TestNewPreconditionError(t *testing.T) {
	err := NewPreconditionError("2023_youbike_daily_features.csv", "features")

	assert.Equal(t,
		`bikecast: required file "2023_youbike_daily_features.csv" not found; run the "features" stage first`,
		err.Error())

	var pErr *PreconditionError
	require.True(t, As(err, &pErr))
	assert.Equal(t, "features", pErr.Stage)

	// ラップされても型を取り出せること
	wrapped := Wrap(err, "train")
	assert.True(t, As(wrapped, &pErr))
}

func TestNewDegenerateFeatureError(t *testing.T) {
	err := NewDegenerateFeatureError("StandardScaler.Fit", []string{"is_weekend", "is_holiday"})

	assert.Equal(t,
		"bikecast: StandardScaler.Fit: zero variance in training partition for features [is_weekend, is_holiday]",
		err.Error())

	var dErr *DegenerateFeatureError
	require.True(t, As(err, &dErr))
	assert.Equal(t, []string{"is_weekend", "is_holiday"}, dErr.Features)
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("MLP", 300, "validation loss still decreasing")

	want := "MLP failed to converge after 300 iterations: validation loss still decreasing"
	assert.Equal(t, want, warn.Error())

	noMsg := NewConvergenceWarning("MLP", 300, "")
	assert.True(t, strings.HasSuffix(noMsg.Error(), "Consider increasing the iteration limit."))
}

func TestWarnRouting(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(nil)

	Warn(NewDataConversionWarning("string", "date", "2 rows dropped"))
	require.Len(t, got, 1)
	assert.Equal(t, "data converted from string to date. Reason: 2 rows dropped", got[0].Error())

	var routed []error
	SetZerologWarnFunc(func(w error) { routed = append(routed, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewConvergenceWarning("GBDT", 2000, ""))
	assert.Len(t, routed, 1)
	assert.Len(t, got, 1, "zerolog route takes precedence over the handler")
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrMissingColumn, "rent_date")

	assert.True(t, Is(wrapped, ErrMissingColumn))
	assert.False(t, Is(wrapped, ErrEmptyData))
	assert.Contains(t, wrapped.Error(), "rent_date")
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Predict", 10, 5)

	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.Contains(t, wrapped.Error(), "in Predict: expected 10, got 5")
}

func TestErrorChaining(t *testing.T) {
	err1 := fmt.Errorf("base error")
	err2 := Wrap(err1, "wrapped once")
	err3 := NewModelError("Operation", "failed", err2)

	assert.Contains(t, err3.Error(), "base error")
	assert.Contains(t, fmt.Sprintf("%+v", err3), "errors_test.go")
}

func TestCheckNumericalStability(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		wantErr bool
	}{
		{"finite", []float64{1, 2, 3}, false},
		{"nan", []float64{1, nan(), 3}, true},
		{"inf", []float64{inf()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckNumericalStability("loss", tt.values, 4)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var numErr *NumericalInstabilityError
			require.True(t, As(err, &numErr))
			assert.Equal(t, 4, numErr.Iteration)
		})
	}

	assert.Error(t, CheckScalar("loss", nan(), 1))
	assert.NoError(t, CheckScalar("loss", 0.5, 1))
}

func TestRequireFile(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "daily.csv")
	require.NoError(t, os.WriteFile(present, []byte("rent_date\n"), 0o644))

	assert.NoError(t, RequireFile(present, "clean"))

	err := RequireFile(filepath.Join(dir, "absent.csv"), "clean")
	var pe *PreconditionError
	require.True(t, As(err, &pe))
	assert.Equal(t, "clean", pe.Stage)
	assert.Contains(t, err.Error(), `run the "clean" stage first`)
}

func nan() float64 { return math.NaN() }

func inf() float64 { return math.Inf(1) }
