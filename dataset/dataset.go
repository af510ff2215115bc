// Package dataset turns a feature table into model matrices and performs the
// chronological train/test split.
package dataset

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecast/cleaner"
	"github.com/YuminosukeSato/bikecast/features"
	"github.com/YuminosukeSato/bikecast/pkg/errors"
)

// DefaultTrainRatio is the fraction of rows assigned to training.
const DefaultTrainRatio = 0.8

// Split is a positional partition of the feature rows. Every training row
// precedes every test row.
type Split struct {
	XTrain, XTest         *mat.Dense
	YTrain, YTest         *mat.VecDense
	TrainDates, TestDates []time.Time
	// FeatureNames names the columns of XTrain and XTest.
	FeatureNames []string
	// Index is the first test row.
	Index int
}

// SplitIndex returns floor(ratio*n).
func SplitIndex(n int, ratio float64) int {
	return int(math.Floor(ratio*float64(n) + 1e-9))
}

// FeatureNames returns every numeric column of t except the target, in
// table order.
func FeatureNames(t *features.Table) []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c != cleaner.ColDailyCount {
			out = append(out, c)
		}
	}
	return out
}

// Matrix extracts the feature matrix and target vector of t.
func Matrix(t *features.Table) (*mat.Dense, *mat.VecDense, []string, error) {
	n := t.Len()
	if n == 0 {
		return nil, nil, nil, errors.Wrap(errors.ErrEmptyData, "feature table")
	}
	target := t.Index(cleaner.ColDailyCount)
	if target < 0 {
		return nil, nil, nil, errors.Wrapf(errors.ErrMissingColumn, "feature table has no %s column", cleaner.ColDailyCount)
	}
	names := FeatureNames(t)
	if len(names) == 0 {
		return nil, nil, nil, errors.NewValidationError("features", "no feature columns", t.Columns)
	}

	x := mat.NewDense(n, len(names), nil)
	y := mat.NewVecDense(n, nil)
	for i, row := range t.Values {
		k := 0
		for j, v := range row {
			if j == target {
				y.SetVec(i, v)
				continue
			}
			x.Set(i, k, v)
			k++
		}
	}
	return x, y, names, nil
}

// Chronological splits t at floor(ratio*N) without shuffling. Both
// partitions must be non-empty.
func Chronological(t *features.Table, ratio float64) (*Split, error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, errors.NewValidationError("train_ratio", "must be in (0, 1)", ratio)
	}
	x, y, names, err := Matrix(t)
	if err != nil {
		return nil, err
	}
	n := t.Len()
	idx := SplitIndex(n, ratio)
	if idx < 1 || idx >= n {
		return nil, errors.NewValidationError("rows", "too few rows for a train and a test partition", n)
	}

	xTrain, yTrain := rowsCopy(x, y, 0, idx)
	xTest, yTest := rowsCopy(x, y, idx, n)
	return &Split{
		XTrain:       xTrain,
		XTest:        xTest,
		YTrain:       yTrain,
		YTest:        yTest,
		TrainDates:   append([]time.Time(nil), t.Dates[:idx]...),
		TestDates:    append([]time.Time(nil), t.Dates[idx:]...),
		FeatureNames: names,
		Index:        idx,
	}, nil
}

// HoldoutTail reserves the last frac of the rows of x and y for validation.
// When frac yields no validation row the validation outputs are nil.
func HoldoutTail(x *mat.Dense, y *mat.VecDense, frac float64) (xFit *mat.Dense, yFit *mat.VecDense, xVal *mat.Dense, yVal *mat.VecDense) {
	n, _ := x.Dims()
	nVal := int(math.Floor(frac*float64(n) + 1e-9))
	if frac <= 0 || nVal < 1 || nVal >= n {
		return x, y, nil, nil
	}
	cut := n - nVal
	xFit, yFit = rowsCopy(x, y, 0, cut)
	xVal, yVal = rowsCopy(x, y, cut, n)
	return xFit, yFit, xVal, yVal
}

// rowsCopy copies rows [from, to) so later mutation of the source does not
// reach the partition.
func rowsCopy(x *mat.Dense, y *mat.VecDense, from, to int) (*mat.Dense, *mat.VecDense) {
	_, c := x.Dims()
	xs := mat.DenseCopyOf(x.Slice(from, to, 0, c))
	ys := mat.VecDenseCopyOf(y.SliceVec(from, to))
	return xs, ys
}
