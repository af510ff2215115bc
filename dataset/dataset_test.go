package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecast/features"
)

func table(n int) *features.Table {
	t := &features.Table{Columns: []string{"daily_rent_count", "day_of_year", "lag_1"}}
	d0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		t.Dates = append(t.Dates, d0.AddDate(0, 0, i))
		t.Values = append(t.Values, []float64{float64(100 + i), float64(i + 1), float64(99 + i)})
	}
	return t
}

func TestSplitIndex(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{100, 80},
		{10, 8},
		{5, 4},
		{7, 5},
		{365, 292},
		{1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitIndex(tt.n, DefaultTrainRatio), "n=%d", tt.n)
	}
}

func TestChronological(t *testing.T) {
	s, err := Chronological(table(100), DefaultTrainRatio)
	require.NoError(t, err)

	assert.Equal(t, 80, s.Index)
	r, c := s.XTrain.Dims()
	assert.Equal(t, 80, r)
	assert.Equal(t, 2, c)
	r, _ = s.XTest.Dims()
	assert.Equal(t, 20, r)
	assert.Equal(t, 80, s.YTrain.Len())
	assert.Equal(t, 20, s.YTest.Len())
	assert.Equal(t, []string{"day_of_year", "lag_1"}, s.FeatureNames)

	// order is preserved and every train date precedes every test date
	assert.Equal(t, 100.0, s.YTrain.AtVec(0))
	assert.Equal(t, 180.0, s.YTest.AtVec(0))
	assert.Equal(t, 81.0, s.XTest.At(0, 0))
	assert.True(t, s.TrainDates[len(s.TrainDates)-1].Before(s.TestDates[0]))
}

func TestChronologicalErrors(t *testing.T) {
	tests := []struct {
		name  string
		tbl   *features.Table
		ratio float64
	}{
		{"empty", table(0), 0.8},
		{"single row", table(1), 0.8},
		{"ratio too large", table(10), 1},
		{"ratio zero", table(10), 0},
		{"no features", &features.Table{Columns: []string{"daily_rent_count"}, Dates: []time.Time{{}, {}}, Values: [][]float64{{1}, {2}}}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Chronological(tt.tbl, tt.ratio)
			assert.Error(t, err)
		})
	}
}

func TestPartitionsAreIndependentCopies(t *testing.T) {
	tbl := table(10)
	s, err := Chronological(tbl, DefaultTrainRatio)
	require.NoError(t, err)

	tbl.Values[0][1] = -1
	s.XTest.Set(0, 0, -5)
	assert.Equal(t, 1.0, s.XTrain.At(0, 0))
}

func TestHoldoutTail(t *testing.T) {
	x := mat.NewDense(20, 1, nil)
	y := mat.NewVecDense(20, nil)
	for i := 0; i < 20; i++ {
		x.Set(i, 0, float64(i))
		y.SetVec(i, float64(i))
	}

	xFit, yFit, xVal, yVal := HoldoutTail(x, y, 0.1)
	r, _ := xFit.Dims()
	assert.Equal(t, 18, r)
	assert.Equal(t, 18, yFit.Len())
	r, _ = xVal.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 18.0, yVal.AtVec(0))

	xFit, _, xVal, yVal = HoldoutTail(x, y, 0)
	assert.Same(t, x, xFit)
	assert.Nil(t, xVal)
	assert.Nil(t, yVal)

	small := mat.NewDense(5, 1, nil)
	_, _, xVal, _ = HoldoutTail(small, mat.NewVecDense(5, nil), 0.1)
	assert.Nil(t, xVal)
}
