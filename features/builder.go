// Package features derives the model inputs from the daily transfer series:
// calendar flags, holiday membership, lagged counts and trailing rolling
// statistics, with undefined leading values filled per column.
package features

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/bikecast/cleaner"
	"github.com/YuminosukeSato/bikecast/pkg/errors"
	"github.com/YuminosukeSato/bikecast/pkg/log"
)

// Derived column names.
const (
	ColDayOfYear = "day_of_year"
	ColIsWeekend = "is_weekend"
	ColIsHoliday = "is_holiday"
)

// Lags are the shifts of the lag features, in column order.
var Lags = []int{1, 7, 14}

// Windows are the trailing window sizes of the rolling features.
var Windows = []int{7, 14, 30}

// Columns returns the numeric columns produced by Build, in order.
func Columns() []string {
	cols := []string{cleaner.ColDailyCount, ColDayOfYear, ColIsWeekend, ColIsHoliday}
	for _, k := range Lags {
		cols = append(cols, LagColumn(k))
	}
	for _, w := range Windows {
		cols = append(cols, RollMeanColumn(w), RollStdColumn(w))
	}
	return cols
}

// LagColumn names the lag-k column.
func LagColumn(k int) string { return "lag_" + itoa(k) }

// RollMeanColumn names the rolling mean over w days.
func RollMeanColumn(w int) string { return "roll_mean_" + itoa(w) }

// RollStdColumn names the rolling standard deviation over w days.
func RollStdColumn(w int) string { return "roll_std_" + itoa(w) }

// Builder derives feature tables.
type Builder struct {
	holidays HolidayCalendar
	logger   log.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithHolidays sets the holiday reference. The default is NoHolidays.
func WithHolidays(h HolidayCalendar) Option {
	return func(b *Builder) {
		if h != nil {
			b.holidays = h
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{holidays: NoHolidays{}}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.GetLoggerWithName("features")
	}
	return b
}

// Build derives one feature row per day. daily must be strictly ascending
// by date. Lag and rolling values that are undefined at the start of the
// series are back-filled then forward-filled. A column with no defined value
// at all, such as lag_14 on a ten-day series, stays missing and is logged.
func (b *Builder) Build(daily []cleaner.DailySummary) (*Table, error) {
	n := len(daily)
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "daily series")
	}
	for i := 1; i < n; i++ {
		if !daily[i].Date.After(daily[i-1].Date) {
			return nil, errors.NewValidationError("daily",
				"dates must be strictly ascending", daily[i].Date.Format(cleaner.DateLayout))
		}
	}

	counts := make([]float64, n)
	for i, d := range daily {
		counts[i] = float64(d.Count)
	}

	cols := map[string][]float64{cleaner.ColDailyCount: counts}
	dayOfYear := make([]float64, n)
	weekend := make([]float64, n)
	holiday := make([]float64, n)
	for i, d := range daily {
		dayOfYear[i] = float64(d.Date.YearDay())
		weekend[i] = boolFloat(isWeekend(d.Date.Weekday()))
		holiday[i] = boolFloat(b.holidays.IsHoliday(d.Date))
	}
	cols[ColDayOfYear] = dayOfYear
	cols[ColIsWeekend] = weekend
	cols[ColIsHoliday] = holiday

	for _, k := range Lags {
		cols[LagColumn(k)] = Shift(counts, k)
	}
	for _, w := range Windows {
		mean, std := Rolling(counts, w)
		cols[RollMeanColumn(w)] = mean
		cols[RollStdColumn(w)] = std
	}

	order := Columns()
	for _, name := range order {
		if !hasNaN(cols[name]) {
			continue
		}
		filled := FillBackwardForward(cols[name])
		if hasNaN(filled) {
			b.logger.Warn("feature undefined on every row; left missing",
				log.ColumnKey, name,
				log.SamplesKey, n,
			)
		}
		cols[name] = filled
	}

	t := &Table{
		Dates:   make([]time.Time, n),
		Columns: order,
		Values:  make([][]float64, n),
	}
	for i := range daily {
		t.Dates[i] = daily[i].Date
		row := make([]float64, len(order))
		for j, name := range order {
			row[j] = cols[name][i]
		}
		t.Values[i] = row
	}

	b.logger.Info("features built", log.SamplesKey, n, log.FeaturesKey, len(order)-1)
	return t, nil
}

// BuildFile reads the daily summary at dailyPath, builds features and writes
// them to outPath.
func (b *Builder) BuildFile(dailyPath, outPath string) (*Table, error) {
	if err := errors.RequireFile(dailyPath, "clean"); err != nil {
		return nil, err
	}
	daily, err := cleaner.ReadDaily(dailyPath)
	if err != nil {
		return nil, err
	}
	t, err := b.Build(daily)
	if err != nil {
		return nil, err
	}
	if err := WriteTable(outPath, t); err != nil {
		return nil, err
	}
	b.logger.Info("feature file written", log.FilePathKey, outPath)
	return t, nil
}

// Shift returns x delayed by k positions; the first k values are NaN.
func Shift(x []float64, k int) []float64 {
	out := make([]float64, len(x))
	for i := range out {
		if i < k {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[i-k]
	}
	return out
}

// Rolling returns the mean and sample standard deviation of x over the
// inclusive trailing window [i-w+1, i]. The first w-1 values are NaN.
func Rolling(x []float64, w int) (mean, std []float64) {
	mean = make([]float64, len(x))
	std = make([]float64, len(x))
	for i := range x {
		if i < w-1 {
			mean[i], std[i] = math.NaN(), math.NaN()
			continue
		}
		mean[i], std[i] = stat.MeanStdDev(x[i-w+1:i+1], nil)
	}
	return mean, std
}

// FillBackwardForward copies the nearest following defined value into each
// NaN, then the nearest preceding defined value into any NaN left at the
// end. A column with no defined value stays NaN.
func FillBackwardForward(x []float64) []float64 {
	out := append([]float64(nil), x...)
	next := math.NaN()
	for i := len(out) - 1; i >= 0; i-- {
		if math.IsNaN(out[i]) {
			out[i] = next
		} else {
			next = out[i]
		}
	}
	prev := math.NaN()
	for i := range out {
		if math.IsNaN(out[i]) {
			out[i] = prev
		} else {
			prev = out[i]
		}
	}
	return out
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func hasNaN(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
