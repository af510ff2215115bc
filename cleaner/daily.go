package cleaner

import (
	"strconv"

	"github.com/YuminosukeSato/bikecast/frame"
	"github.com/YuminosukeSato/bikecast/pkg/errors"
)

// DailyFrame renders daily counts as a rent_date, daily_rent_count table.
func DailyFrame(daily []DailySummary) *frame.Frame {
	f := frame.New(ColRentDate, ColDailyCount)
	f.Rows = make([][]string, len(daily))
	for i, d := range daily {
		f.Rows[i] = []string{d.Date.Format(DateLayout), strconv.Itoa(d.Count)}
	}
	return f
}

// WriteDaily writes daily counts to path.
func WriteDaily(path string, daily []DailySummary) error {
	return frame.WriteFile(path, DailyFrame(daily))
}

// ParseDaily converts a daily table back to DailySummary values.
func ParseDaily(f *frame.Frame) ([]DailySummary, error) {
	dates, err := f.Column(ColRentDate)
	if err != nil {
		return nil, err
	}
	counts, err := f.Column(ColDailyCount)
	if err != nil {
		return nil, err
	}
	out := make([]DailySummary, len(dates))
	for i := range dates {
		d, ok := ParseDate(dates[i])
		if !ok {
			return nil, errors.NewValueError("ParseDaily", "row "+strconv.Itoa(i)+": invalid date "+strconv.Quote(dates[i]))
		}
		n, err := strconv.Atoi(counts[i])
		if err != nil || n < 0 {
			return nil, errors.NewValueError("ParseDaily", "row "+strconv.Itoa(i)+": invalid count "+strconv.Quote(counts[i]))
		}
		out[i] = DailySummary{Date: d, Count: n}
	}
	return out, nil
}

// ReadDaily reads a file written by WriteDaily.
func ReadDaily(path string) ([]DailySummary, error) {
	f, err := frame.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDaily(f)
}
