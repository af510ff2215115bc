package features

import (
	"os"
	"time"

	"github.com/YuminosukeSato/bikecast/cleaner"
	"github.com/YuminosukeSato/bikecast/frame"
	"github.com/YuminosukeSato/bikecast/pkg/errors"
)

// HolidayCalendar reports whether a calendar day is a public holiday.
type HolidayCalendar interface {
	IsHoliday(day time.Time) bool
}

// NoHolidays is the calendar used when no holiday reference is supplied.
type NoHolidays struct{}

// IsHoliday always returns false.
func (NoHolidays) IsHoliday(time.Time) bool { return false }

// DateSet is a set of calendar days. Time of day and location are ignored.
type DateSet map[string]struct{}

// NewDateSet builds a DateSet from the given days.
func NewDateSet(days ...time.Time) DateSet {
	s := make(DateSet, len(days))
	for _, d := range days {
		s[dayKey(d)] = struct{}{}
	}
	return s
}

// IsHoliday reports membership of day.
func (s DateSet) IsHoliday(day time.Time) bool {
	_, ok := s[dayKey(day)]
	return ok
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// LoadHolidayCalendar reads a CSV with a date column. A file that does not
// exist yields NoHolidays; unparsable dates are an error.
func LoadHolidayCalendar(path string) (HolidayCalendar, error) {
	if path == "" {
		return NoHolidays{}, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NoHolidays{}, nil
	}
	f, err := frame.ReadFile(path)
	if err != nil {
		return nil, err
	}
	col, err := f.Column("date")
	if err != nil {
		return nil, errors.Wrapf(err, "holiday file %s", path)
	}
	set := make(DateSet, len(col))
	for i, v := range col {
		d, ok := cleaner.ParseDate(v)
		if !ok {
			return nil, errors.NewValueError("LoadHolidayCalendar", "row "+itoa(i)+": invalid date "+quote(v))
		}
		set[dayKey(d)] = struct{}{}
	}
	return set, nil
}
