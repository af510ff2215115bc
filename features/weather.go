package features

import (
	"math"
	"os"
	"strconv"
	"time"

	"github.com/YuminosukeSato/bikecast/cleaner"
	"github.com/YuminosukeSato/bikecast/frame"
	"github.com/YuminosukeSato/bikecast/pkg/errors"
)

// Weather column names.
const (
	ColRainMM  = "rain_mm"
	ColMaxTemp = "max_temp"
)

// Observation is the weather of one day.
type Observation struct {
	RainMM  float64
	MaxTemp float64
}

// WeatherSource provides daily observations.
type WeatherSource interface {
	Lookup(day time.Time) (Observation, bool)
}

// WeatherTable is an in-memory WeatherSource keyed by calendar day.
type WeatherTable map[string]Observation

// Lookup implements WeatherSource.
func (w WeatherTable) Lookup(day time.Time) (Observation, bool) {
	o, ok := w[dayKey(day)]
	return o, ok
}

// LoadWeather reads a CSV with date, rain_mm and max_temp columns. A file
// that does not exist yields a nil source without error.
func LoadWeather(path string) (WeatherSource, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	f, err := frame.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dates, err := f.Column("date")
	if err != nil {
		return nil, errors.Wrapf(err, "weather file %s", path)
	}
	rain, err := f.Column(ColRainMM)
	if err != nil {
		return nil, errors.Wrapf(err, "weather file %s", path)
	}
	temp, err := f.Column(ColMaxTemp)
	if err != nil {
		return nil, errors.Wrapf(err, "weather file %s", path)
	}

	out := make(WeatherTable, len(dates))
	for i := range dates {
		d, ok := cleaner.ParseDate(dates[i])
		if !ok {
			return nil, errors.NewValueError("LoadWeather", "row "+itoa(i)+": invalid date "+quote(dates[i]))
		}
		out[dayKey(d)] = Observation{RainMM: parseOrNaN(rain[i]), MaxTemp: parseOrNaN(temp[i])}
	}
	return out, nil
}

// JoinWeather returns a copy of t with rain_mm and max_temp appended. Days
// without an observation are filled with the same backward-then-forward
// policy as the derived features. When no day matches, t is returned
// unchanged and ok is false.
func JoinWeather(t *Table, w WeatherSource) (out *Table, ok bool, err error) {
	if w == nil {
		return t, false, nil
	}
	rain := make([]float64, t.Len())
	temp := make([]float64, t.Len())
	matched := 0
	for i, d := range t.Dates {
		o, found := w.Lookup(d)
		if !found {
			rain[i], temp[i] = math.NaN(), math.NaN()
			continue
		}
		rain[i], temp[i] = o.RainMM, o.MaxTemp
		matched++
	}
	if matched == 0 {
		return t, false, nil
	}

	out = t.Clone()
	for _, c := range []struct {
		name string
		vals []float64
	}{{ColRainMM, rain}, {ColMaxTemp, temp}} {
		filled := FillBackwardForward(c.vals)
		if hasNaN(filled) {
			return nil, false, errors.NewValidationError(c.name, "no valid observation to fill from", nil)
		}
		out.appendColumn(c.name, filled)
	}
	return out, true, nil
}

func parseOrNaN(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func itoa(i int) string { return strconv.Itoa(i) }

func quote(s string) string { return strconv.Quote(s) }
