package visualize

import (
	"sort"
	"time"

	"github.com/YuminosukeSato/bikecast/cleaner"
	"github.com/YuminosukeSato/bikecast/frame"
)

// ColumnRatio is the percentage of missing cells of one column.
type ColumnRatio struct {
	Column  string
	Percent float64
}

// MissingRatios returns the missing percentage of every column of f,
// highest first. Ties keep column order.
func MissingRatios(f *frame.Frame) []ColumnRatio {
	ratios := f.MissingRatio()
	out := make([]ColumnRatio, len(ratios))
	for i, r := range ratios {
		out[i] = ColumnRatio{Column: f.Columns[i], Percent: r}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Percent > out[b].Percent })
	return out
}

// StationCount is the number of rentals that started at a station.
type StationCount struct {
	Station string
	Count   int
}

// TopStations returns the n start stations with the most rentals, most
// rented first. Empty station cells are ignored and ties are ordered by name.
func TopStations(f *frame.Frame, n int) ([]StationCount, error) {
	col, err := f.Column(cleaner.ColStartStation)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, s := range col {
		if s != "" {
			counts[s]++
		}
	}
	out := make([]StationCount, 0, len(counts))
	for s, c := range counts {
		out = append(out, StationCount{Station: s, Count: c})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].Station < out[b].Station
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// MonthlyCounts groups the daily counts by calendar month. Index 0 is January.
func MonthlyCounts(daily []cleaner.DailySummary) [12][]float64 {
	var out [12][]float64
	for _, d := range daily {
		m := int(d.Date.Month()) - 1
		out[m] = append(out[m], float64(d.Count))
	}
	return out
}

// WeekdayCounts groups the daily counts by weekday. Index 0 is Monday.
func WeekdayCounts(daily []cleaner.DailySummary) [7][]float64 {
	var out [7][]float64
	for _, d := range daily {
		w := mondayFirst(d.Date.Weekday())
		out[w] = append(out[w], float64(d.Count))
	}
	return out
}

func mondayFirst(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// MonthlyTotal is the sum of daily counts in one month.
type MonthlyTotal struct {
	Month string // 2006-01
	Total int
	Days  int
}

// MonthlyTotals sums the daily counts per month in chronological order.
func MonthlyTotals(daily []cleaner.DailySummary) []MonthlyTotal {
	var out []MonthlyTotal
	index := make(map[string]int)
	for _, d := range daily {
		key := d.Date.Format("2006-01")
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, MonthlyTotal{Month: key})
		}
		out[i].Total += d.Count
		out[i].Days++
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Month < out[b].Month })
	return out
}
