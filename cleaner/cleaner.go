// Package cleaner turns the raw transfer table into the canonical cleaned
// table and the per-day transfer counts.
package cleaner

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/YuminosukeSato/bikecast/frame"
	"github.com/YuminosukeSato/bikecast/pkg/errors"
	"github.com/YuminosukeSato/bikecast/pkg/log"
)

// Canonical column names.
const (
	ColRentDate     = "rent_date"
	ColStartTime    = "start_time"
	ColEndTime      = "end_time"
	ColStartStation = "start_station"
	ColEndStation   = "end_station"
	ColDuration     = "duration_hour"
	ColMonth        = "month"
	ColDailyCount   = "daily_rent_count"
)

// DateLayout is the layout rent_date is written with.
const DateLayout = "2006-01-02"

// RenameMap maps source column names to canonical names.
var RenameMap = map[string]string{
	"借車日期": ColRentDate,
	"借車時間": ColStartTime,
	"還車時間": ColEndTime,
	"借車站":  ColStartStation,
	"還車站":  ColEndStation,
	"租借時數": ColDuration,
	"資料月份": ColMonth,
}

// CleanedColumns is the projection of the cleaned table, in output order.
var CleanedColumns = []string{ColRentDate, ColStartStation, ColEndStation, ColDuration, ColMonth}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"20060102",
	"2006/1/2",
	"2006-1-2",
}

// ParseDate parses s with the accepted layouts and truncates it to the
// calendar day. ok is false when no layout matches.
func ParseDate(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			y, m, d := parsed.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// DailySummary is the number of transfers on one calendar day.
type DailySummary struct {
	Date  time.Time
	Count int
}

// Result is the output of Clean. Cleaned rows are sorted by rent_date with
// ties in input order, and Daily has one entry per distinct date.
type Result struct {
	Cleaned *frame.Frame
	Daily   []DailySummary
	// Dropped is the number of rows removed for an unparsable rent_date.
	Dropped int
	// MissingRatio is the percentage of empty cells per renamed raw column.
	MissingRatio map[string]float64
}

// Cleaner applies the cleaning rules. It never modifies its input.
type Cleaner struct {
	logger log.Logger
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *Cleaner) { c.logger = l }
}

// New creates a Cleaner.
func New(opts ...Option) *Cleaner {
	c := &Cleaner{}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.GetLoggerWithName("cleaner")
	}
	return c
}

// Clean renames, filters and sorts the raw table and aggregates daily counts.
func (c *Cleaner) Clean(raw *frame.Frame) (*Result, error) {
	ratios := raw.MissingRatio()
	missing := make(map[string]float64, len(ratios))
	for i, col := range raw.Columns {
		name := canonical(col)
		missing[name] = ratios[i]
		c.logger.Info("missing ratio",
			log.ColumnKey, name,
			log.MissingRatioKey, round2(ratios[i]),
		)
	}

	renamed := rename(raw)

	dateIdx := renamed.Index(ColRentDate)
	if dateIdx < 0 {
		return nil, errors.Wrapf(errors.ErrMissingColumn, "raw table has no %s column", ColRentDate)
	}

	type dated struct {
		date time.Time
		row  []string
	}
	kept := make([]dated, 0, renamed.Len())
	for _, row := range renamed.Rows {
		d, ok := ParseDate(row[dateIdx])
		if !ok {
			continue
		}
		kept = append(kept, dated{date: d, row: row})
	}
	dropped := renamed.Len() - len(kept)
	if dropped > 0 {
		errors.Warn(errors.NewDataConversionWarning("string", "date",
			fmt.Sprintf("%d rows with unparsable %s dropped", dropped, ColRentDate)))
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].date.Before(kept[j].date) })

	projected := projection(renamed.Columns)
	cleaned := frame.New(columnNames(renamed.Columns, projected)...)
	cleaned.Rows = make([][]string, 0, len(kept))
	for _, k := range kept {
		cells := make([]string, len(projected))
		for j, src := range projected {
			if src == dateIdx {
				cells[j] = k.date.Format(DateLayout)
			} else {
				cells[j] = k.row[src]
			}
		}
		cleaned.Rows = append(cleaned.Rows, cells)
	}

	daily := make([]DailySummary, 0)
	for _, k := range kept {
		if n := len(daily); n > 0 && daily[n-1].Date.Equal(k.date) {
			daily[n-1].Count++
			continue
		}
		daily = append(daily, DailySummary{Date: k.date, Count: 1})
	}

	c.logger.Info("cleaning finished",
		log.SamplesKey, cleaned.Len(),
		log.DroppedKey, dropped,
		"days", len(daily),
	)
	return &Result{Cleaned: cleaned, Daily: daily, Dropped: dropped, MissingRatio: missing}, nil
}

// CleanFile reads rawPath and writes the cleaned and daily tables.
func (c *Cleaner) CleanFile(rawPath, cleanedPath, dailyPath string) (*Result, error) {
	if err := errors.RequireFile(rawPath, "fetch"); err != nil {
		return nil, err
	}
	raw, err := frame.ReadFile(rawPath)
	if err != nil {
		return nil, err
	}
	res, err := c.Clean(raw)
	if err != nil {
		return nil, err
	}
	if err := frame.WriteFile(cleanedPath, res.Cleaned); err != nil {
		return nil, err
	}
	if err := WriteDaily(dailyPath, res.Daily); err != nil {
		return nil, err
	}
	c.logger.Info("cleaned tables written",
		log.FilePathKey, cleanedPath,
		"daily_path", dailyPath,
	)
	return res, nil
}

// rename returns a copy of raw with canonical names applied and ingestion
// artifacts (names starting with "_" or containing "import") removed.
func rename(raw *frame.Frame) *frame.Frame {
	var keep []int
	var names []string
	for i, col := range raw.Columns {
		name := canonical(col)
		if isArtifact(name) {
			continue
		}
		keep = append(keep, i)
		names = append(names, name)
	}
	out := frame.New(names...)
	out.Rows = make([][]string, len(raw.Rows))
	for r, row := range raw.Rows {
		cells := make([]string, len(keep))
		for j, i := range keep {
			cells[j] = row[i]
		}
		out.Rows[r] = cells
	}
	return out
}

func canonical(col string) string {
	if canon, ok := RenameMap[col]; ok {
		return canon
	}
	return col
}

func isArtifact(name string) bool {
	return strings.HasPrefix(name, "_") || strings.Contains(name, "import")
}

// projection returns the source index of every canonical column present.
func projection(columns []string) []int {
	var idx []int
	for _, want := range CleanedColumns {
		for i, col := range columns {
			if col == want {
				idx = append(idx, i)
				break
			}
		}
	}
	return idx
}

func columnNames(columns []string, idx []int) []string {
	out := make([]string, len(idx))
	for j, i := range idx {
		out[j] = columns[i]
	}
	return out
}

func round2(v float64) float64 {
	f, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return f
}
