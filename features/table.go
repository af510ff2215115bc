package features

import (
	"math"
	"strconv"
	"time"

	"github.com/YuminosukeSato/bikecast/cleaner"
	"github.com/YuminosukeSato/bikecast/frame"
	"github.com/YuminosukeSato/bikecast/pkg/errors"
)

// Table holds the feature rows of the daily series. Values[i][j] is column
// Columns[j] on Dates[i]; the first column is always daily_rent_count.
type Table struct {
	Dates   []time.Time
	Columns []string
	Values  [][]float64
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Dates)
}

// Index returns the position of column name in Columns, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of column name.
func (t *Table) Column(name string) ([]float64, error) {
	j := t.Index(name)
	if j < 0 {
		return nil, errors.Wrapf(errors.ErrMissingColumn, "feature column %q", name)
	}
	out := make([]float64, t.Len())
	for i, row := range t.Values {
		out[i] = row[j]
	}
	return out, nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{
		Dates:   append([]time.Time(nil), t.Dates...),
		Columns: append([]string(nil), t.Columns...),
		Values:  make([][]float64, len(t.Values)),
	}
	for i, row := range t.Values {
		out.Values[i] = append([]float64(nil), row...)
	}
	return out
}

func (t *Table) appendColumn(name string, vals []float64) {
	t.Columns = append(t.Columns, name)
	for i := range t.Values {
		t.Values[i] = append(t.Values[i], vals[i])
	}
}

// Frame renders the table with rent_date as the first column.
func (t *Table) Frame() *frame.Frame {
	f := frame.New(append([]string{cleaner.ColRentDate}, t.Columns...)...)
	f.Rows = make([][]string, t.Len())
	for i, row := range t.Values {
		cells := make([]string, 0, len(row)+1)
		cells = append(cells, t.Dates[i].Format(cleaner.DateLayout))
		for _, v := range row {
			cells = append(cells, formatValue(v))
		}
		f.Rows[i] = cells
	}
	return f
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseTable converts a feature frame back to a Table. Every column other
// than rent_date must be numeric; an empty cell is read as NaN.
func ParseTable(f *frame.Frame) (*Table, error) {
	dateIdx := f.Index(cleaner.ColRentDate)
	if dateIdx < 0 {
		return nil, errors.Wrapf(errors.ErrMissingColumn, "feature table has no %s column", cleaner.ColRentDate)
	}
	if f.Index(cleaner.ColDailyCount) < 0 {
		return nil, errors.Wrapf(errors.ErrMissingColumn, "feature table has no %s column", cleaner.ColDailyCount)
	}

	t := &Table{Columns: []string{cleaner.ColDailyCount}}
	src := []int{f.Index(cleaner.ColDailyCount)}
	for j, c := range f.Columns {
		if j == dateIdx || c == cleaner.ColDailyCount {
			continue
		}
		t.Columns = append(t.Columns, c)
		src = append(src, j)
	}

	t.Dates = make([]time.Time, f.Len())
	t.Values = make([][]float64, f.Len())
	for i, row := range f.Rows {
		d, ok := cleaner.ParseDate(row[dateIdx])
		if !ok {
			return nil, errors.NewValueError("ParseTable", "row "+itoa(i)+": invalid date "+quote(row[dateIdx]))
		}
		t.Dates[i] = d
		vals := make([]float64, len(src))
		for k, j := range src {
			if row[j] == "" {
				vals[k] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				return nil, errors.NewValueError("ParseTable", "row "+itoa(i)+" column "+t.Columns[k]+": not a number "+quote(row[j]))
			}
			vals[k] = v
		}
		t.Values[i] = vals
	}
	return t, nil
}

// DropUndefined returns t without the feature columns that are NaN on every
// row, together with the removed names. t is returned unchanged when no
// column is removed.
func (t *Table) DropUndefined() (*Table, []string) {
	var keep []int
	var dropped []string
	for j, name := range t.Columns {
		if name != cleaner.ColDailyCount && t.Len() > 0 && t.undefined(j) {
			dropped = append(dropped, name)
			continue
		}
		keep = append(keep, j)
	}
	if len(dropped) == 0 {
		return t, nil
	}

	out := &Table{
		Dates:   append([]time.Time(nil), t.Dates...),
		Columns: make([]string, len(keep)),
		Values:  make([][]float64, len(t.Values)),
	}
	for k, j := range keep {
		out.Columns[k] = t.Columns[j]
	}
	for i, row := range t.Values {
		vals := make([]float64, len(keep))
		for k, j := range keep {
			vals[k] = row[j]
		}
		out.Values[i] = vals
	}
	return out, dropped
}

func (t *Table) undefined(j int) bool {
	for _, row := range t.Values {
		if !math.IsNaN(row[j]) {
			return false
		}
	}
	return true
}

// ReadTable reads a feature file.
func ReadTable(path string) (*Table, error) {
	f, err := frame.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTable(f)
}

// WriteTable writes t to path.
func WriteTable(path string, t *Table) error {
	return frame.WriteFile(path, t.Frame())
}
