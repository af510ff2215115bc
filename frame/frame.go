// Package frame implements the string-typed tables exchanged between pipeline
// stages and their CSV persistence.
//
// Files are written as UTF-8 with a leading byte-order mark so spreadsheet
// tools detect the encoding of the Traditional Chinese headers. A BOM is
// stripped when present on read. An empty cell is the missing marker.
package frame

import (
	"encoding/csv"
	"io"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/YuminosukeSato/bikecast/pkg/errors"
)

// Frame is an ordered set of named columns over string rows.
// Every row has exactly len(Columns) cells.
type Frame struct {
	Columns []string
	Rows    [][]string
}

// New creates an empty frame with the given columns.
func New(columns ...string) *Frame {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Frame{Columns: cols}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Rows)
}

// Index returns the position of column name, or -1.
func (f *Frame) Index(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether the frame has column name.
func (f *Frame) Has(name string) bool {
	return f.Index(name) >= 0
}

// Column returns a copy of the values of column name.
func (f *Frame) Column(name string) ([]string, error) {
	idx := f.Index(name)
	if idx < 0 {
		return nil, errors.Wrapf(errors.ErrMissingColumn, "column %q", name)
	}
	out := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Append adds a row. Short rows are padded with missing cells and long rows
// are rejected.
func (f *Frame) Append(row ...string) error {
	if len(row) > len(f.Columns) {
		return errors.NewDimensionError("Frame.Append", len(f.Columns), len(row), 1)
	}
	cells := make([]string, len(f.Columns))
	copy(cells, row)
	f.Rows = append(f.Rows, cells)
	return nil
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := New(f.Columns...)
	out.Rows = make([][]string, len(f.Rows))
	for i, row := range f.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Select returns a new frame with the named columns in the given order.
// Unknown names are skipped.
func (f *Frame) Select(names ...string) *Frame {
	var idx []int
	var cols []string
	for _, n := range names {
		if i := f.Index(n); i >= 0 {
			idx = append(idx, i)
			cols = append(cols, n)
		}
	}
	out := New(cols...)
	out.Rows = make([][]string, len(f.Rows))
	for r, row := range f.Rows {
		cells := make([]string, len(idx))
		for j, i := range idx {
			cells[j] = row[i]
		}
		out.Rows[r] = cells
	}
	return out
}

// MissingRatio returns, per column in order, the percentage of empty cells.
// An empty frame reports 0 for every column.
func (f *Frame) MissingRatio() []float64 {
	out := make([]float64, len(f.Columns))
	if len(f.Rows) == 0 {
		return out
	}
	for _, row := range f.Rows {
		for j, v := range row {
			if v == "" {
				out[j]++
			}
		}
	}
	for j := range out {
		out[j] = out[j] / float64(len(f.Rows)) * 100
	}
	return out
}

// Read parses CSV from r. The first record is the header. A leading UTF-8
// BOM is removed.
func Read(r io.Reader) (*Frame, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.Wrap(errors.ErrEmptyData, "csv has no header")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}

	f := New(header...)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read csv record")
		}
		if err := f.Append(rec...); err != nil {
			line, _ := cr.FieldPos(0)
			return nil, errors.Wrapf(err, "csv line %d", line)
		}
	}
	return f, nil
}

// Write serialises f as CSV with a UTF-8 BOM.
func Write(w io.Writer, f *Frame) error {
	encoded := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(encoded)
	if err := cw.Write(f.Columns); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	if err := cw.WriteAll(f.Rows); err != nil {
		return errors.Wrap(err, "write csv records")
	}
	return errors.Wrap(encoded.Close(), "flush csv")
}

// ReadFile reads a CSV file written by WriteFile or any UTF-8 CSV.
func ReadFile(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	f, err := Read(file)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return f, nil
}

// WriteFile writes f to path, replacing any existing file.
func WriteFile(path string, f *Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := Write(file, f); err != nil {
		file.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(file.Close(), "close %s", path)
}
