package cleaner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/bikecast/frame"
	"github.com/YuminosukeSato/bikecast/pkg/errors"
	"github.com/YuminosukeSato/bikecast/pkg/log"
)

func day(s string) time.Time {
	t, _ := time.Parse(DateLayout, s)
	return t
}

func newTestCleaner() (*Cleaner, *log.TestLogger) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	return New(WithLogger(logger)), logger
}

func rawFrame(t *testing.T) *frame.Frame {
	t.Helper()
	f := frame.New("_id", "借車日期", "借車站", "還車站", "租借時數", "_importdate", "備註", "資料月份")
	rows := [][]string{
		{"1", "2023-01-02", "A", "B", "0.5", "x", "n1", "2023-01"},
		{"2", "2023-01-01", "C", "D", "", "x", "n2", "2023-01"},
		{"3", "not a date", "E", "F", "1", "x", "n3", "2023-01"},
		{"4", "2023/01/01", "G", "H", "2", "x", "n4", "2023-01"},
		{"5", "", "I", "J", "3", "x", "n5", "2023-01"},
	}
	for _, r := range rows {
		require.NoError(t, f.Append(r...))
	}
	return f
}

func TestClean(t *testing.T) {
	c, _ := newTestCleaner()
	raw := rawFrame(t)
	before := raw.Clone()

	res, err := c.Clean(raw)
	require.NoError(t, err)

	assert.Equal(t, before, raw, "input must not be modified")
	assert.Equal(t, []string{ColRentDate, ColStartStation, ColEndStation, ColDuration, ColMonth}, res.Cleaned.Columns)
	assert.Equal(t, [][]string{
		{"2023-01-01", "C", "D", "", "2023-01"},
		{"2023-01-01", "G", "H", "2", "2023-01"},
		{"2023-01-02", "A", "B", "0.5", "2023-01"},
	}, res.Cleaned.Rows, "sorted by date with ties in input order")
	assert.Equal(t, 2, res.Dropped)

	assert.Equal(t, []DailySummary{
		{Date: day("2023-01-01"), Count: 2},
		{Date: day("2023-01-02"), Count: 1},
	}, res.Daily)

	assert.InDelta(t, 20.0, res.MissingRatio[ColDuration], 1e-9)
	assert.InDelta(t, 20.0, res.MissingRatio[ColRentDate], 1e-9)
}

func TestCleanDailyCountsMatchCleanedRows(t *testing.T) {
	c, _ := newTestCleaner()
	f := frame.New("借車日期")
	dates := []string{"2023-03-05", "2023-03-01", "2023-03-05", "2023-03-02", "2023-03-05", "2023-03-01"}
	for _, d := range dates {
		require.NoError(t, f.Append(d))
	}

	res, err := c.Clean(f)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, row := range res.Cleaned.Rows {
		counts[row[0]]++
	}
	require.Len(t, res.Daily, len(counts))
	for _, d := range res.Daily {
		assert.Equal(t, counts[d.Date.Format(DateLayout)], d.Count)
	}
	for i := 1; i < len(res.Daily); i++ {
		assert.True(t, res.Daily[i-1].Date.Before(res.Daily[i].Date))
	}
}

func TestCleanProjectsCanonicalColumns(t *testing.T) {
	c, _ := newTestCleaner()
	f := frame.New("extra", "借車日期")
	require.NoError(t, f.Append("dropped", "2023-01-01"))

	res, err := c.Clean(f)
	require.NoError(t, err)
	assert.Equal(t, []string{ColRentDate}, res.Cleaned.Columns)
	assert.Equal(t, [][]string{{"2023-01-01"}}, res.Cleaned.Rows)
}

func TestCleanRequiresDateColumn(t *testing.T) {
	c, _ := newTestCleaner()
	_, err := c.Clean(frame.New("借車站"))
	assert.True(t, errors.Is(err, errors.ErrMissingColumn))
}

func TestCleanFileIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "raw.csv")
	require.NoError(t, frame.WriteFile(rawPath, rawFrame(t)))

	c, _ := newTestCleaner()
	var outputs [2][2][]byte
	for run := 0; run < 2; run++ {
		cleanedPath := filepath.Join(dir, "cleaned.csv")
		dailyPath := filepath.Join(dir, "daily.csv")
		_, err := c.CleanFile(rawPath, cleanedPath, dailyPath)
		require.NoError(t, err)

		outputs[run][0], err = os.ReadFile(cleanedPath)
		require.NoError(t, err)
		outputs[run][1], err = os.ReadFile(dailyPath)
		require.NoError(t, err)
	}
	assert.Equal(t, outputs[0], outputs[1])

	daily, err := ReadDaily(filepath.Join(dir, "daily.csv"))
	require.NoError(t, err)
	assert.Equal(t, []DailySummary{{day("2023-01-01"), 2}, {day("2023-01-02"), 1}}, daily)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2023-01-05", "2023-01-05", true},
		{"2023/01/05", "2023-01-05", true},
		{"2023/1/5", "2023-01-05", true},
		{"2023-01-05 13:45:00", "2023-01-05", true},
		{"2023-01-05T13:45:00+08:00", "2023-01-05", true},
		{"20230105", "2023-01-05", true},
		{" 2023-01-05 ", "2023-01-05", true},
		{"2023-13-01", "", false},
		{"yesterday", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got.Format(DateLayout))
			}
		})
	}
}

func TestParseDailyRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		row  []string
	}{
		{"bad date", []string{"nope", "3"}},
		{"bad count", []string{"2023-01-01", "x"}},
		{"negative count", []string{"2023-01-01", "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := frame.New(ColRentDate, ColDailyCount)
			require.NoError(t, f.Append(tt.row...))
			_, err := ParseDaily(f)
			assert.Error(t, err)
		})
	}
}
