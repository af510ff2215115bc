package visualize

import (
	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/bikecast/cleaner"
	"github.com/YuminosukeSato/bikecast/frame"
	"github.com/YuminosukeSato/bikecast/pkg/errors"
)

// Report sheet names.
const (
	SheetDaily   = "daily"
	SheetMonthly = "monthly"
	SheetMissing = "missing"
)

// WriteReport writes a workbook with the daily series, the monthly totals
// and the missing-value percentage of every cleaned column.
func WriteReport(path string, cleaned *frame.Frame, daily []cleaner.DailySummary) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close workbook")
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetDaily); err != nil {
		return errors.Wrap(err, "rename sheet")
	}
	if err := writeRows(f, SheetDaily, []interface{}{cleaner.ColRentDate, cleaner.ColDailyCount}, len(daily), func(i int) []interface{} {
		return []interface{}{daily[i].Date.Format(cleaner.DateLayout), daily[i].Count}
	}); err != nil {
		return err
	}

	totals := MonthlyTotals(daily)
	if _, err := f.NewSheet(SheetMonthly); err != nil {
		return errors.Wrap(err, "add monthly sheet")
	}
	if err := writeRows(f, SheetMonthly, []interface{}{"month", "total", "days"}, len(totals), func(i int) []interface{} {
		return []interface{}{totals[i].Month, totals[i].Total, totals[i].Days}
	}); err != nil {
		return err
	}

	if cleaned != nil {
		ratios := MissingRatios(cleaned)
		if _, err := f.NewSheet(SheetMissing); err != nil {
			return errors.Wrap(err, "add missing sheet")
		}
		if err := writeRows(f, SheetMissing, []interface{}{"column", "missing_pct"}, len(ratios), func(i int) []interface{} {
			return []interface{}{ratios[i].Column, ratios[i].Percent}
		}); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "save workbook %s", path)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, header []interface{}, n int, row func(i int) []interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrapf(err, "write %s header", sheet)
	}
	for i := 0; i < n; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "cell name")
		}
		values := row(i)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return errors.Wrapf(err, "write %s row %d", sheet, i+2)
		}
	}
	return nil
}
