package dataset

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXOptions selects the worksheet to load.
type XLSXOptions struct {
	// SheetName takes precedence over SheetIndex when set.
	SheetName string
	// SheetIndex is 1-based; values <= 0 select the first sheet.
	SheetIndex int
	MaxRows    int
	Numbers    NumberFormat
}

// ReadXLSX loads one worksheet of an .xlsx workbook. The first row is the header.
func ReadXLSX(path string, opt XLSXOptions) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet, err := resolveSheet(f, opt, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return New()
	}
	header := rows[0]
	body := rows[1:]
	if opt.MaxRows > 0 && len(body) > opt.MaxRows {
		body = body[:opt.MaxRows]
	}
	raw := make([][]string, len(header))
	for _, rec := range body {
		for j := range header {
			v := ""
			if j < len(rec) {
				v = rec[j]
			}
			raw[j] = append(raw[j], v)
		}
	}
	return fromRaw(header, raw, opt.Numbers)
}

func resolveSheet(f *excelize.File, opt XLSXOptions, file string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook %s has no sheets", file)
	}
	if opt.SheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, opt.SheetName) {
				return s, nil
			}
		}
		return "", fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
			opt.SheetName, file, strings.Join(sheets, ", "))
	}
	idx := opt.SheetIndex
	if idx <= 0 {
		idx = 1
	}
	if idx > len(sheets) {
		return "", fmt.Errorf("sheet index %d out of range: workbook '%s' has %d sheets", idx, file, len(sheets))
	}
	return sheets[idx-1], nil
}

// WriteXLSX stores ds in a single-sheet workbook. Numeric cells keep their
// numeric type; missing values are left blank.
func WriteXLSX(path string, ds *Dataset, sheet string) error {
	if sheet == "" {
		sheet = "Sheet1"
	}
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return err
		}
	}
	for j, name := range ds.Names() {
		cell, _ := excelize.CoordinatesToCellName(j+1, 1)
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}
	for j, c := range ds.Columns() {
		for i := 0; i < ds.NumRows(); i++ {
			if c.IsMissing(i) {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			var v any
			if c.Kind == Numeric {
				x := c.Num[i]
				if math.IsInf(x, 0) {
					v = FormatFloat(x)
				} else {
					v = x
				}
			} else {
				v = c.Text[i]
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return f.SaveAs(path)
}
