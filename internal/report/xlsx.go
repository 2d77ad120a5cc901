package report

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/riskcluster-cli/internal/utils"
)

// Built-in excelize number formats.
const (
	numFmtDecimal = 2  // 0.00
	numFmtPercent = 10 // 0.00%
)

// ExportOptions controls workbook export.
type ExportOptions struct {
	// Template is an optional .xlsx whose styles and layout are reused.
	Template string
	// Sheet receives the table; empty means the template's active sheet,
	// or "Summary" for a fresh workbook.
	Sheet string
}

// ReportingDegradedError reports that the template could not be used. The
// workbook was still written, unstyled by the template.
type ReportingDegradedError struct {
	Template string
	Err      error
}

func (e *ReportingDegradedError) Error() string {
	return fmt.Sprintf("report template %s unavailable, wrote plain workbook: %v", e.Template, e.Err)
}

func (e *ReportingDegradedError) Unwrap() error { return e.Err }

// WriteXLSX writes the summary table to dst. Rows whose values all fall in
// [0,1] get a percentage format. A template that cannot be opened does not
// stop the export; the result is then a *ReportingDegradedError.
func WriteXLSX(s *Summary, dst string, opt ExportOptions) error {
	var degraded error
	var f *excelize.File
	if opt.Template != "" {
		tf, err := excelize.OpenFile(opt.Template)
		if err != nil {
			degraded = &ReportingDegradedError{Template: opt.Template, Err: err}
		} else {
			f = tf
		}
	}
	fresh := f == nil
	if fresh {
		f = excelize.NewFile()
	}
	defer f.Close()

	sheet, err := targetSheet(f, opt.Sheet, fresh)
	if err != nil {
		return err
	}
	if err := writeTable(f, sheet, s); err != nil {
		return fmt.Errorf("write summary sheet: %w", err)
	}
	styleTable(f, sheet, s)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("encode workbook: %w", err)
	}
	if err := utils.SafeWriteFile(dst, buf.Bytes()); err != nil {
		return err
	}
	return degraded
}

func targetSheet(f *excelize.File, want string, fresh bool) (string, error) {
	if want == "" {
		if !fresh {
			if name := f.GetSheetName(f.GetActiveSheetIndex()); name != "" {
				return name, nil
			}
		}
		want = "Summary"
	}
	if idx, err := f.GetSheetIndex(want); err == nil && idx != -1 {
		return want, nil
	}
	if fresh && len(f.GetSheetList()) == 1 {
		if err := f.SetSheetName(f.GetSheetList()[0], want); err != nil {
			return "", err
		}
		return want, nil
	}
	idx, err := f.NewSheet(want)
	if err != nil {
		return "", err
	}
	f.SetActiveSheet(idx)
	return want, nil
}

func writeTable(f *excelize.File, sheet string, s *Summary) error {
	header := s.Header()
	hrow := make([]any, len(header))
	for i, h := range header {
		hrow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &hrow); err != nil {
		return err
	}
	for ri, r := range s.Rows {
		rec := make([]any, 0, len(header))
		rec = append(rec, r.Variable)
		for _, x := range r.Values {
			switch {
			case math.IsNaN(x):
				rec = append(rec, nil)
			case math.IsInf(x, 0):
				rec = append(rec, infText(x))
			default:
				rec = append(rec, x)
			}
		}
		if s.ShowUsage {
			rec = append(rec, yesNo(r.UsedForClustering))
		}
		cell, err := excelize.CoordinatesToCellName(1, ri+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rec); err != nil {
			return err
		}
	}
	return nil
}

// styleTable applies header and number styles. Styling problems leave the
// cells unstyled rather than failing the export.
func styleTable(f *excelize.File, sheet string, s *Summary) {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(s.Header()), 1)
		_ = f.SetCellStyle(sheet, "A1", last, bold)
	}
	pct, errPct := f.NewStyle(&excelize.Style{NumFmt: numFmtPercent})
	dec, errDec := f.NewStyle(&excelize.Style{NumFmt: numFmtDecimal})
	if len(s.Groups) == 0 {
		return
	}
	for ri, r := range s.Rows {
		style, serr := dec, errDec
		if r.Percentages() {
			style, serr = pct, errPct
		}
		if serr != nil || r.Variable == SizeRow {
			continue
		}
		from, _ := excelize.CoordinatesToCellName(2, ri+2)
		to, _ := excelize.CoordinatesToCellName(len(s.Groups)+1, ri+2)
		_ = f.SetCellStyle(sheet, from, to, style)
	}
}
