package report

import (
	"fmt"
	"io"
	"math"

	"github.com/olekukonko/tablewriter"
)

// Render prints the summary as an aligned text table.
func Render(w io.Writer, s *Summary) {
	t := tablewriter.NewWriter(w)
	t.SetAutoFormatHeaders(false)
	t.SetHeader(s.Header())
	t.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, r := range s.Rows {
		rec := make([]string, 0, len(r.Values)+2)
		rec = append(rec, r.Variable)
		pct := r.Variable != SizeRow && r.Percentages()
		for _, x := range r.Values {
			rec = append(rec, humanCell(x, r.Variable == SizeRow, pct))
		}
		if s.ShowUsage {
			rec = append(rec, yesNo(r.UsedForClustering))
		}
		t.Append(rec)
	}
	t.Render()
}

func humanCell(x float64, count, pct bool) string {
	switch {
	case math.IsNaN(x):
		return ""
	case math.IsInf(x, 0):
		return infText(x)
	case count:
		return fmt.Sprintf("%.0f", x)
	case pct:
		return fmt.Sprintf("%.1f%%", x*100)
	default:
		return fmt.Sprintf("%.4g", x)
	}
}
