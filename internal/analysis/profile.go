// Package analysis profiles the columns of a dataset so that clustering,
// display and score variables can be chosen.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/riskcluster-cli/internal/dataset"
)

// Options controls profiling.
type Options struct {
	// TopLevels caps the categorical values listed per column.
	TopLevels int
	// OutlierThreshold is the robust |z| above which a value counts as an
	// outlier; <= 0 disables outlier counts.
	OutlierThreshold float64
}

// DefaultOptions returns reasonable defaults for column profiling.
func DefaultOptions() Options {
	return Options{TopLevels: 5, OutlierThreshold: 3.5}
}

// Report is a per-column profile of one dataset.
type Report struct {
	Name string
	Rows int
	Cols []ColumnSummary
}

// ColumnSummary captures inferred kind and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    dataset.Kind
	NonNull int
	Missing int
	Unique  int
	// Numeric stats over finite values; NaN when there are none.
	Min, Max, Mean, Std, Median float64
	Infinite                    int
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
	// Categorical values, most frequent first
	TopValues []CategoryCount
}

type CategoryCount struct {
	Value string
	Count int
}

// Profile summarizes every column of ds.
func Profile(name string, ds *dataset.Dataset, opt Options) *Report {
	r := &Report{Name: name, Rows: ds.NumRows()}
	for _, c := range ds.Columns() {
		if c.Kind == dataset.Numeric {
			r.Cols = append(r.Cols, numericSummary(c, opt))
		} else {
			r.Cols = append(r.Cols, categoricalSummary(c, opt))
		}
	}
	return r
}

func numericSummary(c *dataset.Column, opt Options) ColumnSummary {
	s := ColumnSummary{Name: c.Name, Kind: c.Kind}
	seen := map[float64]struct{}{}
	var finite []float64
	for _, x := range c.Num {
		if math.IsNaN(x) {
			s.Missing++
			continue
		}
		s.NonNull++
		seen[x] = struct{}{}
		if math.IsInf(x, 0) {
			s.Infinite++
			continue
		}
		finite = append(finite, x)
	}
	s.Unique = len(seen)
	s.Min, s.Max, s.Mean, s.Std, s.Median = math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()
	if len(finite) == 0 {
		return s
	}
	s.Min = floats.Min(finite)
	s.Max = floats.Max(finite)
	s.Mean, s.Std = stat.MeanStdDev(finite, nil)
	s.Median, _ = stats.Median(finite)
	if opt.OutlierThreshold > 0 {
		mad, err := stats.MedianAbsoluteDeviationPopulation(finite)
		if err == nil && mad > 0 {
			for _, v := range finite {
				az := math.Abs(0.6745 * (v - s.Median) / mad)
				if az > opt.OutlierThreshold {
					s.OutliersCount++
				}
				if az > s.OutliersMaxAbsZ {
					s.OutliersMaxAbsZ = az
				}
			}
		}
		s.OutlierThreshold = opt.OutlierThreshold
	}
	return s
}

func categoricalSummary(c *dataset.Column, opt Options) ColumnSummary {
	s := ColumnSummary{Name: c.Name, Kind: c.Kind}
	counts := map[string]int{}
	for i, v := range c.Text {
		if c.Null[i] {
			s.Missing++
			continue
		}
		s.NonNull++
		counts[v]++
	}
	s.Unique = len(counts)
	for v, n := range counts {
		s.TopValues = append(s.TopValues, CategoryCount{Value: v, Count: n})
	}
	sort.Slice(s.TopValues, func(i, j int) bool {
		a, b := s.TopValues[i], s.TopValues[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Value < b.Value
	})
	if opt.TopLevels >= 0 && len(s.TopValues) > opt.TopLevels {
		s.TopValues = s.TopValues[:opt.TopLevels]
	}
	return s
}

// Markdown renders a compact report suitable for notes or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(r.Cols)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case dataset.Numeric:
			if !math.IsNaN(c.Mean) {
				b.WriteString(fmt.Sprintf(": min %.4g, max %.4g, mean %.4g, std %.4g, median %.4g", c.Min, c.Max, c.Mean, c.Std, c.Median))
			}
			if c.Infinite > 0 {
				b.WriteString(fmt.Sprintf("; infinite: %d", c.Infinite))
			}
			if c.OutlierThreshold > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold))
				if c.OutliersMaxAbsZ > 0 {
					b.WriteString(fmt.Sprintf(" (max |z|≈%.2f)", c.OutliersMaxAbsZ))
				}
			}
		case dataset.Categorical:
			if len(c.TopValues) > 0 {
				b.WriteString(": top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
