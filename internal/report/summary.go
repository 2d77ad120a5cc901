package report

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/riskcluster-cli/internal/dataset"
)

const (
	// ClusterColumn holds the cluster label of every labeled row.
	ClusterColumn = "cluster"
	// SizeRow and PercentageRow are the per-group size rows of the summary.
	SizeRow       = "clusterSize"
	PercentageRow = "clusterPercentage"

	DefaultTopLabel        = "Top Risky"
	DefaultPopulationLabel = "Total Population"
)

// Input is everything the summary needs.
type Input struct {
	// Labeled is the selected subset carrying ClusterColumn.
	Labeled *dataset.Dataset
	// Variables are the numeric columns to average, in report order.
	Variables []string
	// Clustering lists the columns the clusters were built on. When
	// non-empty the summary carries a usedForClustering column.
	Clustering []string
	// Population is the full table; nil omits the population group.
	Population *dataset.Dataset

	TopLabel        string
	PopulationLabel string
}

// Row is one transposed summary row: a variable and its mean per group.
type Row struct {
	Variable          string
	Values            []float64
	UsedForClustering bool
}

// Summary compares clusters, the whole selected subset and optionally the
// population. Groups are ordered by ascending size.
type Summary struct {
	Groups    []string
	Rows      []Row
	ShowUsage bool
}

type group struct {
	name  string
	size  int
	pct   float64
	means []float64
}

// Build aggregates per-group means and assembles the transposed table.
func Build(in Input) (*Summary, error) {
	if in.Labeled == nil {
		return nil, errors.New("labeled subset is required")
	}
	lc := in.Labeled.Column(ClusterColumn)
	if lc == nil || lc.Kind != dataset.Categorical {
		return nil, fmt.Errorf("labeled subset has no categorical %q column", ClusterColumn)
	}
	total := in.Labeled.NumRows()
	if total == 0 {
		return nil, errors.New("labeled subset is empty")
	}
	for _, v := range in.Variables {
		if c := in.Labeled.Column(v); c != nil && c.Kind != dataset.Numeric {
			return nil, fmt.Errorf("variable %q is not numeric", v)
		}
	}
	topLabel := in.TopLabel
	if topLabel == "" {
		topLabel = DefaultTopLabel
	}
	popLabel := in.PopulationLabel
	if popLabel == "" {
		popLabel = DefaultPopulationLabel
	}

	members := map[string][]int{}
	for i := 0; i < total; i++ {
		if lc.IsMissing(i) {
			continue
		}
		members[lc.Text[i]] = append(members[lc.Text[i]], i)
	}
	labels := make([]string, 0, len(members))
	for l := range members {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	var groups []group
	for _, l := range labels {
		rows := members[l]
		groups = append(groups, group{
			name:  l,
			size:  len(rows),
			pct:   float64(len(rows)) / float64(total),
			means: means(in.Labeled, in.Variables, rows),
		})
	}
	groups = append(groups, group{
		name: topLabel, size: total, pct: 1,
		means: means(in.Labeled, in.Variables, nil),
	})
	if in.Population != nil {
		groups = append(groups, group{
			name: popLabel, size: in.Population.NumRows(), pct: 1,
			means: means(in.Population, in.Variables, nil),
		})
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].size < groups[j].size })

	used := dataset.NewSet(in.Clustering...)
	s := &Summary{ShowUsage: used.Len() > 0}
	sizes := make([]float64, len(groups))
	pcts := make([]float64, len(groups))
	for g, gr := range groups {
		s.Groups = append(s.Groups, gr.name)
		sizes[g] = float64(gr.size)
		pcts[g] = gr.pct
	}
	s.Rows = append(s.Rows,
		Row{Variable: SizeRow, Values: sizes},
		Row{Variable: PercentageRow, Values: pcts},
	)
	for v, name := range in.Variables {
		vals := make([]float64, len(groups))
		for g, gr := range groups {
			vals[g] = gr.means[v]
		}
		s.Rows = append(s.Rows, Row{Variable: name, Values: vals, UsedForClustering: used.Contains(name)})
	}
	return s, nil
}

// means averages each variable over rows (nil = all rows), ignoring missing
// values. Variables absent from ds, or with no values, yield NaN.
func means(ds *dataset.Dataset, vars []string, rows []int) []float64 {
	out := make([]float64, len(vars))
	for v, name := range vars {
		c := ds.Column(name)
		if c == nil || c.Kind != dataset.Numeric {
			out[v] = math.NaN()
			continue
		}
		var present []float64
		add := func(i int) {
			if x := c.Num[i]; !math.IsNaN(x) {
				present = append(present, x)
			}
		}
		if rows == nil {
			for i := range c.Num {
				add(i)
			}
		} else {
			for _, i := range rows {
				add(i)
			}
		}
		if len(present) == 0 {
			out[v] = math.NaN()
			continue
		}
		out[v] = stat.Mean(present, nil)
	}
	return out
}

// Header returns the column headers of Table.
func (s *Summary) Header() []string {
	h := append([]string{"Cluster"}, s.Groups...)
	if s.ShowUsage {
		h = append(h, "usedForClustering")
	}
	return h
}

// Table renders the summary as a string grid, header first. Missing means
// are empty cells.
func (s *Summary) Table() [][]string {
	out := [][]string{s.Header()}
	for _, r := range s.Rows {
		rec := make([]string, 0, len(r.Values)+2)
		rec = append(rec, r.Variable)
		for _, x := range r.Values {
			rec = append(rec, formatCell(x))
		}
		if s.ShowUsage {
			rec = append(rec, yesNo(r.UsedForClustering))
		}
		out = append(out, rec)
	}
	return out
}

// Row returns the named row.
func (s *Summary) Row(variable string) (Row, bool) {
	for _, r := range s.Rows {
		if r.Variable == variable {
			return r, true
		}
	}
	return Row{}, false
}

// Value returns the mean of variable in the named group.
func (s *Summary) Value(variable, groupName string) (float64, bool) {
	r, ok := s.Row(variable)
	if !ok {
		return 0, false
	}
	for g, name := range s.Groups {
		if name == groupName {
			return r.Values[g], true
		}
	}
	return 0, false
}

// Percentages reports whether every present value of r lies in [0,1].
func (r Row) Percentages() bool {
	seen := false
	for _, x := range r.Values {
		if math.IsNaN(x) {
			continue
		}
		if x < 0 || x > 1 {
			return false
		}
		seen = true
	}
	return seen
}

func formatCell(x float64) string {
	if math.IsNaN(x) {
		return ""
	}
	if s := infText(x); s != "" {
		return s
	}
	return dataset.FormatFloat(x)
}

// infText returns "+Inf" or "-Inf" for infinite x and "" otherwise. Means of
// columns holding infinite values stay infinite and are written this way
// rather than as missing.
func infText(x float64) string {
	switch {
	case math.IsInf(x, 1):
		return "+Inf"
	case math.IsInf(x, -1):
		return "-Inf"
	}
	return ""
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
