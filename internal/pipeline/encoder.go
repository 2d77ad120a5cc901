package pipeline

import (
	"sort"

	"github.com/KaramelBytes/riskcluster-cli/internal/dataset"
)

// MissingLevel is the value suffix used for the indicator of missing cells.
const MissingLevel = "NA"

// Encoding lists the numeric columns available after dummy encoding.
type Encoding struct {
	// Treat holds clustering-derived indicators, then numeric variables,
	// then the remaining display-only indicators.
	Treat []string
	// Clustering holds indicators generated from clustering variables.
	Clustering []string
	// Display holds indicators generated from display variables.
	Display []string
	// Features is the feature-matrix column order: clustering indicators
	// first, then numeric clustering variables.
	Features []string
}

// Encode adds one 0/1 indicator column per observed value of every
// categorical clustering or display variable, named <variable>_<value>.
// Missing cells form their own NA level, so each row's indicators for a
// variable sum to 1. Source columns are kept. The input is not modified.
func Encode(ds *dataset.Dataset, r Roles) (*dataset.Dataset, Encoding, error) {
	rs, err := resolveRoles(ds, r)
	if err != nil {
		return nil, Encoding{}, err
	}
	return encode(ds, rs)
}

func encode(ds *dataset.Dataset, rs roleSets) (*dataset.Dataset, Encoding, error) {
	var (
		generated []*dataset.Column
		clusterIx []string
		displayIx []string
		owned     = map[string]bool{}
	)
	for _, name := range rs.categorical.Slice() {
		cols := dummify(ds.Column(name))
		for _, c := range cols {
			if rs.all.Contains(c.Name) || c.Name == rs.score {
				return nil, Encoding{}, invalid("indicator column %q for variable %q collides with a requested variable", c.Name, name)
			}
			if owned[c.Name] {
				return nil, Encoding{}, invalid("indicator column %q is generated by more than one variable", c.Name)
			}
			owned[c.Name] = true
			generated = append(generated, c)
			if rs.clustering.Contains(name) {
				clusterIx = append(clusterIx, c.Name)
			}
			if rs.display.Contains(name) {
				displayIx = append(displayIx, c.Name)
			}
		}
	}
	out, err := ds.With(generated...)
	if err != nil {
		return nil, Encoding{}, err
	}

	clusterSet := dataset.NewSet(clusterIx...)
	numericClustering := rs.numeric.Intersect(rs.clustering)
	treat := clusterSet.
		Union(rs.numeric).
		Union(dataset.NewSet(displayIx...).Minus(clusterSet))
	enc := Encoding{
		Treat:      treat.Slice(),
		Clustering: clusterSet.Slice(),
		Display:    dataset.NewSet(displayIx...).Slice(),
		Features:   clusterSet.Union(numericClustering).Slice(),
	}
	return out, enc, nil
}

// dummify returns the indicator columns for one categorical column, levels
// sorted ascending with NA last.
func dummify(c *dataset.Column) []*dataset.Column {
	n := c.Len()
	key := func(i int) string {
		if c.Null[i] {
			return MissingLevel
		}
		return c.Text[i]
	}
	seen := map[string]bool{}
	var levels []string
	for i := 0; i < n; i++ {
		k := key(i)
		if !seen[k] {
			seen[k] = true
			levels = append(levels, k)
		}
	}
	sort.Slice(levels, func(i, j int) bool {
		a, b := levels[i], levels[j]
		if a == MissingLevel || b == MissingLevel {
			return b == MissingLevel && a != MissingLevel
		}
		return a < b
	})
	pos := make(map[string]int, len(levels))
	vals := make([][]float64, len(levels))
	for l, lv := range levels {
		pos[lv] = l
		vals[l] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		vals[pos[key(i)]][i] = 1
	}
	out := make([]*dataset.Column, len(levels))
	for l, lv := range levels {
		out[l] = dataset.NewNumeric(c.Name+"_"+lv, vals[l])
	}
	return out
}
