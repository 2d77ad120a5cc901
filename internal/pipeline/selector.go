package pipeline

import (
	"math"
	"sort"

	"github.com/KaramelBytes/riskcluster-cli/internal/dataset"
)

// fractionSlack absorbs binary rounding in fraction*rows (0.07*100 is
// 7.000000000000001 in float64) before taking the ceiling.
const fractionSlack = 1e-9

// Selection chooses how many top-scoring rows enter clustering. Exactly one
// of Count and Fraction must be set.
type Selection struct {
	Count    *int
	Fraction *float64
}

// ByCount selects the top n rows.
func ByCount(n int) Selection { return Selection{Count: &n} }

// ByFraction selects the top ceil(f*rows) rows.
func ByFraction(f float64) Selection { return Selection{Fraction: &f} }

func (s Selection) validate() error {
	if (s.Count == nil) == (s.Fraction == nil) {
		return invalid("select rows by count or by fraction, not both/neither")
	}
	if s.Fraction != nil && (math.IsNaN(*s.Fraction) || math.IsInf(*s.Fraction, 0)) {
		return invalid("row fraction must be a finite number, got %v", *s.Fraction)
	}
	return nil
}

// Size returns the number of rows selected out of total, clamped to [0,total].
func (s Selection) Size(total int) int {
	var n int
	if s.Count != nil {
		n = *s.Count
	} else if s.Fraction != nil {
		n = int(math.Ceil(*s.Fraction*float64(total) - fractionSlack))
	}
	if n < 0 {
		n = 0
	}
	if n > total {
		n = total
	}
	return n
}

// SelectRows stable-sorts ds by the score column descending (missing scores
// last) and returns the first Size rows along with the full sorted table.
func SelectRows(ds *dataset.Dataset, score string, sel Selection) (subset, sorted *dataset.Dataset, err error) {
	if err := sel.validate(); err != nil {
		return nil, nil, err
	}
	col, err := scoreColumn(ds, score)
	if err != nil {
		return nil, nil, err
	}
	order := make([]int, ds.NumRows())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		x, y := col.Num[order[a]], col.Num[order[b]]
		if math.IsNaN(x) {
			return false
		}
		if math.IsNaN(y) {
			return true
		}
		return x > y
	})
	sorted = ds.Take(order)
	return sorted.Head(sel.Size(ds.NumRows())), sorted, nil
}

func scoreColumn(ds *dataset.Dataset, score string) (*dataset.Column, error) {
	if score == "" {
		return nil, invalid("a score variable is required")
	}
	col := ds.Column(score)
	if col == nil {
		return nil, invalid("score column %q not found", score)
	}
	if col.Kind != dataset.Numeric {
		return nil, invalid("score column %q must be numeric, found %s", score, col.Kind)
	}
	return col, nil
}
