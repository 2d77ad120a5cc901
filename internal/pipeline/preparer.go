package pipeline

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/riskcluster-cli/internal/dataset"
)

// Prepared is the clustering input derived from the selected rows.
type Prepared struct {
	// Data is the subset with infinite feature values turned into missing.
	Data *dataset.Dataset
	// Matrix is row-aligned with Data, one column per feature, missing-free.
	Matrix *mat.Dense
}

// Prepare builds the feature matrix: infinities become missing, constant
// columns are rejected, columns are optionally z-scored, and remaining
// missing values are replaced by the column median.
func Prepare(subset *dataset.Dataset, features []string, scale bool) (*Prepared, error) {
	if len(features) == 0 {
		return nil, invalid("no clustering features to prepare")
	}
	cleaned := make([]*dataset.Column, len(features))
	for j, name := range features {
		c := subset.Column(name)
		if c == nil {
			return nil, invalid("feature column %q not found", name)
		}
		if c.Kind != dataset.Numeric {
			return nil, invalid("feature column %q is not numeric", name)
		}
		vals := make([]float64, len(c.Num))
		for i, x := range c.Num {
			if math.IsInf(x, 0) {
				x = math.NaN()
			}
			vals[i] = x
		}
		cleaned[j] = dataset.NewNumeric(name, vals)
	}

	var degenerate []string
	for _, c := range cleaned {
		if distinct(c.Num) <= 1 {
			degenerate = append(degenerate, c.Name)
		}
	}
	if len(degenerate) > 0 {
		return nil, &DegenerateColumnError{Columns: degenerate}
	}

	data, err := subset.With(cleaned...)
	if err != nil {
		return nil, err
	}

	m := mat.NewDense(subset.NumRows(), len(cleaned), nil)
	for j, c := range cleaned {
		col := make([]float64, len(c.Num))
		copy(col, c.Num)
		present := nonMissing(col)
		if scale {
			mean, sd := stat.MeanStdDev(present, nil)
			for i, x := range col {
				if !math.IsNaN(x) {
					col[i] = (x - mean) / sd
				}
			}
			present = nonMissing(col)
		}
		med, err := stats.Median(present)
		if err != nil {
			return nil, fmt.Errorf("median of %q: %w", c.Name, err)
		}
		for i, x := range col {
			if math.IsNaN(x) {
				x = med
			}
			m.Set(i, j, x)
		}
	}
	return &Prepared{Data: data, Matrix: m}, nil
}

func distinct(vals []float64) int {
	seen := map[float64]struct{}{}
	for _, x := range vals {
		if !math.IsNaN(x) {
			seen[x] = struct{}{}
		}
	}
	return len(seen)
}

func nonMissing(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, x := range vals {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}
