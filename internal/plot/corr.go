// Package plot renders a correlation heat map of the clustering variables.
package plot

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/KaramelBytes/riskcluster-cli/internal/dataset"
	"github.com/KaramelBytes/riskcluster-cli/internal/utils"
)

// DefaultSampleSize caps the rows used for the correlation matrix.
const DefaultSampleSize = 1000

// Options controls the heat map.
type Options struct {
	// Path is the output image; the extension picks the format (.png, .svg, .pdf).
	Path string
	// SampleSize <= 0 means DefaultSampleSize.
	SampleSize int
	Seed       int64
}

// Correlation samples rows of ds, correlates the numeric columns cols and
// writes the heat map to opt.Path.
func Correlation(ds *dataset.Dataset, cols []string, opt Options) error {
	if opt.Path == "" {
		return errors.New("plot path is required")
	}
	corr, err := Matrix(ds, cols, opt.SampleSize, opt.Seed)
	if err != nil {
		return err
	}

	p := gplot.New()
	p.Title.Text = "Correlation of clustering variables"
	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(-1)
	cmap.SetMax(1)
	h := plotter.NewHeatMap(corrGrid{m: corr}, cmap.Palette(255))
	h.Min, h.Max = -1, 1
	p.Add(h)

	n := len(cols)
	xt := make([]gplot.Tick, n)
	yt := make([]gplot.Tick, n)
	for i, name := range cols {
		xt[i] = gplot.Tick{Value: float64(i), Label: name}
		yt[i] = gplot.Tick{Value: float64(n - 1 - i), Label: name}
	}
	p.X.Tick.Marker = gplot.ConstantTicks(xt)
	p.Y.Tick.Marker = gplot.ConstantTicks(yt)
	p.X.Tick.Label.Rotation = math.Pi / 2

	side := vg.Length(4+n/2) * vg.Inch
	if err := utils.EnsureParentDir(opt.Path); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	if err := p.Save(side, side, opt.Path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

// Matrix returns the Pearson correlation of cols over a seeded sample of up to
// size rows drawn without replacement. Each pair uses the rows where both
// values are finite; pairs with fewer than two such rows, or with no
// variance, are NaN.
func Matrix(ds *dataset.Dataset, cols []string, size int, seed int64) (*mat.SymDense, error) {
	if len(cols) == 0 {
		return nil, errors.New("no columns to correlate")
	}
	vals := make([][]float64, len(cols))
	for i, name := range cols {
		c := ds.Column(name)
		if c == nil {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		if c.Kind != dataset.Numeric {
			return nil, fmt.Errorf("column %q is not numeric", name)
		}
		vals[i] = c.Num
	}
	rows := sample(ds.NumRows(), size, seed)

	out := mat.NewSymDense(len(cols), nil)
	for i := range cols {
		for j := i; j < len(cols); j++ {
			out.SetSym(i, j, pairwise(vals[i], vals[j], rows))
		}
	}
	return out, nil
}

func sample(n, size int, seed int64) []int {
	if size <= 0 {
		size = DefaultSampleSize
	}
	if n <= size {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	rows := rand.New(rand.NewSource(seed)).Perm(n)[:size]
	sort.Ints(rows)
	return rows
}

func pairwise(a, b []float64, rows []int) float64 {
	x := make([]float64, 0, len(rows))
	y := make([]float64, 0, len(rows))
	for _, r := range rows {
		if finite(a[r]) && finite(b[r]) {
			x = append(x, a[r])
			y = append(y, b[r])
		}
	}
	if len(x) < 2 {
		return math.NaN()
	}
	c := stat.Correlation(x, y, nil)
	if math.IsInf(c, 0) {
		return math.NaN()
	}
	return c
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

// corrGrid adapts a correlation matrix to plotter.GridXYZ. Row 0 is drawn at
// the top.
type corrGrid struct {
	m *mat.SymDense
}

func (g corrGrid) Dims() (c, r int) {
	n := g.m.SymmetricDim()
	return n, n
}

func (g corrGrid) Z(c, r int) float64 {
	n := g.m.SymmetricDim()
	return g.m.At(n-1-r, c)
}

func (g corrGrid) X(c int) float64 { return float64(c) }

func (g corrGrid) Y(r int) float64 { return float64(r) }
