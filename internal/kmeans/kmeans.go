// Package kmeans implements seeded k-means clustering under Euclidean
// distance, with k-means++ initialisation and parallel restarts. Results are
// a pure function of the input matrix and Options.
package kmeans

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Options controls the clustering run.
type Options struct {
	// Seed is the base seed; restart i draws from Seed+i.
	Seed int64
	// Restarts is the number of independent initialisations (nstart).
	Restarts int
	// MaxIter caps the Lloyd iterations per restart.
	MaxIter int
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{Seed: 1234, Restarts: 10, MaxIter: 100}
}

// Result is the best restart found.
type Result struct {
	// Raw holds one 0-based cluster id per input row.
	Raw        []int
	Centroids  [][]float64
	WithinSS   float64
	Iterations int
	Restart    int
}

// InvalidKError reports a cluster count outside [1, rows].
type InvalidKError struct {
	K    int
	Rows int
}

func (e *InvalidKError) Error() string {
	return fmt.Sprintf("invalid cluster count %d: need 1 <= k <= %d (rows available)", e.K, e.Rows)
}

// Cluster partitions the rows of m into k clusters. The restart with the
// lowest within-cluster sum of squares wins; ties go to the lowest restart
// index, so parallel execution does not change the outcome.
func Cluster(ctx context.Context, m mat.Matrix, k int, opt Options) (*Result, error) {
	rows, _ := m.Dims()
	if k < 1 || k > rows {
		return nil, &InvalidKError{K: k, Rows: rows}
	}
	points := make([][]float64, rows)
	for i := range points {
		points[i] = mat.Row(nil, i, m)
	}
	restarts := opt.Restarts
	if restarts <= 0 {
		restarts = 1
	}
	maxIter := opt.MaxIter
	if maxIter <= 0 {
		maxIter = DefaultOptions().MaxIter
	}

	results := make([]*Result, restarts)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for r := 0; r < restarts; r++ {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(opt.Seed + int64(r)))
			res, err := lloyd(gctx, points, k, maxIter, rng)
			if err != nil {
				return err
			}
			res.Restart = r
			results[r] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	best := results[0]
	for _, res := range results[1:] {
		if res.WithinSS < best.WithinSS {
			best = res
		}
	}
	return best, nil
}

// lloyd runs one restart, checking ctx before every iteration.
func lloyd(ctx context.Context, points [][]float64, k, maxIter int, rng *rand.Rand) (*Result, error) {
	centroids := seedPlusPlus(points, k, rng)
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}
	iter := 0
	for iter < maxIter {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iter++
		changed := false
		for i, p := range points {
			if c := nearest(p, centroids); c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}
		centroids = recenter(points, labels, centroids)
	}
	centroids = recenter(points, labels, centroids)
	var wss float64
	for i, p := range points {
		d := floats.Distance(p, centroids[labels[i]], 2)
		wss += d * d
	}
	return &Result{Raw: labels, Centroids: centroids, WithinSS: wss, Iterations: iter}, nil
}

// seedPlusPlus picks k initial centroids, each new one drawn with
// probability proportional to its squared distance from the nearest chosen
// centroid. Points already chosen have weight zero and are never drawn twice
// unless every remaining weight is zero.
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centroids := make([][]float64, 0, k)
	first := rng.Intn(n)
	centroids = append(centroids, clone(points[first]))
	d2 := make([]float64, n)
	for i, p := range points {
		d := floats.Distance(p, centroids[0], 2)
		d2[i] = d * d
	}
	for len(centroids) < k {
		idx := rng.Intn(n)
		if total := floats.Sum(d2); total > 0 {
			target := rng.Float64() * total
			var cum float64
			for i, w := range d2 {
				if w == 0 {
					continue
				}
				cum += w
				idx = i
				if cum > target {
					break
				}
			}
		}
		c := clone(points[idx])
		centroids = append(centroids, c)
		for i, p := range points {
			d := floats.Distance(p, c, 2)
			d2[i] = math.Min(d2[i], d*d)
		}
	}
	return centroids
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for c, ctr := range centroids {
		if d := floats.Distance(p, ctr, 2); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

// recenter moves every non-empty cluster's centroid to its members' mean.
// Empty clusters keep their previous centroid.
func recenter(points [][]float64, labels []int, prev [][]float64) [][]float64 {
	dim := len(prev[0])
	sums := make([][]float64, len(prev))
	counts := make([]int, len(prev))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, p := range points {
		floats.Add(sums[labels[i]], p)
		counts[labels[i]]++
	}
	for c := range sums {
		if counts[c] == 0 {
			sums[c] = clone(prev[c])
			continue
		}
		floats.Scale(1/float64(counts[c]), sums[c])
	}
	return sums
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
