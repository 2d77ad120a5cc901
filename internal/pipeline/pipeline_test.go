package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/riskcluster-cli/internal/dataset"
	"github.com/KaramelBytes/riskcluster-cli/internal/kmeans"
	"github.com/KaramelBytes/riskcluster-cli/internal/report"
)

func TestEncode_Dummies(t *testing.T) {
	ds := dataset.MustNew(
		dataset.NewCategorical("seg", []string{"A", "B", "A", "C"}, nil),
		dataset.NewNumeric("score", []float64{4, 3, 2, 1}),
	)
	out, enc, err := Encode(ds, Roles{Clustering: []string{"seg"}, Score: "score"})
	require.NoError(t, err)
	assert.Equal(t, []string{"seg_A", "seg_B", "seg_C"}, enc.Features)
	assert.Equal(t, []string{"seg_A", "seg_B", "seg_C"}, enc.Treat)
	assert.True(t, out.Has("seg"), "source column is kept")
	assert.False(t, ds.Has("seg_A"), "input is not modified")

	assert.Equal(t, []float64{1, 0, 1, 0}, out.Column("seg_A").Num)
	for i := 0; i < out.NumRows(); i++ {
		sum := 0.0
		for _, name := range enc.Features {
			sum += out.Column(name).Num[i]
		}
		assert.Equal(t, 1.0, sum, "row %d", i)
	}
}

func TestEncode_MissingLevelLast(t *testing.T) {
	ds := dataset.MustNew(
		dataset.NewCategorical("seg", []string{"b", "", "a"}, []bool{false, true, false}),
	)
	out, enc, err := Encode(ds, Roles{Clustering: []string{"seg"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"seg_a", "seg_b", "seg_NA"}, enc.Clustering)
	assert.Equal(t, []float64{0, 1, 0}, out.Column("seg_NA").Num)
}

func TestEncode_RoleOrder(t *testing.T) {
	ds := dataset.MustNew(
		dataset.NewCategorical("c", []string{"x", "y"}, nil),
		dataset.NewCategorical("d", []string{"p", "q"}, nil),
		dataset.NewNumeric("n", []float64{1, 2}),
		dataset.NewNumeric("m", []float64{5, 6}),
	)
	_, enc, err := Encode(ds, Roles{Clustering: []string{"c", "n"}, Display: []string{"d", "m", "c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c_x", "c_y", "n"}, enc.Features)
	assert.Equal(t, []string{"c_x", "c_y", "n", "m", "d_p", "d_q"}, enc.Treat)
	assert.Equal(t, []string{"c_x", "c_y", "d_p", "d_q"}, enc.Display)
}

func TestEncode_Idempotent(t *testing.T) {
	ds := dataset.MustNew(dataset.NewCategorical("seg", []string{"A", "B"}, nil))
	r := Roles{Clustering: []string{"seg"}}
	once, _, err := Encode(ds, r)
	require.NoError(t, err)
	twice, _, err := Encode(once, r)
	require.NoError(t, err)
	assert.Equal(t, once.Names(), twice.Names())
}

func TestEncode_Errors(t *testing.T) {
	ds := dataset.MustNew(
		dataset.NewCategorical("seg", []string{"A", "B"}, nil),
		dataset.NewNumeric("seg_A", []float64{1, 2}),
	)
	_, _, err := Encode(ds, Roles{Clustering: []string{"seg", "seg_A"}})
	var inv *InvalidInputError
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Reason, "collides")

	_, _, err = Encode(ds, Roles{Clustering: []string{"nope", "seg", "gone"}})
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, err.Error(), `"nope"`)
	assert.Contains(t, err.Error(), `"gone"`)
}

func scoreData(n int) *dataset.Dataset {
	id := make([]float64, n)
	score := make([]float64, n)
	for i := range id {
		id[i] = float64(i)
		// four distinct scores, many ties
		score[i] = float64(i % 4)
	}
	return dataset.MustNew(dataset.NewNumeric("id", id), dataset.NewNumeric("score", score))
}

func TestSelectRows_FractionWithTies(t *testing.T) {
	ds := scoreData(100)
	sub, sorted, err := SelectRows(ds, "score", ByFraction(0.25))
	require.NoError(t, err)
	require.Equal(t, 25, sub.NumRows())
	require.Equal(t, 100, sorted.NumRows())
	// all rows with score 3 in input order
	for i := 0; i < 25; i++ {
		assert.Equal(t, 3.0, sub.Column("score").Num[i])
		assert.Equal(t, float64(4*i+3), sub.Column("id").Num[i])
	}
}

func TestSelectRows_MissingScoresLast(t *testing.T) {
	ds := dataset.MustNew(
		dataset.NewNumeric("id", []float64{0, 1, 2, 3}),
		dataset.NewNumeric("score", []float64{math.NaN(), 1, math.NaN(), 5}),
	)
	_, sorted, err := SelectRows(ds, "score", ByCount(2))
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 0, 2}, sorted.Column("id").Num)
}

func TestSelection_Size(t *testing.T) {
	assert.Equal(t, 7, ByFraction(0.07).Size(100))
	assert.Equal(t, 1, ByFraction(0.001).Size(100))
	assert.Equal(t, 100, ByFraction(1.5).Size(100))
	assert.Equal(t, 0, ByFraction(0).Size(100))
	assert.Equal(t, 10, ByCount(20).Size(10))
	assert.Equal(t, 0, ByCount(-3).Size(10))
}

func TestSelectRows_Invalid(t *testing.T) {
	ds := scoreData(10)
	n, f := 3, 0.5
	var inv *InvalidInputError
	_, _, err := SelectRows(ds, "score", Selection{Count: &n, Fraction: &f})
	require.ErrorAs(t, err, &inv)
	_, _, err = SelectRows(ds, "score", Selection{})
	require.ErrorAs(t, err, &inv)
	_, _, err = SelectRows(ds, "score", ByFraction(math.NaN()))
	require.ErrorAs(t, err, &inv)
	_, _, err = SelectRows(ds, "missing", ByCount(2))
	require.ErrorAs(t, err, &inv)

	cat := dataset.MustNew(dataset.NewCategorical("score", []string{"a"}, nil))
	_, _, err = SelectRows(cat, "score", ByCount(1))
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Reason, "numeric")
}

func TestPrepare_Degenerate(t *testing.T) {
	ds := dataset.MustNew(
		dataset.NewNumeric("ok", []float64{1, 2, 3}),
		dataset.NewNumeric("flat", []float64{5, math.NaN(), 5}),
		dataset.NewNumeric("empty", []float64{math.NaN(), math.Inf(1), math.NaN()}),
	)
	_, err := Prepare(ds, []string{"ok", "flat", "empty"}, false)
	var dg *DegenerateColumnError
	require.ErrorAs(t, err, &dg)
	assert.Equal(t, []string{"flat", "empty"}, dg.Columns)
}

func TestPrepare_ImputeAndScale(t *testing.T) {
	ds := dataset.MustNew(
		dataset.NewNumeric("a", []float64{1, math.Inf(-1), 3, 10}),
		dataset.NewNumeric("b", []float64{2, 4, math.NaN(), 6}),
	)
	p, err := Prepare(ds, []string{"a", "b"}, false)
	require.NoError(t, err)
	r, c := p.Matrix.Dims()
	require.Equal(t, 4, r)
	require.Equal(t, 2, c)
	// median of {1,3,10}
	assert.Equal(t, 3.0, p.Matrix.At(1, 0))
	// median of {2,4,6}
	assert.Equal(t, 4.0, p.Matrix.At(2, 1))
	assert.True(t, math.IsNaN(p.Data.Column("a").Num[1]), "infinity becomes missing")
	assert.True(t, math.IsInf(ds.Column("a").Num[1], -1), "input is not modified")

	p, err = Prepare(ds, []string{"b"}, true)
	require.NoError(t, err)
	// b present {2,4,6}: mean 4, sample sd 2
	assert.InDelta(t, -1.0, p.Matrix.At(0, 0), 1e-12)
	assert.InDelta(t, 0.0, p.Matrix.At(1, 0), 1e-12)
	assert.InDelta(t, 0.0, p.Matrix.At(2, 0), 1e-12)
	assert.InDelta(t, 1.0, p.Matrix.At(3, 0), 1e-12)
	// unscaled values stay in Data
	assert.Equal(t, 6.0, p.Data.Column("b").Num[3])
}

func TestPrepare_Invalid(t *testing.T) {
	ds := dataset.MustNew(dataset.NewCategorical("c", []string{"a", "b"}, nil))
	var inv *InvalidInputError
	_, err := Prepare(ds, nil, false)
	require.ErrorAs(t, err, &inv)
	_, err = Prepare(ds, []string{"c"}, false)
	require.ErrorAs(t, err, &inv)
	_, err = Prepare(ds, []string{"x"}, false)
	require.ErrorAs(t, err, &inv)
}

// riskData builds 40 rows: two well separated income groups with a segment
// that follows them, and a score that favours the first 20 rows.
func riskData() *dataset.Dataset {
	n := 40
	income := make([]float64, n)
	score := make([]float64, n)
	seg := make([]string, n)
	age := make([]float64, n)
	for i := 0; i < n; i++ {
		score[i] = float64(n - i)
		age[i] = float64(20 + i)
		if i%3 == 0 {
			income[i] = 100 + float64(i%5)
			seg[i] = "high"
		} else {
			income[i] = 10 + float64(i%5)
			seg[i] = "low"
		}
	}
	return dataset.MustNew(
		dataset.NewNumeric("income", income),
		dataset.NewCategorical("segment", seg, nil),
		dataset.NewNumeric("age", age),
		dataset.NewNumeric("score", score),
	)
}

func riskRequest() Request {
	return Request{
		Roles: Roles{
			Clustering: []string{"income", "segment"},
			Display:    []string{"age"},
			Score:      "score",
		},
		Clusters:  2,
		Selection: ByCount(20),
	}
}

func TestRun_EndToEnd(t *testing.T) {
	ds := riskData()
	res, err := Run(context.Background(), ds, riskRequest(), DefaultConfig())
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	require.Equal(t, 20, res.Labeled.NumRows())
	lc := res.Labeled.Column(report.ClusterColumn)
	require.NotNil(t, lc)
	assert.False(t, ds.Has(report.ClusterColumn), "input is not modified")

	// rows 0,3,...,18 are the high-income group: 7 rows
	for i := 0; i < 20; i++ {
		want := "Cluster_02"
		if i%3 == 0 {
			want = "Cluster_01"
		}
		assert.Equal(t, want, lc.Text[i], "row %d", i)
	}
	require.Len(t, res.Groups, 2)
	assert.Equal(t, 7, res.Groups[0].Size)
	assert.Equal(t, 13, res.Groups[1].Size)

	s := res.Summary
	assert.Equal(t, []string{"Cluster_01", "Cluster_02", "Top Risky", "Total Population"}, s.Groups)
	size, _ := s.Row(report.SizeRow)
	assert.Equal(t, []float64{7, 13, 20, 40}, size.Values)
	pct, _ := s.Row(report.PercentageRow)
	assert.InDelta(t, 0.35, pct.Values[0], 1e-12)
	assert.InDelta(t, 0.65, pct.Values[1], 1e-12)
	assert.Equal(t, 1.0, pct.Values[2])
	assert.Equal(t, 1.0, pct.Values[3])

	v, ok := s.Value("segment_high", "Cluster_01")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	v, _ = s.Value("age", "Top Risky")
	assert.InDelta(t, 29.5, v, 1e-12)
	v, _ = s.Value("age", "Total Population")
	assert.InDelta(t, 39.5, v, 1e-12)

	names := make([]string, 0, len(s.Rows))
	for _, r := range s.Rows {
		names = append(names, r.Variable)
	}
	assert.Equal(t, []string{report.SizeRow, report.PercentageRow, "segment_high", "segment_low", "income", "age"}, names)
	age, _ := s.Row("age")
	assert.False(t, age.UsedForClustering)
	inc, _ := s.Row("income")
	assert.True(t, inc.UsedForClustering)
}

func TestRun_Deterministic(t *testing.T) {
	ds := riskData()
	req := riskRequest()
	req.Scale = true
	a, err := Run(context.Background(), ds, req, DefaultConfig())
	require.NoError(t, err)
	b, err := Run(context.Background(), ds, req, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, a.Summary.Table(), b.Summary.Table())
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestRun_NoPopulation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IncludePopulation = false
	cfg.TopLabel = "Selected"
	res, err := Run(context.Background(), riskData(), riskRequest(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cluster_01", "Cluster_02", "Selected"}, res.Summary.Groups)
}

func TestRun_KEqualsRows(t *testing.T) {
	req := riskRequest()
	req.Selection = ByCount(5)
	req.Clusters = 5
	res, err := Run(context.Background(), riskData(), req, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Groups, 5)
	assert.InDelta(t, 0.0, res.WithinSS, 1e-12)
	size, _ := res.Summary.Row(report.SizeRow)
	total := 0.0
	for i, g := range res.Summary.Groups {
		if g != "Top Risky" && g != "Total Population" {
			total += size.Values[i]
		}
	}
	assert.Equal(t, 5.0, total)
}

func TestRun_InvalidK(t *testing.T) {
	for _, k := range []int{0, -1, 21} {
		req := riskRequest()
		req.Clusters = k
		_, err := Run(context.Background(), riskData(), req, DefaultConfig())
		var inv *InvalidInputError
		require.ErrorAs(t, err, &inv, fmt.Sprintf("k=%d", k))
		assert.Contains(t, inv.Reason, "20 of 40 rows")
	}
}

func TestRun_InvalidRoles(t *testing.T) {
	ds := riskData()
	var inv *InvalidInputError

	req := riskRequest()
	req.Clustering = []string{"income", "nope"}
	req.Display = []string{"gone"}
	_, err := Run(context.Background(), ds, req, DefaultConfig())
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, err.Error(), "nope")
	assert.Contains(t, err.Error(), "gone")

	req = riskRequest()
	req.Clustering = nil
	_, err = Run(context.Background(), ds, req, DefaultConfig())
	require.ErrorAs(t, err, &inv)

	req = riskRequest()
	req.Score = "segment"
	_, err = Run(context.Background(), ds, req, DefaultConfig())
	require.ErrorAs(t, err, &inv)

	req = riskRequest()
	req.Selection = Selection{}
	_, err = Run(context.Background(), ds, req, DefaultConfig())
	require.ErrorAs(t, err, &inv)
}

func TestRun_DegenerateSubset(t *testing.T) {
	ds := dataset.MustNew(
		dataset.NewNumeric("flat", []float64{1, 1, 1, 2}),
		dataset.NewNumeric("x", []float64{1, 2, 3, 4}),
		dataset.NewNumeric("score", []float64{4, 3, 2, 1}),
	)
	req := Request{
		Roles:     Roles{Clustering: []string{"flat", "x"}, Score: "score"},
		Clusters:  2,
		Selection: ByCount(3),
	}
	_, err := Run(context.Background(), ds, req, DefaultConfig())
	var dg *DegenerateColumnError
	require.ErrorAs(t, err, &dg)
	assert.Equal(t, []string{"flat"}, dg.Columns)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, riskData(), riskRequest(), DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, kmeans.DefaultOptions(), cfg.KMeans)
	assert.True(t, cfg.IncludePopulation)
	assert.Equal(t, report.DefaultTopLabel, cfg.TopLabel)
}
