package dataset

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV_InfersKinds(t *testing.T) {
	in := "id,score,segment,note\n1,0.5,A,x\n2,NA,B,\n3,inf,,y\n"
	ds, err := ParseCSV(strings.NewReader(in), CSVOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, ds.NumRows())
	assert.Equal(t, []string{"id", "score", "segment", "note"}, ds.Names())

	score := ds.Column("score")
	require.Equal(t, Numeric, score.Kind)
	assert.Equal(t, 0.5, score.Num[0])
	assert.True(t, score.IsMissing(1))
	assert.True(t, math.IsInf(score.Num[2], 1))

	seg := ds.Column("segment")
	require.Equal(t, Categorical, seg.Kind)
	assert.Equal(t, "A", seg.Text[0])
	assert.True(t, seg.IsMissing(2))
	assert.False(t, seg.IsMissing(1))
}

func TestParseCSV_MissingTokens(t *testing.T) {
	in := "a\nNA\nnan\nNULL\nn/a\n\n7\n"
	ds, err := ParseCSV(strings.NewReader(in), CSVOptions{Delimiter: ','})
	require.NoError(t, err)
	a := ds.Column("a")
	require.Equal(t, Numeric, a.Kind)
	// blank lines are skipped by encoding/csv
	require.Equal(t, 5, a.Len())
	for i := 0; i < 4; i++ {
		assert.True(t, a.IsMissing(i), "row %d", i)
	}
	assert.Equal(t, 7.0, a.Num[4])
}

func TestParseCSV_SniffsDelimiter(t *testing.T) {
	ds, err := ParseCSV(strings.NewReader("x;y\n1,5;2\n3;4\n"), CSVOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y"}, ds.Names())
	assert.Equal(t, []float64{1.5, 3}, ds.Column("x").Num)

	ds, err = ParseCSV(strings.NewReader("x\ty\n1\t2\n"), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, ds.Names())
}

func TestParseCSV_MaxRows(t *testing.T) {
	ds, err := ParseCSV(strings.NewReader("a\n1\n2\n3\n"), CSVOptions{MaxRows: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, ds.NumRows())
}

func TestParseCSV_Empty(t *testing.T) {
	ds, err := ParseCSV(strings.NewReader(""), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, ds.NumCols())
}

func TestUniqueNames(t *testing.T) {
	got := uniqueNames([]string{"\ufeffid", "", "v", "v", " v ", "v.1"})
	assert.Equal(t, []string{"id", "V2", "v", "v.1", "v.2", "v.1.1"}, got)
}

func TestParseNumeric(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12", 12, true},
		{"1.234,5", 1234.5, true},
		{"1,234.5", 1234.5, true},
		{"3,5", 3.5, true},
		{"12%", 12, true},
		{"1 000.5", 1000.5, true},
		{"-inf", math.Inf(-1), true},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseNumeric(tc.in, NumberFormat{})
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got, tc.in)
		}
	}
}

func TestNew_Validates(t *testing.T) {
	_, err := New(NewNumeric("a", []float64{1, 2}), NewNumeric("a", []float64{3, 4}))
	assert.ErrorContains(t, err, "duplicate")

	_, err = New(NewNumeric("a", []float64{1, 2}), NewNumeric("b", []float64{3}))
	assert.ErrorContains(t, err, "expected 2")

	_, err = New(NewNumeric(" ", []float64{1}))
	assert.ErrorContains(t, err, "empty name")

	_, err = New(&Column{Name: "c", Kind: Categorical, Text: []string{"x"}})
	assert.ErrorContains(t, err, "null mask")
}

func TestWith_ReplacesAndAppends(t *testing.T) {
	ds := MustNew(NewNumeric("a", []float64{1, 2}), NewNumeric("b", []float64{3, 4}))
	next, err := ds.With(NewNumeric("a", []float64{9, 9}), NewNumeric("c", []float64{5, 6}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, next.Names())
	assert.Equal(t, []float64{9, 9}, next.Column("a").Num)
	// the receiver is untouched
	assert.Equal(t, []float64{1, 2}, ds.Column("a").Num)
	assert.False(t, ds.Has("c"))

	_, err = ds.With(NewNumeric("d", []float64{1}))
	assert.Error(t, err)
}

func TestTakeHeadSelect(t *testing.T) {
	ds := MustNew(
		NewNumeric("n", []float64{10, 20, 30}),
		NewCategorical("s", []string{"x", "", "z"}, []bool{false, true, false}),
	)
	taken := ds.Take([]int{2, 0})
	assert.Equal(t, []float64{30, 10}, taken.Column("n").Num)
	assert.Equal(t, []string{"z", "x"}, taken.Column("s").Text)

	head := ds.Head(10)
	assert.Equal(t, 3, head.NumRows())
	assert.True(t, ds.Head(2).Column("s").IsMissing(1))
	assert.Equal(t, 0, ds.Head(-1).NumRows())

	sel, err := ds.Select("s")
	require.NoError(t, err)
	assert.Equal(t, []string{"s"}, sel.Names())
	_, err = ds.Select("nope")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	ds := MustNew(
		NewNumeric("n", []float64{1.5, math.NaN()}),
		NewCategorical("s", []string{"a,b", ""}, []bool{false, true}),
	)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds))
	assert.Equal(t, "n,s\n1.5,\"a,b\"\n,\n", buf.String())
}

func TestXLSXRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.xlsx")
	ds := MustNew(
		NewNumeric("score", []float64{0.25, math.NaN(), 3}),
		NewCategorical("segment", []string{"A", "B", ""}, []bool{false, false, true}),
	)
	require.NoError(t, WriteXLSX(path, ds, "Data"))

	got, err := ReadXLSX(path, XLSXOptions{SheetName: "data"})
	require.NoError(t, err)
	require.Equal(t, []string{"score", "segment"}, got.Names())
	score := got.Column("score")
	require.Equal(t, Numeric, score.Kind)
	assert.Equal(t, 0.25, score.Num[0])
	assert.True(t, score.IsMissing(1))
	assert.Equal(t, 3.0, score.Num[2])
	assert.True(t, got.Column("segment").IsMissing(2))

	_, err = ReadXLSX(path, XLSXOptions{SheetName: "Other"})
	assert.ErrorContains(t, err, "Available sheets: Data")
	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 2})
	assert.ErrorContains(t, err, "out of range")
}

func TestLoad_ByExtension(t *testing.T) {
	dir := t.TempDir()
	tsv := filepath.Join(dir, "d.tsv")
	require.NoError(t, os.WriteFile(tsv, []byte("a\tb\n1\t2\n"), 0o644))
	ds, err := Load(tsv, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ds.Names())

	_, err = Load(filepath.Join(dir, "d.parquet"), LoadOptions{})
	assert.ErrorContains(t, err, "unsupported")
}

func TestSetOps(t *testing.T) {
	a := NewSet("x", "y", "x", "", "z")
	b := NewSet("z", "w")
	assert.Equal(t, []string{"x", "y", "z"}, a.Slice())
	assert.Equal(t, []string{"x", "y", "z", "w"}, a.Union(b).Slice())
	assert.Equal(t, []string{"x", "y"}, a.Minus(b).Slice())
	assert.Equal(t, []string{"z"}, a.Intersect(b).Slice())
	assert.True(t, a.Contains("y"))
	assert.False(t, Set{}.Contains("y"))
	assert.Equal(t, 0, Set{}.Len())
}
