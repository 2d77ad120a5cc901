package dataset

import (
	"fmt"
	"math"
	"strings"
)

// Kind is the inferred storage type of a column.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Column is a named sequence of scalar values. Numeric columns store missing
// values as NaN; categorical columns flag them in Null.
// Columns are treated as immutable once they are part of a Dataset.
type Column struct {
	Name string
	Kind Kind
	Num  []float64
	Text []string
	Null []bool
}

// NewNumeric builds a numeric column.
func NewNumeric(name string, vals []float64) *Column {
	return &Column{Name: name, Kind: Numeric, Num: vals}
}

// NewCategorical builds a categorical column. A nil null mask means no missing values.
func NewCategorical(name string, vals []string, null []bool) *Column {
	if null == nil {
		null = make([]bool, len(vals))
	}
	return &Column{Name: name, Kind: Categorical, Text: vals, Null: null}
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Num)
	}
	return len(c.Text)
}

// IsMissing reports whether row i holds no value.
func (c *Column) IsMissing(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Num[i])
	}
	return c.Null[i]
}

// String renders row i for display and CSV output. Missing renders empty.
func (c *Column) String(i int) string {
	if c.IsMissing(i) {
		return ""
	}
	if c.Kind == Numeric {
		return FormatFloat(c.Num[i])
	}
	return c.Text[i]
}

func (c *Column) take(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Numeric {
		out.Num = make([]float64, len(rows))
		for i, r := range rows {
			out.Num[i] = c.Num[r]
		}
		return out
	}
	out.Text = make([]string, len(rows))
	out.Null = make([]bool, len(rows))
	for i, r := range rows {
		out.Text[i] = c.Text[r]
		out.Null[i] = c.Null[r]
	}
	return out
}

// Dataset is an ordered collection of uniquely named, equal-length columns.
type Dataset struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New validates the column invariants and returns a Dataset.
func New(cols ...*Column) (*Dataset, error) {
	ds := &Dataset{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := ds.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.Name)
		}
		if c.Kind == Categorical && len(c.Null) != len(c.Text) {
			return nil, fmt.Errorf("column %q: null mask has %d entries for %d values", c.Name, len(c.Null), len(c.Text))
		}
		if i == 0 {
			ds.rows = c.Len()
		} else if c.Len() != ds.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len(), ds.rows)
		}
		ds.index[c.Name] = i
		ds.cols = append(ds.cols, c)
	}
	return ds, nil
}

// MustNew is New for fixtures; it panics on invalid input.
func MustNew(cols ...*Column) *Dataset {
	ds, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return ds
}

// NumRows returns the number of rows.
func (d *Dataset) NumRows() int { return d.rows }

// NumCols returns the number of columns.
func (d *Dataset) NumCols() int { return len(d.cols) }

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.cols))
	for i, c := range d.cols {
		out[i] = c.Name
	}
	return out
}

// Columns returns the columns in order. The slice is a copy; the columns are shared.
func (d *Dataset) Columns() []*Column {
	out := make([]*Column, len(d.cols))
	copy(out, d.cols)
	return out
}

// Has reports whether a column with the given name exists.
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Column returns the named column or nil.
func (d *Dataset) Column(name string) *Column {
	i, ok := d.index[name]
	if !ok {
		return nil
	}
	return d.cols[i]
}

// With returns a new Dataset with cols appended. A column whose name already
// exists replaces the existing one in place.
func (d *Dataset) With(cols ...*Column) (*Dataset, error) {
	next := make([]*Column, len(d.cols))
	copy(next, d.cols)
	pos := make(map[string]int, len(d.index))
	for k, v := range d.index {
		pos[k] = v
	}
	for _, c := range cols {
		if i, ok := pos[c.Name]; ok {
			next[i] = c
			continue
		}
		pos[c.Name] = len(next)
		next = append(next, c)
	}
	return New(next...)
}

// Take returns a new Dataset holding the given rows in the given order.
func (d *Dataset) Take(rows []int) *Dataset {
	out := &Dataset{index: make(map[string]int, len(d.cols)), rows: len(rows)}
	for i, c := range d.cols {
		out.cols = append(out.cols, c.take(rows))
		out.index[c.Name] = i
	}
	return out
}

// Head returns the first n rows (clamped to the dataset size).
func (d *Dataset) Head(n int) *Dataset {
	if n < 0 {
		n = 0
	}
	if n > d.rows {
		n = d.rows
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return d.Take(rows)
}

// Select returns a new Dataset restricted to the named columns, in that order.
func (d *Dataset) Select(names ...string) (*Dataset, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c := d.Column(n)
		if c == nil {
			return nil, fmt.Errorf("unknown column %q", n)
		}
		cols = append(cols, c)
	}
	return New(cols...)
}
