package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// CSVOptions controls delimited-text loading.
type CSVOptions struct {
	// Delimiter for CSV. If 0, auto-detects among ',', ';', '\t' from the header line.
	Delimiter rune
	// MaxRows limits rows loaded; 0 means unlimited.
	MaxRows int
	Numbers NumberFormat
}

// NumberFormat controls numeric parsing. Zero separators mean auto-detect per value.
type NumberFormat struct {
	DecimalSeparator   rune
	ThousandsSeparator rune
}

// ReadCSV loads a delimited text file into a Dataset, inferring column kinds.
func ReadCSV(path string, opt CSVOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if opt.Delimiter == 0 && strings.HasSuffix(strings.ToLower(path), ".tsv") {
		opt.Delimiter = '\t'
	}
	return ParseCSV(f, opt)
}

// ParseCSV reads delimited text from r. The first record is the header.
func ParseCSV(r io.Reader, opt CSVOptions) (*Dataset, error) {
	br := bufio.NewReader(r)
	delim := opt.Delimiter
	if delim == 0 {
		head, _ := br.Peek(4096)
		delim = sniffDelimiter(string(head))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return New()
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	raw := make([][]string, len(header))
	n := 0
	for n < maxRows {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", n+1, err)
		}
		for j := range header {
			v := ""
			if j < len(rec) {
				v = rec[j]
			}
			raw[j] = append(raw[j], v)
		}
		n++
	}
	return fromRaw(header, raw, opt.Numbers)
}

// fromRaw builds typed columns from string cells laid out column-major.
func fromRaw(header []string, raw [][]string, nf NumberFormat) (*Dataset, error) {
	names := uniqueNames(header)
	cols := make([]*Column, len(names))
	for j, name := range names {
		cols[j] = inferColumn(name, raw[j], nf)
	}
	return New(cols...)
}

// inferColumn yields a numeric column when every non-missing cell parses as a
// number, otherwise a categorical column.
func inferColumn(name string, cells []string, nf NumberFormat) *Column {
	nums := make([]float64, len(cells))
	numeric := true
	for i, c := range cells {
		v := strings.TrimSpace(c)
		if isMissingToken(v) {
			nums[i] = math.NaN()
			continue
		}
		x, ok := parseNumeric(v, nf)
		if !ok {
			numeric = false
			break
		}
		nums[i] = x
	}
	if numeric {
		return NewNumeric(name, nums)
	}
	text := make([]string, len(cells))
	null := make([]bool, len(cells))
	for i, c := range cells {
		v := strings.TrimSpace(c)
		if isMissingToken(v) {
			null[i] = true
			continue
		}
		text[i] = v
	}
	return NewCategorical(name, text, null)
}

func isMissingToken(v string) bool {
	switch strings.ToLower(v) {
	case "", "na", "nan", "null", "n/a":
		return true
	}
	return false
}

// uniqueNames trims header cells, names blank ones V1..Vn, and suffixes
// repeats with .1, .2 and so on.
func uniqueNames(header []string) []string {
	out := make([]string, len(header))
	used := map[string]bool{}
	count := map[string]int{}
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("V%d", i+1)
		}
		cand := name
		for used[cand] {
			count[name]++
			cand = fmt.Sprintf("%s.%d", name, count[name])
		}
		used[cand] = true
		out[i] = cand
	}
	return out
}

func sniffDelimiter(head string) rune {
	if i := strings.IndexAny(head, "\r\n"); i >= 0 {
		head = head[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := strings.Count(head, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

func parseNumeric(s string, nf NumberFormat) (float64, bool) {
	raw := strings.TrimSpace(s)
	if strings.Contains(raw, "%") {
		raw = strings.ReplaceAll(raw, "%", "")
	}
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "inf", "+inf", "infinity":
		return math.Inf(1), true
	case "-inf", "-infinity":
		return math.Inf(-1), true
	}
	dec := nf.DecimalSeparator
	thou := nf.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		if cpos >= 0 && dpos >= 0 {
			if cpos > dpos {
				dec = ','
				thou = '.'
			} else {
				dec = '.'
				thou = ','
			}
		} else if cpos >= 0 {
			dec = ','
		} else {
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// WriteCSV writes ds as comma-separated text with a header row. Missing
// values are written as empty cells.
func WriteCSV(w io.Writer, ds *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Names()); err != nil {
		return err
	}
	cols := ds.Columns()
	rec := make([]string, len(cols))
	for i := 0; i < ds.NumRows(); i++ {
		for j, c := range cols {
			rec[j] = c.String(i)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatFloat renders x with the shortest exact representation.
func FormatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
