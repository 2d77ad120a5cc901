package dataset

import (
	"fmt"
	"path/filepath"
	"strings"
)

// LoadOptions bundles the per-format options used by Load.
type LoadOptions struct {
	CSV  CSVOptions
	XLSX XLSXOptions
}

// Load picks a reader by file extension: .xlsx goes through excelize,
// .csv, .tsv and .txt through the delimited-text reader.
func Load(path string, opt LoadOptions) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, opt.XLSX)
	case ".csv", ".tsv", ".txt", "":
		return ReadCSV(path, opt.CSV)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q (use .csv, .tsv or .xlsx)", filepath.Ext(path))
	}
}
