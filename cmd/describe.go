package cmd

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/riskcluster-cli/internal/analysis"
	"github.com/KaramelBytes/riskcluster-cli/internal/dataset"
	"github.com/KaramelBytes/riskcluster-cli/internal/utils"
)

var (
	descDelimiter  string
	descDecimal    string
	descThousands  string
	descSheetName  string
	descSheetIndex int
	descMaxRows    int
	descLevels     int
	descOutlierThr float64
	descOutput     string
)

var describeCmd = &cobra.Command{
	Use:   "describe <file>",
	Short: "List columns with their inferred kind, missing and distinct counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lopt, err := loadOptions(descDelimiter, descDecimal, descThousands)
		if err != nil {
			return err
		}
		lopt.CSV.MaxRows = descMaxRows
		lopt.XLSX.MaxRows = descMaxRows
		lopt.XLSX.SheetName = descSheetName
		lopt.XLSX.SheetIndex = descSheetIndex
		path := args[0]
		ds, err := dataset.Load(path, lopt)
		if err != nil {
			return err
		}
		opt := analysis.DefaultOptions()
		opt.TopLevels = descLevels
		if cmd.Flags().Changed("outlier-threshold") {
			opt.OutlierThreshold = descOutlierThr
		}
		rep := analysis.Profile(filepath.Base(path), ds, opt)

		out := cmd.OutOrStdout()
		if descOutput != "" {
			if err := utils.SafeWriteFile(descOutput, []byte(rep.Markdown())); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(out, "✓ Wrote column profile to %s\n", descOutput)
			return nil
		}
		fmt.Fprintf(out, "%d rows, %d columns\n", rep.Rows, len(rep.Cols))
		renderProfile(out, rep)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	f := describeCmd.Flags()
	f.StringVarP(&descOutput, "output", "o", "", "optional path to write the profile (Markdown)")
	f.StringVar(&descDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	f.StringVar(&descDecimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	f.StringVar(&descThousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	f.StringVar(&descSheetName, "sheet-name", "", "XLSX: sheet name to load")
	f.IntVar(&descSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	f.IntVar(&descMaxRows, "max-rows", 0, "maximum rows to load (0 = unlimited)")
	f.IntVar(&descLevels, "levels", 5, "categorical levels to list per column")
	f.Float64Var(&descOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based, 0 = off)")
}

func renderProfile(w io.Writer, rep *analysis.Report) {
	t := tablewriter.NewWriter(w)
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	t.SetHeader([]string{"Column", "Kind", "Missing", "Distinct", "Min", "Mean", "Max", "Outliers", "Top levels"})
	for _, c := range rep.Cols {
		rec := []string{c.Name, c.Kind.String(), strconv.Itoa(c.Missing), strconv.Itoa(c.Unique), "", "", "", "", ""}
		if c.Kind == dataset.Numeric {
			rec[4], rec[5], rec[6] = num(c.Min), num(c.Mean), num(c.Max)
			if c.OutlierThreshold > 0 {
				rec[7] = strconv.Itoa(c.OutliersCount)
			}
		} else {
			lv := make([]string, 0, len(c.TopValues)+1)
			for _, kv := range c.TopValues {
				lv = append(lv, fmt.Sprintf("%s (%d)", kv.Value, kv.Count))
			}
			if c.Unique > len(c.TopValues) {
				lv = append(lv, "...")
			}
			rec[8] = strings.Join(lv, ", ")
		}
		t.Append(rec)
	}
	t.Render()
}

func num(x float64) string {
	if math.IsNaN(x) {
		return ""
	}
	return strconv.FormatFloat(x, 'g', 4, 64)
}
