package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/riskcluster-cli/internal/dataset"
	"github.com/KaramelBytes/riskcluster-cli/internal/pipeline"
	"github.com/KaramelBytes/riskcluster-cli/internal/plot"
	"github.com/KaramelBytes/riskcluster-cli/internal/report"
	"github.com/KaramelBytes/riskcluster-cli/internal/utils"
)

var (
	runClusterVars []string
	runDisplayVars []string
	runScore       string
	runClusters    int
	runCount       int
	runFraction    float64
	runScale       bool
	runNoPop       bool
	runOutput      string
	runTemplate    string
	runLabeled     string
	runJSON        string
	runPlot        string
	runPlotSample  int
	runSheetName   string
	runSheetIndex  int
	runDelimiter   string
	runDecimal     string
	runThousands   string
	runMaxRows     int
	runSeed        int64
	runRestarts    int
	runMaxIter     int
)

var runClusterCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Cluster the top-scoring rows of a CSV/TSV/XLSX file",
	Long: `Select the highest-scoring rows (--count or --fraction), cluster them on
the --cluster-vars with seeded k-means and summarize every cluster against the
selected rows and the whole population.

Categorical variables are expanded into one 0/1 column per value.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := effectiveConfig()
		if err != nil {
			return err
		}
		if debug {
			log.SetLevel(logrus.DebugLevel)
		}
		flags := cmd.Flags()

		lopt, err := loadOptions(runDelimiter, runDecimal, runThousands)
		if err != nil {
			return err
		}
		lopt.CSV.MaxRows = runMaxRows
		lopt.XLSX.MaxRows = runMaxRows
		lopt.XLSX.SheetName = runSheetName
		lopt.XLSX.SheetIndex = runSheetIndex

		path := args[0]
		ds, err := dataset.Load(path, lopt)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"rows": ds.NumRows(), "cols": ds.NumCols(), "file": path}).Debug("loaded dataset")

		req := pipeline.Request{
			Roles: pipeline.Roles{
				Clustering: runClusterVars,
				Display:    runDisplayVars,
				Score:      runScore,
			},
			Clusters: runClusters,
			Scale:    c.Scale,
		}
		if flags.Changed("count") {
			n := runCount
			req.Selection.Count = &n
		}
		if flags.Changed("fraction") {
			f := runFraction
			req.Selection.Fraction = &f
		}
		if flags.Changed("scale") {
			req.Scale = runScale
		}

		pcfg := pipeline.DefaultConfig()
		pcfg.KMeans.Seed = c.Seed
		pcfg.KMeans.Restarts = c.Restarts
		pcfg.KMeans.MaxIter = c.MaxIter
		if flags.Changed("seed") {
			pcfg.KMeans.Seed = runSeed
		}
		if flags.Changed("restarts") {
			pcfg.KMeans.Restarts = runRestarts
		}
		if flags.Changed("max-iter") {
			pcfg.KMeans.MaxIter = runMaxIter
		}
		pcfg.TopLabel = c.TopLabel
		pcfg.PopulationLabel = c.PopulationLabel
		pcfg.IncludePopulation = c.IncludePopulation && !runNoPop
		pcfg.Logger = log

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		res, err := pipeline.Run(ctx, ds, req, pcfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		wrote := false
		if runOutput != "" {
			dst := utils.ResolveOutput(c.OutputDir, runOutput)
			tpl := runTemplate
			if tpl == "" {
				tpl = c.TemplatePath
			}
			err := report.WriteXLSX(res.Summary, dst, report.ExportOptions{Template: tpl})
			var degraded *report.ReportingDegradedError
			switch {
			case errors.As(err, &degraded):
				log.WithError(degraded.Err).WithField("template", degraded.Template).Warn("report template unavailable")
				fmt.Fprintf(out, "⚠ Warning: template %s could not be used; wrote an unstyled workbook\n", degraded.Template)
			case err != nil:
				return err
			}
			fmt.Fprintf(out, "✓ Wrote summary to %s\n", dst)
			wrote = true
		}
		if runJSON != "" {
			b, err := utils.PrettyJSON(res.Summary)
			if err != nil {
				return err
			}
			dst := utils.ResolveOutput(c.OutputDir, runJSON)
			if err := utils.SafeWriteFile(dst, b); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Wrote summary JSON to %s\n", dst)
			wrote = true
		}
		if runLabeled != "" {
			dst := utils.ResolveOutput(c.OutputDir, runLabeled)
			if err := writeLabeled(dst, res.Labeled); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Wrote %d labeled rows to %s\n", res.Labeled.NumRows(), dst)
		}
		if runPlot != "" {
			size := c.PlotSampleSize
			if flags.Changed("plot-sample") {
				size = runPlotSample
			}
			dst := utils.ResolveOutput(c.OutputDir, runPlot)
			err := plot.Correlation(res.Labeled, res.Encoding.Features, plot.Options{
				Path:       dst,
				SampleSize: size,
				Seed:       pcfg.KMeans.Seed,
			})
			if err != nil {
				// plot failures are reported but do not fail the run
				log.WithError(err).Warn("correlation plot failed")
				fmt.Fprintf(out, "⚠ Warning: correlation plot failed: %v\n", err)
			} else {
				fmt.Fprintf(out, "✓ Wrote correlation plot to %s\n", dst)
			}
		}
		if !wrote {
			report.Render(out, res.Summary)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runClusterCmd)
	f := runClusterCmd.Flags()
	f.StringSliceVar(&runClusterVars, "cluster-vars", nil, "comma-separated variables to cluster on (repeatable)")
	f.StringSliceVar(&runDisplayVars, "display-vars", nil, "comma-separated variables to report but not cluster on")
	f.StringVar(&runScore, "score", "", "numeric column ranking rows by risk (required)")
	f.IntVarP(&runClusters, "clusters", "k", 3, "number of clusters")
	f.IntVar(&runCount, "count", 0, "select the top N rows by score")
	f.Float64Var(&runFraction, "fraction", 0, "select the top fraction of rows by score, e.g. 0.05")
	f.BoolVar(&runScale, "scale", false, "z-score clustering features before k-means (overrides config)")
	f.BoolVar(&runNoPop, "no-population", false, "omit the whole-population column from the summary")
	f.StringVarP(&runOutput, "output", "o", "", "write the summary to an .xlsx workbook")
	f.StringVar(&runTemplate, "template", "", "XLSX template whose styles and layout are reused")
	f.StringVar(&runJSON, "json", "", "write the summary as JSON")
	f.StringVar(&runLabeled, "labeled", "", "write the selected rows with their cluster label (.csv or .xlsx)")
	f.StringVar(&runPlot, "plot", "", "write a correlation heat map of the clustering features (.png|.svg|.pdf)")
	f.IntVar(&runPlotSample, "plot-sample", 1000, "rows sampled for the correlation plot")
	f.StringVar(&runSheetName, "sheet-name", "", "XLSX: sheet name to load")
	f.IntVar(&runSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	f.StringVar(&runDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	f.StringVar(&runDecimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	f.StringVar(&runThousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	f.IntVar(&runMaxRows, "max-rows", 0, "maximum rows to load (0 = unlimited)")
	f.Int64Var(&runSeed, "seed", 1234, "random seed for k-means (overrides config)")
	f.IntVar(&runRestarts, "restarts", 10, "k-means restarts (overrides config)")
	f.IntVar(&runMaxIter, "max-iter", 100, "maximum k-means iterations per restart (overrides config)")
}

// writeLabeled stores the labeled rows as .xlsx or, for any other extension, CSV.
func writeLabeled(dst string, ds *dataset.Dataset) error {
	if strings.EqualFold(filepath.Ext(dst), ".xlsx") {
		if err := utils.EnsureParentDir(dst); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := dataset.WriteXLSX(dst, ds, "Labeled"); err != nil {
			return fmt.Errorf("write labeled rows: %w", err)
		}
		return nil
	}
	var buf bytes.Buffer
	if err := dataset.WriteCSV(&buf, ds); err != nil {
		return fmt.Errorf("encode labeled rows: %w", err)
	}
	return utils.SafeWriteFile(dst, buf.Bytes())
}

// loadOptions maps the delimiter and number-format flags onto loader options.
func loadOptions(delim, decimal, thousands string) (dataset.LoadOptions, error) {
	var opt dataset.LoadOptions
	switch delim {
	case "":
	case ",":
		opt.CSV.Delimiter = ','
	case "\t", "tab":
		opt.CSV.Delimiter = '\t'
	case ";":
		opt.CSV.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", delim)
	}
	var nf dataset.NumberFormat
	switch strings.ToLower(strings.TrimSpace(decimal)) {
	case ",", "comma":
		nf.DecimalSeparator = ','
	case ".", "dot":
		nf.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", decimal)
	}
	switch strings.ToLower(strings.TrimSpace(thousands)) {
	case ",":
		nf.ThousandsSeparator = ','
	case ".":
		nf.ThousandsSeparator = '.'
	case "space", " ":
		nf.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", thousands)
	}
	opt.CSV.Numbers = nf
	opt.XLSX.Numbers = nf
	return opt, nil
}
