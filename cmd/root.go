package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/riskcluster-cli/internal/config"
)

var (
	// Global flags
	cfgFile string
	debug   bool

	// Loaded configuration
	cfg *cfgpkg.Global
	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "riskcluster",
	Short: "Cluster the top-scoring rows of a dataset and compare the segments",
	Long: `riskcluster selects the highest-scoring rows of a CSV or XLSX dataset,
clusters them with seeded k-means, and reports each cluster against the
selected rows and the whole population.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.riskcluster/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal here; commands that need settings fail in effectiveConfig
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c
	configureLogger(cfg.LogLevel)
}

// configureLogger applies log_level, with --debug taking precedence.
func configureLogger(level string) {
	lvl := logrus.InfoLevel
	if l, err := logrus.ParseLevel(strings.TrimSpace(level)); err == nil {
		lvl = l
	} else if level != "" {
		fmt.Fprintf(os.Stderr, "⚠ Warning: unknown log_level %q, using info\n", level)
	}
	if debug {
		lvl = logrus.DebugLevel
	}
	log.SetLevel(lvl)
}

// effectiveConfig returns the loaded config. When the startup load failed it
// loads again and returns that error.
func effectiveConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}
