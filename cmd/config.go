package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/riskcluster-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set riskcluster configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := effectiveConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "seed: %d\n", c.Seed)
		fmt.Fprintf(out, "restarts: %d\n", c.Restarts)
		fmt.Fprintf(out, "max_iter: %d\n", c.MaxIter)
		fmt.Fprintf(out, "scale_data: %t\n", c.Scale)
		fmt.Fprintf(out, "top_label: %s\n", c.TopLabel)
		fmt.Fprintf(out, "population_label: %s\n", c.PopulationLabel)
		fmt.Fprintf(out, "include_population: %t\n", c.IncludePopulation)
		if c.TemplatePath != "" {
			fmt.Fprintf(out, "template_path: %s\n", c.TemplatePath)
		}
		fmt.Fprintf(out, "plot_sample_size: %d\n", c.PlotSampleSize)
		fmt.Fprintf(out, "log_level: %s\n", c.LogLevel)
		if c.OutputDir != "" {
			fmt.Fprintf(out, "output_dir: %s\n", c.OutputDir)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c, err := effectiveConfig()
		if err != nil {
			return err
		}
		if err := setKey(c, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func setKey(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "seed":
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int for seed: %w", err)
		}
		c.Seed = i
	case "restarts":
		i, err := strconv.Atoi(val)
		if err != nil || i < 1 {
			return fmt.Errorf("invalid int for restarts: %v (must be >= 1)", val)
		}
		c.Restarts = i
	case "max_iter":
		i, err := strconv.Atoi(val)
		if err != nil || i < 1 {
			return fmt.Errorf("invalid int for max_iter: %v (must be >= 1)", val)
		}
		c.MaxIter = i
	case "scale_data":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for scale_data: %w", err)
		}
		c.Scale = b
	case "top_label":
		c.TopLabel = val
	case "population_label":
		c.PopulationLabel = val
	case "include_population":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for include_population: %w", err)
		}
		c.IncludePopulation = b
	case "template_path":
		c.TemplatePath = val
	case "plot_sample_size":
		i, err := strconv.Atoi(val)
		if err != nil || i < 1 {
			return fmt.Errorf("invalid int for plot_sample_size: %v (must be >= 1)", val)
		}
		c.PlotSampleSize = i
	case "log_level":
		if _, err := logrus.ParseLevel(strings.TrimSpace(val)); err != nil {
			return fmt.Errorf("invalid log_level: %s", val)
		}
		c.LogLevel = strings.TrimSpace(val)
	case "output_dir":
		c.OutputDir = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}
