package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Clustering
	Seed     int64 `mapstructure:"seed" yaml:"seed"`
	Restarts int   `mapstructure:"restarts" yaml:"restarts"`
	MaxIter  int   `mapstructure:"max_iter" yaml:"max_iter"`
	Scale    bool  `mapstructure:"scale_data" yaml:"scale_data"`

	// Report labels
	TopLabel          string `mapstructure:"top_label" yaml:"top_label"`
	PopulationLabel   string `mapstructure:"population_label" yaml:"population_label"`
	IncludePopulation bool   `mapstructure:"include_population" yaml:"include_population"`
	TemplatePath      string `mapstructure:"template_path" yaml:"template_path"`

	PlotSampleSize int    `mapstructure:"plot_sample_size" yaml:"plot_sample_size"`
	LogLevel       string `mapstructure:"log_level" yaml:"log_level"`
	// OutputDir prefixes relative output paths when set.
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
}

// Dir returns ~/.riskcluster.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".riskcluster"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.riskcluster/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is read first and never overrides variables already set.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("RISKCLUSTER")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("seed", 1234)
	v.SetDefault("restarts", 10)
	v.SetDefault("max_iter", 100)
	v.SetDefault("scale_data", false)
	v.SetDefault("top_label", "Top Risky")
	v.SetDefault("population_label", "Total Population")
	v.SetDefault("include_population", true)
	v.SetDefault("template_path", "")
	v.SetDefault("plot_sample_size", 1000)
	v.SetDefault("log_level", "info")
	v.SetDefault("output_dir", "")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}
