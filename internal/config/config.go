package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ecco/internal/core"
)

// Config holds all application configuration
type Config struct {
	App        App        `mapstructure:"app"`
	Logging    Logging    `mapstructure:"logging"`
	Validation Validation `mapstructure:"validation"`
	Ensemble   Ensemble   `mapstructure:"ensemble"`
	Output     Output     `mapstructure:"output"`
	Store      Store      `mapstructure:"store"`
	Metrics    Metrics    `mapstructure:"metrics"`
}

// App holds general application configuration
type App struct {
	Debug   bool   `mapstructure:"debug"`
	DataDir string `mapstructure:"data_dir"`
}

// Logging holds logger configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validation holds settings for scoring the partitions of a single tree
type Validation struct {
	Metrics       []string `mapstructure:"metrics"`
	Tree          string   `mapstructure:"tree"`     // "mst" or a linkage-metric pair
	Distance      string   `mapstructure:"distance"` // metric used by the mst tree
	Workers       int      `mapstructure:"workers"`
	MinK          int      `mapstructure:"min_k"`
	MaxK          int      `mapstructure:"max_k"`
	MaxCandidates int      `mapstructure:"max_candidates"`
}

// Ensemble holds settings for consensus clustering over many trees
type Ensemble struct {
	Pairs        []string `mapstructure:"pairs"`
	Clusters     int      `mapstructure:"clusters"`
	MinBlockSize int      `mapstructure:"min_block_size"`
	Reference    string   `mapstructure:"reference"`
	TieEpsilon   float64  `mapstructure:"tie_epsilon"`
}

// Output holds report output configuration
type Output struct {
	Directory string `mapstructure:"directory"`
}

// Store holds run persistence configuration
type Store struct {
	Enabled bool `mapstructure:"enabled"`
}

// Metrics holds Prometheus textfile export configuration
type Metrics struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

// DefaultPairs are the linkage-metric combinations ensembled when none are
// configured.
var DefaultPairs = []string{
	"ward-euclidean",
	"single-euclidean", "single-sqeuclidean", "single-seuclidean", "single-chebyshev",
	"complete-euclidean", "complete-sqeuclidean", "complete-seuclidean", "complete-chebyshev",
	"average-euclidean", "average-sqeuclidean", "average-seuclidean", "average-chebyshev",
}

// DefaultMetrics are the validation indices computed when none are
// configured.
var DefaultMetrics = []string{"kmeans", "dbi", "dunn", "pbm", "silhouette"}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".ecco")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.SetEnvPrefix("ECCO")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	postProcessConfig(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", ".ecco")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")

	viper.SetDefault("validation.metrics", DefaultMetrics)
	viper.SetDefault("validation.tree", "mst")
	viper.SetDefault("validation.distance", "euclidean")
	viper.SetDefault("validation.workers", 0)
	viper.SetDefault("validation.min_k", 0)
	viper.SetDefault("validation.max_k", 0)
	viper.SetDefault("validation.max_candidates", 100)

	viper.SetDefault("ensemble.pairs", DefaultPairs)
	viper.SetDefault("ensemble.clusters", 13)
	viper.SetDefault("ensemble.min_block_size", 2)
	viper.SetDefault("ensemble.reference", "ward-euclidean")
	viper.SetDefault("ensemble.tie_epsilon", 1e-9)

	viper.SetDefault("output.directory", "ecco-output")
	viper.SetDefault("store.enabled", true)
	viper.SetDefault("metrics.textfile_path", "")
}

// bindEnvironmentVariables maps unprefixed variables onto config keys
func bindEnvironmentVariables() {
	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"ECCO_DEBUG",
	})

	bindEnvKeys("logging.level", []string{
		"LOG_LEVEL",
		"ECCO_LOG_LEVEL",
	})

	bindEnvKeys("validation.workers", []string{
		"ECCO_THREADS",
		"ECCO_WORKERS",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig expands paths and fills derived defaults
func postProcessConfig(config *Config) {
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.Output.Directory != "" {
		config.Output.Directory = expandPath(config.Output.Directory)
	}
	if config.Metrics.TextfilePath != "" {
		config.Metrics.TextfilePath = expandPath(config.Metrics.TextfilePath)
	}

	if config.Validation.Workers <= 0 || config.Validation.Workers > runtime.NumCPU() {
		config.Validation.Workers = runtime.NumCPU()
	}
	if len(config.Validation.Metrics) == 0 {
		config.Validation.Metrics = DefaultMetrics
	}
	if len(config.Ensemble.Pairs) == 0 {
		config.Ensemble.Pairs = DefaultPairs
	}
	config.Logging.Level = strings.ToLower(config.Logging.Level)
	config.Logging.Format = strings.ToLower(config.Logging.Format)
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig checks value ranges and pair syntax
func validateConfig(config *Config) error {
	var errors []string

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("Unknown log level: %s. Supported: debug, info, warn, error", config.Logging.Level))
	}
	switch config.Logging.Format {
	case "console", "json":
	default:
		errors = append(errors, fmt.Sprintf("Unknown log format: %s. Supported: console, json", config.Logging.Format))
	}

	v := config.Validation
	if v.MinK < 0 || v.MaxK < 0 || v.MaxCandidates < 0 {
		errors = append(errors, "validation.min_k, validation.max_k and validation.max_candidates must not be negative")
	}
	if v.MinK > 0 && v.MaxK > 0 && v.MinK > v.MaxK {
		errors = append(errors, fmt.Sprintf("validation.min_k (%d) is greater than validation.max_k (%d)", v.MinK, v.MaxK))
	}
	if v.Tree != "mst" {
		if _, err := core.ParseLinkagePair(v.Tree); err != nil {
			errors = append(errors, fmt.Sprintf("validation.tree must be \"mst\" or linkage-metric: %v", err))
		}
	}

	e := config.Ensemble
	if e.Clusters < 1 {
		errors = append(errors, "ensemble.clusters must be at least 1")
	}
	if e.MinBlockSize < 1 {
		errors = append(errors, "ensemble.min_block_size must be at least 1")
	}
	if e.TieEpsilon < 0 {
		errors = append(errors, "ensemble.tie_epsilon must not be negative")
	}
	for _, p := range e.Pairs {
		if _, err := core.ParseLinkagePair(p); err != nil {
			errors = append(errors, fmt.Sprintf("ensemble.pairs: %v", err))
		}
	}
	if _, err := core.ParseLinkagePair(e.Reference); err != nil {
		errors = append(errors, fmt.Sprintf("ensemble.reference: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// EnsemblePairs returns the configured pairs in parsed form
func (c *Config) EnsemblePairs() []core.LinkagePair {
	pairs := make([]core.LinkagePair, 0, len(c.Ensemble.Pairs))
	for _, s := range c.Ensemble.Pairs {
		if p, err := core.ParseLinkagePair(s); err == nil {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

// StorePath returns the SQLite database location
func (c *Config) StorePath() string {
	return filepath.Join(c.App.DataDir, "ecco.db")
}

// Convenience getters for commonly used configuration values
func GetApp() App               { return Get().App }
func GetLogging() Logging       { return Get().Logging }
func GetValidation() Validation { return Get().Validation }
func GetEnsemble() Ensemble     { return Get().Ensemble }
func GetOutput() Output         { return Get().Output }
func GetStore() Store           { return Get().Store }
func GetMetrics() Metrics       { return Get().Metrics }

func GetOutputDirectory() string { return Get().Output.Directory }
func GetDataDir() string         { return Get().App.DataDir }
func IsDebugMode() bool          { return Get().App.Debug }

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
