package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/catalogindex/internal/domain"
)

// Config holds the catalogindex configuration.
type Config struct {
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Loader    LoaderConfig    `yaml:"loader"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// IndexConfig holds the search index connection and schema settings.
type IndexConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`

	Name            string `yaml:"name"`
	Prefix          string `yaml:"prefix"`   // default: <name>:doc:
	Language        string `yaml:"language"` // stemming language of the working locale
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	// TextWeights are lexical weights per text field (name, description).
	TextWeights map[string]float64 `yaml:"text_weights"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey            string `yaml:"api_key"`
	BaseURL           string `yaml:"base_url"`
	Model             string `yaml:"model"`
	Dimensions        int    `yaml:"dimensions"`
	User              string `yaml:"user"`
	RequestsPerMinute int    `yaml:"requests_per_minute"` // 0 = unpaced
	TimeoutSec        int    `yaml:"timeout_sec"`

	MaxTokensPerSection   int `yaml:"max_tokens_per_section"`
	CharsPerToken         int `yaml:"chars_per_token"`
	SectionRatioReduction int `yaml:"section_ratio_reduction"`
	MaxTextsPerSection    int `yaml:"max_texts_per_section"`
}

// LoaderConfig holds bulk load settings.
type LoaderConfig struct {
	BulkLimit    int    `yaml:"bulk_limit"`
	RecoveryFile string `yaml:"recovery_file"` // ".zst" suffix enables compression
	Verbose      bool   `yaml:"verbose"`
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	Locale  string `yaml:"locale"`  // working locale embedded for every record
	Channel string `yaml:"channel"` // usage label prefix when records carry none
	// FusionWeights per field (name, description).
	FusionWeights  map[string]float64 `yaml:"fusion_weights"`
	SkipPreflight  bool               `yaml:"skip_preflight"`
	SkipCountCheck bool               `yaml:"skip_count_check"`
	ErrorLog       string             `yaml:"error_log"`
	LedgerFile     string             `yaml:"ledger_file"`
}

// MetricsConfig holds the metrics endpoint settings.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from a YAML file.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %v: %w", configPath, err, domain.ErrConfiguration)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %v: %w", err, domain.ErrConfiguration)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Index.ReadinessTimeout <= 0 {
		c.Index.ReadinessTimeout = 10
	}
	if c.Index.Name == "" {
		c.Index.Name = "catalog"
	}
	if c.Index.Language == "" {
		c.Index.Language = "french"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 32
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 400
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 60
	}
	if c.Embedding.MaxTokensPerSection <= 0 {
		c.Embedding.MaxTokensPerSection = 8000
	}
	if c.Embedding.CharsPerToken <= 0 {
		c.Embedding.CharsPerToken = 4
	}
	if c.Embedding.SectionRatioReduction <= 0 {
		c.Embedding.SectionRatioReduction = 6
	}
	if c.Embedding.MaxTextsPerSection <= 0 {
		c.Embedding.MaxTextsPerSection = 2048
	}
	if c.Loader.BulkLimit <= 0 {
		c.Loader.BulkLimit = 1000
	}
	if c.Loader.RecoveryFile == "" {
		c.Loader.RecoveryFile = "results/rest.json"
	}
	if c.Pipeline.Locale == "" {
		c.Pipeline.Locale = string(domain.LocaleFR)
	}
	if c.Pipeline.Channel == "" {
		c.Pipeline.Channel = "catalog"
	}
	if c.Pipeline.ErrorLog == "" {
		c.Pipeline.ErrorLog = "results/error.json"
	}
	if c.Pipeline.LedgerFile == "" {
		c.Pipeline.LedgerFile = "results/tokenUse.json"
	}
}

// Validate checks the configuration for correctness.
// Every failure wraps domain.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Index.Addrs) == 0 {
		errs = append(errs, errors.New("index.addrs is required"))
	}
	if c.Embedding.APIKey == "" {
		errs = append(errs, errors.New("embedding.api_key is required"))
	}
	if !isLocale(c.Pipeline.Locale) {
		errs = append(errs, fmt.Errorf("pipeline.locale %q is not one of %v", c.Pipeline.Locale, domain.Locales))
	}
	if c.Embedding.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("embedding.requests_per_minute must not be negative, got %d",
			c.Embedding.RequestsPerMinute))
	}
	if err := checkWeights("pipeline.fusion_weights", c.Pipeline.FusionWeights, false); err != nil {
		errs = append(errs, err)
	}
	if err := checkWeights("index.text_weights", c.Index.TextWeights, true); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// FusionWeights returns the configured fusion weights keyed by field, nil when unset.
func (c *Config) FusionWeights() map[domain.TextField]float64 {
	return toFieldWeights(c.Pipeline.FusionWeights)
}

// TextWeights returns the configured lexical weights keyed by field, nil when unset.
func (c *Config) TextWeights() map[domain.TextField]float64 {
	return toFieldWeights(c.Index.TextWeights)
}

func toFieldWeights(m map[string]float64) map[domain.TextField]float64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[domain.TextField]float64, len(m))
	for k, v := range m {
		out[domain.TextField(k)] = v
	}
	return out
}

// checkWeights requires known fields and positive weights. Fusion weights
// must cover every field when set at all.
func checkWeights(key string, m map[string]float64, partial bool) error {
	if len(m) == 0 {
		return nil
	}
	for k, v := range m {
		if !isField(k) {
			return fmt.Errorf("%s: unknown field %q", key, k)
		}
		if v <= 0 {
			return fmt.Errorf("%s.%s must be positive, got %v", key, k, v)
		}
	}
	if !partial {
		for _, f := range domain.Fields {
			if _, ok := m[string(f)]; !ok {
				return fmt.Errorf("%s: missing field %q", key, f)
			}
		}
	}
	return nil
}

func isField(s string) bool {
	for _, f := range domain.Fields {
		if string(f) == s {
			return true
		}
	}
	return false
}

func isLocale(s string) bool {
	for _, l := range domain.Locales {
		if string(l) == s {
			return true
		}
	}
	return false
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
