// Package config loads the crawler configuration: a yaml file with
// environment overrides, plus site credentials read from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pevans/lmdcrawl/fetcher"
	"github.com/pevans/lmdcrawl/logger"
	"github.com/pevans/lmdcrawl/selectors"
)

// FetcherConfig is the fetch policy section.
type FetcherConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"LMDCRAWL_REQUESTS_PER_MINUTE"`
	RequestsPerHour   int           `yaml:"requests_per_hour" env:"LMDCRAWL_REQUESTS_PER_HOUR"`
	Burst             int           `yaml:"burst" env:"LMDCRAWL_BURST"`
	CacheSize         int           `yaml:"cache_size" env:"LMDCRAWL_CACHE_SIZE"`
	MaxAttempts       int           `yaml:"max_attempts" env:"LMDCRAWL_MAX_ATTEMPTS"`
	BaseBackoff       time.Duration `yaml:"base_backoff" env:"LMDCRAWL_BASE_BACKOFF"`
	MaxBackoff        time.Duration `yaml:"max_backoff" env:"LMDCRAWL_MAX_BACKOFF"`
	RequestTimeout    time.Duration `yaml:"request_timeout" env:"LMDCRAWL_REQUEST_TIMEOUT"`
	PolitenessMin     time.Duration `yaml:"politeness_min" env:"LMDCRAWL_POLITENESS_MIN"`
	PolitenessMax     time.Duration `yaml:"politeness_max" env:"LMDCRAWL_POLITENESS_MAX"`
}

// TransportConfig is the HTTP request template section.
type TransportConfig struct {
	UserAgent string            `yaml:"user_agent" env:"LMDCRAWL_USER_AGENT"`
	Timeout   time.Duration     `yaml:"timeout" env:"LMDCRAWL_HTTP_TIMEOUT"`
	Headers   map[string]string `yaml:"headers"`
}

// StorageConfig locates the dataset.
type StorageConfig struct {
	Path string `yaml:"path" env:"LMDCRAWL_DB_PATH"`
}

// CrawlConfig holds crawl defaults the CLI applies when flags are not set.
type CrawlConfig struct {
	BaseURL  string `yaml:"base_url" env:"LMDCRAWL_BASE_URL"`
	Workers  int    `yaml:"workers" env:"LMDCRAWL_WORKERS"`
	MaxPages int    `yaml:"max_pages" env:"LMDCRAWL_MAX_PAGES"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"LMDCRAWL_ADDR"`
}

// FileConfig represents the structure of ~/.lmdcrawl/config.yaml.
type FileConfig struct {
	Fetcher   FetcherConfig   `yaml:"fetcher"`
	Transport TransportConfig `yaml:"transport"`
	Log       logger.Config   `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Crawl     CrawlConfig     `yaml:"crawl"`
	Server    ServerConfig    `yaml:"server"`
	// Selectors overrides built-in selectors, keyed by page kind then field.
	Selectors map[string]map[string]selectors.Selector `yaml:"selectors"`
}

// Default returns the configuration used when no file is present.
func Default() *FileConfig {
	fc := fetcher.DefaultConfig()
	tc := fetcher.DefaultTransportConfig()

	return &FileConfig{
		Fetcher: FetcherConfig{
			RequestsPerMinute: fc.RequestsPerMinute,
			RequestsPerHour:   fc.RequestsPerHour,
			Burst:             fc.Burst,
			CacheSize:         fc.CacheSize,
			MaxAttempts:       fc.MaxAttempts,
			BaseBackoff:       fc.BaseBackoff,
			MaxBackoff:        fc.MaxBackoff,
			RequestTimeout:    fc.RequestTimeout,
			PolitenessMin:     fc.PolitenessMin,
			PolitenessMax:     fc.PolitenessMax,
		},
		Transport: TransportConfig{
			UserAgent: tc.UserAgent,
			Timeout:   tc.Timeout,
		},
		Log:     logger.DefaultConfig(),
		Storage: StorageConfig{Path: "lmdcrawl.db"},
		Crawl: CrawlConfig{
			BaseURL: "https://www.lemonde.fr",
			Workers: 2,
		},
		Server: ServerConfig{Addr: "localhost:8082"},
	}
}

// DefaultPath returns ~/.lmdcrawl/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".lmdcrawl", "config.yaml"), nil
}

// LoadConfigFile loads configuration from ~/.lmdcrawl/config.yaml. Returns nil
// if the file doesn't exist (not an error). Returns error if the file exists
// but cannot be parsed.
func LoadConfigFile() (*FileConfig, error) {
	configPath, err := DefaultPath()
	if err != nil {
		return nil, err
	}

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil // File doesn't exist -- not an error
	}

	return readFile(configPath)
}

// Load builds the effective configuration: defaults, then the file at path
// (or the default file when path is empty), then environment overrides.
// An explicit path that does not exist is an error.
func Load(path string) (*FileConfig, error) {
	var cfg *FileConfig
	var err error
	if path == "" {
		cfg, err = LoadConfigFile()
	} else {
		cfg, err = readFile(path)
	}
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = Default()
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// readFile parses the yaml at path on top of the defaults, so keys missing
// from the file keep their default values.
func readFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// FetcherPolicy converts the fetcher section.
func (c *FileConfig) FetcherPolicy() fetcher.Config {
	f := c.Fetcher
	return fetcher.Config{
		RequestsPerMinute: f.RequestsPerMinute,
		RequestsPerHour:   f.RequestsPerHour,
		Burst:             f.Burst,
		CacheSize:         f.CacheSize,
		MaxAttempts:       f.MaxAttempts,
		BaseBackoff:       f.BaseBackoff,
		MaxBackoff:        f.MaxBackoff,
		RequestTimeout:    f.RequestTimeout,
		PolitenessMin:     f.PolitenessMin,
		PolitenessMax:     f.PolitenessMax,
	}
}

// HTTPTransport builds the request template, attaching creds when present.
func (c *FileConfig) HTTPTransport(creds Credentials) fetcher.TransportConfig {
	tc := fetcher.DefaultTransportConfig()
	if c.Transport.UserAgent != "" {
		tc.UserAgent = c.Transport.UserAgent
	}
	if c.Transport.Timeout > 0 {
		tc.Timeout = c.Transport.Timeout
	}
	for k, v := range c.Transport.Headers {
		tc.Headers[k] = v
	}
	if !creds.Empty() {
		tc.Cookie = creds.CookieHeader()
	}
	return tc
}

// Registry builds the selector registry with the file's overrides applied.
func (c *FileConfig) Registry() (*selectors.Registry, error) {
	if len(c.Selectors) == 0 {
		return selectors.Default(), nil
	}

	defaults := selectors.Defaults()
	overrides := selectors.Definitions{}
	for kindName, fields := range c.Selectors {
		kind, err := selectors.ParseKind(kindName)
		if err != nil {
			return nil, fmt.Errorf("invalid selectors section: %w", err)
		}
		overrides[kind] = map[selectors.Field]selectors.Selector{}
		for name, sel := range fields {
			field := selectors.Field(name)
			if _, ok := defaults[kind][field]; !ok {
				return nil, fmt.Errorf("invalid selectors section: unknown field %s.%s", kindName, name)
			}
			overrides[kind][field] = sel
		}
	}

	return selectors.New(selectors.Merge(defaults, overrides))
}

// Validate rejects configurations that cannot run.
func (c *FileConfig) Validate() error {
	if err := c.FetcherPolicy().Validate(); err != nil {
		return &ValidationError{Field: "fetcher", Message: err.Error()}
	}
	if c.Crawl.Workers < 1 {
		return &ValidationError{Field: "crawl.workers", Message: "must be at least 1"}
	}
	if c.Crawl.MaxPages < 0 {
		return &ValidationError{Field: "crawl.max_pages", Message: "must not be negative"}
	}
	if c.Storage.Path == "" {
		return &ValidationError{Field: "storage.path", Message: "is required"}
	}
	if _, err := c.Registry(); err != nil {
		return &ValidationError{Field: "selectors", Message: err.Error()}
	}
	return nil
}

// ValidationError names the offending configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
