package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/abiiranathan/pdfmatch/alg"
	"github.com/abiiranathan/pdfmatch/chat"
	"github.com/abiiranathan/pdfmatch/edgar"
	"github.com/abiiranathan/pdfmatch/pdf"
	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the CLI and the server.
type Config struct {
	// Max pages processed at a time.
	// Large values will increase CPU and memory usage.
	// Default is 10.
	MaxConcurrency int `yaml:"max_concurrency"`

	// server port. default is 8080
	Port int `yaml:"port"`

	// Directory where highlighted page images are written and served from.
	StaticDir string `yaml:"static_dir"`

	// Resolution of highlighted page images.
	DPI float64 `yaml:"dpi"`

	// Generated images older than this are removed.
	ArtifactTTL time.Duration `yaml:"artifact_ttl"`

	// Largest accepted upload in bytes.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	Chat  ChatConfig  `yaml:"chat"`
	Edgar EdgarConfig `yaml:"edgar"`

	// Log level: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Options of the search subcommands. Not read from the config file.
	Filename  string `yaml:"-"`
	Directory string `yaml:"-"`
	Pattern   string `yaml:"-"`
	Before    int    `yaml:"-"`
	After     int    `yaml:"-"`
	Output    string `yaml:"-"`
}

type ChatConfig struct {
	URL       string        `yaml:"url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

type EdgarConfig struct {
	UserAgent string `yaml:"user_agent"`

	// Filing year searched when a company identifier is given.
	Year int `yaml:"year"`
}

var DefaultConfig = Config{
	MaxConcurrency: 10,
	Port:           8080,
	StaticDir:      "static",
	DPI:            pdf.DefaultDPI,
	ArtifactTTL:    30 * time.Minute,
	MaxUploadBytes: 64 << 20,
	Chat: ChatConfig{
		URL:       chat.DefaultURL,
		UserAgent: chat.DefaultUserAgent,
		Timeout:   chat.DefaultTimeout,
	},
	Edgar: EdgarConfig{
		UserAgent: edgar.DefaultUserAgent,
		Year:      2024,
	},
	LogLevel: "info",
	Before:   alg.DefaultContextSize,
	After:    alg.DefaultContextSize,
}

// LoadConfig returns DefaultConfig overlaid with the YAML file at path.
// An empty path returns the defaults. ${VAR} references in the file are
// replaced with environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	data = expandEnvVars(data)

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultConfig.MaxConcurrency
	}
	if c.Port == 0 {
		c.Port = DefaultConfig.Port
	}
	if c.StaticDir == "" {
		c.StaticDir = DefaultConfig.StaticDir
	}
	if c.DPI <= 0 {
		c.DPI = DefaultConfig.DPI
	}
	if c.ArtifactTTL <= 0 {
		c.ArtifactTTL = DefaultConfig.ArtifactTTL
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultConfig.MaxUploadBytes
	}
	if c.Chat.URL == "" {
		c.Chat.URL = DefaultConfig.Chat.URL
	}
	if c.Chat.UserAgent == "" {
		c.Chat.UserAgent = DefaultConfig.Chat.UserAgent
	}
	if c.Chat.Timeout <= 0 {
		c.Chat.Timeout = DefaultConfig.Chat.Timeout
	}
	if c.Edgar.UserAgent == "" {
		c.Edgar.UserAgent = DefaultConfig.Edgar.UserAgent
	}
	if c.Edgar.Year == 0 {
		c.Edgar.Year = DefaultConfig.Edgar.Year
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultConfig.LogLevel
	}
}

// Validate checks the server settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", c.Port))
	}
	if c.MaxConcurrency > 100 {
		errs = append(errs, fmt.Errorf("max_concurrency %d exceeds 100", c.MaxConcurrency))
	}
	if c.Edgar.Year < 1993 {
		errs = append(errs, fmt.Errorf("edgar.year %d predates EDGAR", c.Edgar.Year))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ChatClientConfig returns the completion client settings.
func (c *Config) ChatClientConfig() chat.Config {
	cfg := chat.DefaultConfig()
	cfg.URL = c.Chat.URL
	cfg.Timeout = c.Chat.Timeout
	cfg.Headers["User-Agent"] = c.Chat.UserAgent
	return cfg
}
