// Package config holds the daemon configuration: a YAML file in the data
// directory, overridden by SWAPAPI_* environment variables (optionally
// loaded from a .env file), overridden in turn by command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EngineMode selects the swap engine implementation.
type EngineMode string

const (
	EngineLocal EngineMode = "local"
	EngineRPC   EngineMode = "rpc"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SWAPAPI_"

// ConfigFileName is the default config file name.
const ConfigFileName = "config.yaml"

// Configuration errors
var (
	ErrInvalidMode      = errors.New("invalid engine mode")
	ErrMissingEngineURL = errors.New("engine url is required in rpc mode")
	ErrInvalidPageLimit = errors.New("page limit must be positive")
)

// Config holds all daemon configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Engine  EngineConfig  `yaml:"engine"`
	Storage StorageConfig `yaml:"storage"`
	Local   LocalConfig   `yaml:"local"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`

	// CORSOrigins lists allowed origins. "*" allows any.
	CORSOrigins []string `yaml:"cors_origins"`

	// PageLimit is the maximum and default listing page size.
	PageLimit int `yaml:"page_limit"`

	// StrictCoinFilter rejects unknown coin filters instead of ignoring them.
	StrictCoinFilter bool `yaml:"strict_coin_filter"`
}

// EngineConfig selects and configures the swap engine.
type EngineConfig struct {
	Mode    EngineMode    `yaml:"mode"`
	URL     string        `yaml:"url"`
	User    string        `yaml:"user"`
	Pass    string        `yaml:"pass"`
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	// DataDir is the directory for all data files.
	DataDir string `yaml:"data_dir"`
}

// LocalConfig configures the local engine.
type LocalConfig struct {
	// Balances seeds plain balances, human amounts keyed by ticker.
	Balances map[string]string `yaml:"balances"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Addr:        "127.0.0.1:12700",
			CORSOrigins: []string{"*"},
			PageLimit:   50,
		},
		Engine: EngineConfig{
			Mode:    EngineLocal,
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: "~/.swapapi",
		},
		Local: LocalConfig{
			Balances: map[string]string{},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a YAML file in dataDir.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(dataDir string) (*Config, error) {
	return loadConfig(ConfigPath(dataDir), dataDir)
}

// LoadConfigFile loads configuration from the YAML file at path, creating it
// with default values if it doesn't exist.
func LoadConfigFile(path string) (*Config, error) {
	return loadConfig(ExpandPath(path), "")
}

// loadConfig reads configPath. A created default config uses dataDir when set.
func loadConfig(configPath, dataDir string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if dataDir != "" {
			cfg.Storage.DataDir = dataDir
		}

		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Swap API Daemon Configuration\n# Generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnvFile loads a .env file into the process environment. Variables that
// are already set are not overwritten. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from SWAPAPI_* environment variables.
func (c *Config) ApplyEnv() error {
	if v, ok := lookupEnv("API_ADDR"); ok {
		c.API.Addr = v
	}
	if v, ok := lookupEnv("CORS_ORIGINS"); ok {
		c.API.CORSOrigins = splitList(v)
	}
	if v, ok := lookupEnv("PAGE_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPAGE_LIMIT: %w", EnvPrefix, err)
		}
		c.API.PageLimit = n
	}
	if v, ok := lookupEnv("STRICT_COIN_FILTER"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSTRICT_COIN_FILTER: %w", EnvPrefix, err)
		}
		c.API.StrictCoinFilter = b
	}
	if v, ok := lookupEnv("ENGINE_MODE"); ok {
		c.Engine.Mode = EngineMode(strings.ToLower(v))
	}
	if v, ok := lookupEnv("ENGINE_URL"); ok {
		c.Engine.URL = v
	}
	if v, ok := lookupEnv("ENGINE_USER"); ok {
		c.Engine.User = v
	}
	if v, ok := lookupEnv("ENGINE_PASS"); ok {
		c.Engine.Pass = v
	}
	if v, ok := lookupEnv("ENGINE_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sENGINE_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Engine.Timeout = d
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Engine.Mode {
	case EngineLocal:
	case EngineRPC:
		if c.Engine.URL == "" {
			return ErrMissingEngineURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Engine.Mode)
	}
	if c.API.PageLimit <= 0 {
		return ErrInvalidPageLimit
	}
	return nil
}

// ConfigPath returns the full path to the config file for the given data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(ExpandPath(dataDir), ConfigFileName)
}

// ExpandPath expands ~ to home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
