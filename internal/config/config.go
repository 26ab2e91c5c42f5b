// Package config loads the seekhost configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/seekhost/internal/engine"
	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
	"github.com/Aman-CERP/seekhost/internal/index"
	"github.com/Aman-CERP/seekhost/internal/tenant"
)

// Config is the complete seekhost configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Defaults DefaultsConfig `yaml:"defaults" json:"defaults"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Recovery RecoveryConfig `yaml:"recovery" json:"recovery"`
}

// StorageConfig locates the data root.
type StorageConfig struct {
	// Root holds one directory per account. Default: ~/.seekhost/data
	Root string `yaml:"root" json:"root"`
}

// ServerConfig configures the daemon.
type ServerConfig struct {
	Socket   string `yaml:"socket" json:"socket"`
	PIDFile  string `yaml:"pid_file" json:"pid_file"`
	Timeout  string `yaml:"timeout" json:"timeout"`
	LogLevel string `yaml:"log_level" json:"log_level"`
	// MasterKey authorizes apikey creation and deletion. Empty disables
	// both operations over the socket.
	MasterKey string `yaml:"master_key" json:"-"`
}

// DefaultsConfig applies to new indices and accounts when a request leaves
// a value out.
type DefaultsConfig struct {
	Similarity engine.Similarity `yaml:"similarity" json:"similarity"`
	Tokenizer  engine.Tokenizer  `yaml:"tokenizer" json:"tokenizer"`
	Quota      tenant.Quota      `yaml:"quota" json:"quota"`
}

// SearchConfig tunes the search path.
type SearchConfig struct {
	DefaultLength     int `yaml:"default_length" json:"default_length"`
	HydrationWorkers  int `yaml:"hydration_workers" json:"hydration_workers"`
	DocumentCacheSize int `yaml:"document_cache_size" json:"document_cache_size"`
}

// RecoveryConfig tunes startup recovery.
type RecoveryConfig struct {
	Workers int `yaml:"workers" json:"workers"`
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	dir := defaultDataDir()
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			Root: filepath.Join(dir, "data"),
		},
		Server: ServerConfig{
			Socket:   filepath.Join(dir, "seekhost.sock"),
			PIDFile:  filepath.Join(dir, "seekhost.pid"),
			Timeout:  "30s",
			LogLevel: "info",
		},
		Defaults: DefaultsConfig{
			Similarity: engine.SimilarityBM25FProximity,
			Tokenizer:  engine.TokenizerUnicodeAlphanumeric,
			Quota: tenant.Quota{
				IndicesMax:   100,
				DocumentsMax: 1_000_000,
				RateLimit:    100,
			},
		},
		Search: SearchConfig{
			DefaultLength:     10,
			HydrationWorkers:  runtime.NumCPU(),
			DocumentCacheSize: 1024,
		},
		Recovery: RecoveryConfig{
			Workers: 4,
		},
	}
}

// defaultDataDir returns ~/.seekhost, or a temp fallback without a home.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".seekhost")
	}
	return filepath.Join(home, ".seekhost")
}

// GetUserConfigPath returns the path of the user configuration file:
//   - $XDG_CONFIG_HOME/seekhost/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/seekhost/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "seekhost", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "seekhost", "config.yaml")
	}
	return filepath.Join(home, ".config", "seekhost", "config.yaml")
}

// Load builds the configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/seekhost/config.yaml)
//  3. The file at path, when path is not empty
//  4. Environment variables (SEEKHOST_*)
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if !fileExists(path) {
			return nil, apperrors.New(apperrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file %s not found", path), nil)
		}
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.ConfigError("invalid configuration", err)
	}
	return cfg, nil
}

// LoadFile returns the defaults merged with the single file at path. Unlike
// Load it skips the user config and the environment.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML merges the non-zero values of a YAML file into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.ConfigError(
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return apperrors.ConfigError(
			fmt.Sprintf("failed to parse config file %s", path), err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Storage.Root != "" {
		c.Storage.Root = expandHome(other.Storage.Root)
	}

	if other.Server.Socket != "" {
		c.Server.Socket = expandHome(other.Server.Socket)
	}
	if other.Server.PIDFile != "" {
		c.Server.PIDFile = expandHome(other.Server.PIDFile)
	}
	if other.Server.Timeout != "" {
		c.Server.Timeout = other.Server.Timeout
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.MasterKey != "" {
		c.Server.MasterKey = other.Server.MasterKey
	}

	if other.Defaults.Similarity != "" {
		c.Defaults.Similarity = other.Defaults.Similarity
	}
	if other.Defaults.Tokenizer != "" {
		c.Defaults.Tokenizer = other.Defaults.Tokenizer
	}
	q := other.Defaults.Quota
	if q.IndicesMax != 0 {
		c.Defaults.Quota.IndicesMax = q.IndicesMax
	}
	if q.IndexSizeMax != 0 {
		c.Defaults.Quota.IndexSizeMax = q.IndexSizeMax
	}
	if q.DocumentsMax != 0 {
		c.Defaults.Quota.DocumentsMax = q.DocumentsMax
	}
	if q.OperationsMax != 0 {
		c.Defaults.Quota.OperationsMax = q.OperationsMax
	}
	if q.RateLimit != 0 {
		c.Defaults.Quota.RateLimit = q.RateLimit
	}

	if other.Search.DefaultLength != 0 {
		c.Search.DefaultLength = other.Search.DefaultLength
	}
	if other.Search.HydrationWorkers != 0 {
		c.Search.HydrationWorkers = other.Search.HydrationWorkers
	}
	if other.Search.DocumentCacheSize != 0 {
		c.Search.DocumentCacheSize = other.Search.DocumentCacheSize
	}

	if other.Recovery.Workers != 0 {
		c.Recovery.Workers = other.Recovery.Workers
	}
}

// applyEnvOverrides applies SEEKHOST_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SEEKHOST_ROOT"); v != "" {
		c.Storage.Root = expandHome(v)
	}
	if v := os.Getenv("SEEKHOST_SOCKET"); v != "" {
		c.Server.Socket = expandHome(v)
	}
	if v := os.Getenv("SEEKHOST_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("SEEKHOST_MASTER_KEY"); v != "" {
		c.Server.MasterKey = v
	}
	if v := os.Getenv("SEEKHOST_HYDRATION_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.HydrationWorkers = n
		}
	}
}

// expandHome replaces a leading ~/ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// TimeoutDuration parses server.timeout.
func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Server.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// StoreOptions translates the search and recovery settings for tenant.NewStore.
func (c *Config) StoreOptions() tenant.Options {
	return tenant.Options{
		RecoveryWorkers: c.Recovery.Workers,
		Handle: index.Options{
			CacheSize:        c.Search.DocumentCacheSize,
			HydrationWorkers: c.Search.HydrationWorkers,
			DefaultLength:    c.Search.DefaultLength,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root cannot be empty")
	}
	if c.Server.Socket == "" {
		return fmt.Errorf("server.socket cannot be empty")
	}
	if d, err := time.ParseDuration(c.Server.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("server.timeout must be a positive duration, got %q", c.Server.Timeout)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	switch c.Defaults.Similarity {
	case engine.SimilarityBM25, engine.SimilarityBM25F, engine.SimilarityBM25FProximity, engine.SimilarityTFIDF:
	default:
		return fmt.Errorf("defaults.similarity: unknown value %q", c.Defaults.Similarity)
	}
	switch c.Defaults.Tokenizer {
	case engine.TokenizerUnicodeAlphanumeric, engine.TokenizerUnicodeAlphanumericFolded,
		engine.TokenizerASCIIAlphabetic, engine.TokenizerWhitespace, engine.TokenizerCode:
	default:
		return fmt.Errorf("defaults.tokenizer: unknown value %q", c.Defaults.Tokenizer)
	}

	q := c.Defaults.Quota
	if q.IndicesMax < 0 || q.DocumentsMax < 0 || q.OperationsMax < 0 || q.IndexSizeMax < 0 {
		return fmt.Errorf("defaults.quota limits must be non-negative")
	}
	if q.RateLimit < 0 {
		return fmt.Errorf("defaults.quota.rate_limit must be non-negative, got %f", q.RateLimit)
	}

	if c.Search.DefaultLength <= 0 {
		return fmt.Errorf("search.default_length must be positive, got %d", c.Search.DefaultLength)
	}
	if c.Search.HydrationWorkers <= 0 {
		return fmt.Errorf("search.hydration_workers must be positive, got %d", c.Search.HydrationWorkers)
	}
	if c.Search.DocumentCacheSize < 0 {
		return fmt.Errorf("search.document_cache_size must be non-negative, got %d", c.Search.DocumentCacheSize)
	}
	if c.Recovery.Workers <= 0 {
		return fmt.Errorf("recovery.workers must be positive, got %d", c.Recovery.Workers)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
