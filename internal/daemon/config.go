// Package daemon serves the seekhost store over a Unix socket. Each
// connection carries one JSON-RPC 2.0 request and its response.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/seekhost/internal/config"
	"github.com/Aman-CERP/seekhost/internal/engine"
	"github.com/Aman-CERP/seekhost/internal/tenant"
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket path for IPC.
	SocketPath string

	// PIDPath stores the daemon's process ID.
	PIDPath string

	// Root is the storage root holding one directory per account.
	Root string

	// Timeout bounds one client-daemon exchange.
	Timeout time.Duration

	// ShutdownGracePeriod bounds the final commit of every index on stop.
	ShutdownGracePeriod time.Duration

	// MasterKey authorizes create_apikey and delete_apikey. Empty rejects both.
	MasterKey string

	// Similarity and Tokenizer fill create_index requests that name none.
	Similarity engine.Similarity
	Tokenizer  engine.Tokenizer

	// Quota is given to accounts created without one.
	Quota tenant.Quota

	// Store tunes recovery and index handles.
	Store tenant.Options
}

// DefaultConfig derives the daemon configuration from the config defaults.
func DefaultConfig() Config {
	return FromConfig(config.NewConfig())
}

// FromConfig derives the daemon configuration from a loaded Config.
func FromConfig(cfg *config.Config) Config {
	return Config{
		SocketPath:          cfg.Server.Socket,
		PIDPath:             cfg.Server.PIDFile,
		Root:                cfg.Storage.Root,
		Timeout:             cfg.TimeoutDuration(),
		ShutdownGracePeriod: 10 * time.Second,
		MasterKey:           cfg.Server.MasterKey,
		Similarity:          cfg.Defaults.Similarity,
		Tokenizer:           cfg.Defaults.Tokenizer,
		Quota:               cfg.Defaults.Quota,
		Store:               cfg.StoreOptions(),
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Root == "" {
		return fmt.Errorf("storage root cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	return nil
}

// EnsureDir creates the directories of the socket, PID file and root.
func (c Config) EnsureDir() error {
	for _, dir := range []string{filepath.Dir(c.SocketPath), filepath.Dir(c.PIDPath), c.Root} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
