// Package cmd provides the CLI commands for seekhost.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/seekhost/internal/config"
	"github.com/Aman-CERP/seekhost/internal/daemon"
	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
	"github.com/Aman-CERP/seekhost/internal/logging"
	"github.com/Aman-CERP/seekhost/pkg/version"
)

// apikeyEnv names the environment variable read when --apikey is not given.
const apikeyEnv = "SEEKHOST_APIKEY"

// ownLogging marks commands that install their own logger.
const ownLogging = "own_logging"

// Global flags
var (
	configPath     string
	debugMode      bool
	apikeyFlag     string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the seekhost CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seekhost",
		Short: "Multi-tenant full-text search server",
		Long: `seekhost hosts full-text search indices for many accounts.

Each account is an apikey with a quota and its own set of indices. The
daemon owns the storage root; every other command talks to it over a
unix socket.

Start with:
  seekhost serve
  seekhost apikey create
  seekhost index create --name books --schema schema.json`,
		Version:      version.Version,
		SilenceUsage: true,
	}

	cmd.SetVersionTemplate("seekhost version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/seekhost/config.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.seekhost/logs/")
	cmd.PersistentFlags().StringVar(&apikeyFlag, "apikey", "", "Account apikey (default $"+apikeyEnv+")")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newAPIKeyCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newDocCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSynonymsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging enables debug file logging when --debug is set.
func startLogging(cmd *cobra.Command, _ []string) error {
	if !debugMode || cmd.Annotations[ownLogging] != "" {
		return nil
	}
	cleanup, err := logging.SetupDefault(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Info("debug_logging_enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("command", cmd.CommandPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command and prints a failure to stderr, or as JSON
// to stdout when the failing command was asked for --json.
func Execute(ctx context.Context) error {
	root := NewRootCmd()
	root.SilenceErrors = true
	cmd, err := root.ExecuteContextC(ctx)
	if err != nil {
		printError(cmd, err)
	}
	return err
}

// printError renders store errors with their code and hint. Errors that came
// back over the socket are rebuilt from the code and details the daemon
// attached.
func printError(cmd *cobra.Command, err error) {
	var rpcErr *daemon.Error
	if errors.As(err, &rpcErr) && rpcErr.Data != "" {
		msg := strings.TrimPrefix(rpcErr.Message, "["+rpcErr.Data+"] ")
		se := apperrors.New(rpcErr.Data, msg, nil)
		for k, v := range rpcErr.Details {
			se = se.WithDetail(k, v)
		}
		err = se
	}

	if f := cmd.Flags().Lookup("json"); f != nil && f.Value.String() == "true" {
		if data, jerr := apperrors.FormatJSON(err); jerr == nil {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return
		}
	}
	if _, ok := apperrors.As(err); ok {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), apperrors.FormatForCLI(err))
		return
	}
	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
}

// loadConfig reads the layered configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// newClient returns a client for the configured daemon and fails fast when
// nothing listens on the socket.
func newClient() (*daemon.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	client := daemon.NewClient(daemon.FromConfig(cfg))
	if !client.IsRunning() {
		return nil, fmt.Errorf("%w: start it with 'seekhost serve'", daemon.ErrNotRunning)
	}
	return client, nil
}

// resolveAPIKey returns --apikey or the environment fallback.
func resolveAPIKey() (string, error) {
	if apikeyFlag != "" {
		return apikeyFlag, nil
	}
	if key := os.Getenv(apikeyEnv); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("apikey required: pass --apikey or set %s", apikeyEnv)
}

// accountClient resolves both the apikey and the daemon client.
func accountClient() (*daemon.Client, string, error) {
	key, err := resolveAPIKey()
	if err != nil {
		return nil, "", err
	}
	client, err := newClient()
	if err != nil {
		return nil, "", err
	}
	return client, key, nil
}

// parseID parses a decimal id argument.
func parseID(arg, what string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", what, arg)
	}
	return id, nil
}
