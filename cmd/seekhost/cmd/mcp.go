package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/seekhost/internal/logging"
	"github.com/Aman-CERP/seekhost/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve one account's indices to MCP clients over stdio",
		Long: `Run an MCP server on stdin/stdout for the account named by --apikey
or $SEEKHOST_APIKEY. The daemon must be running.

Tools: search, get_document, index_stats, list_indices.

Stdout carries only protocol messages; logs go to ~/.seekhost/logs/.`,
		Annotations: map[string]string{ownLogging: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := "info"
			if debugMode {
				level = "debug"
			}
			cleanup, err := logging.SetupStdioMode(level)
			if err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}
			defer cleanup()

			client, key, err := accountClient()
			if err != nil {
				slog.Error("mcp_start_failed", slog.String("error", err.Error()))
				return err
			}
			srv, err := mcp.NewServer(client, key)
			if err != nil {
				return err
			}

			err = srv.Serve(cmd.Context(), "stdio")
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
