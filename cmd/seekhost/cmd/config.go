package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/seekhost/configs"
	"github.com/Aman-CERP/seekhost/internal/config"
	"github.com/Aman-CERP/seekhost/internal/output"
)

const redacted = "<redacted>"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		Long: `Manage the user configuration file.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/seekhost/config.yaml)
  3. The file passed with --config
  4. Environment variables (SEEKHOST_*)`,
		Example: `  # Create user config from template
  seekhost config init

  # Show effective configuration
  seekhost config show

  # Print user config file path
  seekhost config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the user configuration file",
		Long: `Create ~/.config/seekhost/config.yaml from a commented template
($XDG_CONFIG_HOME/seekhost/config.yaml when XDG_CONFIG_HOME is set).

With --force an existing file is backed up to config.yaml.bak and rewritten
with every option spelled out. Existing values are kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Upgrade an existing configuration")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the configuration after merging all sources. The master key
is never printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, defaults")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := config.GetUserConfigPath()

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("User configuration already exists")
			out.Statusf("", "Location: %s", path)
			out.Status("", "Use --force to upgrade it (keeps your settings)")
			return nil
		}
		return runConfigUpgrade(out, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configs.UserConfigTemplate), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created user configuration")
	out.Statusf("", "Location: %s", path)
	out.Status("", "Run 'seekhost config show' to verify")
	return nil
}

// runConfigUpgrade backs the file up and rewrites it with defaults filled in.
func runConfigUpgrade(out *output.Writer, path string) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}

	backup := path + ".bak"
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := os.WriteFile(backup, data, 0o600); err != nil {
		return fmt.Errorf("failed to backup config: %w", err)
	}

	if err := cfg.WriteYAML(path); err != nil {
		return err
	}

	out.Success("Configuration upgraded")
	out.Statusf("", "Location: %s", path)
	out.Statusf("", "Backup: %s", backup)
	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	out := output.New(cmd.OutOrStdout())

	var (
		cfg  *config.Config
		desc string
		err  error
	)
	switch source {
	case "merged":
		if cfg, err = loadConfig(); err != nil {
			return err
		}
		desc = "merged (defaults + user + --config + env)"
	case "user":
		path := config.GetUserConfigPath()
		if _, statErr := os.Stat(path); statErr != nil {
			out.Warning("No user configuration file found")
			out.Statusf("", "Expected at: %s", path)
			out.Status("", "Run 'seekhost config init' to create one")
			return nil
		}
		if cfg, err = config.LoadFile(path); err != nil {
			return err
		}
		desc = fmt.Sprintf("user (%s)", path)
	case "defaults":
		cfg = config.NewConfig()
		desc = "defaults"
	default:
		return fmt.Errorf("invalid source: %s (use: merged, user, defaults)", source)
	}

	if cfg.Server.MasterKey != "" {
		cfg.Server.MasterKey = redacted
	}

	if jsonOutput {
		return out.JSON(cfg)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	out.Statusf("", "Configuration source: %s", desc)
	out.Newline()
	out.Code(string(data))
	return nil
}
