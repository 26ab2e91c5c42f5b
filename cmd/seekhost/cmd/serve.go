package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/seekhost/internal/daemon"
	"github.com/Aman-CERP/seekhost/internal/logging"
	"github.com/Aman-CERP/seekhost/internal/output"
	"github.com/Aman-CERP/seekhost/internal/profiling"
)

func newServeCmd() *cobra.Command {
	var (
		detach  bool
		profile profiling.Options
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the search daemon",
		Long: `Run the daemon that owns the storage root.

On start it recovers every account and index under the root. On SIGINT or
SIGTERM it stops accepting requests, commits and closes every index, then
exits.

Examples:
  seekhost serve            # Run in the foreground
  seekhost serve --detach   # Run in the background
  seekhost serve --cpu-profile cpu.prof --mem-profile heap.prof`,
		Annotations: map[string]string{ownLogging: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, detach, profile)
		},
	}

	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "Run in the background")
	cmd.Flags().StringVar(&profile.CPU, "cpu-profile", "", "Write a CPU profile to this file")
	cmd.Flags().StringVar(&profile.Heap, "mem-profile", "", "Write a heap profile to this file on exit")
	cmd.Flags().StringVar(&profile.Trace, "trace", "", "Write an execution trace to this file")
	return cmd
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Long: `Stop the running daemon.

Sends SIGTERM and waits for the daemon to commit its indices and exit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStop(cmd)
		},
	}
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, detach bool, profile profiling.Options) error {
	out := output.New(cmd.OutOrStdout())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dcfg := daemon.FromConfig(cfg)

	client := daemon.NewClient(dcfg)
	if client.IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	if detach {
		return startDetached(out, client, profile)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	if debugMode {
		logCfg.Level = "debug"
	}
	logCfg.WriteToStderr = true
	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	if cfg.Server.MasterKey == "" {
		out.Warning("No master key configured; apikeys cannot be created or deleted")
	}
	out.Statusf("", "Storage root: %s", dcfg.Root)
	out.Statusf("", "Socket: %s", dcfg.SocketPath)
	out.Statusf("", "Logs: %s", logCfg.FilePath)

	slog.Info("daemon_starting",
		slog.String("root", dcfg.Root),
		slog.String("socket", dcfg.SocketPath),
		slog.String("log_file", logCfg.FilePath))

	d, err := daemon.NewDaemon(dcfg)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if profile.Enabled() {
		session, err := profiling.Start(profile)
		if err != nil {
			return err
		}
		defer func() {
			if err := session.Stop(); err != nil {
				slog.Warn("profile_write_failed", slog.String("error", err.Error()))
			}
		}()
	}

	err = d.Start(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// startDetached re-executes the binary in its own session and waits for the
// socket to answer.
func startDetached(out *output.Writer, client *daemon.Client, profile profiling.Options) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"serve"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if debugMode {
		args = append(args, "--debug")
	}
	for flag, path := range map[string]string{
		"--cpu-profile": profile.CPU, "--mem-profile": profile.Heap, "--trace": profile.Trace,
	} {
		if path != "" {
			args = append(args, flag, path)
		}
	}
	bg := exec.Command(execPath, args...)
	bg.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := bg.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Reap the child and notice early exits.
	done := make(chan error, 1)
	go func() { done <- bg.Wait() }()

	for i := 0; i < 50; i++ {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("daemon process exited unexpectedly: %w", err)
			}
			return fmt.Errorf("daemon process exited unexpectedly with code 0")
		case <-time.After(100 * time.Millisecond):
		}
		if client.IsRunning() {
			out.Successf("Daemon started (pid: %d)", bg.Process.Pid)
			return nil
		}
	}
	return fmt.Errorf("daemon failed to start within timeout")
}

func runStop(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pidFile := daemon.NewPIDFile(daemon.FromConfig(cfg).PIDPath)

	if !pidFile.IsRunning() {
		out.Status("", "Daemon is not running")
		return nil
	}
	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	// Closing large indices may take a while; wait up to 30s.
	for i := 0; i < 300; i++ {
		time.Sleep(100 * time.Millisecond)
		if !pidFile.IsRunning() {
			out.Successf("Daemon stopped (was pid: %d)", pid)
			return nil
		}
	}

	out.Warning("Daemon not responding, sending SIGKILL")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill daemon: %w", err)
	}
	out.Success("Daemon killed")
	return nil
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	out := output.New(cmd.OutOrStdout())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dcfg := daemon.FromConfig(cfg)
	client := daemon.NewClient(dcfg)

	if !client.IsRunning() {
		if jsonOutput {
			return out.JSON(daemon.StatusResult{Running: false})
		}
		out.Status("", "Daemon is not running")
		out.Status("", "Run 'seekhost serve' to start it")
		return nil
	}

	status, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if jsonOutput {
		return out.JSON(status)
	}

	out.Header("Daemon is running")
	out.KeyValue("PID", status.PID)
	out.KeyValue("Uptime", status.Uptime)
	out.KeyValue("Version", status.Version)
	out.KeyValue("Root", status.Root)
	out.KeyValue("Accounts", status.Accounts)
	out.KeyValue("Indices", status.Indices)
	out.KeyValue("Socket", dcfg.SocketPath)
	return nil
}
