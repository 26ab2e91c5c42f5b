package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/seekhost/internal/logging"
)

const followInterval = 500 * time.Millisecond

type logsOptions struct {
	follow   bool
	lines    int
	level    string
	filter   string
	logFile  string
	pathOnly bool
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon logs",
		Long: `Show the last lines of the daemon log (~/.seekhost/logs/seekhost.log).

Examples:
  seekhost logs                   # Last 50 lines
  seekhost logs -n 200            # Last 200 lines
  seekhost logs -f                # Follow new entries
  seekhost logs --level error     # Only errors
  seekhost logs --filter search   # Lines matching a pattern`,
		Annotations: map[string]string{ownLogging: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Filter by pattern (regex)")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Path to log file")
	cmd.Flags().BoolVar(&opts.pathOnly, "path", false, "Print the log file path and exit")
	return cmd
}

func runLogs(ctx context.Context, stdout, stderr io.Writer, opts logsOptions) error {
	if opts.pathOnly {
		path := opts.logFile
		if path == "" {
			path = logging.DefaultLogPath()
		}
		_, err := fmt.Fprintln(stdout, path)
		return err
	}

	path, err := logging.FindLogFile(opts.logFile)
	if err != nil {
		return err
	}

	match, err := newLineMatcher(opts.level, opts.filter)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(stderr, "Log file: %s\n---\n", path)

	lines, offset, err := tailLines(path, opts.lines, match)
	if err != nil {
		return err
	}
	for _, l := range lines {
		_, _ = fmt.Fprintln(stdout, l)
	}

	if !opts.follow {
		return nil
	}
	return followLog(ctx, stdout, path, offset, match)
}

// newLineMatcher returns a predicate for the level and pattern filters.
// Lines that are not JSON only pass the level filter when it is unset.
func newLineMatcher(level, filter string) (func(string) bool, error) {
	var pattern *regexp.Regexp
	if filter != "" {
		var err error
		if pattern, err = regexp.Compile(filter); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}
	minLevel := logging.LevelFromString(level)

	return func(line string) bool {
		if pattern != nil && !pattern.MatchString(line) {
			return false
		}
		if level == "" {
			return true
		}
		var entry struct {
			Level string `json:"level"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return false
		}
		return logging.LevelFromString(strings.ToLower(entry.Level)) >= minLevel
	}, nil
}

// tailLines returns the last n matching lines and the file size read.
func tailLines(path string, n int, match func(string) bool) ([]string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()

	var ring []string
	var offset int64
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		offset += int64(len(line))
		if text := strings.TrimRight(line, "\r\n"); text != "" && match(text) {
			ring = append(ring, text)
			if n > 0 && len(ring) > n {
				ring = ring[1:]
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
	}
	return ring, offset, nil
}

// followLog polls path for appended lines until ctx is done. A shrinking
// file means it was rotated and is read again from the start.
func followLog(ctx context.Context, w io.Writer, path string, offset int64, match func(string) bool) error {
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()

	var partial string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Size() < offset {
			offset, partial = 0, ""
		}
		if info.Size() == offset {
			continue
		}

		f, err := os.Open(path)
		if err != nil {
			continue
		}
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			_ = f.Close()
			continue
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return err
		}
		offset += int64(len(data))

		chunk := partial + string(data)
		parts := strings.Split(chunk, "\n")
		partial = parts[len(parts)-1]
		for _, l := range parts[:len(parts)-1] {
			if l = strings.TrimRight(l, "\r"); l != "" && match(l) {
				_, _ = fmt.Fprintln(w, l)
			}
		}
	}
}
