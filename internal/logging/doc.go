// Package logging sets up structured slog output for seekhost. The daemon
// logs JSON to a size-rotated file under ~/.seekhost/logs, and to stderr
// unless it serves MCP over stdio.
package logging
