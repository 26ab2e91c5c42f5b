// Package mcp exposes one account's indices to MCP clients as read-only
// search tools over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aman-CERP/seekhost/internal/daemon"
	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
)

// MCP error codes. The custom codes match the daemon's so a forwarded
// daemon error keeps its meaning.
const (
	ErrCodeUnauthorized  = daemon.ErrCodeUnauthorized
	ErrCodeTimeout       = -32003
	ErrCodeNotFound      = daemon.ErrCodeNotFound
	ErrCodeIOFailure     = daemon.ErrCodeIOFailure
	ErrCodeEngineFailure = daemon.ErrCodeEngineFailure
	ErrCodeQuotaExceeded = daemon.ErrCodeQuotaExceeded
	ErrCodeDaemonDown    = -32008

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts daemon and store errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var me *MCPError
	if errors.As(err, &me) {
		return me
	}

	var rpcErr *daemon.Error
	if errors.As(err, &rpcErr) {
		return &MCPError{Code: rpcErr.Code, Message: rpcErr.Message}
	}

	if se, ok := apperrors.As(err); ok {
		return mapSeekError(se)
	}

	switch {
	case errors.Is(err, daemon.ErrNotRunning):
		return &MCPError{
			Code:    ErrCodeDaemonDown,
			Message: "Daemon not running. Start it with 'seekhost serve'.",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

func mapSeekError(se *apperrors.SeekError) *MCPError {
	message := se.Message
	if se.Suggestion != "" {
		message = fmt.Sprintf("%s %s", se.Message, se.Suggestion)
	}

	switch {
	case se.Code == apperrors.ErrCodeUnauthorized:
		return &MCPError{Code: ErrCodeUnauthorized, Message: message}
	case se.Code == apperrors.ErrCodeQuotaExceeded, se.Code == apperrors.ErrCodeRateLimited:
		return &MCPError{Code: ErrCodeQuotaExceeded, Message: message}
	}

	switch se.Category {
	case apperrors.CategoryNotFound:
		return &MCPError{Code: ErrCodeNotFound, Message: message}
	case apperrors.CategoryIO:
		return &MCPError{Code: ErrCodeIOFailure, Message: message}
	case apperrors.CategoryEngine:
		return &MCPError{Code: ErrCodeEngineFailure, Message: message}
	case apperrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
