package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
)

// RequestHandler handles every method except ping and status.
type RequestHandler interface {
	Handle(ctx context.Context, method string, params json.RawMessage) (any, error)
	GetStatus() StatusResult
}

// Server listens on a Unix socket and handles RPC requests.
type Server struct {
	socketPath string
	timeout    time.Duration
	listener   net.Listener
	handler    RequestHandler
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a new server that listens on the given socket path.
func NewServer(socketPath string) (*Server, error) {
	return &Server{
		socketPath: socketPath,
		timeout:    30 * time.Second,
	}, nil
}

// SetHandler sets the request handler.
func (s *Server) SetHandler(h RequestHandler) {
	s.handler = h
}

// SetTimeout bounds the exchange on one connection.
func (s *Server) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// ListenAndServe starts the server and blocks until ctx is cancelled. It
// waits for in-flight requests before returning.
func (s *Server) ListenAndServe(ctx context.Context) error {
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	slog.Info("server_listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			slog.Error("accept_failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// handleConnection processes a single client connection.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		slog.Warn("connection_deadline_failed", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}

	_ = encoder.Encode(s.handleRequest(ctx, req))
}

// handleRequest dispatches a request to the appropriate handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.Method == "" {
		return NewErrorResponse(req.ID, ErrCodeInvalidRequest, "method is required")
	}

	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})
	case MethodStatus:
		return NewSuccessResponse(req.ID, s.getStatus())
	}

	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no request handler configured")
	}

	start := time.Now()
	result, err := s.handler.Handle(ctx, req.Method, req.Params)
	if err != nil {
		resp := errorResponse(req.ID, err)
		level := slog.LevelDebug
		switch resp.Error.Code {
		case ErrCodeInternalError, ErrCodeIOFailure, ErrCodeEngineFailure:
			level = slog.LevelWarn
		}
		attrs := []any{slog.String("method", req.Method), slog.Int("code", resp.Error.Code)}
		for k, v := range apperrors.FormatForLog(err) {
			attrs = append(attrs, slog.Any(k, v))
		}
		slog.Log(ctx, level, "request_failed", attrs...)
		return resp
	}
	slog.Debug("request_handled",
		slog.String("method", req.Method),
		slog.Duration("duration", time.Since(start)))
	return NewSuccessResponse(req.ID, result)
}

// errorResponse maps a handler error to a JSON-RPC error.
func errorResponse(id string, err error) Response {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return Response{JSONRPC: "2.0", Error: rpcErr, ID: id}
	}

	se, ok := apperrors.As(err)
	if !ok {
		return NewErrorResponse(id, ErrCodeInternalError, err.Error())
	}

	code := ErrCodeInternalError
	switch {
	case se.Code == apperrors.ErrCodeUnauthorized:
		code = ErrCodeUnauthorized
	case se.Code == apperrors.ErrCodeQuotaExceeded, se.Code == apperrors.ErrCodeRateLimited:
		code = ErrCodeQuotaExceeded
	case se.Category == apperrors.CategoryNotFound:
		code = ErrCodeNotFound
	case se.Category == apperrors.CategoryIO:
		code = ErrCodeIOFailure
	case se.Category == apperrors.CategoryEngine:
		code = ErrCodeEngineFailure
	case se.Category == apperrors.CategoryValidation:
		code = ErrCodeInvalidParams
	}
	resp := NewErrorResponse(id, code, se.Error())
	resp.Error.Data = se.Code
	resp.Error.Details = se.Details
	return resp
}

// getStatus returns the current server status.
func (s *Server) getStatus() StatusResult {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	status := StatusResult{Running: true}
	if s.handler != nil {
		status = s.handler.GetStatus()
		status.Running = true
	}
	status.PID = os.Getpid()
	status.Uptime = time.Since(started).Round(time.Second).String()
	return status
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
