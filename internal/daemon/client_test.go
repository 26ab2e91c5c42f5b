package daemon

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
)

func TestNewClient(t *testing.T) {
	cfg := DefaultConfig()
	client := NewClient(cfg)

	assert.Equal(t, cfg.SocketPath, client.socketPath)
	assert.Equal(t, cfg.Timeout, client.timeout)
}

func TestClient_IsRunning_NoSocket(t *testing.T) {
	client := NewClient(Config{
		SocketPath: filepath.Join(t.TempDir(), "nonexistent.sock"),
		Timeout:    time.Second,
	})
	assert.False(t, client.IsRunning())

	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestClient_IsRunning_WithSocket(t *testing.T) {
	socketPath := testSocketPath(t)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	defer listener.Close()

	client := NewClient(Config{SocketPath: socketPath, Timeout: time.Second})
	assert.True(t, client.IsRunning())
}

func TestClient_PingAndStatus(t *testing.T) {
	socketPath := startServer(t, &echoHandler{})
	client := NewClient(Config{SocketPath: socketPath, Timeout: 5 * time.Second})
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, "test", status.Version)
	assert.Equal(t, 5, status.Indices)
}

func TestClient_ReturnsDaemonError(t *testing.T) {
	// Given: a daemon that reports a missing index for every search
	socketPath := startServer(t, &echoHandler{errs: map[string]error{
		MethodSearch: apperrors.NotFound(apperrors.ErrCodeIndexNotFound, "index 4 not found"),
	}})
	client := NewClient(Config{SocketPath: socketPath, Timeout: 5 * time.Second})

	// When: searching
	_, err := client.Search(context.Background(), "key", 4, searchRequest("x"))

	// Then: the client surfaces the daemon error with its code
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, ErrCodeNotFound, rpcErr.Code)
	assert.Equal(t, apperrors.ErrCodeIndexNotFound, rpcErr.Data)
}

func TestClient_HonorsContextDeadline(t *testing.T) {
	// Given: a listener that accepts and never answers
	socketPath := testSocketPath(t)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	client := NewClient(Config{SocketPath: socketPath, Timeout: 5 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// When: pinging
	start := time.Now()
	err = client.Ping(ctx)

	// Then: the call gives up at the context deadline
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_NextIDUnique(t *testing.T) {
	client := NewClient(DefaultConfig())
	assert.NotEqual(t, client.nextID(), client.nextID())
}
