package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
)

// testSocketPath returns a socket path short enough for Unix sockets.
func testSocketPath(t *testing.T) string {
	t.Helper()
	socketPath := filepath.Join("/tmp", fmt.Sprintf("seekhost-test-%d.sock", time.Now().UnixNano()))
	t.Cleanup(func() { os.Remove(socketPath) })
	return socketPath
}

// echoHandler answers every method with its name and params, or with the
// error registered for it.
type echoHandler struct {
	errs map[string]error
}

func (h *echoHandler) Handle(_ context.Context, method string, params json.RawMessage) (any, error) {
	if err, ok := h.errs[method]; ok {
		return nil, err
	}
	return map[string]any{"method": method, "params": params}, nil
}

func (h *echoHandler) GetStatus() StatusResult {
	return StatusResult{Version: "test", Accounts: 2, Indices: 5}
}

// startServer runs a server until the test ends.
func startServer(t *testing.T, h RequestHandler) string {
	t.Helper()
	socketPath := testSocketPath(t)
	srv, err := NewServer(socketPath)
	require.NoError(t, err)
	if h != nil {
		srv.SetHandler(h)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.ListenAndServe(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	return socketPath
}

// roundTrip sends a raw request line and decodes the response.
func roundTrip(t *testing.T, socketPath string, line string) Response {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(line + "\n"))
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	return resp
}

func TestServer_ListenAndServe(t *testing.T) {
	socketPath := testSocketPath(t)
	srv, err := NewServer(socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	// Cancel and wait for the server to stop and remove its socket
	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err))
}

func TestServer_HandlePing(t *testing.T) {
	socketPath := startServer(t, nil)

	resp := roundTrip(t, socketPath, `{"jsonrpc":"2.0","method":"ping","id":"1"}`)

	require.Nil(t, resp.Error)
	assert.Equal(t, "1", resp.ID)
	assert.JSONEq(t, `{"pong":true}`, string(resp.Result))
}

func TestServer_HandleStatus(t *testing.T) {
	socketPath := startServer(t, &echoHandler{})

	resp := roundTrip(t, socketPath, `{"jsonrpc":"2.0","method":"status","id":"s"}`)

	require.Nil(t, resp.Error)
	var status StatusResult
	require.NoError(t, json.Unmarshal(resp.Result, &status))
	assert.True(t, status.Running)
	assert.Equal(t, os.Getpid(), status.PID)
	assert.Equal(t, 2, status.Accounts)
	assert.Equal(t, 5, status.Indices)
	assert.NotEmpty(t, status.Uptime)
}

func TestServer_ParseError(t *testing.T) {
	socketPath := startServer(t, &echoHandler{})

	resp := roundTrip(t, socketPath, `{not json`)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeParseError, resp.Error.Code)
}

func TestServer_MissingMethod(t *testing.T) {
	socketPath := startServer(t, &echoHandler{})

	resp := roundTrip(t, socketPath, `{"jsonrpc":"2.0","id":"x"}`)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidRequest, resp.Error.Code)
}

func TestServer_NoHandler(t *testing.T) {
	socketPath := startServer(t, nil)

	resp := roundTrip(t, socketPath, `{"jsonrpc":"2.0","method":"search","id":"x"}`)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInternalError, resp.Error.Code)
}

func TestServer_DispatchesToHandler(t *testing.T) {
	socketPath := startServer(t, &echoHandler{})

	resp := roundTrip(t, socketPath, `{"jsonrpc":"2.0","method":"search","params":{"query":"q"},"id":"7"}`)

	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"method":"search","params":{"query":"q"}}`, string(resp.Result))
}

func TestErrorResponse_Mapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		data string
	}{
		{"unauthorized", apperrors.New(apperrors.ErrCodeUnauthorized, "no", nil), ErrCodeUnauthorized, apperrors.ErrCodeUnauthorized},
		{"quota", apperrors.New(apperrors.ErrCodeQuotaExceeded, "full", nil), ErrCodeQuotaExceeded, apperrors.ErrCodeQuotaExceeded},
		{"rate", apperrors.New(apperrors.ErrCodeRateLimited, "slow", nil), ErrCodeQuotaExceeded, apperrors.ErrCodeRateLimited},
		{"index not found", apperrors.NotFound(apperrors.ErrCodeIndexNotFound, "gone"), ErrCodeNotFound, apperrors.ErrCodeIndexNotFound},
		{"closed", apperrors.NotFound(apperrors.ErrCodeIndexClosed, "closed"), ErrCodeNotFound, apperrors.ErrCodeIndexClosed},
		{"io", apperrors.IOFailure(apperrors.ErrCodeFileWrite, "disk", nil), ErrCodeIOFailure, apperrors.ErrCodeFileWrite},
		{"engine", apperrors.EngineFailure("bleve", nil), ErrCodeEngineFailure, apperrors.ErrCodeEngineFailure},
		{"schema", apperrors.New(apperrors.ErrCodeSchemaInvalid, "bad", nil), ErrCodeEngineFailure, apperrors.ErrCodeSchemaInvalid},
		{"validation", apperrors.ValidationError("bad input", nil), ErrCodeInvalidParams, apperrors.ErrCodeInvalidInput},
		{"plain", fmt.Errorf("boom"), ErrCodeInternalError, ""},
		{"rpc", &Error{Code: ErrCodeMethodNotFound, Message: "nope"}, ErrCodeMethodNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := errorResponse("id", tt.err)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.data, resp.Error.Data)
		})
	}
}

func TestErrorResponse_CarriesDetails(t *testing.T) {
	err := apperrors.NotFound(apperrors.ErrCodeDocumentNotFound, "gone").
		WithDetail(apperrors.DetailIndexID, "2").
		WithDetail(apperrors.DetailDocumentID, "8")

	resp := errorResponse("id", err)

	require.NotNil(t, resp.Error)
	assert.Equal(t, map[string]string{"index_id": "2", "document_id": "8"}, resp.Error.Details)
	assert.Nil(t, errorResponse("id", fmt.Errorf("boom")).Error.Details)
}

func TestServer_ConcurrentConnections(t *testing.T) {
	socketPath := startServer(t, &echoHandler{})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := net.Dial("unix", socketPath)
			if err != nil {
				errs <- err
				return
			}
			defer conn.Close()
			if err := json.NewEncoder(conn).Encode(Request{JSONRPC: "2.0", Method: MethodPing, ID: fmt.Sprint(i)}); err != nil {
				errs <- err
				return
			}
			var resp Response
			if err := json.NewDecoder(conn).Decode(&resp); err != nil {
				errs <- err
				return
			}
			if resp.ID != fmt.Sprint(i) || resp.Error != nil {
				errs <- fmt.Errorf("unexpected response %+v", resp)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
