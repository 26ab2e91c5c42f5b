package mcp

import (
	"context"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/seekhost/internal/daemon"
	"github.com/Aman-CERP/seekhost/internal/engine"
	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
	"github.com/Aman-CERP/seekhost/internal/index"
)

const testAPIKey = "c2VjcmV0"

// mockBackend implements Backend for testing.
type mockBackend struct {
	mu       sync.Mutex
	apikeys  []string
	requests []index.SearchRequest

	SearchFn      func(indexID uint64, req index.SearchRequest) (*index.SearchResult, error)
	GetDocumentFn func(indexID, docID uint64) (engine.Document, error)
	GetFileFn     func(indexID, docID uint64) ([]byte, error)
	Stats         []index.Stats
	Err           error
}

func (m *mockBackend) record(apikey string) {
	m.mu.Lock()
	m.apikeys = append(m.apikeys, apikey)
	m.mu.Unlock()
}

func (m *mockBackend) Search(_ context.Context, apikey string, indexID uint64, req index.SearchRequest) (*index.SearchResult, error) {
	m.record(apikey)
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.SearchFn != nil {
		return m.SearchFn(indexID, req)
	}
	return &index.SearchResult{Query: req.Query, Length: req.Length, Results: []engine.Document{}}, m.Err
}

func (m *mockBackend) GetDocument(_ context.Context, apikey string, indexID, docID uint64, _ index.GetDocumentRequest) (engine.Document, error) {
	m.record(apikey)
	if m.GetDocumentFn != nil {
		return m.GetDocumentFn(indexID, docID)
	}
	return nil, m.Err
}

func (m *mockBackend) GetFile(_ context.Context, apikey string, indexID, docID uint64) ([]byte, error) {
	m.record(apikey)
	if m.GetFileFn != nil {
		return m.GetFileFn(indexID, docID)
	}
	return nil, m.Err
}

func (m *mockBackend) IndexStats(_ context.Context, apikey string, indexID uint64) (*index.Stats, error) {
	m.record(apikey)
	if m.Err != nil {
		return nil, m.Err
	}
	for _, st := range m.Stats {
		if st.ID == indexID {
			return &st, nil
		}
	}
	return nil, apperrors.NotFound(apperrors.ErrCodeIndexNotFound, "index not found")
}

func (m *mockBackend) ListIndices(_ context.Context, apikey string) ([]index.Stats, error) {
	m.record(apikey)
	return m.Stats, m.Err
}

var _ Backend = (*daemon.Client)(nil)

func newTestServer(t *testing.T, b *mockBackend) *Server {
	t.Helper()
	srv, err := NewServer(b, testAPIKey)
	require.NoError(t, err)
	return srv
}

func TestServer_New_Success(t *testing.T) {
	srv, err := NewServer(&mockBackend{}, testAPIKey)

	require.NoError(t, err)
	assert.NotNil(t, srv.MCPServer())
	name, ver := srv.Info()
	assert.Equal(t, "seekhost", name)
	assert.NotEmpty(t, ver)
}

func TestServer_New_RequiresBackendAndKey(t *testing.T) {
	_, err := NewServer(nil, testAPIKey)
	assert.Error(t, err)

	_, err = NewServer(&mockBackend{}, "")
	assert.Error(t, err)
}

func TestServer_ListTools_ReturnsAllFourTools(t *testing.T) {
	srv := newTestServer(t, &mockBackend{})

	names := make([]string, 0, 4)
	for _, tool := range srv.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}

	assert.Equal(t, []string{"search", "get_document", "index_stats", "list_indices"}, names)
}

func TestServer_SearchHandler_StructuredAndMarkdown(t *testing.T) {
	// Given: a backend with two hits
	b := &mockBackend{
		SearchFn: func(indexID uint64, req index.SearchRequest) (*index.SearchResult, error) {
			return &index.SearchResult{
				Query:      req.Query,
				Count:      2,
				CountTotal: 7,
				QueryTerms: []string{"dune"},
				Results: []engine.Document{
					{"_id": uint64(0), "_score": 1.5, "title": "Dune"},
					{"_id": uint64(3), "_score": 0.9, "title": "Dune Messiah"},
				},
			}, nil
		},
	}
	srv := newTestServer(t, b)

	// When: calling the SDK handler
	result, out, err := srv.mcpSearchHandler(context.Background(), &mcp.CallToolRequest{}, SearchInput{IndexID: 1, Query: "dune"})

	// Then: structured output mirrors the page and text is markdown
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, uint64(7), out.CountTotal)
	require.Len(t, out.Results, 2)
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "Dune Messiah")
	assert.Contains(t, text.Text, "Showing 2 of 7 matches")

	// And: the call ran with the server's apikey and default page size
	assert.Equal(t, []string{testAPIKey}, b.apikeys)
	assert.Equal(t, defaultLimit, b.requests[0].Length)
}

func TestServer_SearchHandler_MapsErrors(t *testing.T) {
	b := &mockBackend{Err: &daemon.Error{Code: daemon.ErrCodeNotFound, Message: "index 9 not found"}}
	srv := newTestServer(t, b)

	_, _, err := srv.mcpSearchHandler(context.Background(), &mcp.CallToolRequest{}, SearchInput{IndexID: 9, Query: "x"})

	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeNotFound, me.Code)
}

func TestServer_GetDocumentHandler(t *testing.T) {
	b := &mockBackend{
		GetDocumentFn: func(indexID, docID uint64) (engine.Document, error) {
			if docID == 4 {
				return engine.Document{"title": "Emma"}, nil
			}
			return nil, apperrors.NotFound(apperrors.ErrCodeDocumentNotFound, "document not found")
		},
	}
	srv := newTestServer(t, b)

	_, out, err := srv.mcpGetDocumentHandler(context.Background(), &mcp.CallToolRequest{}, GetDocumentInput{IndexID: 1, DocumentID: 4})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), out.DocumentID)
	assert.Equal(t, "Emma", out.Document["title"])

	_, _, err = srv.mcpGetDocumentHandler(context.Background(), &mcp.CallToolRequest{}, GetDocumentInput{IndexID: 1, DocumentID: 5})
	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeNotFound, me.Code)
}

func TestServer_IndexStatsAndListHandlers(t *testing.T) {
	b := &mockBackend{Stats: []index.Stats{
		{ID: 0, Name: "books", IndexedDocCount: 3},
		{ID: 2, Name: "films", IndexedDocCount: 8},
	}}
	srv := newTestServer(t, b)

	_, st, err := srv.mcpIndexStatsHandler(context.Background(), &mcp.CallToolRequest{}, IndexStatsInput{IndexID: 2})
	require.NoError(t, err)
	assert.Equal(t, "films", st.Name)

	_, list, err := srv.mcpListIndicesHandler(context.Background(), &mcp.CallToolRequest{}, ListIndicesInput{})
	require.NoError(t, err)
	assert.Len(t, list.Indices, 2)
}

func TestServer_ListIndices_EmptyIsNotNil(t *testing.T) {
	srv := newTestServer(t, &mockBackend{})

	_, list, err := srv.mcpListIndicesHandler(context.Background(), &mcp.CallToolRequest{}, ListIndicesInput{})

	require.NoError(t, err)
	assert.NotNil(t, list.Indices)
	assert.Empty(t, list.Indices)
}

func TestServer_Serve_UnknownTransport(t *testing.T) {
	srv := newTestServer(t, &mockBackend{})

	err := srv.Serve(context.Background(), "sse")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}

func TestServer_ConcurrentRequests_RaceSafe(t *testing.T) {
	srv := newTestServer(t, &mockBackend{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := srv.CallTool(context.Background(), "search", map[string]any{"index_id": float64(1), "query": "x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
