package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/seekhost/internal/engine"
	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
	"github.com/Aman-CERP/seekhost/internal/index"
	"github.com/Aman-CERP/seekhost/internal/tenant"
)

const testMasterKey = "master-secret"

// daemonTestConfig creates a configuration with unique paths.
func daemonTestConfig(t *testing.T) Config {
	t.Helper()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	socketPath := filepath.Join("/tmp", fmt.Sprintf("seekhost-daemon-%s.sock", suffix))
	t.Cleanup(func() { os.Remove(socketPath) })

	dir := t.TempDir()
	return Config{
		SocketPath:          socketPath,
		PIDPath:             filepath.Join(dir, "seekhost.pid"),
		Root:                filepath.Join(dir, "data"),
		Timeout:             5 * time.Second,
		ShutdownGracePeriod: 2 * time.Second,
		MasterKey:           testMasterKey,
		Similarity:          engine.SimilarityBM25,
		Tokenizer:           engine.TokenizerUnicodeAlphanumeric,
		Quota:               tenant.Quota{IndicesMax: 2, DocumentsMax: 5},
		Store:               tenant.DefaultOptions(),
	}
}

// runDaemon starts a daemon and returns a client once it answers.
func runDaemon(t *testing.T, cfg Config) (*Daemon, *Client) {
	t.Helper()
	d, err := NewDaemon(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	client := NewClient(cfg)
	require.Eventually(t, func() bool { return client.Ping(context.Background()) == nil },
		5*time.Second, 20*time.Millisecond)
	return d, client
}

func searchRequest(q string) index.SearchRequest {
	return index.SearchRequest{Query: q, Length: 10}
}

func rpcCode(t *testing.T, err error) (int, string) {
	t.Helper()
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr), "expected *Error, got %v", err)
	return rpcErr.Code, rpcErr.Data
}

var booksSchema = []engine.SchemaField{
	{Field: "title", Type: engine.FieldText, Stored: true, Indexed: true},
	{Field: "genre", Type: engine.FieldString, Stored: true, Indexed: true, Facet: true},
}

func TestNewDaemon_InvalidConfig(t *testing.T) {
	_, err := NewDaemon(Config{PIDPath: "/tmp/x.pid", Root: "/tmp/x", Timeout: time.Second})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestDaemon_StartStop(t *testing.T) {
	cfg := daemonTestConfig(t)
	d, err := NewDaemon(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	client := NewClient(cfg)
	require.Eventually(t, client.IsRunning, 5*time.Second, 20*time.Millisecond)

	// PID file names this process while running
	pid, err := NewPIDFile(cfg.PIDPath).Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	// PID file and socket are gone after stop
	_, err = os.Stat(cfg.PIDPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(cfg.SocketPath)
	assert.True(t, os.IsNotExist(err))
}

func TestDaemon_SecondDaemonOnSameRootFails(t *testing.T) {
	cfg := daemonTestConfig(t)
	runDaemon(t, cfg)

	// Same root, own socket and PID file
	other := cfg
	other.SocketPath = cfg.SocketPath + ".2"
	other.PIDPath = cfg.PIDPath + ".2"
	t.Cleanup(func() { os.Remove(other.SocketPath) })
	d, err := NewDaemon(other)
	require.NoError(t, err)

	err = d.Start(context.Background())

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeLockHeld, apperrors.GetCode(err))
}

func TestDaemon_StalePIDCleaned(t *testing.T) {
	cfg := daemonTestConfig(t)
	require.NoError(t, os.WriteFile(cfg.PIDPath, []byte("4194304"), 0o644))

	runDaemon(t, cfg)

	pid, err := NewPIDFile(cfg.PIDPath).Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestDaemon_APIKeyLifecycle(t *testing.T) {
	cfg := daemonTestConfig(t)
	_, client := runDaemon(t, cfg)
	ctx := context.Background()

	// A wrong master key is rejected
	_, err := client.CreateAPIKey(ctx, "guess", nil)
	code, _ := rpcCode(t, err)
	assert.Equal(t, ErrCodeUnauthorized, code)

	// Accounts take the smallest free id
	first, err := client.CreateAPIKey(ctx, testMasterKey, nil)
	require.NoError(t, err)
	second, err := client.CreateAPIKey(ctx, testMasterKey, &tenant.Quota{IndicesMax: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), first.ID)
	assert.Equal(t, uint64(1), second.ID)

	remaining, err := client.DeleteAPIKey(ctx, testMasterKey, first.APIKey)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	third, err := client.CreateAPIKey(ctx, testMasterKey, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), third.ID)

	// The deleted key no longer authenticates
	_, err = client.ListIndices(ctx, first.APIKey)
	code, data := rpcCode(t, err)
	assert.Equal(t, ErrCodeUnauthorized, code)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, data)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Accounts)
}

func TestDaemon_DocumentRoundTrip(t *testing.T) {
	cfg := daemonTestConfig(t)
	_, client := runDaemon(t, cfg)
	ctx := context.Background()

	acct, err := client.CreateAPIKey(ctx, testMasterKey, nil)
	require.NoError(t, err)
	key := acct.APIKey

	// Given: an index with three documents
	id, err := client.CreateIndex(ctx, key, tenant.CreateIndexRequest{IndexName: "books", Schema: booksSchema})
	require.NoError(t, err)
	n, err := client.IndexDocuments(ctx, key, id, []engine.Document{
		{"title": "Dune", "genre": "scifi"},
		{"title": "Dune Messiah", "genre": "scifi"},
		{"title": "Emma", "genre": "classic"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	// Uncommitted documents are only visible to realtime searches
	res, err := client.Search(ctx, key, id, searchRequest("dune"))
	require.NoError(t, err)
	assert.Zero(t, res.CountTotal)

	committed, err := client.CommitIndex(ctx, key, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), committed)

	// When: searching after commit
	res, err = client.Search(ctx, key, id, searchRequest("dune"))
	require.NoError(t, err)

	// Then: both matching documents come back hydrated
	assert.Equal(t, uint64(2), res.CountTotal)
	assert.Equal(t, 2, res.Count)
	require.Len(t, res.Results, 2)
	assert.Contains(t, res.Results[0]["title"], "Dune")

	// Documents are readable by id and unknown ids are NotFound
	doc, err := client.GetDocument(ctx, key, id, 2, index.GetDocumentRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Emma", doc["title"])
	_, err = client.GetDocument(ctx, key, id, 99, index.GetDocumentRequest{})
	code, data := rpcCode(t, err)
	assert.Equal(t, ErrCodeNotFound, code)
	assert.Equal(t, apperrors.ErrCodeDocumentNotFound, data)

	// Update keeps the id, delete removes
	_, err = client.UpdateDocuments(ctx, key, id, []engine.IDDocument{{ID: 2, Document: engine.Document{"title": "Persuasion", "genre": "classic"}}})
	require.NoError(t, err)
	doc, err = client.GetDocument(ctx, key, id, 2, index.GetDocumentRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Persuasion", doc["title"])

	n, err = client.DeleteDocuments(ctx, key, id, []uint64{0})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	n, err = client.DeleteByQuery(ctx, key, id, index.SearchRequest{Query: "persuasion", Realtime: true})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	stats, err := client.IndexStats(ctx, key, id)
	require.NoError(t, err)
	assert.Equal(t, "books", stats.Name)
	assert.Equal(t, engine.SimilarityBM25, stats.Similarity)
	assert.Equal(t, uint64(1), stats.IndexedDocCount)
}

func TestDaemon_Quotas(t *testing.T) {
	cfg := daemonTestConfig(t)
	_, client := runDaemon(t, cfg)
	ctx := context.Background()

	acct, err := client.CreateAPIKey(ctx, testMasterKey, &tenant.Quota{IndicesMax: 1, DocumentsMax: 2})
	require.NoError(t, err)
	key := acct.APIKey

	id, err := client.CreateIndex(ctx, key, tenant.CreateIndexRequest{IndexName: "a", Schema: booksSchema})
	require.NoError(t, err)

	// A second index exceeds IndicesMax
	_, err = client.CreateIndex(ctx, key, tenant.CreateIndexRequest{IndexName: "b", Schema: booksSchema})
	code, data := rpcCode(t, err)
	assert.Equal(t, ErrCodeQuotaExceeded, code)
	assert.Equal(t, apperrors.ErrCodeQuotaExceeded, data)

	// A batch past DocumentsMax is rejected whole
	_, err = client.IndexDocuments(ctx, key, id, []engine.Document{{"title": "a"}, {"title": "b"}, {"title": "c"}})
	code, _ = rpcCode(t, err)
	assert.Equal(t, ErrCodeQuotaExceeded, code)

	n, err := client.IndexDocuments(ctx, key, id, []engine.Document{{"title": "a"}, {"title": "b"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestDaemon_RateLimit(t *testing.T) {
	cfg := daemonTestConfig(t)
	_, client := runDaemon(t, cfg)
	ctx := context.Background()

	// One request per second with a burst of one
	acct, err := client.CreateAPIKey(ctx, testMasterKey, &tenant.Quota{RateLimit: 1})
	require.NoError(t, err)

	_, err = client.ListIndices(ctx, acct.APIKey)
	require.NoError(t, err)
	_, err = client.ListIndices(ctx, acct.APIKey)
	_, data := rpcCode(t, err)
	assert.Equal(t, apperrors.ErrCodeRateLimited, data)
}

func TestDaemon_IndexLifecycleAndErrors(t *testing.T) {
	cfg := daemonTestConfig(t)
	_, client := runDaemon(t, cfg)
	ctx := context.Background()

	acct, err := client.CreateAPIKey(ctx, testMasterKey, &tenant.Quota{})
	require.NoError(t, err)
	key := acct.APIKey

	// Schema problems are engine failures
	_, err = client.CreateIndex(ctx, key, tenant.CreateIndexRequest{IndexName: "bad"})
	code, data := rpcCode(t, err)
	assert.Equal(t, ErrCodeEngineFailure, code)
	assert.Equal(t, apperrors.ErrCodeSchemaInvalid, data)

	id, err := client.CreateIndex(ctx, key, tenant.CreateIndexRequest{IndexName: "books", Schema: booksSchema})
	require.NoError(t, err)
	_, err = client.IndexDocuments(ctx, key, id, []engine.Document{{"title": "Dune"}})
	require.NoError(t, err)

	// Closing keeps the index listed but rejects operations
	count, err := client.CloseIndex(ctx, key, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	_, err = client.Search(ctx, key, id, searchRequest("dune"))
	_, data = rpcCode(t, err)
	assert.Equal(t, apperrors.ErrCodeIndexClosed, data)

	list, err := client.ListIndices(ctx, key)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "books", list[0].Name)

	// Delete works on a closed index
	remaining, err := client.DeleteIndex(ctx, key, id)
	require.NoError(t, err)
	assert.Zero(t, remaining)
	_, err = client.IndexStats(ctx, key, id)
	_, data = rpcCode(t, err)
	assert.Equal(t, apperrors.ErrCodeIndexNotFound, data)
}

func TestDaemon_FilesAndSynonyms(t *testing.T) {
	cfg := daemonTestConfig(t)
	_, client := runDaemon(t, cfg)
	ctx := context.Background()

	acct, err := client.CreateAPIKey(ctx, testMasterKey, &tenant.Quota{})
	require.NoError(t, err)
	key := acct.APIKey
	schema := []engine.SchemaField{
		{Field: "title", Type: engine.FieldText, Stored: true, Indexed: true},
		{Field: "body", Type: engine.FieldText, Stored: true, Indexed: true},
	}
	id, err := client.CreateIndex(ctx, key, tenant.CreateIndexRequest{IndexName: "files", Schema: schema})
	require.NoError(t, err)

	// A text file is indexed and its bytes kept
	content := []byte("the quick brown fox")
	_, err = client.IndexFile(ctx, key, id, "notes/fox.txt", 1700000000, content)
	require.NoError(t, err)
	data, err := client.GetFile(ctx, key, id, 0)
	require.NoError(t, err)
	assert.Equal(t, content, data)

	// Synonyms expand queries
	n, err := client.SetSynonyms(ctx, key, id, []engine.Synonym{{Terms: []string{"fox", "vixen"}, Multiway: true}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = client.AddSynonyms(ctx, key, id, []engine.Synonym{{Terms: []string{"quick", "fast"}}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	syn, err := client.GetSynonyms(ctx, key, id)
	require.NoError(t, err)
	assert.Len(t, syn, 2)

	res, err := client.Search(ctx, key, id, index.SearchRequest{Query: "vixen", Realtime: true})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.CountTotal)
}

func TestDaemon_RecoversAcrossRestart(t *testing.T) {
	cfg := daemonTestConfig(t)
	ctx := context.Background()

	// Given: a daemon that created an account with one document, then stopped
	d, err := NewDaemon(cfg)
	require.NoError(t, err)
	runCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(runCtx) }()
	client := NewClient(cfg)
	require.Eventually(t, func() bool { return client.Ping(ctx) == nil }, 5*time.Second, 20*time.Millisecond)

	acct, err := client.CreateAPIKey(ctx, testMasterKey, &tenant.Quota{})
	require.NoError(t, err)
	id, err := client.CreateIndex(ctx, acct.APIKey, tenant.CreateIndexRequest{IndexName: "books", Schema: booksSchema})
	require.NoError(t, err)
	_, err = client.IndexDocuments(ctx, acct.APIKey, id, []engine.Document{{"title": "Dune"}})
	require.NoError(t, err)
	cancel()
	<-errCh

	// When: a new daemon starts on the same root
	_, client = runDaemon(t, cfg)

	// Then: the stop committed the document and the account still works
	res, err := client.Search(ctx, acct.APIKey, id, searchRequest("dune"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.CountTotal)
}

func TestDaemon_UnknownMethod(t *testing.T) {
	cfg := daemonTestConfig(t)
	_, client := runDaemon(t, cfg)

	err := client.call(context.Background(), "compact", Auth{}, nil)

	code, _ := rpcCode(t, err)
	assert.Equal(t, ErrCodeMethodNotFound, code)
}
