package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/seekhost/internal/engine"
	"github.com/Aman-CERP/seekhost/internal/index"
	"github.com/Aman-CERP/seekhost/internal/tenant"
)

// ErrNotRunning is returned when nothing listens on the socket.
var ErrNotRunning = errors.New("daemon not running")

// Client talks to the daemon, one connection per call. Failed calls return
// the daemon's *Error.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
	}
}

// Connect establishes a connection to the daemon.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// call sends one request and decodes its result into out when out is not nil.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		ID:      c.nextID(),
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to encode params: %w", err)
		}
		req.Params = data
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("failed to receive response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var res PingResult
	if err := c.call(ctx, MethodPing, nil, &res); err != nil {
		return err
	}
	if !res.Pong {
		return fmt.Errorf("ping failed: no pong")
	}
	return nil
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var status StatusResult
	if err := c.call(ctx, MethodStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CreateAPIKey creates an account. A nil quota uses the daemon default.
func (c *Client) CreateAPIKey(ctx context.Context, masterKey string, quota *tenant.Quota) (*CreateAPIKeyResult, error) {
	var res CreateAPIKeyResult
	err := c.call(ctx, MethodCreateAPIKey, CreateAPIKeyParams{MasterKey: masterKey, Quota: quota}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteAPIKey deletes an account and returns how many remain.
func (c *Client) DeleteAPIKey(ctx context.Context, masterKey, apikey string) (int, error) {
	var res RemainingResult
	err := c.call(ctx, MethodDeleteAPIKey, DeleteAPIKeyParams{MasterKey: masterKey, APIKey: apikey}, &res)
	return res.Remaining, err
}

// CreateIndex creates an index and returns its id.
func (c *Client) CreateIndex(ctx context.Context, apikey string, req tenant.CreateIndexRequest) (uint64, error) {
	var res CreateIndexResult
	err := c.call(ctx, MethodCreateIndex, CreateIndexParams{Auth: Auth{APIKey: apikey}, CreateIndexRequest: req}, &res)
	return res.IndexID, err
}

func ref(apikey string, indexID uint64) IndexRef {
	return IndexRef{Auth: Auth{APIKey: apikey}, IndexID: indexID}
}

// DeleteIndex deletes an index and returns how many remain.
func (c *Client) DeleteIndex(ctx context.Context, apikey string, indexID uint64) (int, error) {
	var res RemainingResult
	err := c.call(ctx, MethodDeleteIndex, ref(apikey, indexID), &res)
	return res.Remaining, err
}

// CommitIndex commits an index and returns the document count before the flush.
func (c *Client) CommitIndex(ctx context.Context, apikey string, indexID uint64) (uint64, error) {
	var res DocCountResult
	err := c.call(ctx, MethodCommitIndex, ref(apikey, indexID), &res)
	return res.IndexedDocCount, err
}

// CloseIndex commits and closes an index.
func (c *Client) CloseIndex(ctx context.Context, apikey string, indexID uint64) (uint64, error) {
	var res DocCountResult
	err := c.call(ctx, MethodCloseIndex, ref(apikey, indexID), &res)
	return res.IndexedDocCount, err
}

// IndexStats returns the stats of one index.
func (c *Client) IndexStats(ctx context.Context, apikey string, indexID uint64) (*index.Stats, error) {
	var res index.Stats
	if err := c.call(ctx, MethodIndexStats, ref(apikey, indexID), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListIndices returns the stats of every index of the account.
func (c *Client) ListIndices(ctx context.Context, apikey string) ([]index.Stats, error) {
	var res []index.Stats
	err := c.call(ctx, MethodListIndices, Auth{APIKey: apikey}, &res)
	return res, err
}

// IndexDocuments adds documents and returns the document count after.
func (c *Client) IndexDocuments(ctx context.Context, apikey string, indexID uint64, docs []engine.Document) (uint64, error) {
	var res DocCountResult
	err := c.call(ctx, MethodIndexDocuments, IndexDocumentsParams{IndexRef: ref(apikey, indexID), Documents: docs}, &res)
	return res.IndexedDocCount, err
}

// UpdateDocuments replaces documents by id.
func (c *Client) UpdateDocuments(ctx context.Context, apikey string, indexID uint64, docs []engine.IDDocument) (uint64, error) {
	var res DocCountResult
	err := c.call(ctx, MethodUpdateDocuments, UpdateDocumentsParams{IndexRef: ref(apikey, indexID), Documents: docs}, &res)
	return res.IndexedDocCount, err
}

// DeleteDocuments removes documents by id.
func (c *Client) DeleteDocuments(ctx context.Context, apikey string, indexID uint64, ids []uint64) (uint64, error) {
	var res DocCountResult
	err := c.call(ctx, MethodDeleteDocuments, DeleteDocumentsParams{IndexRef: ref(apikey, indexID), DocumentIDs: ids}, &res)
	return res.IndexedDocCount, err
}

// DeleteByQuery removes every document the request matches.
func (c *Client) DeleteByQuery(ctx context.Context, apikey string, indexID uint64, req index.SearchRequest) (uint64, error) {
	var res DocCountResult
	err := c.call(ctx, MethodDeleteByQuery, SearchParams{IndexRef: ref(apikey, indexID), SearchRequest: req}, &res)
	return res.IndexedDocCount, err
}

// Search runs a query.
func (c *Client) Search(ctx context.Context, apikey string, indexID uint64, req index.SearchRequest) (*index.SearchResult, error) {
	var res index.SearchResult
	if err := c.call(ctx, MethodSearch, SearchParams{IndexRef: ref(apikey, indexID), SearchRequest: req}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetDocument returns one hydrated document.
func (c *Client) GetDocument(ctx context.Context, apikey string, indexID, docID uint64, req index.GetDocumentRequest) (engine.Document, error) {
	var res engine.Document
	err := c.call(ctx, MethodGetDocument, GetDocumentParams{
		IndexRef:           ref(apikey, indexID),
		DocumentID:         docID,
		GetDocumentRequest: req,
	}, &res)
	return res, err
}

// GetFile returns the bytes kept for a document indexed from a file.
func (c *Client) GetFile(ctx context.Context, apikey string, indexID, docID uint64) ([]byte, error) {
	var res FileResult
	err := c.call(ctx, MethodGetFile, GetFileParams{IndexRef: ref(apikey, indexID), DocumentID: docID}, &res)
	return res.Data, err
}

// IndexFile indexes the text of a file as one document.
func (c *Client) IndexFile(ctx context.Context, apikey string, indexID uint64, path string, date int64, data []byte) (uint64, error) {
	var res DocCountResult
	err := c.call(ctx, MethodIndexFile, IndexFileParams{IndexRef: ref(apikey, indexID), Path: path, Date: date, Data: data}, &res)
	return res.IndexedDocCount, err
}

// GetSynonyms returns the synonym table of an index.
func (c *Client) GetSynonyms(ctx context.Context, apikey string, indexID uint64) ([]engine.Synonym, error) {
	var res SynonymsResult
	err := c.call(ctx, MethodGetSynonyms, ref(apikey, indexID), &res)
	return res.Synonyms, err
}

// SetSynonyms replaces the synonym table and returns its size.
func (c *Client) SetSynonyms(ctx context.Context, apikey string, indexID uint64, synonyms []engine.Synonym) (int, error) {
	var res SynonymsResult
	err := c.call(ctx, MethodSetSynonyms, SynonymsParams{IndexRef: ref(apikey, indexID), Synonyms: synonyms}, &res)
	return res.Count, err
}

// AddSynonyms extends the synonym table and returns its size.
func (c *Client) AddSynonyms(ctx context.Context, apikey string, indexID uint64, synonyms []engine.Synonym) (int, error) {
	var res SynonymsResult
	err := c.call(ctx, MethodAddSynonyms, SynonymsParams{IndexRef: ref(apikey, indexID), Synonyms: synonyms}, &res)
	return res.Count, err
}

// nextID generates a unique request ID.
func (c *Client) nextID() string {
	id := c.requestID.Add(1)
	return fmt.Sprintf("req-%d", id)
}
