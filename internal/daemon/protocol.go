package daemon

import (
	"encoding/json"

	"github.com/Aman-CERP/seekhost/internal/engine"
	"github.com/Aman-CERP/seekhost/internal/index"
	"github.com/Aman-CERP/seekhost/internal/tenant"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing   = "ping"
	MethodStatus = "status"

	MethodCreateAPIKey = "create_apikey"
	MethodDeleteAPIKey = "delete_apikey"

	MethodCreateIndex = "create_index"
	MethodDeleteIndex = "delete_index"
	MethodCommitIndex = "commit_index"
	MethodCloseIndex  = "close_index"
	MethodIndexStats  = "index_stats"
	MethodListIndices = "list_indices"

	MethodIndexDocuments  = "index_documents"
	MethodUpdateDocuments = "update_documents"
	MethodDeleteDocuments = "delete_documents"
	MethodDeleteByQuery   = "delete_by_query"
	MethodGetDocument     = "get_document"
	MethodGetFile         = "get_file"
	MethodIndexFile       = "index_file"
	MethodSearch          = "search"

	MethodGetSynonyms = "get_synonyms"
	MethodSetSynonyms = "set_synonyms"
	MethodAddSynonyms = "add_synonyms"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Error codes for store failures.
const (
	ErrCodeUnauthorized  = -32001
	ErrCodeNotFound      = -32004
	ErrCodeIOFailure     = -32005
	ErrCodeEngineFailure = -32006
	ErrCodeQuotaExceeded = -32007
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      string          `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      string          `json:"id"`
}

// Error represents a JSON-RPC 2.0 error. Data carries the store error code
// (ERR_NNN_NAME) when there is one; Details carries the store error's
// details, such as the account, index or document it concerns.
type Error struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    string            `json:"data,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != "" {
		return e.Data + ": " + e.Message
	}
	return e.Message
}

// NewSuccessResponse creates a successful response. A result that cannot be
// encoded becomes an internal error.
func NewSuccessResponse(id string, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(id, ErrCodeInternalError, "failed to encode result")
	}
	return Response{
		JSONRPC: "2.0",
		Result:  data,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// Auth carries the base64 apikey every account-scoped call needs.
type Auth struct {
	APIKey string `json:"apikey"`
}

// IndexRef names one index of the calling account.
type IndexRef struct {
	Auth
	IndexID uint64 `json:"index_id"`
}

// CreateAPIKeyParams are the parameters for create_apikey. A nil quota uses
// the configured default.
type CreateAPIKeyParams struct {
	MasterKey string        `json:"master_key"`
	Quota     *tenant.Quota `json:"quota,omitempty"`
}

// CreateAPIKeyResult returns the secret once; it is not stored.
type CreateAPIKeyResult struct {
	ID     uint64 `json:"id"`
	APIKey string `json:"apikey"`
}

// DeleteAPIKeyParams are the parameters for delete_apikey.
type DeleteAPIKeyParams struct {
	MasterKey string `json:"master_key"`
	APIKey    string `json:"apikey"`
}

// CreateIndexParams are the parameters for create_index.
type CreateIndexParams struct {
	Auth
	tenant.CreateIndexRequest
}

// CreateIndexResult returns the id of the new index.
type CreateIndexResult struct {
	IndexID uint64 `json:"index_id"`
}

// RemainingResult reports how many siblings remain after a deletion.
type RemainingResult struct {
	Remaining int `json:"remaining"`
}

// DocCountResult reports the number of documents of an index.
type DocCountResult struct {
	IndexedDocCount uint64 `json:"indexed_doc_count"`
}

// IndexDocumentsParams are the parameters for index_documents.
type IndexDocumentsParams struct {
	IndexRef
	Documents []engine.Document `json:"documents"`
}

// UpdateDocumentsParams are the parameters for update_documents.
type UpdateDocumentsParams struct {
	IndexRef
	Documents []engine.IDDocument `json:"documents"`
}

// DeleteDocumentsParams are the parameters for delete_documents.
type DeleteDocumentsParams struct {
	IndexRef
	DocumentIDs []uint64 `json:"document_ids"`
}

// SearchParams are the parameters for search and delete_by_query.
type SearchParams struct {
	IndexRef
	index.SearchRequest
}

// GetDocumentParams are the parameters for get_document.
type GetDocumentParams struct {
	IndexRef
	DocumentID uint64 `json:"document_id"`
	index.GetDocumentRequest
}

// GetFileParams are the parameters for get_file.
type GetFileParams struct {
	IndexRef
	DocumentID uint64 `json:"document_id"`
}

// FileResult carries raw file bytes, base64 encoded on the wire.
type FileResult struct {
	Data []byte `json:"data"`
}

// IndexFileParams are the parameters for index_file. Date is unix seconds.
type IndexFileParams struct {
	IndexRef
	Path string `json:"path"`
	Date int64  `json:"date"`
	Data []byte `json:"data"`
}

// SynonymsParams are the parameters for set_synonyms and add_synonyms.
type SynonymsParams struct {
	IndexRef
	Synonyms []engine.Synonym `json:"synonyms"`
}

// SynonymsResult carries a synonym table or its size.
type SynonymsResult struct {
	Synonyms []engine.Synonym `json:"synonyms,omitempty"`
	Count    int              `json:"count"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running  bool   `json:"running"`
	PID      int    `json:"pid"`
	Uptime   string `json:"uptime"`
	Version  string `json:"version"`
	Root     string `json:"root"`
	Accounts int    `json:"accounts"`
	Indices  int    `json:"indices"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
