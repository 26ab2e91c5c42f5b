package engine

import (
	"context"
	"errors"
)

var (
	// ErrDocumentNotFound is returned for ids that do not resolve to a live document.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrFileNotFound is returned when no file was indexed under an id.
	ErrFileNotFound = errors.New("file not found")

	// ErrClosed is returned by every operation on a closed index.
	ErrClosed = errors.New("index is closed")
)

// Engine creates and opens indices.
type Engine interface {
	// Create builds a new index in path, which must not hold one already.
	Create(ctx context.Context, path string, meta Meta, schema []SchemaField, synonyms []Synonym) (Index, error)

	// Open loads an index previously created in path.
	Open(ctx context.Context, path string) (Index, error)
}

// Index is one open engine index. Readers may run concurrently; writers must
// be serialized by the caller.
type Index interface {
	Meta() Meta
	Schema() []SchemaField
	Path() string

	// HasStoredFields reports whether any schema field keeps its content.
	HasStoredFields() bool

	// DocCount counts accepted documents, committed or not.
	DocCount() (uint64, error)

	IndexDocuments(ctx context.Context, docs []Document) error
	UpdateDocuments(ctx context.Context, docs []IDDocument) error
	DeleteDocuments(ctx context.Context, ids []uint64) error
	DeleteByQuery(ctx context.Context, q Query) error
	IndexFile(ctx context.Context, path string, date int64, data []byte) error
	GetFile(ctx context.Context, id uint64) ([]byte, error)

	// Commit makes every accepted document visible to non-realtime searches.
	Commit(ctx context.Context) error
	// Close commits and releases the index. Further calls fail with ErrClosed.
	Close() error
	// Delete closes the index and removes its directory.
	Delete() error

	Search(ctx context.Context, q Query) (*Results, error)
	GetDocument(ctx context.Context, id uint64, opts DocumentOptions) (Document, error)
	FacetsMinMax(ctx context.Context) (map[string]MinMax, error)

	Synonyms() []Synonym
	SetSynonyms(synonyms []Synonym) (int, error)
	AddSynonyms(synonyms []Synonym) (int, error)
}
