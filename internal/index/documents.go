package index

import (
	"context"
	"errors"

	"github.com/Aman-CERP/seekhost/internal/engine"
	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
)

// mutate runs a document mutation exclusively and returns the document count
// after it. The operation counter only moves on success.
func (h *Handle) mutate(op string, fn func(engine.Index) error) (uint64, error) {
	var count uint64
	err := h.write(func(idx engine.Index) error {
		if err := fn(idx); err != nil {
			return engineError(op, err)
		}
		n, err := idx.DocCount()
		if err != nil {
			return engineError("count documents", err)
		}
		count = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	h.operations.Add(1)
	return count, nil
}

// IndexDocument adds one document.
func (h *Handle) IndexDocument(ctx context.Context, doc engine.Document) (uint64, error) {
	return h.IndexDocuments(ctx, []engine.Document{doc})
}

// IndexDocuments adds documents as one all-or-nothing batch.
func (h *Handle) IndexDocuments(ctx context.Context, docs []engine.Document) (uint64, error) {
	return h.mutate("index documents", func(idx engine.Index) error {
		return idx.IndexDocuments(ctx, docs)
	})
}

// UpdateDocument replaces one document, keeping its id.
func (h *Handle) UpdateDocument(ctx context.Context, doc engine.IDDocument) (uint64, error) {
	return h.UpdateDocuments(ctx, []engine.IDDocument{doc})
}

// UpdateDocuments replaces documents as one all-or-nothing batch.
func (h *Handle) UpdateDocuments(ctx context.Context, docs []engine.IDDocument) (uint64, error) {
	return h.mutate("update documents", func(idx engine.Index) error {
		return idx.UpdateDocuments(ctx, docs)
	})
}

// DeleteDocument removes one document.
func (h *Handle) DeleteDocument(ctx context.Context, id uint64) (uint64, error) {
	return h.DeleteDocuments(ctx, []uint64{id})
}

// DeleteDocuments removes documents. Unknown ids are ignored.
func (h *Handle) DeleteDocuments(ctx context.Context, ids []uint64) (uint64, error) {
	return h.mutate("delete documents", func(idx engine.Index) error {
		return idx.DeleteDocuments(ctx, ids)
	})
}

// DeleteDocumentsByQuery removes every document the request matches. Offset
// and length do not limit the deletion.
func (h *Handle) DeleteDocumentsByQuery(ctx context.Context, req SearchRequest) (uint64, error) {
	q := req.engineQuery(h.length)
	return h.mutate("delete by query", func(idx engine.Index) error {
		return idx.DeleteByQuery(ctx, q)
	})
}

// IndexFile extracts the text of a PDF or plain text file and indexes it as
// one document, keeping the raw bytes for GetFile.
func (h *Handle) IndexFile(ctx context.Context, path string, date int64, data []byte) (uint64, error) {
	count, err := h.mutate("index file", func(idx engine.Index) error {
		err := idx.IndexFile(ctx, path, date, data)
		if errors.Is(err, engine.ErrUnsupportedFile) {
			return apperrors.New(apperrors.ErrCodeExtractFailed, "unsupported file content", err).
				WithDetail(apperrors.DetailPath, path)
		}
		return err
	})
	return count, err
}

// GetFile returns the bytes indexed by IndexFile under id. It reports false
// when the index keeps no stored fields, is closed, or has no such file.
func (h *Handle) GetFile(ctx context.Context, id uint64) ([]byte, bool) {
	var data []byte
	err := h.read(func(idx engine.Index) error {
		if !idx.HasStoredFields() {
			return engine.ErrFileNotFound
		}
		var err error
		data, err = idx.GetFile(ctx, id)
		return err
	})
	if err != nil {
		return nil, false
	}
	return data, true
}
