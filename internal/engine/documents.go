package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// deleteByQueryPage bounds how many ids one matching pass collects.
const deleteByQueryPage = 1000

// IndexDocuments assigns sequential ids and applies every document in one
// batch. A document that fails validation rejects the whole batch.
func (b *bleveIndex) IndexDocuments(ctx context.Context, docs []Document) error {
	_, err := b.indexBatch(docs, nil)
	return err
}

// indexBatch indexes docs and stores files[i] alongside docs[i] when given.
// It returns the id of the first document.
func (b *bleveIndex) indexBatch(docs []Document, files [][]byte) (uint64, error) {
	if b.closed {
		return 0, ErrClosed
	}
	first := b.nextID
	if len(docs) == 0 {
		return first, nil
	}

	batch := b.index.NewBatch()
	next := first
	for i, doc := range docs {
		bd, err := b.toBleveDocument(next, doc)
		if err != nil {
			return 0, fmt.Errorf("document %d: %w", i, err)
		}
		if err := batch.Index(docKey(next), bd); err != nil {
			return 0, fmt.Errorf("document %d: %w", i, err)
		}
		if files != nil && files[i] != nil {
			batch.SetInternal(fileKey(next), files[i])
		}
		next++
	}
	batch.SetInternal([]byte(keyNextID), encodeUint(next))

	if err := b.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("failed to execute batch: %w", err)
	}
	b.nextID = next
	return first, nil
}

// UpdateDocuments replaces documents in place, keeping their ids.
func (b *bleveIndex) UpdateDocuments(ctx context.Context, docs []IDDocument) error {
	if b.closed {
		return ErrClosed
	}
	if len(docs) == 0 {
		return nil
	}

	batch := b.index.NewBatch()
	for i, d := range docs {
		if d.ID >= b.nextID {
			return fmt.Errorf("document %d: id %d was never assigned", i, d.ID)
		}
		bd, err := b.toBleveDocument(d.ID, d.Document)
		if err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
		if err := batch.Index(docKey(d.ID), bd); err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// DeleteDocuments removes documents and their files. Unknown ids are ignored.
func (b *bleveIndex) DeleteDocuments(ctx context.Context, ids []uint64) error {
	if b.closed {
		return ErrClosed
	}
	if len(ids) == 0 {
		return nil
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(docKey(id))
		batch.DeleteInternal(fileKey(id))
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// DeleteByQuery removes every document q matches, ignoring its pagination.
func (b *bleveIndex) DeleteByQuery(ctx context.Context, q Query) error {
	if b.closed {
		return ErrClosed
	}

	var ids []uint64
	page := q
	page.ResultType = ResultTopK
	page.Facets = nil
	page.Sort = nil
	page.Length = deleteByQueryPage
	for page.Offset = 0; ; page.Offset += deleteByQueryPage {
		res, err := b.Search(ctx, page)
		if err != nil {
			return err
		}
		for _, h := range res.Hits {
			ids = append(ids, h.DocID)
		}
		if len(res.Hits) < deleteByQueryPage {
			break
		}
	}
	return b.DeleteDocuments(ctx, ids)
}

// IndexFile extracts text from data and indexes it as one document. The
// extracted content goes to whichever of title, body, url and date the
// schema defines; the raw bytes are kept for GetFile.
func (b *bleveIndex) IndexFile(ctx context.Context, path string, date int64, data []byte) error {
	if b.closed {
		return ErrClosed
	}
	text, err := ExtractText(data)
	if err != nil {
		return err
	}

	doc := Document{}
	b.setIfText(doc, "title", fileTitle(path, text))
	b.setIfText(doc, "body", text)
	b.setIfText(doc, "url", path)
	if f, ok := b.fields["date"]; ok && f.Type.Numeric() {
		doc["date"] = float64(date)
	}
	if len(doc) == 0 {
		return fmt.Errorf("schema has none of the fields title, body, url or date")
	}

	_, err = b.indexBatch([]Document{doc}, [][]byte{data})
	return err
}

func (b *bleveIndex) setIfText(doc Document, field, value string) {
	if f, ok := b.fields[field]; ok && (f.Type == FieldText || f.Type == FieldString) {
		doc[field] = value
	}
}

// fileTitle is the first non-empty line of the text, or the file name.
func fileTitle(path, text string) string {
	for _, line := range strings.SplitN(text, "\n", 20) {
		if line = strings.TrimSpace(line); line != "" {
			if r := []rune(line); len(r) > 200 {
				line = string(r[:200])
			}
			return line
		}
	}
	return filepath.Base(path)
}

func (b *bleveIndex) GetFile(ctx context.Context, id uint64) ([]byte, error) {
	if b.closed {
		return nil, ErrClosed
	}
	data, err := b.index.GetInternal(fileKey(id))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if data == nil {
		return nil, ErrFileNotFound
	}
	return data, nil
}
