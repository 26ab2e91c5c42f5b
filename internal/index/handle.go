// Package index guards one open engine index with a multi-reader,
// single-writer discipline and dispatches document and search operations
// onto it.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/seekhost/internal/engine"
	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
)

const (
	// DefaultCacheSize is the number of hydrated documents kept per handle.
	DefaultCacheSize = 1024

	// DefaultHydrationWorkers bounds concurrent hydration of one result page.
	DefaultHydrationWorkers = 8
)

// Options tunes a Handle.
type Options struct {
	CacheSize        int
	HydrationWorkers int
	// DefaultLength is the page size of a search that names none.
	DefaultLength    int
}

// DefaultOptions returns the handle defaults.
func DefaultOptions() Options {
	return Options{
		CacheSize:        DefaultCacheSize,
		HydrationWorkers: DefaultHydrationWorkers,
		DefaultLength:    DefaultLength,
	}
}

// cacheKey identifies a hydrated document by id and projection.
type cacheKey struct {
	id     uint64
	fields string
}

// Handle is the exclusive owner of one engine index. Search, document reads,
// stats and synonym reads share the index; every mutation and lifecycle
// operation holds it exclusively. The lock is never exposed.
type Handle struct {
	mu     sync.RWMutex
	idx    engine.Index
	closed bool

	meta    engine.Meta
	docs    *lru.Cache[cacheKey, engine.Document]
	workers int
	length  int

	operations atomic.Uint64
	queries    atomic.Uint64
}

// NewHandle takes ownership of idx.
func NewHandle(idx engine.Index, opts Options) *Handle {
	if opts.HydrationWorkers <= 0 {
		opts.HydrationWorkers = DefaultHydrationWorkers
	}
	if opts.DefaultLength <= 0 {
		opts.DefaultLength = DefaultLength
	}
	h := &Handle{
		idx:     idx,
		meta:    idx.Meta(),
		workers: opts.HydrationWorkers,
		length:  opts.DefaultLength,
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[cacheKey, engine.Document](opts.CacheSize)
		if err == nil {
			h.docs = cache
		}
	}
	return h
}

// ID returns the index id.
func (h *Handle) ID() uint64 { return h.meta.ID }

// Meta returns the immutable index meta.
func (h *Handle) Meta() engine.Meta { return h.meta }

// Closed reports whether the handle no longer accepts operations.
func (h *Handle) Closed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// read runs fn with shared access.
func (h *Handle) read(fn func(engine.Index) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return h.closedError()
	}
	return fn(h.idx)
}

// write runs fn with exclusive access and drops cached documents afterwards.
func (h *Handle) write(fn func(engine.Index) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return h.closedError()
	}
	defer h.purge()
	return fn(h.idx)
}

func (h *Handle) purge() {
	if h.docs != nil {
		h.docs.Purge()
	}
}

func (h *Handle) closedError() error {
	return apperrors.NotFound(apperrors.ErrCodeIndexClosed, fmt.Sprintf("index %d is closed", h.meta.ID)).
		WithDetail(apperrors.DetailIndexID, fmt.Sprint(h.meta.ID))
}

// engineError classifies an engine failure.
func engineError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.EngineFailure(op+" failed", err)
}

// Commit makes accepted documents visible to non-realtime searches and
// returns the document count observed before the flush.
func (h *Handle) Commit(ctx context.Context) (uint64, error) {
	var count uint64
	err := h.write(func(idx engine.Index) error {
		n, err := idx.DocCount()
		if err != nil {
			return engineError("count documents", err)
		}
		count = n
		return engineError("commit", idx.Commit(ctx))
	})
	if err != nil {
		return 0, err
	}
	slog.Debug("index_committed", slog.Uint64("index_id", h.meta.ID), slog.Uint64("doc_count", count))
	return count, nil
}

// Close commits and closes the index. The handle rejects every later
// operation except Delete.
func (h *Handle) Close(ctx context.Context) (uint64, error) {
	var count uint64
	err := h.write(func(idx engine.Index) error {
		n, err := idx.DocCount()
		if err != nil {
			return engineError("count documents", err)
		}
		count = n
		h.closed = true
		return engineError("close", idx.Close())
	})
	if err != nil {
		return 0, err
	}
	slog.Debug("index_closed", slog.Uint64("index_id", h.meta.ID), slog.Uint64("doc_count", count))
	return count, nil
}

// Delete removes the index from disk. It waits for in-flight operations and
// works on closed handles too.
func (h *Handle) Delete(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.purge()
	if err := h.idx.Delete(); err != nil {
		return apperrors.IOFailure(apperrors.ErrCodeDirRemove, fmt.Sprintf("delete index %d", h.meta.ID), err)
	}
	return nil
}

// Synonyms returns the synonym table.
func (h *Handle) Synonyms(ctx context.Context) ([]engine.Synonym, error) {
	var out []engine.Synonym
	err := h.read(func(idx engine.Index) error {
		out = idx.Synonyms()
		return nil
	})
	return out, err
}

// SetSynonyms replaces the synonym table and returns its size.
func (h *Handle) SetSynonyms(ctx context.Context, synonyms []engine.Synonym) (int, error) {
	var n int
	err := h.write(func(idx engine.Index) error {
		var err error
		n, err = idx.SetSynonyms(synonyms)
		return engineError("set synonyms", err)
	})
	return n, err
}

// AddSynonyms extends the synonym table and returns its size.
func (h *Handle) AddSynonyms(ctx context.Context, synonyms []engine.Synonym) (int, error) {
	var n int
	err := h.write(func(idx engine.Index) error {
		var err error
		n, err = idx.AddSynonyms(synonyms)
		return engineError("add synonyms", err)
	})
	return n, err
}

func (k cacheKey) withFields(fields []string) cacheKey {
	k.fields = strings.Join(fields, "\x00")
	return k
}
