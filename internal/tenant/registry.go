package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/seekhost/internal/engine"
	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
	"github.com/Aman-CERP/seekhost/internal/index"
	"github.com/Aman-CERP/seekhost/internal/persist"
)

// CreateIndexRequest describes a new index.
type CreateIndexRequest struct {
	IndexName  string               `json:"index_name"`
	Schema     []engine.SchemaField `json:"schema"`
	Similarity engine.Similarity    `json:"similarity,omitempty"`
	Tokenizer  engine.Tokenizer     `json:"tokenizer,omitempty"`
	Synonyms   []engine.Synonym     `json:"synonyms,omitempty"`
}

// Registry maps index ids to handles for one account. Its lock only guards
// the map; it is never held while waiting on a handle.
type Registry struct {
	account *Account
	engine  engine.Engine
	opts    Options

	mu       sync.RWMutex
	handles  map[uint64]*index.Handle
	reserved map[uint64]struct{}
	retired  bool
	creating sync.WaitGroup
}

func newRegistry(account *Account, eng engine.Engine, opts Options) *Registry {
	return &Registry{
		account:  account,
		engine:   eng,
		opts:     opts,
		handles:  make(map[uint64]*index.Handle),
		reserved: make(map[uint64]struct{}),
	}
}

// CreateIndex creates an index under the smallest free id and registers it.
// Ids of index directories left on disk, including ones recovery skipped,
// are not free.
func (r *Registry) CreateIndex(ctx context.Context, req CreateIndexRequest) (uint64, error) {
	onDisk, err := persist.ScanIDs(r.account.dir)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	if r.retired {
		r.mu.Unlock()
		return 0, apperrors.NotFound(apperrors.ErrCodeApikeyNotFound, "apikey deleted").
			WithDetail(apperrors.DetailAccountID, fmt.Sprint(r.account.ID))
	}
	used := onDisk
	for id := range r.handles {
		used[id] = struct{}{}
	}
	for id := range r.reserved {
		used[id] = struct{}{}
	}
	id := smallestFree(used)
	r.reserved[id] = struct{}{}
	r.creating.Add(1)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.reserved, id)
		r.mu.Unlock()
		r.creating.Done()
	}()

	dir := persist.IDPath(r.account.dir, id)
	if err := persist.CreateDir(dir); err != nil {
		return 0, err
	}

	meta := engine.Meta{
		ID:         id,
		Name:       req.IndexName,
		Similarity: req.Similarity,
		Tokenizer:  req.Tokenizer,
		AccessType: engine.AccessMmap,
	}
	idx, err := r.engine.Create(ctx, dir, meta, req.Schema, req.Synonyms)
	if err != nil {
		_ = persist.RemoveDir(dir)
		if _, ok := apperrors.As(err); ok {
			return 0, err
		}
		return 0, apperrors.New(apperrors.ErrCodeSchemaInvalid, "create index", err)
	}

	r.mu.Lock()
	r.handles[id] = index.NewHandle(idx, r.opts.Handle)
	r.mu.Unlock()

	r.account.saveQuietly()
	slog.Info("index_created",
		slog.Uint64("account_id", r.account.ID),
		slog.Uint64("index_id", id),
		slog.String("name", req.IndexName))
	return id, nil
}

// DeleteIndex deletes an index and returns how many remain.
func (r *Registry) DeleteIndex(ctx context.Context, id uint64) (int, error) {
	h, err := r.Index(id)
	if err != nil {
		return 0, err
	}

	if err := h.Delete(ctx); err != nil {
		return 0, err
	}

	r.mu.Lock()
	if r.handles[id] == h {
		delete(r.handles, id)
	}
	remaining := len(r.handles)
	r.mu.Unlock()

	r.account.saveQuietly()
	slog.Info("index_deleted", slog.Uint64("account_id", r.account.ID), slog.Uint64("index_id", id))
	return remaining, nil
}

// Index returns the handle for id.
func (r *Registry) Index(id uint64) (*index.Handle, error) {
	r.mu.RLock()
	h, ok := r.handles[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound(apperrors.ErrCodeIndexNotFound, fmt.Sprintf("index %d not found", id)).
			WithDetail(apperrors.DetailIndexID, fmt.Sprint(id))
	}
	return h, nil
}

// IndexIDs returns the registered ids in ascending order.
func (r *Registry) IndexIDs() []uint64 {
	r.mu.RLock()
	ids := make([]uint64, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Handles returns the registered handles ordered by id.
func (r *Registry) Handles() []*index.Handle {
	ids := r.IndexIDs()
	out := make([]*index.Handle, 0, len(ids))
	r.mu.RLock()
	for _, id := range ids {
		if h, ok := r.handles[id]; ok {
			out = append(out, h)
		}
	}
	r.mu.RUnlock()
	return out
}

// Len returns the number of registered indices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Recover opens every index directory of the account. Directories that fail
// to open are logged and skipped. It returns the number of indices opened.
func (r *Registry) Recover(ctx context.Context) (int, error) {
	entries, skipped, err := persist.Scan(r.account.dir)
	if err != nil {
		return 0, err
	}
	for _, name := range skipped {
		slog.Debug("recovery_entry_ignored", slog.Uint64("account_id", r.account.ID), slog.String("name", name))
	}

	opened := make([]engine.Index, len(entries))
	var g errgroup.Group
	g.SetLimit(r.opts.RecoveryWorkers)
	for i, e := range entries {
		g.Go(func() error {
			idx, err := r.engine.Open(ctx, e.Path)
			if err != nil {
				slog.Warn("index_recovery_failed",
					slog.Uint64("account_id", r.account.ID),
					slog.String("path", e.Path),
					slog.String("error", err.Error()))
				return nil
			}
			if idx.Meta().ID != e.ID {
				slog.Warn("index_recovery_failed",
					slog.Uint64("account_id", r.account.ID),
					slog.String("path", e.Path),
					slog.String("error", fmt.Sprintf("meta id %d does not match directory", idx.Meta().ID)))
				_ = idx.Close()
				return nil
			}
			opened[i] = idx
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	r.mu.Lock()
	for _, idx := range opened {
		if idx == nil {
			continue
		}
		r.handles[idx.Meta().ID] = index.NewHandle(idx, r.opts.Handle)
		n++
	}
	r.mu.Unlock()
	return n, nil
}

// closeAll retires the registry and closes every handle, ignoring handles
// that are already closed. Creates still in flight finish first; later
// creates are rejected.
func (r *Registry) closeAll(ctx context.Context) {
	r.mu.Lock()
	r.retired = true
	r.mu.Unlock()
	r.creating.Wait()

	for _, h := range r.Handles() {
		if h.Closed() {
			continue
		}
		if _, err := h.Close(ctx); err != nil {
			slog.Warn("index_close_failed",
				slog.Uint64("account_id", r.account.ID),
				slog.Uint64("index_id", h.ID()),
				slog.String("error", err.Error()))
		}
	}
}
