package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Aman-CERP/seekhost/internal/engine"
	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
	"github.com/Aman-CERP/seekhost/internal/index"
	"github.com/Aman-CERP/seekhost/internal/persist"
)

// DefaultRecoveryWorkers bounds how many indices are opened at once.
const DefaultRecoveryWorkers = 4

// Options tunes a Store.
type Options struct {
	RecoveryWorkers int
	Handle          index.Options
}

// DefaultOptions returns the store defaults.
func DefaultOptions() Options {
	return Options{
		RecoveryWorkers: DefaultRecoveryWorkers,
		Handle:          index.DefaultOptions(),
	}
}

// Store maps credential hashes to accounts under one root directory. Its
// lock only guards the account map.
type Store struct {
	root   string
	engine engine.Engine
	opts   Options

	mu       sync.RWMutex
	accounts map[Hash128]*Account
	reserved map[uint64]struct{}
}

// NewStore creates an empty store over root. Call Recover to load existing accounts.
func NewStore(root string, eng engine.Engine, opts Options) *Store {
	if opts.RecoveryWorkers <= 0 {
		opts.RecoveryWorkers = DefaultRecoveryWorkers
	}
	return &Store{
		root:     root,
		engine:   eng,
		opts:     opts,
		accounts: make(map[Hash128]*Account),
		reserved: make(map[uint64]struct{}),
	}
}

// Root returns the storage root.
func (s *Store) Root() string { return s.root }

func (s *Store) newAccount(id uint64, hash Hash128, quota Quota) *Account {
	a := &Account{
		ID:    id,
		Hash:  hash,
		Quota: quota,
		dir:   persist.IDPath(s.root, id),
	}
	a.indices = newRegistry(a, s.engine, s.opts)
	return a
}

// Create makes a new account under the smallest free id. Ids of account
// directories left on disk, including ones recovery skipped, are not free.
// The returned secret is base64 encoded and is not kept anywhere.
func (s *Store) Create(ctx context.Context, quota Quota) (*Account, string, error) {
	secret, hash, err := NewAPIKey()
	if err != nil {
		return nil, "", err
	}

	onDisk, err := persist.ScanIDs(s.root)
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	used := onDisk
	for _, a := range s.accounts {
		used[a.ID] = struct{}{}
	}
	for id := range s.reserved {
		used[id] = struct{}{}
	}
	id := smallestFree(used)
	s.reserved[id] = struct{}{}
	s.mu.Unlock()

	defer s.unreserve(id)

	if err := persist.EnsureDir(s.root); err != nil {
		return nil, "", err
	}
	a := s.newAccount(id, hash, quota)
	if err := persist.CreateDir(a.dir); err != nil {
		return nil, "", err
	}
	if err := a.save(); err != nil {
		_ = persist.RemoveDir(a.dir)
		return nil, "", err
	}

	s.mu.Lock()
	s.accounts[hash] = a
	s.mu.Unlock()

	slog.Info("apikey_created", slog.Uint64("account_id", id))
	return a, secret, nil
}

func (s *Store) unreserve(id uint64) {
	s.mu.Lock()
	delete(s.reserved, id)
	s.mu.Unlock()
}

// Delete closes the account's indices, removes its directory and returns
// the number of remaining accounts. The id is not reused until the
// directory is gone.
func (s *Store) Delete(ctx context.Context, hash Hash128) (int, error) {
	s.mu.Lock()
	a, ok := s.accounts[hash]
	if !ok {
		s.mu.Unlock()
		return 0, apperrors.NotFound(apperrors.ErrCodeApikeyNotFound, "apikey not found")
	}
	delete(s.accounts, hash)
	s.reserved[a.ID] = struct{}{}
	s.mu.Unlock()

	defer s.unreserve(a.ID)

	a.indices.closeAll(ctx)
	if err := persist.RemoveDir(a.dir); err != nil {
		s.mu.Lock()
		s.accounts[hash] = a
		s.mu.Unlock()
		return 0, err
	}

	s.mu.RLock()
	remaining := len(s.accounts)
	s.mu.RUnlock()

	slog.Info("apikey_deleted", slog.Uint64("account_id", a.ID), slog.Int("remaining", remaining))
	return remaining, nil
}

// Lookup resolves an account by credential hash.
func (s *Store) Lookup(hash Hash128) (*Account, error) {
	s.mu.RLock()
	a, ok := s.accounts[hash]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound(apperrors.ErrCodeApikeyNotFound, "apikey not found")
	}
	return a, nil
}

// LookupAPIKey resolves an account by its base64 secret.
func (s *Store) LookupAPIKey(encoded string) (*Account, error) {
	hash, err := ParseAPIKey(encoded)
	if err != nil {
		return nil, err
	}
	return s.Lookup(hash)
}

// Len returns the number of accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Accounts returns every account ordered by id.
func (s *Store) Accounts() []*Account {
	s.mu.RLock()
	out := make([]*Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Recover loads every account directory under root and reopens its indices.
// Entries with a missing or corrupt apikey.json are logged and skipped. It
// reports whether at least one account was loaded; only an unreadable root
// is an error.
func (s *Store) Recover(ctx context.Context) (bool, error) {
	if err := persist.EnsureDir(s.root); err != nil {
		return false, err
	}
	entries, skipped, err := persist.Scan(s.root)
	if err != nil {
		return false, err
	}
	for _, name := range skipped {
		slog.Debug("recovery_entry_ignored", slog.String("name", name))
	}

	recovered := 0
	for _, e := range entries {
		var f accountFile
		if err := persist.ReadJSON(filepath.Join(e.Path, AccountFileName), &f); err != nil {
			slog.Warn("account_recovery_failed", slog.String("path", e.Path), slog.String("error", err.Error()))
			continue
		}
		if f.ID != e.ID {
			slog.Warn("account_recovery_failed",
				slog.String("path", e.Path),
				slog.String("error", fmt.Sprintf("account id %d does not match directory", f.ID)))
			continue
		}

		s.mu.Lock()
		_, dup := s.accounts[f.Hash]
		s.mu.Unlock()
		if dup {
			slog.Warn("account_recovery_failed", slog.String("path", e.Path), slog.String("error", "duplicate apikey hash"))
			continue
		}

		a := s.newAccount(f.ID, f.Hash, f.Quota)
		n, err := a.indices.Recover(ctx)
		if err != nil {
			slog.Warn("account_recovery_failed", slog.String("path", e.Path), slog.String("error", err.Error()))
			continue
		}

		s.mu.Lock()
		s.accounts[f.Hash] = a
		s.mu.Unlock()
		recovered++
		slog.Info("account_recovered", slog.Uint64("account_id", a.ID), slog.Int("indices", n))
	}
	return recovered > 0, nil
}

// Close commits and closes every index of every account.
func (s *Store) Close(ctx context.Context) {
	for _, a := range s.Accounts() {
		a.indices.closeAll(ctx)
	}
}
