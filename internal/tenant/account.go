// Package tenant keeps apikey accounts and the indices each of them owns.
package tenant

import (
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Aman-CERP/seekhost/internal/persist"
)

// AccountFileName holds an account's persisted metadata inside its directory.
const AccountFileName = "apikey.json"

// Quota limits an account. The core only persists it; the serving layer
// enforces it.
type Quota struct {
	IndicesMax    int     `json:"indices_max" yaml:"indices_max"`
	IndexSizeMax  int64   `json:"index_size_max" yaml:"index_size_max"`
	DocumentsMax  int     `json:"documents_max" yaml:"documents_max"`
	OperationsMax int     `json:"operations_max" yaml:"operations_max"`
	RateLimit     float64 `json:"rate_limit" yaml:"rate_limit"`
}

// Account is one tenant: an id, the hash of its secret, its quota and its
// index registry.
type Account struct {
	ID    uint64
	Hash  Hash128
	Quota Quota

	dir     string
	indices *Registry
	saveMu  sync.Mutex
}

// accountFile is the content of apikey.json.
type accountFile struct {
	ID        uint64   `json:"id"`
	Hash      Hash128  `json:"apikey_hash"`
	Quota     Quota    `json:"quota"`
	IndexList []uint64 `json:"index_list"`
}

// Indices returns the account's index registry.
func (a *Account) Indices() *Registry { return a.indices }

// Dir returns the account directory.
func (a *Account) Dir() string { return a.dir }

// save persists the account metadata with the current index list. Saves
// are serialized so the last one written carries the latest list.
func (a *Account) save() error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	ids := []uint64{}
	if a.indices != nil {
		ids = a.indices.IndexIDs()
	}
	return persist.WriteJSON(filepath.Join(a.dir, AccountFileName), accountFile{
		ID:        a.ID,
		Hash:      a.Hash,
		Quota:     a.Quota,
		IndexList: ids,
	})
}

// saveQuietly persists metadata after an index change. The index list is
// advisory, recovery scans directories, so a failure is logged only.
func (a *Account) saveQuietly() {
	if err := a.save(); err != nil {
		slog.Warn("account_metadata_save_failed",
			slog.Uint64("account_id", a.ID),
			slog.String("error", err.Error()))
	}
}

// smallestFree returns the smallest id not in used.
func smallestFree(used map[uint64]struct{}) uint64 {
	ids := make([]uint64, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var next uint64
	for _, id := range ids {
		if id != next {
			break
		}
		next++
	}
	return next
}
