// Package persist owns the on-disk layout shared by accounts and indices:
// crash-safe metadata writes, JSON loading, directory scans and the root lock.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
)

// TempSuffix ends the name of every temporary file written next to a
// target. Readers never look at files carrying it.
const TempSuffix = ".bak"

// renameRetry allows one retry of a failed rename before giving up. A
// vanished temp file will not come back.
var renameRetry = apperrors.RetryConfig{
	MaxRetries:   1,
	InitialDelay: 20 * time.Millisecond,
	MaxDelay:     20 * time.Millisecond,
	Multiplier:   1,
	Permanent:    os.IsNotExist,
}

// pathLocks serializes writers of the same target within the process.
// Other processes are kept out by RootLock.
var pathLocks sync.Map

func lockPath(path string) func() {
	v, _ := pathLocks.LoadOrStore(path, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// WriteFileAtomic replaces path with data so that a concurrent reader or a
// crash observes either the previous content or the new one, never a mix.
// Each write stages into its own temp file; stale temp files of earlier
// interrupted writes are removed once the rename succeeds.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	unlock := lockPath(path)
	defer unlock()

	dir, base := filepath.Dir(path), filepath.Base(path)
	f, err := os.CreateTemp(dir, base+".*"+TempSuffix)
	if err != nil {
		return apperrors.IOFailure(apperrors.ErrCodeFileWrite, fmt.Sprintf("create temp for %s", path), err)
	}
	tmpPath := f.Name()

	if err := f.Chmod(perm); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return apperrors.IOFailure(apperrors.ErrCodeFileWrite, fmt.Sprintf("chmod %s", tmpPath), err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return apperrors.IOFailure(apperrors.ErrCodeFileWrite, fmt.Sprintf("write %s", tmpPath), err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return apperrors.IOFailure(apperrors.ErrCodeFileWrite, fmt.Sprintf("sync %s", tmpPath), err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return apperrors.IOFailure(apperrors.ErrCodeFileWrite, fmt.Sprintf("close %s", tmpPath), err)
	}

	err = apperrors.Retry(context.Background(), renameRetry, func() error {
		return os.Rename(tmpPath, path)
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		return apperrors.IOFailure(apperrors.ErrCodeFileRename, fmt.Sprintf("rename %s", path), err).
			WithDetail(apperrors.DetailPath, path)
	}

	syncDir(dir)
	removeStaleTemps(path)
	return nil
}

// removeStaleTemps deletes leftovers of interrupted writes to path. It runs
// under the path lock, so no live temp file of this process matches.
func removeStaleTemps(path string) {
	dir, base := filepath.Dir(path), filepath.Base(path)
	items, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, item := range items {
		name := item.Name()
		if item.IsDir() || !strings.HasPrefix(name, base+".") || !strings.HasSuffix(name, TempSuffix) {
			continue
		}
		_ = os.Remove(filepath.Join(dir, name))
	}
}

// WriteJSON marshals v with indentation and writes it atomically.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperrors.InternalError(fmt.Sprintf("marshal %s", filepath.Base(path)), err)
	}
	return WriteFileAtomic(path, data, 0o644)
}

// ReadJSON loads path into v. A missing file is an IO error, undecodable
// content is reported as corrupt.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.IOFailure(apperrors.ErrCodeFileRead, fmt.Sprintf("read %s", path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.IOFailure(apperrors.ErrCodeFileCorrupt, fmt.Sprintf("decode %s", path), err).
			WithDetail(apperrors.DetailPath, path)
	}
	return nil
}

// syncDir flushes a directory entry after a rename. Failures are ignored:
// not every platform allows fsync on directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
