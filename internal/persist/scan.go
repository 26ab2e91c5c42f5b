package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
)

// Entry is a numbered subdirectory found by Scan.
type Entry struct {
	ID   uint64
	Path string
}

// Scan lists the subdirectories of dir whose names are decimal ids, sorted by
// id. Other entries are reported through skipped so callers can log them.
func Scan(dir string) (entries []Entry, skipped []string, err error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, apperrors.IOFailure(apperrors.ErrCodeFileRead, fmt.Sprintf("scan %s", dir), err)
	}

	for _, item := range items {
		if !item.IsDir() {
			continue
		}
		id, err := strconv.ParseUint(item.Name(), 10, 64)
		if err != nil {
			skipped = append(skipped, item.Name())
			continue
		}
		entries = append(entries, Entry{ID: id, Path: filepath.Join(dir, item.Name())})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, skipped, nil
}

// IDPath returns the directory for a numbered entry under dir.
func IDPath(dir string, id uint64) string {
	return filepath.Join(dir, strconv.FormatUint(id, 10))
}

// EnsureDir creates dir and its parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.IOFailure(apperrors.ErrCodeDirCreate, fmt.Sprintf("create %s", dir), err)
	}
	return nil
}

// CreateDir creates dir inside an existing parent. It fails with
// ErrCodeDirExists when dir is already present, so callers never adopt a
// directory they did not create.
func CreateDir(dir string) error {
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return apperrors.IOFailure(apperrors.ErrCodeDirExists, fmt.Sprintf("%s already exists", dir), err).
				WithDetail(apperrors.DetailPath, dir)
		}
		return apperrors.IOFailure(apperrors.ErrCodeDirCreate, fmt.Sprintf("create %s", dir), err)
	}
	return nil
}

// ScanIDs returns the ids of the numbered subdirectories of dir. A missing
// dir yields no ids.
func ScanIDs(dir string) (map[uint64]struct{}, error) {
	entries, _, err := Scan(dir)
	if err != nil {
		if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
			return map[uint64]struct{}{}, nil
		}
		return nil, err
	}
	ids := make(map[uint64]struct{}, len(entries))
	for _, e := range entries {
		ids[e.ID] = struct{}{}
	}
	return ids, nil
}

// RemoveDir deletes dir recursively.
func RemoveDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return apperrors.IOFailure(apperrors.ErrCodeDirRemove, fmt.Sprintf("remove %s", dir), err)
	}
	return nil
}
