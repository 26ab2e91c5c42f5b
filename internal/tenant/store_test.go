package tenant

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/seekhost/internal/engine"
	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
	"github.com/Aman-CERP/seekhost/internal/index"
	"github.com/Aman-CERP/seekhost/internal/persist"
)

func newTestStore(t *testing.T, root string) *Store {
	t.Helper()
	s := NewStore(root, engine.NewBleveEngine(), DefaultOptions())
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func testIndexRequest(name string) CreateIndexRequest {
	return CreateIndexRequest{
		IndexName: name,
		Schema: []engine.SchemaField{
			{Field: "title", Type: engine.FieldText, Stored: true, Indexed: true},
		},
	}
}

func TestStore_CreateLookupDelete(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := newTestStore(t, root)

	// When: creating an account
	a, secret, err := s.Create(ctx, Quota{IndicesMax: 3, RateLimit: 5})
	require.NoError(t, err)

	// Then: it is persisted and resolvable by its secret
	assert.Equal(t, uint64(0), a.ID)
	assert.FileExists(t, filepath.Join(root, "0", AccountFileName))
	got, err := s.LookupAPIKey(secret)
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Equal(t, 3, got.Quota.IndicesMax)

	// And: a wrong secret is rejected
	_, err = s.LookupAPIKey("bm90LXRoZS1rZXk=")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = s.LookupAPIKey("%%%")
	assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(err))

	// When: deleting
	remaining, err := s.Delete(ctx, a.Hash)
	require.NoError(t, err)
	assert.Zero(t, remaining)
	assert.NoDirExists(t, filepath.Join(root, "0"))

	_, err = s.Delete(ctx, a.Hash)
	assert.True(t, apperrors.IsNotFound(err))
}

// TS01: the smallest freed id is reused, siblings keep theirs
func TestStore_ReusesSmallestFreeID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, t.TempDir())

	// Given: accounts 0, 1, 2
	var accounts []*Account
	for i := 0; i < 3; i++ {
		a, _, err := s.Create(ctx, Quota{})
		require.NoError(t, err)
		accounts = append(accounts, a)
	}

	// When: account 1 is deleted and a new one created
	remaining, err := s.Delete(ctx, accounts[1].Hash)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
	a, _, err := s.Create(ctx, Quota{})
	require.NoError(t, err)

	// Then: the new account takes id 1 and the others are untouched
	assert.Equal(t, uint64(1), a.ID)
	ids := []uint64{}
	for _, acc := range s.Accounts() {
		ids = append(ids, acc.ID)
	}
	assert.Equal(t, []uint64{0, 1, 2}, ids)
}

func TestRegistry_ReusesSmallestFreeIndexID(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := newTestStore(t, root)
	a, _, err := s.Create(ctx, Quota{})
	require.NoError(t, err)
	reg := a.Indices()

	for i := 0; i < 3; i++ {
		id, err := reg.CreateIndex(ctx, testIndexRequest("idx"))
		require.NoError(t, err)
		assert.Equal(t, uint64(i), id)
	}

	remaining, err := reg.DeleteIndex(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
	assert.NoDirExists(t, filepath.Join(root, "0", "1"))

	id, err := reg.CreateIndex(ctx, testIndexRequest("again"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, []uint64{0, 1, 2}, reg.IndexIDs())

	// The persisted index list follows the registry
	var f accountFile
	require.NoError(t, persist.ReadJSON(filepath.Join(root, "0", AccountFileName), &f))
	assert.Equal(t, []uint64{0, 1, 2}, f.IndexList)
	assert.Equal(t, a.Hash, f.Hash)

	_, err = reg.DeleteIndex(ctx, 9)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = reg.Index(9)
	assert.Equal(t, apperrors.ErrCodeIndexNotFound, apperrors.GetCode(err))
}

func TestRegistry_CreateIndexRejectsBadSchema(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := newTestStore(t, root)
	a, _, err := s.Create(ctx, Quota{})
	require.NoError(t, err)

	_, err = a.Indices().CreateIndex(ctx, CreateIndexRequest{IndexName: "bad"})

	require.Error(t, err)
	assert.True(t, apperrors.IsEngineFailure(err))
	assert.Zero(t, a.Indices().Len())
	assert.NoDirExists(t, filepath.Join(root, "0", "0"))
}

func TestStore_RecoverRestoresAccountsAndIndices(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	// Given: a store with one account holding an index with a committed document
	first := NewStore(root, engine.NewBleveEngine(), DefaultOptions())
	a, secret, err := first.Create(ctx, Quota{DocumentsMax: 10})
	require.NoError(t, err)
	id, err := a.Indices().CreateIndex(ctx, testIndexRequest("books"))
	require.NoError(t, err)
	h, err := a.Indices().Index(id)
	require.NoError(t, err)
	_, err = h.IndexDocument(ctx, engine.Document{"title": "dune"})
	require.NoError(t, err)
	first.Close(ctx)

	// When: a fresh store recovers the root
	second := newTestStore(t, root)
	ok, err := second.Recover(ctx)

	// Then: the account, its quota and its index are back
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := second.LookupAPIKey(secret)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Quota.DocumentsMax)

	h, err = got.Indices().Index(id)
	require.NoError(t, err)
	assert.Equal(t, "books", h.Meta().Name)
	res, err := h.Search(ctx, index.SearchRequest{Query: "dune"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.CountTotal)
}

// TS06: one corrupt account does not stop recovery of the others
func TestStore_RecoverSkipsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	// Given: three accounts on disk, one with a corrupt apikey.json
	seed := NewStore(root, engine.NewBleveEngine(), DefaultOptions())
	for i := 0; i < 3; i++ {
		_, _, err := seed.Create(ctx, Quota{})
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "1", AccountFileName), []byte("{broken"), 0o644))

	// And: noise that is not an account
	require.NoError(t, os.Mkdir(filepath.Join(root, "scratch"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "7"), 0o755))

	// When: recovering
	s := newTestStore(t, root)
	ok, err := s.Recover(ctx)

	// Then: exactly the two intact accounts are registered
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, s.Len())
	ids := []uint64{}
	for _, a := range s.Accounts() {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []uint64{0, 2}, ids)
}

func TestStore_RecoverEmptyRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "fresh")
	s := newTestStore(t, root)

	ok, err := s.Recover(context.Background())

	require.NoError(t, err)
	assert.False(t, ok)
	assert.DirExists(t, root)
}

func TestRegistry_RecoverSkipsBrokenIndex(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	seed := NewStore(root, engine.NewBleveEngine(), DefaultOptions())
	a, _, err := seed.Create(ctx, Quota{})
	require.NoError(t, err)
	_, err = a.Indices().CreateIndex(ctx, testIndexRequest("good"))
	require.NoError(t, err)
	seed.Close(ctx)

	// A directory that looks like an index but holds nothing
	require.NoError(t, os.Mkdir(filepath.Join(root, "0", "4"), 0o755))

	s := newTestStore(t, root)
	ok, err := s.Recover(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	acc := s.Accounts()[0]
	assert.Equal(t, []uint64{0}, acc.Indices().IndexIDs())
}

func TestRegistry_CreateIndexKeepsUnrecoveredDirectory(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	// Given: an account whose index 0 fails to reopen
	seed := NewStore(root, engine.NewBleveEngine(), DefaultOptions())
	a, _, err := seed.Create(ctx, Quota{})
	require.NoError(t, err)
	_, err = a.Indices().CreateIndex(ctx, testIndexRequest("broken"))
	require.NoError(t, err)
	seed.Close(ctx)
	brokenDir := filepath.Join(root, "0", "0")
	require.NoError(t, os.WriteFile(filepath.Join(brokenDir, engine.MetaFileName), []byte("{broken"), 0o644))

	s := newTestStore(t, root)
	_, err = s.Recover(ctx)
	require.NoError(t, err)
	acc := s.Accounts()[0]
	require.Empty(t, acc.Indices().IndexIDs())

	// When: creating a new index
	id, err := acc.Indices().CreateIndex(ctx, testIndexRequest("fresh"))

	// Then: it takes the next id and the unrecovered data stays in place
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	assert.DirExists(t, filepath.Join(brokenDir, "bleve"))
	assert.FileExists(t, filepath.Join(brokenDir, engine.MetaFileName))
}

func TestStore_CreateSkipsUnrecoveredAccountDirectory(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	// Given: account 0 whose apikey.json is corrupt
	seed := NewStore(root, engine.NewBleveEngine(), DefaultOptions())
	_, _, err := seed.Create(ctx, Quota{})
	require.NoError(t, err)
	seed.Close(ctx)
	corrupt := filepath.Join(root, "0", AccountFileName)
	require.NoError(t, os.WriteFile(corrupt, []byte("{broken"), 0o644))

	s := newTestStore(t, root)
	ok, err := s.Recover(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// When: creating an account
	a, _, err := s.Create(ctx, Quota{})

	// Then: the corrupt directory is left untouched
	require.NoError(t, err)
	assert.Equal(t, uint64(1), a.ID)
	data, err := os.ReadFile(corrupt)
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(data))
}

func TestRegistry_CreateIndexAfterAccountDeleteFails(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := newTestStore(t, root)

	// Given: a request that resolved the account before it was deleted
	a, _, err := s.Create(ctx, Quota{})
	require.NoError(t, err)
	reg := a.Indices()
	_, err = s.Delete(ctx, a.Hash)
	require.NoError(t, err)

	// When: the stale request creates an index
	_, err = reg.CreateIndex(ctx, testIndexRequest("late"))

	// Then: it is rejected and nothing is recreated on disk
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoDirExists(t, filepath.Join(root, "0"))
}

func TestAccount_ConcurrentIndexChangesKeepIndexList(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := newTestStore(t, root)
	a, _, err := s.Create(ctx, Quota{})
	require.NoError(t, err)

	// When: several indices are created concurrently
	const n = 6
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := a.Indices().CreateIndex(ctx, testIndexRequest("parallel"))
			return err
		})
	}
	require.NoError(t, g.Wait())

	// Then: apikey.json lists every index
	var f accountFile
	require.NoError(t, persist.ReadJSON(filepath.Join(root, "0", AccountFileName), &f))
	assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5}, f.IndexList)
}

func TestHash128_TextRoundTrip(t *testing.T) {
	secret, hash, err := NewAPIKey()
	require.NoError(t, err)

	parsed, err := ParseAPIKey(secret)
	require.NoError(t, err)
	assert.Equal(t, hash, parsed)

	text, err := hash.MarshalText()
	require.NoError(t, err)
	var back Hash128
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, hash, back)

	assert.Error(t, back.UnmarshalText([]byte("abcd")))
}
