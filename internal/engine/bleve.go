package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/blevesearch/bleve/v2"

	"github.com/Aman-CERP/seekhost/internal/persist"
)

const (
	// MetaFileName holds the index meta and schema next to the bleve directory.
	MetaFileName = "meta.json"
	bleveDirName = "bleve"

	keyNextID    = "seekhost.next_id"
	keyWatermark = "seekhost.watermark"
	keySynonyms  = "seekhost.synonyms"
	keyFilePfx   = "seekhost.file."
)

// metaFile is the content of meta.json.
type metaFile struct {
	Meta   Meta          `json:"meta"`
	Schema []SchemaField `json:"schema"`
}

// BleveEngine stores each index as a bleve scorch index.
type BleveEngine struct{}

// NewBleveEngine creates the bleve-backed engine.
func NewBleveEngine() *BleveEngine {
	return &BleveEngine{}
}

// Create implements Engine.
func (e *BleveEngine) Create(ctx context.Context, path string, meta Meta, schema []SchemaField, synonyms []Synonym) (Index, error) {
	meta = meta.withDefaults()
	if err := validateMeta(meta); err != nil {
		return nil, err
	}
	if err := ValidateSchema(schema); err != nil {
		return nil, err
	}
	if err := validateSynonyms(synonyms); err != nil {
		return nil, err
	}

	im, err := buildMapping(meta, schema)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	if err := persist.WriteJSON(filepath.Join(path, MetaFileName), metaFile{Meta: meta, Schema: schema}); err != nil {
		return nil, err
	}

	var idx bleve.Index
	if meta.AccessType == AccessRAM {
		idx, err = bleve.NewMemOnly(im)
	} else {
		idx, err = bleve.New(filepath.Join(path, bleveDirName), im)
	}
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}

	b := newBleveIndex(path, idx, meta, schema)
	if len(synonyms) > 0 {
		if _, err := b.SetSynonyms(synonyms); err != nil {
			_ = idx.Close()
			return nil, err
		}
	}
	return b, nil
}

// Open implements Engine. RAM indices keep nothing on disk and cannot be reopened.
func (e *BleveEngine) Open(ctx context.Context, path string) (Index, error) {
	var mf metaFile
	if err := persist.ReadJSON(filepath.Join(path, MetaFileName), &mf); err != nil {
		return nil, err
	}
	if mf.Meta.AccessType == AccessRAM {
		return nil, fmt.Errorf("index %d is held in memory only", mf.Meta.ID)
	}

	idx, err := bleve.Open(filepath.Join(path, bleveDirName))
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}

	b := newBleveIndex(path, idx, mf.Meta, mf.Schema)
	if err := b.loadInternal(); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return b, nil
}

var _ Engine = (*BleveEngine)(nil)

// bleveIndex implements Index. Its mutable state is only changed by writers,
// which the caller serializes against readers.
type bleveIndex struct {
	path   string
	index  bleve.Index
	meta   Meta
	schema []SchemaField
	fields map[string]SchemaField
	stored bool

	nextID    uint64
	watermark uint64

	synonyms   []Synonym
	expansions map[string][]string

	closed bool
}

func newBleveIndex(path string, idx bleve.Index, meta Meta, schema []SchemaField) *bleveIndex {
	b := &bleveIndex{
		path:       path,
		index:      idx,
		meta:       meta,
		schema:     schema,
		fields:     make(map[string]SchemaField, len(schema)),
		expansions: map[string][]string{},
	}
	for _, f := range schema {
		b.fields[f.Field] = f
		if f.Stored {
			b.stored = true
		}
	}
	return b
}

func (b *bleveIndex) loadInternal() error {
	var err error
	if b.nextID, err = b.getUint(keyNextID); err != nil {
		return err
	}
	if b.watermark, err = b.getUint(keyWatermark); err != nil {
		return err
	}
	raw, err := b.index.GetInternal([]byte(keySynonyms))
	if err != nil {
		return fmt.Errorf("read synonyms: %w", err)
	}
	if len(raw) > 0 {
		var syns []Synonym
		if err := json.Unmarshal(raw, &syns); err != nil {
			return fmt.Errorf("decode synonyms: %w", err)
		}
		b.applySynonyms(syns)
	}
	return nil
}

func (b *bleveIndex) getUint(key string) (uint64, error) {
	raw, err := b.index.GetInternal([]byte(key))
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	v, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

func encodeUint(v uint64) []byte {
	return []byte(strconv.FormatUint(v, 10))
}

func fileKey(id uint64) []byte {
	return []byte(keyFilePfx + docKey(id))
}

func (b *bleveIndex) Meta() Meta            { return b.meta }
func (b *bleveIndex) Schema() []SchemaField { return b.schema }
func (b *bleveIndex) Path() string          { return b.path }
func (b *bleveIndex) HasStoredFields() bool { return b.stored }

func (b *bleveIndex) DocCount() (uint64, error) {
	if b.closed {
		return 0, ErrClosed
	}
	return b.index.DocCount()
}

// Commit records the current next id as the visibility watermark. Batches
// are already durable when they return, so the watermark is the only state
// a commit changes.
func (b *bleveIndex) Commit(ctx context.Context) error {
	if b.closed {
		return ErrClosed
	}
	if err := b.index.SetInternal([]byte(keyWatermark), encodeUint(b.nextID)); err != nil {
		return fmt.Errorf("write watermark: %w", err)
	}
	b.watermark = b.nextID
	return nil
}

func (b *bleveIndex) Close() error {
	if b.closed {
		return ErrClosed
	}
	if err := b.Commit(context.Background()); err != nil {
		return err
	}
	b.closed = true
	if err := b.index.Close(); err != nil {
		return fmt.Errorf("close bleve index: %w", err)
	}
	return nil
}

func (b *bleveIndex) Delete() error {
	if !b.closed {
		b.closed = true
		_ = b.index.Close()
	}
	if err := os.RemoveAll(b.path); err != nil {
		return fmt.Errorf("remove index directory: %w", err)
	}
	return nil
}

var _ Index = (*bleveIndex)(nil)
