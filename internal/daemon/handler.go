package daemon

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"

	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
	"github.com/Aman-CERP/seekhost/internal/index"
	"github.com/Aman-CERP/seekhost/internal/tenant"
)

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// indexRef lets withIndex resolve any params type that embeds IndexRef.
func (r IndexRef) indexRef() IndexRef { return r }

// Handle dispatches one method.
func (d *Daemon) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	fn, ok := d.handlers[method]
	if !ok {
		return nil, &Error{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", method)}
	}
	return fn(ctx, params)
}

func (d *Daemon) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		MethodCreateAPIKey: d.createAPIKey,
		MethodDeleteAPIKey: d.deleteAPIKey,
		MethodCreateIndex:  d.createIndex,
		MethodListIndices:  d.listIndices,

		MethodDeleteIndex: withIndex(d, func(ctx context.Context, a *tenant.Account, h *index.Handle, p IndexRef) (any, error) {
			n, err := a.Indices().DeleteIndex(ctx, h.ID())
			return RemainingResult{Remaining: n}, err
		}),
		MethodCommitIndex: withIndex(d, func(ctx context.Context, _ *tenant.Account, h *index.Handle, _ IndexRef) (any, error) {
			n, err := h.Commit(ctx)
			return DocCountResult{IndexedDocCount: n}, err
		}),
		MethodCloseIndex: withIndex(d, func(ctx context.Context, _ *tenant.Account, h *index.Handle, _ IndexRef) (any, error) {
			n, err := h.Close(ctx)
			return DocCountResult{IndexedDocCount: n}, err
		}),
		MethodIndexStats: withIndex(d, func(ctx context.Context, _ *tenant.Account, h *index.Handle, _ IndexRef) (any, error) {
			return h.Stats(ctx)
		}),

		MethodIndexDocuments: withIndex(d, func(ctx context.Context, a *tenant.Account, h *index.Handle, p IndexDocumentsParams) (any, error) {
			if err := checkDocuments(ctx, a, h, len(p.Documents)); err != nil {
				return nil, err
			}
			n, err := h.IndexDocuments(ctx, p.Documents)
			return DocCountResult{IndexedDocCount: n}, err
		}),
		MethodUpdateDocuments: withIndex(d, func(ctx context.Context, _ *tenant.Account, h *index.Handle, p UpdateDocumentsParams) (any, error) {
			n, err := h.UpdateDocuments(ctx, p.Documents)
			return DocCountResult{IndexedDocCount: n}, err
		}),
		MethodDeleteDocuments: withIndex(d, func(ctx context.Context, _ *tenant.Account, h *index.Handle, p DeleteDocumentsParams) (any, error) {
			n, err := h.DeleteDocuments(ctx, p.DocumentIDs)
			return DocCountResult{IndexedDocCount: n}, err
		}),
		MethodDeleteByQuery: withIndex(d, func(ctx context.Context, _ *tenant.Account, h *index.Handle, p SearchParams) (any, error) {
			n, err := h.DeleteDocumentsByQuery(ctx, p.SearchRequest)
			return DocCountResult{IndexedDocCount: n}, err
		}),
		MethodSearch: withIndex(d, func(ctx context.Context, _ *tenant.Account, h *index.Handle, p SearchParams) (any, error) {
			return h.Search(ctx, p.SearchRequest)
		}),
		MethodGetDocument: withIndex(d, func(ctx context.Context, _ *tenant.Account, h *index.Handle, p GetDocumentParams) (any, error) {
			doc, ok := h.GetDocument(ctx, p.DocumentID, p.GetDocumentRequest)
			if !ok {
				return nil, documentNotFound(h, p.DocumentID)
			}
			return doc, nil
		}),
		MethodGetFile: withIndex(d, func(ctx context.Context, _ *tenant.Account, h *index.Handle, p GetFileParams) (any, error) {
			data, ok := h.GetFile(ctx, p.DocumentID)
			if !ok {
				return nil, documentNotFound(h, p.DocumentID)
			}
			return FileResult{Data: data}, nil
		}),
		MethodIndexFile: withIndex(d, func(ctx context.Context, a *tenant.Account, h *index.Handle, p IndexFileParams) (any, error) {
			if len(p.Data) == 0 {
				return nil, apperrors.ValidationError("file data is empty", nil)
			}
			if err := checkDocuments(ctx, a, h, 1); err != nil {
				return nil, err
			}
			n, err := h.IndexFile(ctx, p.Path, p.Date, p.Data)
			return DocCountResult{IndexedDocCount: n}, err
		}),

		MethodGetSynonyms: withIndex(d, func(ctx context.Context, _ *tenant.Account, h *index.Handle, _ IndexRef) (any, error) {
			syn, err := h.Synonyms(ctx)
			return SynonymsResult{Synonyms: syn, Count: len(syn)}, err
		}),
		MethodSetSynonyms: withIndex(d, func(ctx context.Context, _ *tenant.Account, h *index.Handle, p SynonymsParams) (any, error) {
			n, err := h.SetSynonyms(ctx, p.Synonyms)
			return SynonymsResult{Count: n}, err
		}),
		MethodAddSynonyms: withIndex(d, func(ctx context.Context, _ *tenant.Account, h *index.Handle, p SynonymsParams) (any, error) {
			n, err := h.AddSynonyms(ctx, p.Synonyms)
			return SynonymsResult{Count: n}, err
		}),
	}
}

// withIndex decodes params, authenticates the caller and resolves the index
// before calling fn.
func withIndex[P interface{ indexRef() IndexRef }](
	d *Daemon,
	fn func(context.Context, *tenant.Account, *index.Handle, P) (any, error),
) handlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		p, err := decode[P](raw)
		if err != nil {
			return nil, err
		}
		ref := p.indexRef()
		a, err := d.account(ref.Auth)
		if err != nil {
			return nil, err
		}
		h, err := a.Indices().Index(ref.IndexID)
		if err != nil {
			return nil, err
		}
		return fn(ctx, a, h, p)
	}
}

// decode unmarshals params into P. Missing params decode to the zero value.
func decode[P any](raw json.RawMessage) (P, error) {
	var p P
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, &Error{Code: ErrCodeInvalidParams, Message: fmt.Sprintf("failed to decode params: %v", err)}
	}
	return p, nil
}

// account authenticates the apikey and takes a rate limit token.
func (d *Daemon) account(auth Auth) (*tenant.Account, error) {
	if auth.APIKey == "" {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "apikey is required", nil)
	}
	a, err := d.store.LookupAPIKey(auth.APIKey)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "unknown apikey", nil)
		}
		return nil, err
	}
	if err := d.limits.allow(a); err != nil {
		return nil, err
	}
	return a, nil
}

func (d *Daemon) checkMasterKey(key string) error {
	if d.cfg.MasterKey == "" {
		return apperrors.New(apperrors.ErrCodeUnauthorized, "master key is not configured", nil)
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(d.cfg.MasterKey)) != 1 {
		return apperrors.New(apperrors.ErrCodeUnauthorized, "invalid master key", nil)
	}
	return nil
}

func (d *Daemon) createAPIKey(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decode[CreateAPIKeyParams](raw)
	if err != nil {
		return nil, err
	}
	if err := d.checkMasterKey(p.MasterKey); err != nil {
		return nil, err
	}
	quota := d.cfg.Quota
	if p.Quota != nil {
		quota = *p.Quota
	}
	a, secret, err := d.store.Create(ctx, quota)
	if err != nil {
		return nil, err
	}
	return CreateAPIKeyResult{ID: a.ID, APIKey: secret}, nil
}

func (d *Daemon) deleteAPIKey(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decode[DeleteAPIKeyParams](raw)
	if err != nil {
		return nil, err
	}
	if err := d.checkMasterKey(p.MasterKey); err != nil {
		return nil, err
	}
	hash, err := tenant.ParseAPIKey(p.APIKey)
	if err != nil {
		return nil, err
	}
	n, err := d.store.Delete(ctx, hash)
	if err != nil {
		return nil, err
	}
	d.limits.forget(hash)
	return RemainingResult{Remaining: n}, nil
}

func (d *Daemon) createIndex(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decode[CreateIndexParams](raw)
	if err != nil {
		return nil, err
	}
	a, err := d.account(p.Auth)
	if err != nil {
		return nil, err
	}
	if err := checkIndices(a); err != nil {
		return nil, err
	}
	req := p.CreateIndexRequest
	if req.Similarity == "" {
		req.Similarity = d.cfg.Similarity
	}
	if req.Tokenizer == "" {
		req.Tokenizer = d.cfg.Tokenizer
	}
	id, err := a.Indices().CreateIndex(ctx, req)
	if err != nil {
		return nil, err
	}
	return CreateIndexResult{IndexID: id}, nil
}

// listIndices reports stats for open indices and the name of closed ones.
func (d *Daemon) listIndices(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decode[Auth](raw)
	if err != nil {
		return nil, err
	}
	a, err := d.account(p)
	if err != nil {
		return nil, err
	}
	out := []index.Stats{}
	for _, h := range a.Indices().Handles() {
		st, err := h.Stats(ctx)
		if err != nil {
			if !apperrors.IsNotFound(err) {
				return nil, err
			}
			m := h.Meta()
			st = &index.Stats{ID: m.ID, Name: m.Name, Similarity: m.Similarity, Tokenizer: m.Tokenizer}
		}
		out = append(out, *st)
	}
	return out, nil
}

func documentNotFound(h *index.Handle, id uint64) error {
	return apperrors.NotFound(apperrors.ErrCodeDocumentNotFound,
		fmt.Sprintf("document %d not found in index %d", id, h.ID())).
		WithDetail(apperrors.DetailIndexID, fmt.Sprint(h.ID())).
		WithDetail(apperrors.DetailDocumentID, fmt.Sprint(id))
}
