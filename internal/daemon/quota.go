package daemon

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
	"github.com/Aman-CERP/seekhost/internal/index"
	"github.com/Aman-CERP/seekhost/internal/tenant"
)

// limiters keeps one token bucket per account, keyed by credential hash so a
// reused account id starts with a fresh bucket.
type limiters struct {
	mu      sync.Mutex
	buckets map[tenant.Hash128]*rate.Limiter
}

func newLimiters() *limiters {
	return &limiters{buckets: make(map[tenant.Hash128]*rate.Limiter)}
}

// allow takes one token from the account's bucket. A zero rate limit means
// unlimited.
func (l *limiters) allow(a *tenant.Account) error {
	if a.Quota.RateLimit <= 0 {
		return nil
	}

	l.mu.Lock()
	lim, ok := l.buckets[a.Hash]
	if !ok {
		burst := int(a.Quota.RateLimit)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(a.Quota.RateLimit), burst)
		l.buckets[a.Hash] = lim
	}
	l.mu.Unlock()

	if !lim.Allow() {
		return apperrors.New(apperrors.ErrCodeRateLimited,
			fmt.Sprintf("rate limit of %g requests per second exceeded", a.Quota.RateLimit), nil).
			WithDetail(apperrors.DetailAccountID, fmt.Sprint(a.ID))
	}
	return nil
}

func (l *limiters) forget(hash tenant.Hash128) {
	l.mu.Lock()
	delete(l.buckets, hash)
	l.mu.Unlock()
}

// checkIndices rejects a new index past Quota.IndicesMax.
func checkIndices(a *tenant.Account) error {
	if a.Quota.IndicesMax <= 0 {
		return nil
	}
	if n := a.Indices().Len(); n >= a.Quota.IndicesMax {
		return apperrors.New(apperrors.ErrCodeQuotaExceeded,
			fmt.Sprintf("account has %d of %d indices", n, a.Quota.IndicesMax), nil)
	}
	return nil
}

// checkDocuments rejects a batch that would take an index past
// Quota.DocumentsMax.
func checkDocuments(ctx context.Context, a *tenant.Account, h *index.Handle, adding int) error {
	if a.Quota.DocumentsMax <= 0 || adding == 0 {
		return nil
	}
	n, err := h.DocCount(ctx)
	if err != nil {
		return err
	}
	if n+uint64(adding) > uint64(a.Quota.DocumentsMax) {
		return apperrors.New(apperrors.ErrCodeQuotaExceeded,
			fmt.Sprintf("index %d holds %d documents, adding %d exceeds %d", h.ID(), n, adding, a.Quota.DocumentsMax), nil)
	}
	return nil
}
