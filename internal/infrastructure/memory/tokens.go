package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/swift-shaadi/gateway/internal/domain"
)

// TokenRepo holds verification tokens minted after a successful OTP check.
type TokenRepo struct {
	mu    sync.Mutex
	items map[string]domain.VerificationToken
}

func NewTokenRepo() *TokenRepo {
	return &TokenRepo{items: make(map[string]domain.VerificationToken)}
}

func (r *TokenRepo) Put(_ context.Context, t domain.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[t.Token] = t
	return nil
}

// Acquire reserves one exchange on token and returns the updated record.
// Unknown, expired and exhausted tokens are all domain.ErrTokenInvalid; the
// latter two are deleted.
func (r *TokenRepo) Acquire(_ context.Context, token string, now time.Time, maxUses int) (domain.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[token]
	if !ok {
		return domain.VerificationToken{}, fmt.Errorf("token lookup: %w", domain.ErrTokenInvalid)
	}
	if domain.Expired(t.ExpiresAt, now) {
		delete(r.items, token)
		return domain.VerificationToken{}, fmt.Errorf("token expired: %w", domain.ErrTokenInvalid)
	}
	if maxUses > 0 && t.Uses >= maxUses {
		delete(r.items, token)
		return domain.VerificationToken{}, fmt.Errorf("token exhausted after %d exchanges: %w", t.Uses, domain.ErrTokenInvalid)
	}
	t.Uses++
	r.items[token] = t
	return t, nil
}

func (r *TokenRepo) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, token)
	return nil
}

// Sweep deletes every expired token and returns how many it removed.
func (r *TokenRepo) Sweep(_ context.Context, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, t := range r.items {
		if domain.Expired(t.ExpiresAt, now) {
			delete(r.items, k)
			n++
		}
	}
	return n
}

func (r *TokenRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
