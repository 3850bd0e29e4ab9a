package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/swift-shaadi/gateway/internal/domain"
)

// OTPRepo holds pending OTPs keyed by phone number.
// It is only safe for single-process deployments; a restart drops every record.
type OTPRepo struct {
	mu    sync.Mutex
	items map[string]domain.OTPRecord
}

func NewOTPRepo() *OTPRepo {
	return &OTPRepo{items: make(map[string]domain.OTPRecord)}
}

// Put stores rec, replacing any record for the same phone.
func (r *OTPRepo) Put(_ context.Context, rec domain.OTPRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.CodeHash = append([]byte(nil), rec.CodeHash...)
	r.items[rec.Phone] = rec
	return nil
}

// Get returns a copy of the live record for phone. An expired record is
// deleted and reported as domain.ErrOTPExpired.
func (r *OTPRepo) Get(_ context.Context, phone string, now time.Time) (domain.OTPRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.items[phone]
	if !ok {
		return domain.OTPRecord{}, fmt.Errorf("otp lookup: %w", domain.ErrOTPNotFound)
	}
	if domain.Expired(rec.ExpiresAt, now) {
		delete(r.items, phone)
		return domain.OTPRecord{}, fmt.Errorf("otp lookup: %w", domain.ErrOTPExpired)
	}
	rec.CodeHash = append([]byte(nil), rec.CodeHash...)
	return rec, nil
}

// ConsumeIf deletes the record for phone only while it still carries
// codeHash. It returns false when the record was consumed or replaced since
// the caller read it.
func (r *OTPRepo) ConsumeIf(_ context.Context, phone string, codeHash []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.items[phone]
	if !ok || !bytes.Equal(rec.CodeHash, codeHash) {
		return false
	}
	delete(r.items, phone)
	return true
}

// Sweep deletes every expired record and returns how many it removed.
func (r *OTPRepo) Sweep(_ context.Context, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for phone, rec := range r.items {
		if domain.Expired(rec.ExpiresAt, now) {
			delete(r.items, phone)
			n++
		}
	}
	return n
}

// Len reports the number of stored records, expired or not.
func (r *OTPRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
