package storage

import (
	"context"
	"fmt"
)

// LimitStore wraps a Store and rejects values larger than MaxValueBytes.
//
// It models the quota of the browser's local storage area so the
// prune-and-retry path behaves the same on every backend.
type LimitStore struct {
	Store

	// MaxValueBytes is the largest value Set accepts. Zero disables the check.
	MaxValueBytes int64
}

// NewLimitStore wraps inner with a per-value size limit.
func NewLimitStore(inner Store, maxValueBytes int64) *LimitStore {
	return &LimitStore{Store: inner, MaxValueBytes: maxValueBytes}
}

// Set forwards to the wrapped store unless value exceeds the limit.
func (s *LimitStore) Set(ctx context.Context, key string, value []byte) error {
	if s.MaxValueBytes > 0 && int64(len(value)) > s.MaxValueBytes {
		return fmt.Errorf("failed to write %q (%d bytes, limit %d): %w",
			key, len(value), s.MaxValueBytes, ErrQuotaExceeded)
	}
	return s.Store.Set(ctx, key, value)
}
