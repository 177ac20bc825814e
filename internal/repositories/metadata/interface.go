// Package metadata persists the client's scalar state: sync cursors,
// cached credentials, tokens and the configured server URL. Values are
// opaque bytes to this layer; key names live in internal/common.
package metadata

import "context"

// Repository is a durable key/value store. Get returns (nil, nil) for a
// missing key so callers can distinguish "absent" without a sentinel error.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error

	// GetInt64 parses the stored value as a decimal integer, returning 0
	// for a missing key.
	GetInt64(ctx context.Context, key string) (int64, error)
	SetInt64(ctx context.Context, key string, value int64) error
}
