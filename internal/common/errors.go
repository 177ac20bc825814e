// Package common defines shared constants and sentinel errors used across
// the Formulus sync core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Remote call classification.
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("server unavailable")

	// ErrAuthenticationFailed means the one-shot re-login also failed and
	// manual login is required.
	ErrAuthenticationFailed = errors.New("authentication failed, manual login required")

	// ErrNoCredentials means no username/password pair is cached locally.
	ErrNoCredentials = errors.New("no cached credentials")

	// Sync outcomes. ErrSyncCancelled marks a user-requested stop, not a
	// failure; callers must not report it as an error.
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrSyncCancelled  = errors.New("sync cancelled")
)
