// Package api implements the client side of the Synkronus REST API:
// manifest fetch, incremental pull, push, attachment upload, bundle file
// download and the auth endpoints.
package api

import (
	"context"

	"github.com/formulus/formulus-go/internal/models"
)

// Client is the remote API surface the sync services talk through. Errors
// from any call are classified: an HTTP 401 comes back wrapped around
// common.ErrUnauthorized so the auth gate can recognize it.
type Client interface {
	// GetManifest fetches the app-bundle descriptor.
	GetManifest(ctx context.Context) (*models.Manifest, error)

	// Pull fetches records changed since the given version cursor.
	Pull(ctx context.Context, req *models.PullRequest) (*models.PullResponse, error)

	// Push uploads locally pending records.
	Push(ctx context.Context, req *models.PushRequest) (*models.PushResponse, error)

	// UploadAttachment streams one queued file to the server.
	UploadAttachment(ctx context.Context, name string, path string) error

	// DownloadFile fetches one bundle file into destPath.
	DownloadFile(ctx context.Context, remotePath string, destPath string) error

	// Login exchanges credentials for a token pair.
	Login(ctx context.Context, creds models.Credentials) (*models.TokenPair, error)

	// Refresh exchanges a refresh token for a fresh token pair.
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)

	// SetToken installs the bearer token attached to subsequent calls.
	// An empty string clears it.
	SetToken(token string)

	// SetBaseURL re-points the client, used by the server-switch reset.
	SetBaseURL(url string)
}
