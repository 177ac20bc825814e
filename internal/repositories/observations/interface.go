// Package observations persists the local observation table. A row is
// "pending" when it has never been synced or was edited after its last sync;
// pending rows are what push uploads and what the UI counts as unsynced.
package observations

import (
	"context"
	"encoding/json"
	"time"

	"github.com/formulus/formulus-go/internal/models"
)

// Repository is the storage contract for observations. Implementations bound
// to a dbx.DBTX can run either directly on the database or inside a
// transaction opened by the caller.
type Repository interface {
	// Insert adds a new row. Fails if the id already exists.
	Insert(ctx context.Context, o *models.Observation) error

	// Upsert inserts or fully overwrites the row with the same id.
	Upsert(ctx context.Context, o *models.Observation) error

	// GetByID returns common.ErrNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (*models.Observation, error)

	// ListByFormType returns non-deleted observations of one form type.
	ListByFormType(ctx context.Context, formType string) ([]*models.Observation, error)

	// UpdateData overwrites the payload and bumps updated_at. Returns
	// common.ErrNotFound when the id is unknown.
	UpdateData(ctx context.Context, id string, data json.RawMessage, updatedAt time.Time) error

	// SoftDelete tombstones the row and bumps updated_at. Returns
	// common.ErrNotFound when the id is unknown or already deleted.
	SoftDelete(ctx context.Context, id string, updatedAt time.Time) error

	// ListPending returns every row whose local edits the server has not
	// seen, tombstones included.
	ListPending(ctx context.Context) ([]*models.Observation, error)

	// CountPending counts pending rows without loading them.
	CountPending(ctx context.Context) (int, error)

	// MarkSynced records a successful push of the given ids. The stored
	// synced_at is max(ts, updated_at) per row, so an edit that raced the
	// push keeps the row pending.
	MarkSynced(ctx context.Context, ids []string, ts time.Time) error

	// DeleteAll physically truncates the table. Only the server-switch
	// reset calls this.
	DeleteAll(ctx context.Context) error
}
