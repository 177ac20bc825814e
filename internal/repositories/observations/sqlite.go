package observations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/formulus/formulus-go/internal/common"
	"github.com/formulus/formulus-go/internal/dbx"
	"github.com/formulus/formulus-go/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx). Timestamps are stored as integer Unix milliseconds.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const observationColumns = `observation_id, form_type, form_version, data,
	created_at, updated_at, synced_at, deleted, geolocation, author, device_id`

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullableMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func geoToText(g *models.Geolocation) (any, error) {
	if g == nil {
		return nil, nil
	}
	b, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal geolocation: %w", err)
	}
	return string(b), nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, o *models.Observation) error {
	geo, err := geoToText(o.Geolocation)
	if err != nil {
		return err
	}

	query := `INSERT INTO observations (` + observationColumns + `)
			values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		o.ObservationID, o.FormType, o.FormVersion, string(o.Data),
		toMillis(o.CreatedAt), toMillis(o.UpdatedAt), nullableMillis(o.SyncedAt),
		o.Deleted, geo, o.Author, o.DeviceID)
	if err != nil {
		return fmt.Errorf("failed to insert observation: %w", err)
	}
	return nil
}

// Upsert overwrites every column except the primary key on conflict.
func (r *SQLiteRepository) Upsert(ctx context.Context, o *models.Observation) error {
	geo, err := geoToText(o.Geolocation)
	if err != nil {
		return err
	}

	query := `INSERT INTO observations (` + observationColumns + `)
			values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(observation_id) DO UPDATE SET
				form_type = excluded.form_type,
				form_version = excluded.form_version,
				data = excluded.data,
				created_at = excluded.created_at,
				updated_at = excluded.updated_at,
				synced_at = excluded.synced_at,
				deleted = excluded.deleted,
				geolocation = excluded.geolocation,
				author = excluded.author,
				device_id = excluded.device_id`
	_, err = r.db.ExecContext(ctx, query,
		o.ObservationID, o.FormType, o.FormVersion, string(o.Data),
		toMillis(o.CreatedAt), toMillis(o.UpdatedAt), nullableMillis(o.SyncedAt),
		o.Deleted, geo, o.Author, o.DeviceID)
	if err != nil {
		return fmt.Errorf("failed to upsert observation: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (*models.Observation, error) {
	var (
		o         models.Observation
		data      string
		createdAt int64
		updatedAt int64
		syncedAt  sql.NullInt64
		geo       sql.NullString
	)

	err := row.Scan(&o.ObservationID, &o.FormType, &o.FormVersion, &data,
		&createdAt, &updatedAt, &syncedAt, &o.Deleted, &geo, &o.Author, &o.DeviceID)
	if err != nil {
		return nil, err
	}

	o.Data = json.RawMessage(data)
	o.CreatedAt = fromMillis(createdAt)
	o.UpdatedAt = fromMillis(updatedAt)
	if syncedAt.Valid {
		t := fromMillis(syncedAt.Int64)
		o.SyncedAt = &t
	}
	if geo.Valid {
		var g models.Geolocation
		if err := json.Unmarshal([]byte(geo.String), &g); err != nil {
			return nil, fmt.Errorf("failed to unmarshal geolocation: %w", err)
		}
		o.Geolocation = &g
	}
	return &o, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations WHERE observation_id = ?`
	o, err := scanObservation(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select observation: %w", err)
	}
	return o, nil
}

func (r *SQLiteRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.Observation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select observations: %w", err)
	}
	defer rows.Close()

	var result []*models.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) ListByFormType(ctx context.Context, formType string) ([]*models.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations
			WHERE form_type = ? AND deleted = 0`
	return r.queryMany(ctx, query, formType)
}

func (r *SQLiteRepository) UpdateData(ctx context.Context, id string, data json.RawMessage, updatedAt time.Time) error {
	query := `UPDATE observations SET data = ?, updated_at = ? WHERE observation_id = ?`
	res, err := r.db.ExecContext(ctx, query, string(data), toMillis(updatedAt), id)
	if err != nil {
		return fmt.Errorf("failed to update observation: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) SoftDelete(ctx context.Context, id string, updatedAt time.Time) error {
	query := `UPDATE observations SET deleted = 1, updated_at = ?
			WHERE observation_id = ? AND deleted = 0`
	res, err := r.db.ExecContext(ctx, query, toMillis(updatedAt), id)
	if err != nil {
		return fmt.Errorf("failed to delete observation: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

const pendingWhere = `synced_at IS NULL OR updated_at > synced_at`

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]*models.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations WHERE ` + pendingWhere
	return r.queryMany(ctx, query)
}

func (r *SQLiteRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM observations WHERE `+pendingWhere).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending observations: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, ids []string, ts time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+1)
	args = append(args, toMillis(ts))
	for _, id := range ids {
		args = append(args, id)
	}

	// MAX guards against stamping a row synced with a timestamp older than a
	// local edit that happened mid-sync.
	query := `UPDATE observations SET synced_at = MAX(?, updated_at)
			WHERE observation_id IN (` + placeholders + `)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark observations synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM observations`); err != nil {
		return fmt.Errorf("failed to truncate observations: %w", err)
	}
	return nil
}
