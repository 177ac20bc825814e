// Package store implements the observation store service: the data-model
// root every other component works through. It layers id generation,
// best-effort geolocation capture and the server-change reconciliation
// policy on top of the observations repository.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/formulus/formulus-go/internal/common"
	"github.com/formulus/formulus-go/internal/dbx"
	"github.com/formulus/formulus-go/internal/logging"
	"github.com/formulus/formulus-go/internal/models"
	"github.com/formulus/formulus-go/internal/repositories/observations"
	"github.com/google/uuid"
)

// Locator captures the device's current position. Implementations live in
// the platform layer; the store treats capture failure as non-fatal.
type Locator interface {
	Current(ctx context.Context) (*models.Geolocation, error)
}

const locateTimeout = 5 * time.Second

// SaveOptions carries the optional provenance fields of a new observation.
type SaveOptions struct {
	FormVersion string
	Author      string
	DeviceID    string
}

// ObservationStore is the service over the observation table.
type ObservationStore struct {
	db      *sql.DB
	repo    observations.Repository
	locator Locator
	schemas *SchemaCache
	log     logging.Logger
	now     func() time.Time
}

// New builds an ObservationStore. locator may be nil when the platform has
// no location hardware; log may be nil.
func New(db *sql.DB, repo observations.Repository, locator Locator, log logging.Logger) *ObservationStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ObservationStore{
		db:      db,
		repo:    repo,
		locator: locator,
		schemas: NewSchemaCache(),
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Schemas exposes the form-schema cache invalidated on bundle updates.
func (s *ObservationStore) Schemas() *SchemaCache { return s.schemas }

// Save creates a new observation, pending from birth, and returns its id.
// Geolocation capture is best-effort and never blocks or fails the save.
func (s *ObservationStore) Save(ctx context.Context, formType string, data json.RawMessage, opts SaveOptions) (string, error) {
	now := s.now()
	o := &models.Observation{
		ObservationID: uuid.NewString(),
		FormType:      formType,
		FormVersion:   opts.FormVersion,
		Data:          data,
		CreatedAt:     now,
		UpdatedAt:     now,
		Author:        opts.Author,
		DeviceID:      opts.DeviceID,
	}

	o.Geolocation = s.capture(ctx)

	if err := s.repo.Insert(ctx, o); err != nil {
		return "", fmt.Errorf("failed to save observation: %w", err)
	}
	return o.ObservationID, nil
}

func (s *ObservationStore) capture(ctx context.Context) *models.Geolocation {
	if s.locator == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, locateTimeout)
	defer cancel()

	geo, err := s.locator.Current(ctx)
	if err != nil {
		s.log.Warn(ctx, "geolocation capture failed", "error", err)
		return nil
	}
	return geo
}

func (s *ObservationStore) Get(ctx context.Context, id string) (*models.Observation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ObservationStore) ListByFormType(ctx context.Context, formType string) ([]*models.Observation, error) {
	return s.repo.ListByFormType(ctx, formType)
}

// Update overwrites the payload and bumps updated_at, which makes the row
// pending again. Sync status is derived, never written here.
func (s *ObservationStore) Update(ctx context.Context, id string, data json.RawMessage) error {
	return s.repo.UpdateData(ctx, id, data, s.now())
}

// SoftDelete tombstones the observation. The tombstone rides the same
// dirty/sync cycle as any other edit.
func (s *ObservationStore) SoftDelete(ctx context.Context, id string) error {
	return s.repo.SoftDelete(ctx, id, s.now())
}

func (s *ObservationStore) ListPending(ctx context.Context) ([]*models.Observation, error) {
	return s.repo.ListPending(ctx)
}

func (s *ObservationStore) PendingCount(ctx context.Context) (int, error) {
	return s.repo.CountPending(ctx)
}

func (s *ObservationStore) MarkSynced(ctx context.Context, ids []string, ts time.Time) error {
	return s.repo.MarkSynced(ctx, ids, ts)
}

// DeleteAll physically truncates the table. Normal sync never does this;
// only the server-switch reset may.
func (s *ObservationStore) DeleteAll(ctx context.Context) error {
	return s.repo.DeleteAll(ctx)
}

// ApplyServerChanges reconciles pulled records into the local table as one
// atomic batch and returns how many landed.
//
// Policy per incoming change:
//   - unknown id: insert, synced-by-definition (it came from the server)
//   - known id, locally pending: drop the server change so unsynced local
//     edits are never clobbered; the local version wins until pushed
//   - known id, clean: whole-row overwrite, synced as of now
func (s *ObservationStore) ApplyServerChanges(ctx context.Context, changes []*models.Observation) (int, error) {
	if len(changes) == 0 {
		return 0, nil
	}

	now := s.now()
	applied := 0

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txRepo := observations.NewSQLiteRepository(tx)

		for _, change := range changes {
			existing, err := txRepo.GetByID(ctx, change.ObservationID)
			if err != nil && !errors.Is(err, common.ErrNotFound) {
				return err
			}

			if existing != nil && existing.Pending() {
				s.log.Warn(ctx, "dropping server change for locally edited observation",
					"observation_id", change.ObservationID)
				continue
			}

			incoming := *change
			incoming.SyncedAt = &now
			if err := txRepo.Upsert(ctx, &incoming); err != nil {
				return err
			}
			applied++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to apply server changes: %w", err)
	}
	return applied, nil
}
