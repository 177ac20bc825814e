package services

import (
	"context"
	"fmt"

	"github.com/formulus/formulus-go/internal/api"
	"github.com/formulus/formulus-go/internal/attachments"
	"github.com/formulus/formulus-go/internal/common"
	"github.com/formulus/formulus-go/internal/logging"
	"github.com/formulus/formulus-go/internal/models"
	"github.com/formulus/formulus-go/internal/repositories/metadata"
	"github.com/formulus/formulus-go/internal/store"
)

// ServerSwitchService re-points the client at a different server. Because
// observation identity and version cursors are scoped to one server, a
// switch destroys all local sync state; PendingCounts lets the caller warn
// the user about unsynced work before committing.
type ServerSwitchService struct {
	client  api.Client
	store   *store.ObservationStore
	meta    metadata.Repository
	queue   *attachments.Queue
	bundle  *BundleService
	session *SessionService
	sync    *SyncService
	log     logging.Logger
}

func NewServerSwitchService(
	client api.Client,
	obs *store.ObservationStore,
	meta metadata.Repository,
	queue *attachments.Queue,
	bundle *BundleService,
	session *SessionService,
	sync *SyncService,
	log logging.Logger,
) *ServerSwitchService {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ServerSwitchService{
		client:  client,
		store:   obs,
		meta:    meta,
		queue:   queue,
		bundle:  bundle,
		session: session,
		sync:    sync,
		log:     log,
	}
}

// PendingCounts reports how much unsynced local work a reset would destroy.
func (s *ServerSwitchService) PendingCounts(ctx context.Context) (models.PendingCounts, error) {
	obs, err := s.store.PendingCount(ctx)
	if err != nil {
		return models.PendingCounts{}, err
	}
	att, err := s.queue.Count()
	if err != nil {
		return models.PendingCounts{}, err
	}
	return models.PendingCounts{Observations: obs, Attachments: att}, nil
}

// ResetInProgress reports whether a previous reset was interrupted. The
// marker is written before the first destructive step and removed after the
// last, so its presence on startup means local state may be torn and a new
// reset should be run to completion.
func (s *ServerSwitchService) ResetInProgress(ctx context.Context) (bool, error) {
	v, err := s.meta.Get(ctx, common.MetaKeyResetInProgress)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// ResetForServerChange destroys all local sync state and re-points the
// client at newURL. The caller is expected to have confirmed the loss of
// any pending work. Refuses to run while a sync is in flight.
//
// The steps run in a fixed order with no rollback: once the marker is set,
// a failure leaves the marker in place so the torn state is detectable.
func (s *ServerSwitchService) ResetForServerChange(ctx context.Context, newURL string) error {
	if s.sync != nil && s.sync.IsSyncing() {
		return common.ErrSyncInProgress
	}

	s.log.Info(ctx, "server switch started", "url", newURL)

	if err := s.meta.Set(ctx, common.MetaKeyResetInProgress, []byte(newURL)); err != nil {
		return fmt.Errorf("reset marker: %w", err)
	}

	if err := s.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clearing observations: %w", err)
	}

	for _, key := range []string{
		common.MetaKeyServerVersion,
		common.MetaKeyAttachmentVersion,
		common.MetaKeyLastSyncAt,
	} {
		if err := s.meta.Delete(ctx, key); err != nil {
			return fmt.Errorf("clearing %s: %w", key, err)
		}
	}

	if err := s.queue.Clear(); err != nil {
		return fmt.Errorf("clearing attachment queue: %w", err)
	}

	if err := s.bundle.Clear(ctx); err != nil {
		return fmt.Errorf("clearing bundle: %w", err)
	}

	if err := s.session.Forget(ctx); err != nil {
		return fmt.Errorf("forgetting credentials: %w", err)
	}

	if err := s.meta.Set(ctx, common.MetaKeyServerURL, []byte(newURL)); err != nil {
		return fmt.Errorf("storing server url: %w", err)
	}
	s.client.SetBaseURL(newURL)

	if err := s.meta.Delete(ctx, common.MetaKeyResetInProgress); err != nil {
		return fmt.Errorf("reset marker: %w", err)
	}

	s.log.Info(ctx, "server switch finished", "url", newURL)
	return nil
}
