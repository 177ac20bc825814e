package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/formulus/formulus-go/internal/api"
	"github.com/formulus/formulus-go/internal/attachments"
	"github.com/formulus/formulus-go/internal/common"
	"github.com/formulus/formulus-go/internal/identity"
	"github.com/formulus/formulus-go/internal/logging"
	"github.com/formulus/formulus-go/internal/models"
	"github.com/formulus/formulus-go/internal/repositories/metadata"
	"github.com/formulus/formulus-go/internal/store"
)

// ProgressFunc receives progress updates during a sync run.
type ProgressFunc func(models.Progress)

// SyncService runs the bidirectional sync pipeline: pull server changes,
// merge them into the store, push local pending changes, then upload queued
// attachments. Exactly one sync may be in flight per service; the phases of
// a run are strictly sequential, never concurrent with each other.
type SyncService struct {
	client    api.Client
	gate      *api.Gate
	store     *store.ObservationStore
	meta      metadata.Repository
	queue     *attachments.Queue
	ident     *identity.Provider
	log       logging.Logger
	batchSize int
	now       func() time.Time

	mu      sync.Mutex
	syncing bool

	cancelReq atomic.Bool
	canCancel atomic.Bool

	subMu   sync.Mutex
	subs    map[int]ProgressFunc
	nextSub int
	current int
}

func NewSyncService(
	client api.Client,
	gate *api.Gate,
	obs *store.ObservationStore,
	meta metadata.Repository,
	queue *attachments.Queue,
	ident *identity.Provider,
	batchSize int,
	log logging.Logger,
) *SyncService {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &SyncService{
		client:    client,
		gate:      gate,
		store:     obs,
		meta:      meta,
		queue:     queue,
		ident:     ident,
		log:       log,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
		subs:      make(map[int]ProgressFunc),
	}
}

// Subscribe registers fn for progress updates and returns an unsubscribe
// function. Updates are delivered synchronously from the sync flow.
func (s *SyncService) Subscribe(fn ProgressFunc) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// report publishes a progress update. Current is cumulative across the run,
// never decreasing, so consumers can rely on monotonicity.
func (s *SyncService) report(phase models.SyncPhase, delta int, total int, details string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.current += delta
	p := models.Progress{Current: s.current, Total: total, Phase: phase, Details: details}
	for _, fn := range s.subs {
		fn(p)
	}
}

// IsSyncing reports whether a sync run is currently in flight.
func (s *SyncService) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// CanCancel reports whether a Cancel call would currently have any effect.
func (s *SyncService) CanCancel() bool {
	return s.canCancel.Load()
}

// Cancel requests cooperative cancellation of the in-flight sync. It takes
// effect at the next phase boundary, not instantly, and is a no-op when no
// sync is running.
func (s *SyncService) Cancel() {
	if s.canCancel.Load() {
		s.cancelReq.Store(true)
	}
}

// checkpoint is evaluated at phase boundaries only; an in-flight network
// call is never aborted by Cancel.
func (s *SyncService) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrSyncCancelled, err)
	}
	if s.cancelReq.Load() {
		return common.ErrSyncCancelled
	}
	return nil
}

// Sync runs one full pipeline and returns the final server version.
// A second call while a run is in flight fails fast with
// common.ErrSyncInProgress. On cancellation the cursor is left unchanged
// and common.ErrSyncCancelled is returned; callers must treat it as an
// outcome, not a failure.
func (s *SyncService) Sync(ctx context.Context, includeAttachments bool) (int64, error) {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return 0, common.ErrSyncInProgress
	}
	s.syncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	s.cancelReq.Store(false)
	s.canCancel.Store(true)
	defer s.canCancel.Store(false)

	s.subMu.Lock()
	s.current = 0
	s.subMu.Unlock()

	started := s.now()
	s.log.Info(ctx, "sync started", "include_attachments", includeAttachments)

	version, err := s.run(ctx, includeAttachments)
	if err != nil {
		s.log.Info(ctx, "sync did not complete", "error", err)
		return 0, err
	}

	if err := s.meta.SetInt64(ctx, common.MetaKeyServerVersion, version); err != nil {
		return 0, err
	}
	if err := s.meta.Set(ctx, common.MetaKeyLastSyncAt, []byte(started.Format(time.RFC3339))); err != nil {
		return 0, err
	}

	s.log.Info(ctx, "sync finished", "version", version, "duration", s.now().Sub(started).String())
	return version, nil
}

func (s *SyncService) run(ctx context.Context, includeAttachments bool) (int64, error) {
	clientID, err := s.ident.ClientID(ctx)
	if err != nil {
		return 0, err
	}

	version, err := s.pull(ctx, clientID)
	if err != nil {
		return 0, err
	}

	if err := s.checkpoint(ctx); err != nil {
		return 0, err
	}

	version, err = s.push(ctx, clientID, version)
	if err != nil {
		return 0, err
	}

	if includeAttachments {
		if err := s.checkpoint(ctx); err != nil {
			return 0, err
		}
		if err := s.uploadAttachments(ctx); err != nil {
			return 0, err
		}
	}

	return version, nil
}

// pull pages through server changes from the stored cursor and applies each
// page to the store. The loop ends on the first short page.
func (s *SyncService) pull(ctx context.Context, clientID string) (int64, error) {
	since, err := s.meta.GetInt64(ctx, common.MetaKeyServerVersion)
	if err != nil {
		return 0, err
	}
	version := since

	for {
		var resp *models.PullResponse
		err := s.gate.Do(ctx, func(ctx context.Context) error {
			var err error
			resp, err = s.client.Pull(ctx, &models.PullRequest{
				ClientID:     clientID,
				SinceVersion: since,
				Limit:        s.batchSize,
			})
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("pull failed: %w", err)
		}

		changes := make([]*models.Observation, 0, len(resp.Records))
		for _, r := range resp.Records {
			changes = append(changes, r.ToObservation())
		}

		applied, err := s.store.ApplyServerChanges(ctx, changes)
		if err != nil {
			return 0, err
		}

		version = resp.Version
		s.report(models.PhasePull, len(resp.Records), 0,
			fmt.Sprintf("applied %d of %d records", applied, len(resp.Records)))

		if len(resp.Records) < s.batchSize {
			return version, nil
		}
		since = resp.Version
	}
}

// push uploads every pending row and marks the batch synced. The synced
// stamp is guarded repository-side against edits that raced the upload.
func (s *SyncService) push(ctx context.Context, clientID string, version int64) (int64, error) {
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		s.report(models.PhasePush, 0, 0, "nothing to push")
		return version, nil
	}

	records := make([]*models.SyncRecord, 0, len(pending))
	ids := make([]string, 0, len(pending))
	for _, o := range pending {
		records = append(records, models.RecordFromObservation(o))
		ids = append(ids, o.ObservationID)
	}

	var resp *models.PushResponse
	err = s.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = s.client.Push(ctx, &models.PushRequest{ClientID: clientID, Records: records})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("push failed: %w", err)
	}

	if err := s.store.MarkSynced(ctx, ids, s.now()); err != nil {
		return 0, err
	}

	s.report(models.PhasePush, len(ids), len(ids),
		fmt.Sprintf("pushed %d records", len(ids)))
	return resp.AcceptedVersion, nil
}

func (s *SyncService) uploadAttachments(ctx context.Context) error {
	// The download leg of the attachment phase is driven by the bundle
	// manager; the boundary is still announced so consumers see the full
	// phase sequence.
	s.report(models.PhaseAttachmentsDownload, 0, 0, "")

	names, err := s.queue.List()
	if err != nil {
		return err
	}

	for _, name := range names {
		err := s.gate.Do(ctx, func(ctx context.Context) error {
			return s.client.UploadAttachment(ctx, name, s.queue.Path(name))
		})
		if err != nil {
			return fmt.Errorf("attachment upload failed: %w", err)
		}
		if err := s.queue.Remove(name); err != nil {
			return err
		}
		s.report(models.PhaseAttachmentsUpload, 1, len(names), name)
	}
	return nil
}
