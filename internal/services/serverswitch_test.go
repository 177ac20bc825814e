package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formulus/formulus-go/internal/api"
	"github.com/formulus/formulus-go/internal/attachments"
	"github.com/formulus/formulus-go/internal/common"
	"github.com/formulus/formulus-go/internal/models"
	"github.com/formulus/formulus-go/internal/storage"
	"github.com/formulus/formulus-go/internal/store"
)

type switchHarness struct {
	st      *storage.Storage
	client  *fakeClient
	store   *store.ObservationStore
	queue   *attachments.Queue
	bundle  *BundleService
	session *SessionService
	svc     *ServerSwitchService
}

func setupSwitch(t *testing.T) *switchHarness {
	t.Helper()
	st := setupStorage(t)

	client := &fakeClient{
		loginFn: func(context.Context, models.Credentials) (*models.TokenPair, error) {
			return tokenPair("acc-1"), nil
		},
	}
	obs := store.New(st.DB, st.Observations, nil, nil)
	queue, err := attachments.NewQueue(t.TempDir())
	require.NoError(t, err)

	gate := api.NewGate(reauthFunc(func(context.Context) error { return nil }), nil)
	bundle, err := NewBundleService(client, gate, st.Metadata, obs.Schemas(), t.TempDir(), nil)
	require.NoError(t, err)
	session := NewSessionService(client, st.DB, nil)

	svc := NewServerSwitchService(client, obs, st.Metadata, queue, bundle, session, nil, nil)
	return &switchHarness{
		st: st, client: client, store: obs, queue: queue,
		bundle: bundle, session: session, svc: svc,
	}
}

// seed puts one pending observation, one queued attachment, a logged-in
// session and some sync cursors in place.
func (h *switchHarness) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	_, err := h.store.Save(ctx, "survey", json.RawMessage(`{"q1":"a"}`), store.SaveOptions{})
	require.NoError(t, err)

	src := writeTempFile(t, "photo.jpg", []byte("jpeg"))
	_, err = h.queue.Enqueue(src)
	require.NoError(t, err)

	require.NoError(t, h.session.Login(ctx, "alice", "s3cret"))
	require.NoError(t, h.st.Metadata.SetInt64(ctx, common.MetaKeyServerVersion, 42))
	require.NoError(t, h.st.Metadata.SetInt64(ctx, common.MetaKeyBundleVersion, 3))
	require.NoError(t, h.st.Metadata.Set(ctx, common.MetaKeyLastSyncAt, []byte("2026-08-01T00:00:00Z")))
}

func TestPendingCounts(t *testing.T) {
	h := setupSwitch(t)
	h.seed(t)

	counts, err := h.svc.PendingCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PendingCounts{Observations: 1, Attachments: 1}, counts)
}

func TestResetForServerChange_DestroysAllLocalState(t *testing.T) {
	h := setupSwitch(t)
	h.seed(t)
	ctx := context.Background()

	require.NoError(t, h.svc.ResetForServerChange(ctx, "https://other.example.com"))

	counts, err := h.svc.PendingCounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Observations)
	assert.Zero(t, counts.Attachments)

	cursor, err := h.st.Metadata.GetInt64(ctx, common.MetaKeyServerVersion)
	require.NoError(t, err)
	assert.Zero(t, cursor)

	bundleVersion, err := h.bundle.Version(ctx)
	require.NoError(t, err)
	assert.Zero(t, bundleVersion)

	for _, key := range []string{
		common.MetaKeyLastSyncAt,
		common.MetaKeyAccessToken, common.MetaKeyRefreshToken,
		common.MetaKeyUsername, common.MetaKeyPassword,
	} {
		v, err := h.st.Metadata.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, v, key)
	}
}

func TestResetForServerChange_RepointsClient(t *testing.T) {
	h := setupSwitch(t)
	ctx := context.Background()

	require.NoError(t, h.svc.ResetForServerChange(ctx, "https://other.example.com"))

	assert.Equal(t, "https://other.example.com", h.client.baseURL)

	v, err := h.st.Metadata.Get(ctx, common.MetaKeyServerURL)
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com", string(v))
}

func TestResetForServerChange_ClearsMarkerOnSuccess(t *testing.T) {
	h := setupSwitch(t)
	ctx := context.Background()

	require.NoError(t, h.svc.ResetForServerChange(ctx, "https://other.example.com"))

	torn, err := h.svc.ResetInProgress(ctx)
	require.NoError(t, err)
	assert.False(t, torn)
}

func TestResetForServerChange_InterruptedResetLeavesMarker(t *testing.T) {
	h := setupSwitch(t)
	ctx := context.Background()

	// Seed the marker the way a reset crashed mid-way would have left it.
	require.NoError(t, h.st.Metadata.Set(ctx, common.MetaKeyResetInProgress, []byte("https://other.example.com")))

	torn, err := h.svc.ResetInProgress(ctx)
	require.NoError(t, err)
	assert.True(t, torn, "startup must be able to detect a torn reset")

	// Running the reset to completion clears the marker.
	require.NoError(t, h.svc.ResetForServerChange(ctx, "https://other.example.com"))
	torn, err = h.svc.ResetInProgress(ctx)
	require.NoError(t, err)
	assert.False(t, torn)
}

func TestResetForServerChange_RefusedDuringSync(t *testing.T) {
	h := setupSwitch(t)

	sync := NewSyncService(h.client, nil, h.store, h.st.Metadata, h.queue, nil, 10, nil)
	sync.syncing = true
	h.svc.sync = sync

	err := h.svc.ResetForServerChange(context.Background(), "https://other.example.com")
	assert.ErrorIs(t, err, common.ErrSyncInProgress)
}

func TestResetForServerChange_ClearsBundleFiles(t *testing.T) {
	h := setupSwitch(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(h.bundle.Dir(), "survey.json"), []byte("{}"), 0o600))

	require.NoError(t, h.svc.ResetForServerChange(ctx, "https://other.example.com"))

	entries, err := os.ReadDir(h.bundle.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
