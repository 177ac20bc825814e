// Package app wires the storage, API client and services together into a
// running Formulus sync core.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/formulus/formulus-go/internal/api"
	"github.com/formulus/formulus-go/internal/attachments"
	"github.com/formulus/formulus-go/internal/common"
	"github.com/formulus/formulus-go/internal/config"
	"github.com/formulus/formulus-go/internal/filex"
	"github.com/formulus/formulus-go/internal/identity"
	"github.com/formulus/formulus-go/internal/logging"
	"github.com/formulus/formulus-go/internal/services"
	"github.com/formulus/formulus-go/internal/storage"
	"github.com/formulus/formulus-go/internal/store"
)

// App holds every long-lived component of the sync core.
type App struct {
	Config       *config.Config
	Storage      *storage.Storage
	Client       api.Client
	Store        *store.ObservationStore
	Queue        *attachments.Queue
	Identity     *identity.Provider
	Session      *services.SessionService
	Sync         *services.SyncService
	Bundle       *services.BundleService
	ServerSwitch *services.ServerSwitchService

	log logging.Logger
}

// New builds the full dependency graph. A previously stored server URL
// overrides the configured one so a device follows the server it was last
// pointed at.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if _, err := filex.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	st, err := storage.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	serverURL := cfg.ServerURL
	if stored, err := st.Metadata.Get(ctx, common.MetaKeyServerURL); err == nil && len(stored) > 0 {
		serverURL = string(stored)
	}
	client := api.NewRestyClient(serverURL, cfg.RequestTimeout)

	queue, err := attachments.NewQueue(cfg.DataDir)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	obs := store.New(st.DB, st.Observations, nil, log)
	ident := identity.NewProvider(st.Metadata)

	session := services.NewSessionService(client, st.DB, log)
	gate := api.NewGate(session, log)

	syncSvc := services.NewSyncService(client, gate, obs, st.Metadata, queue, ident, cfg.PullBatchSize, log)

	bundle, err := services.NewBundleService(client, gate, st.Metadata, obs.Schemas(), cfg.DataDir, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	serverSwitch := services.NewServerSwitchService(client, obs, st.Metadata, queue, bundle, session, syncSvc, log)

	return &App{
		Config:       cfg,
		Storage:      st,
		Client:       client,
		Store:        obs,
		Queue:        queue,
		Identity:     ident,
		Session:      session,
		Sync:         syncSvc,
		Bundle:       bundle,
		ServerSwitch: serverSwitch,
		log:          log,
	}, nil
}

// Start restores the persisted session and finishes any reset a previous
// process left half-done.
func (a *App) Start(ctx context.Context) error {
	torn, err := a.ServerSwitch.ResetInProgress(ctx)
	if err != nil {
		return err
	}
	if torn {
		url, err := a.Storage.Metadata.Get(ctx, common.MetaKeyResetInProgress)
		if err != nil {
			return err
		}
		a.log.Warn(ctx, "previous server switch was interrupted, completing it", "url", string(url))
		if err := a.ServerSwitch.ResetForServerChange(ctx, string(url)); err != nil {
			return err
		}
	}

	return a.Session.Restore(ctx)
}

// RunSync refreshes the app bundle and runs one full sync pipeline.
func (a *App) RunSync(ctx context.Context) error {
	if _, err := a.Bundle.Update(ctx); err != nil {
		// A partial bundle is not a reason to skip syncing observations.
		a.log.Warn(ctx, "bundle update failed", "error", err)
	}

	version, err := a.Sync.Sync(ctx, true)
	if err != nil {
		return err
	}
	a.log.Info(ctx, "synchronized", "server_version", version)
	return nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.Storage.Close()
}
