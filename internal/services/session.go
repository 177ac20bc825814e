// Package services contains the orchestration layer: the sync pipeline, the
// session (auth) service, the bundle manager and the server-switch reset.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/formulus/formulus-go/internal/api"
	"github.com/formulus/formulus-go/internal/common"
	"github.com/formulus/formulus-go/internal/dbx"
	"github.com/formulus/formulus-go/internal/logging"
	"github.com/formulus/formulus-go/internal/models"
	"github.com/formulus/formulus-go/internal/repositories/metadata"
	"github.com/golang-jwt/jwt/v5"
)

// expiryLeeway refreshes tokens slightly before their actual deadline so an
// almost-expired token is not sent just to collect a 401.
const expiryLeeway = 30 * time.Second

// SessionService owns the authenticated session: it logs in, caches
// credentials for auto-relogin, persists the token pair and restores it on
// startup. It implements api.Reauthenticator for the auth gate.
type SessionService struct {
	client api.Client
	db     *sql.DB
	log    logging.Logger
	now    func() time.Time
}

func NewSessionService(client api.Client, db *sql.DB, log logging.Logger) *SessionService {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &SessionService{
		client: client,
		db:     db,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *SessionService) metaRepo() metadata.Repository {
	return metadata.NewSQLiteRepository(s.db)
}

// Login authenticates against the server and durably caches both the
// credentials and the returned token pair.
func (s *SessionService) Login(ctx context.Context, username string, password string) error {
	tp, err := s.client.Login(ctx, models.Credentials{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("login error: %w", err)
	}

	s.client.SetToken(tp.AccessToken)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, common.MetaKeyUsername, []byte(username)); err != nil {
			return err
		}
		if err := repo.Set(ctx, common.MetaKeyPassword, []byte(password)); err != nil {
			return err
		}
		return saveTokens(ctx, repo, tp)
	})
	if err != nil {
		return fmt.Errorf("session saving error: %w", err)
	}

	s.log.Info(ctx, "logged in", "username", username)
	return nil
}

func saveTokens(ctx context.Context, repo metadata.Repository, tp *models.TokenPair) error {
	if err := repo.Set(ctx, common.MetaKeyAccessToken, []byte(tp.AccessToken)); err != nil {
		return err
	}
	if err := repo.Set(ctx, common.MetaKeyRefreshToken, []byte(tp.RefreshToken)); err != nil {
		return err
	}
	return repo.Set(ctx, common.MetaKeyTokenExpiry, []byte(tp.ExpiresAt.UTC().Format(time.RFC3339)))
}

// Restore loads the persisted session, if any, into the API client. A
// stale access token is refreshed eagerly; failure to refresh is not fatal
// here because the auth gate will relogin on the first 401.
func (s *SessionService) Restore(ctx context.Context) error {
	repo := s.metaRepo()

	access, err := repo.Get(ctx, common.MetaKeyAccessToken)
	if err != nil {
		return err
	}
	if len(access) == 0 {
		return nil
	}

	if !s.tokenExpired(ctx, string(access)) {
		s.client.SetToken(string(access))
		return nil
	}

	if err := s.tryRefresh(ctx); err != nil {
		s.log.Warn(ctx, "stored session expired and refresh failed", "error", err)
	}
	return nil
}

// tokenExpired inspects the token's exp claim without verifying the
// signature (the server is the verifier; the client only schedules
// refreshes). Unparseable tokens fall back to the persisted expiry.
func (s *SessionService) tokenExpired(ctx context.Context, token string) bool {
	deadline := s.now().Add(expiryLeeway)

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time.Before(deadline)
		}
	}

	raw, err := s.metaRepo().Get(ctx, common.MetaKeyTokenExpiry)
	if err != nil || len(raw) == 0 {
		return false
	}
	stored, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		return false
	}
	return stored.Before(deadline)
}

func (s *SessionService) tryRefresh(ctx context.Context) error {
	repo := s.metaRepo()

	refresh, err := repo.Get(ctx, common.MetaKeyRefreshToken)
	if err != nil {
		return err
	}
	if len(refresh) == 0 {
		return common.ErrNoCredentials
	}

	tp, err := s.client.Refresh(ctx, string(refresh))
	if err != nil {
		return err
	}

	s.client.SetToken(tp.AccessToken)
	return saveTokens(ctx, repo, tp)
}

// Reauthenticate restores a session after a 401: first with the refresh
// token, then by logging in again with the cached credentials. Called by
// the auth gate exactly once per failed operation.
func (s *SessionService) Reauthenticate(ctx context.Context) error {
	if err := s.tryRefresh(ctx); err == nil {
		return nil
	}

	repo := s.metaRepo()
	username, err := repo.Get(ctx, common.MetaKeyUsername)
	if err != nil {
		return err
	}
	password, err := repo.Get(ctx, common.MetaKeyPassword)
	if err != nil {
		return err
	}
	if len(username) == 0 || len(password) == 0 {
		return common.ErrNoCredentials
	}

	return s.Login(ctx, string(username), string(password))
}

// Invalidate drops the persisted token pair and clears the in-flight token.
// Cached credentials survive, so the auth gate can still relogin.
func (s *SessionService) Invalidate(ctx context.Context) error {
	repo := s.metaRepo()
	for _, key := range []string{common.MetaKeyAccessToken, common.MetaKeyRefreshToken, common.MetaKeyTokenExpiry} {
		if err := repo.Delete(ctx, key); err != nil {
			return err
		}
	}
	s.client.SetToken("")
	return nil
}

// Forget wipes tokens and cached credentials. The server-switch reset uses
// it; afterwards a manual login is required.
func (s *SessionService) Forget(ctx context.Context) error {
	if err := s.Invalidate(ctx); err != nil {
		return err
	}
	repo := s.metaRepo()
	for _, key := range []string{common.MetaKeyUsername, common.MetaKeyPassword} {
		if err := repo.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
