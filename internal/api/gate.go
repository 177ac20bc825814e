package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/formulus/formulus-go/internal/common"
	"github.com/formulus/formulus-go/internal/logging"
)

// Reauthenticator restores a server session from durably cached credentials.
// The session service implements it.
type Reauthenticator interface {
	Reauthenticate(ctx context.Context) error
}

// Gate wraps a single remote call with one-shot re-authentication. A call
// failing with common.ErrUnauthorized triggers exactly one re-login and one
// retry; a second unauthorized failure (or a failed re-login) is terminal
// and surfaces common.ErrAuthenticationFailed. Any other error passes
// through untouched.
type Gate struct {
	reauth Reauthenticator
	log    logging.Logger
}

func NewGate(reauth Reauthenticator, log logging.Logger) *Gate {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Gate{reauth: reauth, log: log}
}

// Do runs op, applying the retry policy above. The retry budget is per
// logical operation: every Do call starts fresh.
func (g *Gate) Do(ctx context.Context, op func(ctx context.Context) error) error {
	err := op(ctx)
	if err == nil || !errors.Is(err, common.ErrUnauthorized) {
		return err
	}

	g.log.Info(ctx, "unauthorized response, attempting re-login")

	if rerr := g.reauth.Reauthenticate(ctx); rerr != nil {
		return fmt.Errorf("re-login failed (%v): %w", rerr, common.ErrAuthenticationFailed)
	}

	err = op(ctx)
	if errors.Is(err, common.ErrUnauthorized) {
		return fmt.Errorf("still unauthorized after re-login: %w", common.ErrAuthenticationFailed)
	}
	return err
}
