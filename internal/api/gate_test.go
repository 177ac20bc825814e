package api

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/formulus/formulus-go/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReauth struct {
	calls int
	err   error
}

func (f *fakeReauth) Reauthenticate(context.Context) error {
	f.calls++
	return f.err
}

func TestGate_SuccessPassesThrough(t *testing.T) {
	reauth := &fakeReauth{}
	g := NewGate(reauth, nil)

	calls := 0
	err := g.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Zero(t, reauth.calls)
}

func TestGate_NonAuthErrorNotRetried(t *testing.T) {
	reauth := &fakeReauth{}
	g := NewGate(reauth, nil)

	boom := errors.New("connection refused")
	calls := 0
	err := g.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Zero(t, reauth.calls, "no re-login for non-auth errors")
}

func TestGate_UnauthorizedThenSuccess(t *testing.T) {
	reauth := &fakeReauth{}
	g := NewGate(reauth, nil)

	calls := 0
	err := g.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("pull: %w", common.ErrUnauthorized)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, reauth.calls)
}

func TestGate_RetryCeilingIsOne(t *testing.T) {
	reauth := &fakeReauth{}
	g := NewGate(reauth, nil)

	calls := 0
	err := g.Do(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("pull: %w", common.ErrUnauthorized)
	})
	require.ErrorIs(t, err, common.ErrAuthenticationFailed)
	assert.Equal(t, 2, calls, "exactly one retry")
	assert.Equal(t, 1, reauth.calls, "exactly one re-login attempt")
}

func TestGate_ReloginFailureIsTerminal(t *testing.T) {
	reauth := &fakeReauth{err: common.ErrNoCredentials}
	g := NewGate(reauth, nil)

	calls := 0
	err := g.Do(context.Background(), func(context.Context) error {
		calls++
		return common.ErrUnauthorized
	})
	require.ErrorIs(t, err, common.ErrAuthenticationFailed)
	assert.Equal(t, 1, calls, "no retry when re-login fails")
}

func TestGate_BudgetResetsPerOperation(t *testing.T) {
	reauth := &fakeReauth{}
	g := NewGate(reauth, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		first := true
		err := g.Do(ctx, func(context.Context) error {
			if first {
				first = false
				return common.ErrUnauthorized
			}
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, reauth.calls)
}
