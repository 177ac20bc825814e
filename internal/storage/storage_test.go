package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/formulus/formulus-go/internal/common"
	"github.com/stretchr/testify/require"
)

func TestOpen_MigratesAndWires(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "formulus.db")

	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	// Both tables exist and the repositories work against them.
	n, err := s.Observations.CountPending(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, s.Metadata.Set(ctx, common.MetaKeyServerURL, []byte("u")))
	v, err := s.Metadata.Get(ctx, common.MetaKeyServerURL)
	require.NoError(t, err)
	require.Equal(t, []byte("u"), v)
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "formulus.db")

	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, s.Metadata.SetInt64(ctx, common.MetaKeyServerVersion, 7))
	require.NoError(t, s.Close())

	// Migrations are idempotent on an existing database.
	s, err = Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	v, err := s.Metadata.GetInt64(ctx, common.MetaKeyServerVersion)
	require.NoError(t, err)
	require.EqualValues(t, 7, v)
}
