package metadata

import (
	"context"
	"database/sql"
	"testing"

	"github.com/formulus/formulus-go/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE metadata (key TEXT PRIMARY KEY, value BLOB);`)
	require.NoError(t, err)
	return db
}

func TestSetGetDelete(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, common.MetaKeyServerURL, []byte("https://synk.example.org")))

	got, err := r.Get(ctx, common.MetaKeyServerURL)
	require.NoError(t, err)
	assert.Equal(t, []byte("https://synk.example.org"), got)

	// overwrite
	require.NoError(t, r.Set(ctx, common.MetaKeyServerURL, []byte("https://other.example.org")))
	got, err = r.Get(ctx, common.MetaKeyServerURL)
	require.NoError(t, err)
	assert.Equal(t, []byte("https://other.example.org"), got)

	require.NoError(t, r.Delete(ctx, common.MetaKeyServerURL))
	got, err = r.Get(ctx, common.MetaKeyServerURL)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGet_MissingKeyReturnsNil(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	got, err := r.Get(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInt64Helpers(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	v, err := r.GetInt64(ctx, common.MetaKeyServerVersion)
	require.NoError(t, err)
	assert.Zero(t, v, "missing cursor reads as 0")

	require.NoError(t, r.SetInt64(ctx, common.MetaKeyServerVersion, 42))
	v, err = r.GetInt64(ctx, common.MetaKeyServerVersion)
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)

	require.NoError(t, r.Set(ctx, common.MetaKeyServerVersion, []byte("junk")))
	_, err = r.GetInt64(ctx, common.MetaKeyServerVersion)
	require.Error(t, err)
}

func TestClear(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, common.MetaKeyUsername, []byte("alice")))
	require.NoError(t, r.Set(ctx, common.MetaKeyAccessToken, []byte("tok")))

	require.NoError(t, r.Clear(ctx))

	got, err := r.Get(ctx, common.MetaKeyUsername)
	require.NoError(t, err)
	assert.Nil(t, got)
}
