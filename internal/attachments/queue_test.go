package attachments

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o660))
	return path
}

func TestEnqueue_DuplicatesIntoBothDirs(t *testing.T) {
	q, err := NewQueue(t.TempDir())
	require.NoError(t, err)

	src := writeSource(t, "photo.jpg", "jpegdata")
	name, err := q.Enqueue(src)
	require.NoError(t, err)
	assert.Equal(t, ".jpg", filepath.Ext(name))

	primary, err := os.ReadFile(filepath.Join(q.BaseDir(), name))
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(primary))

	queued, err := os.ReadFile(q.Path(name))
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(queued))
}

func TestListCountRemove(t *testing.T) {
	q, err := NewQueue(t.TempDir())
	require.NoError(t, err)

	names, err := q.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	src := writeSource(t, "a.png", "x")
	n1, err := q.Enqueue(src)
	require.NoError(t, err)
	n2, err := q.Enqueue(src)
	require.NoError(t, err)

	count, err := q.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, q.Remove(n1))

	names, err = q.List()
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Equal(t, n2, names[0])

	// primary copy survives removal from the queue
	_, err = os.Stat(filepath.Join(q.BaseDir(), n1))
	require.NoError(t, err)
}

func TestList_PicksUpForeignEntries(t *testing.T) {
	dataDir := t.TempDir()
	q, err := NewQueue(dataDir)
	require.NoError(t, err)

	// A file dropped by another process instance appears in the queue.
	stray := filepath.Join(dataDir, "attachments", "pending_upload", "stray.bin")
	require.NoError(t, os.WriteFile(stray, []byte("x"), 0o660))

	names, err := q.List()
	require.NoError(t, err)
	require.Equal(t, []string{"stray.bin"}, names)
}

func TestClear(t *testing.T) {
	q, err := NewQueue(t.TempDir())
	require.NoError(t, err)

	src := writeSource(t, "a.png", "x")
	_, err = q.Enqueue(src)
	require.NoError(t, err)

	require.NoError(t, q.Clear())

	count, err := q.Count()
	require.NoError(t, err)
	assert.Zero(t, count)

	entries, err := os.ReadDir(q.BaseDir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the empty pending_upload dir remains")
	assert.Equal(t, "pending_upload", entries[0].Name())
}
