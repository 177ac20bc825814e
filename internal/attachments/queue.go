// Package attachments manages captured files awaiting upload. Each saved
// attachment gets a primary copy under the attachments directory and a
// second copy under pending_upload/; the queue copy is removed once the
// server confirms the upload, the primary copy stays.
package attachments

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/formulus/formulus-go/internal/filex"
	"github.com/google/uuid"
)

const pendingDirName = "pending_upload"

// Queue is the on-disk pending-upload queue.
type Queue struct {
	baseDir    string
	pendingDir string
}

// NewQueue ensures the attachments directory and its pending_upload
// subdirectory exist under dataDir.
func NewQueue(dataDir string) (*Queue, error) {
	base, err := filex.EnsureSubDir(dataDir, "attachments")
	if err != nil {
		return nil, err
	}
	pending, err := filex.EnsureSubDir(base, pendingDirName)
	if err != nil {
		return nil, err
	}
	return &Queue{baseDir: base, pendingDir: pending}, nil
}

// BaseDir returns the primary attachments directory.
func (q *Queue) BaseDir() string { return q.baseDir }

// Enqueue copies src into the primary directory under a fresh name and then
// duplicates it into pending_upload/. The two copies are separate writes; a
// crash in between leaves a primary copy that is not queued (accepted gap,
// reconciled when the caller re-saves). Returns the stored name.
func (q *Queue) Enqueue(src string) (string, error) {
	name := uuid.NewString() + filepath.Ext(src)

	if err := filex.CopyFile(src, filepath.Join(q.baseDir, name)); err != nil {
		return "", fmt.Errorf("failed to store attachment: %w", err)
	}
	if err := filex.CopyFile(src, filepath.Join(q.pendingDir, name)); err != nil {
		return "", fmt.Errorf("failed to queue attachment: %w", err)
	}
	return name, nil
}

// List re-reads pending_upload/ and returns queued names. Reading the
// directory each time (instead of tracking state in memory) means entries
// left behind by a crashed process are picked up by the next sync.
func (q *Queue) List() ([]string, error) {
	entries, err := os.ReadDir(q.pendingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending uploads: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Path returns the on-disk location of a queued file.
func (q *Queue) Path(name string) string {
	return filepath.Join(q.pendingDir, name)
}

// Remove drops a confirmed upload from the queue. The primary copy under
// the attachments directory is untouched.
func (q *Queue) Remove(name string) error {
	if err := os.Remove(filepath.Join(q.pendingDir, name)); err != nil {
		return fmt.Errorf("failed to dequeue attachment: %w", err)
	}
	return nil
}

// Count returns the number of queued files.
func (q *Queue) Count() (int, error) {
	names, err := q.List()
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// Clear wipes the whole attachments tree and recreates the empty queue
// directory. Only the server-switch reset calls this.
func (q *Queue) Clear() error {
	if err := filex.RemoveAndRecreate(q.baseDir); err != nil {
		return err
	}
	_, err := filex.EnsureSubDir(q.baseDir, pendingDirName)
	return err
}
