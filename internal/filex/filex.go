// Package filex holds small filesystem helpers shared by the attachment
// queue, the bundle cache and the server-switch reset.
package filex

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EnsureDir creates dir (and parents) if missing and returns its path.
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return dir, nil
}

// EnsureSubDir creates base/name if missing and returns its path.
func EnsureSubDir(base string, name string) (string, error) {
	return EnsureDir(filepath.Join(base, name))
}

// RemoveAndRecreate deletes dir with everything under it, then creates it
// again empty. Used by destructive resets.
func RemoveAndRecreate(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	if _, err := EnsureDir(dir); err != nil {
		return err
	}
	return nil
}

// CopyFile copies src to dst, truncating dst if it exists. The two writes an
// attachment needs (primary copy and queue copy) are separate CopyFile calls
// and are not atomic as a pair.
func CopyFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	return out.Close()
}
