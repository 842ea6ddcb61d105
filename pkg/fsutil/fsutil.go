// Package fsutil provides the small set of idempotent, line-ending-preserving
// filesystem primitives the rest of the orchestrator builds on: directory
// creation, UTF-8 text read/write, and atomic replace-via-rename.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// EnsureDir behaves like mkdir -p: it succeeds if the directory already
// exists, and fails if path exists but is not a directory.
func EnsureDir(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("fsutil: %s exists and is not a directory", path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("fsutil: stat %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("fsutil: mkdir %s: %w", path, err)
	}
	return nil
}

// ReadText reads the file at path as-is. Callers that need to know whether a
// trailing newline was present should inspect the returned string directly;
// no newline translation is performed.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("fsutil: read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteText writes content to path, creating the file if absent, without
// any newline translation.
func WriteText(path string, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("fsutil: write %s: %w", path, err)
	}
	return nil
}

// ReplaceAtomically writes content to a sibling temp file and renames it
// over path, so a reader never observes a partial write. The temp file
// shares path's permission bits when path already exists.
func ReplaceAtomically(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.New().String()))
	if err := os.WriteFile(tmp, content, mode); err != nil {
		return fmt.Errorf("fsutil: write temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("fsutil: rename temp file into %s: %w", path, err)
	}
	return nil
}

// CopyFile copies src to dst byte-for-byte, mirroring src's permissions, and
// overwrites dst if it already exists.
func CopyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("fsutil: read %s: %w", src, err)
	}
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("fsutil: stat %s: %w", src, err)
	}
	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("fsutil: write %s: %w", dst, err)
	}
	return nil
}

// Exists reports whether path exists (regardless of type).
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
