// Package content implements byte-content stores for the file and note
// namespaces: a directory-backed store, an in-memory store for testing, and
// an encrypting wrapper.
package content

import (
	"fmt"
	"io/fs"
	"os"
	gopath "path"
	"path/filepath"
	"strings"
	"time"

	"homedrive/internal/drive"
)

// DirStore is a directory-backed implementation of the ContentStore
// interface. Entry paths are slash-separated and relative to the root;
// anything escaping the root is rejected.
type DirStore struct {
	root string
}

var _ drive.ContentStore = (*DirStore)(nil)

// NewDirStore creates a store rooted at the given directory, creating it if
// necessary.
func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content root: %w", err)
	}
	return &DirStore{root: root}, nil
}

// resolve maps a store path to an absolute filesystem path, rejecting
// anything that would land outside the root.
func (s *DirStore) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path: %w", drive.ErrContent)
	}
	clean := gopath.Clean(path)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", fmt.Errorf("path %q escapes store root: %w", path, drive.ErrContent)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *DirStore) Read(path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("content %q: %w", path, drive.ErrNotFound)
		}
		return nil, fmt.Errorf("reading content %q: %w: %w", path, drive.ErrContent, err)
	}
	return data, nil
}

// Write stores content atomically: it writes to a temp file in the target
// directory and renames it into place.
func (s *DirStore) Write(path string, content []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating content directory: %w: %w", drive.ErrContent, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w: %w", drive.ErrContent, err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(content); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing content %q: %w: %w", path, drive.ErrContent, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w: %w", drive.ErrContent, err)
	}

	if err := os.Rename(tmpPath, full); err != nil {
		return fmt.Errorf("renaming temp file: %w: %w", drive.ErrContent, err)
	}

	success = true
	return nil
}

func (s *DirStore) Remove(path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("content %q: %w", path, drive.ErrNotFound)
		}
		return fmt.Errorf("removing content %q: %w: %w", path, drive.ErrContent, err)
	}
	return nil
}

func (s *DirStore) Exists(path string) bool {
	full, err := s.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

func (s *DirStore) MTime(path string) (int64, error) {
	info, err := s.stat(path)
	if err != nil {
		return 0, err
	}
	return info.ModTime().UnixMilli(), nil
}

func (s *DirStore) SetMTime(path string, mtime int64) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	t := time.UnixMilli(mtime)
	if err := os.Chtimes(full, t, t); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("content %q: %w", path, drive.ErrNotFound)
		}
		return fmt.Errorf("setting mtime on %q: %w: %w", path, drive.ErrContent, err)
	}
	return nil
}

func (s *DirStore) Size(path string) (int64, error) {
	info, err := s.stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *DirStore) stat(path string) (os.FileInfo, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("content %q: %w", path, drive.ErrNotFound)
		}
		return nil, fmt.Errorf("stating content %q: %w: %w", path, drive.ErrContent, err)
	}
	return info, nil
}

// List returns the file entries directly under the root. Directories are
// omitted.
func (s *DirStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("listing content root: %w: %w", drive.ErrContent, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".tmp-") {
			continue
		}
		paths = append(paths, entry.Name())
	}
	return paths, nil
}

// ListRecursive returns the relative slash-separated paths of all file
// entries under the root, at any depth.
func (s *DirStore) ListRecursive() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking content root: %w: %w", drive.ErrContent, err)
	}
	return paths, nil
}
