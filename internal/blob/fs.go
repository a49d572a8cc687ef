package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSStore keeps blobs on the local filesystem under a root directory,
// mirroring the blob key namespace as folders.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FSStore{root: root}, nil
}

// resolve maps a blob key to a path inside the root, rejecting keys
// that would escape it.
func (s *FSStore) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FSStore) Upload(ctx context.Context, path string, r io.Reader, contentType string, overwrite bool) error {
	dst, err := s.resolve(path)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("%s: %w", path, ErrExists)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("commit %s: %w", path, err)
	}
	return nil
}

func (s *FSStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	p, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}

func (s *FSStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	p, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}
	dirents, err := os.ReadDir(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", prefix, ErrNotFound)
		}
		return nil, err
	}
	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		e := Entry{Name: d.Name(), IsDir: d.IsDir()}
		if info, err := d.Info(); err == nil && !d.IsDir() {
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *FSStore) Remove(ctx context.Context, paths []string) error {
	for _, key := range paths {
		p, err := s.resolve(key)
		if err != nil {
			return err
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", key, err)
		}
		// drop now-empty parent folders up to the root
		for dir := filepath.Dir(p); dir != s.root; dir = filepath.Dir(dir) {
			if os.Remove(dir) != nil {
				break
			}
		}
	}
	return nil
}
