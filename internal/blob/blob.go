// Package blob abstracts the object storage holding release artifacts
// and published manifests under a releases/{channel}/{version} key
// namespace.
package blob

import (
	"context"
	"errors"
	"io"
)

var (
	ErrExists   = errors.New("object already exists")
	ErrNotFound = errors.New("object not found")
)

// Entry is one listing result under a prefix.
type Entry struct {
	Name  string
	IsDir bool
	Size  int64
}

// Store is the blob collaborator. All operations are bounded and
// fallible; retries belong to implementations, not callers.
type Store interface {
	// Upload writes an object. Without overwrite an existing object
	// fails with ErrExists.
	Upload(ctx context.Context, path string, r io.Reader, contentType string, overwrite bool) error
	// Open reads an object back.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// List returns the immediate children of a prefix, distinguishing
	// files from sub-folders.
	List(ctx context.Context, prefix string) ([]Entry, error)
	// Remove deletes the given objects. Missing objects are not errors.
	Remove(ctx context.Context, paths []string) error
}

// RemovePrefix deletes everything under a prefix by walking the listing
// tree. Idempotent: an absent prefix is success.
func RemovePrefix(ctx context.Context, s Store, prefix string) error {
	entries, err := s.List(ctx, prefix)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	var files []string
	for _, e := range entries {
		child := prefix + "/" + e.Name
		if e.IsDir {
			if err := RemovePrefix(ctx, s, child); err != nil {
				return err
			}
			continue
		}
		files = append(files, child)
	}
	if len(files) == 0 {
		return nil
	}
	return s.Remove(ctx, files)
}
