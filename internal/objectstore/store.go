package objectstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// Store errors
var (
	ErrInvalidPath  = errors.New("invalid object path")
	ErrObjectExists = errors.New("object already exists")
)

// Store persists review attachments
type Store interface {
	// Upload writes the object at p, which must not already exist
	Upload(ctx context.Context, p, contentType string, r io.Reader) error

	// ListFolders returns the names of the immediate sub-folders of prefix
	ListFolders(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the given objects; missing objects are not an error
	Delete(ctx context.Context, paths ...string) error

	// Ping checks backend availability
	Ping(ctx context.Context) error
}

// CleanPath normalizes an object path and rejects paths that escape the bucket root
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return "", ErrInvalidPath
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+p), "/")
	if cleaned == "" || cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}
