// Package storage provides object storage abstractions for the external
// file store holding source files and partition segments.
package storage

import (
	"context"
	"errors"
	"io"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts the external file store. The store's lifecycle is
// not managed here: source files are read-only inputs and segment objects
// are only ever written whole and replaced, never mutated.
// Implementations include S3 and local filesystem.
type ObjectStorage interface {
	// Upload uploads a local file to object storage.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download downloads an object to a local file.
	Download(ctx context.Context, objectPath, localPath string) error

	// OpenObject returns a streaming reader over an object. The caller
	// must close the returned reader. Used to stream source CSV files
	// without staging them on disk.
	OpenObject(ctx context.Context, objectPath string) (io.ReadCloser, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks if an object exists.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under the given prefix.
	// Used by verification to detect orphaned segments.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
