// Package storage defines the object storage contract shared by the catalog
// service, the media resolver and the thumbnailer.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrObjectNotFound is returned by every BlobStore when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)

	// Exists reports whether an object is present
	Exists(ctx context.Context, objectKey string) (bool, error)

	// SignedReadURL returns a read-only URL for the object that stops working at expiresAt
	SignedReadURL(ctx context.Context, objectKey string, expiresAt time.Time) (string, error)

	// Upload stores content together with its user metadata
	Upload(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download downloads content directly
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete deletes content
	Delete(ctx context.Context, objectKey string) error

	// List returns the keys starting with prefix
	List(ctx context.Context, prefix string) ([]string, error)
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// Value looks up a user metadata entry ignoring case. S3 returns user
// metadata keys lower-cased, so "ReleaseDate" comes back as "releasedate".
func (m *ObjectMeta) Value(key string) (string, bool) {
	if m == nil || m.Metadata == nil {
		return "", false
	}
	if v, ok := m.Metadata[key]; ok {
		return v, true
	}
	for k, v := range m.Metadata {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
	Metadata  map[string]string
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}
