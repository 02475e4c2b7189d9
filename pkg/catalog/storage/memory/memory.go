package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-catalog/pkg/catalog/storage"
)

type object struct {
	data        []byte
	contentType string
	metadata    map[string]string
	updatedAt   time.Time
}

// Backend is an in-memory implementation of the storage.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	name    string
	objects map[string]*object
}

// New creates a new in-memory storage backend. The name becomes the host
// part of signed URLs so that URLs from different containers can be told apart.
func New(name string) *Backend {
	if name == "" {
		name = "memory"
	}
	return &Backend{
		name:    name,
		objects: make(map[string]*object),
	}
}

// Name returns the container name of the backend
func (b *Backend) Name() string {
	return b.name
}

// GetObjectMeta retrieves metadata for an object in memory
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*storage.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, storage.ErrObjectNotFound
	}

	metadata := make(map[string]string, len(obj.metadata))
	for k, v := range obj.metadata {
		metadata[k] = v
	}

	return &storage.ObjectMeta{
		Key:         objectKey,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		UpdatedAt:   obj.updatedAt,
		Metadata:    metadata,
	}, nil
}

// Exists reports whether the key is stored
func (b *Backend) Exists(ctx context.Context, objectKey string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, exists := b.objects[objectKey]
	return exists, nil
}

// SignedReadURL returns a memory:// URL carrying the expiry; there is nothing
// to authenticate against so no signature is attached.
func (b *Backend) SignedReadURL(ctx context.Context, objectKey string, expiresAt time.Time) (string, error) {
	b.mu.RLock()
	_, exists := b.objects[objectKey]
	b.mu.RUnlock()
	if !exists {
		return "", storage.ErrObjectNotFound
	}

	u := url.URL{
		Scheme:   "memory",
		Host:     b.name,
		Path:     "/" + objectKey,
		RawQuery: url.Values{"sp": {"r"}, "se": {fmt.Sprintf("%d", expiresAt.Unix())}}.Encode(),
	}
	return u.String(), nil
}

// Upload uploads content directly
func (b *Backend) Upload(ctx context.Context, reader io.Reader, params storage.UploadParams) error {
	if params.ObjectKey == "" {
		return fmt.Errorf("object key is required")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	contentType := params.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	metadata := make(map[string]string, len(params.Metadata))
	for k, v := range params.Metadata {
		metadata[k] = v
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[params.ObjectKey] = &object{
		data:        data,
		contentType: contentType,
		metadata:    metadata,
		updatedAt:   time.Now().UTC(),
	}
	return nil
}

// Download downloads content directly
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, storage.ErrObjectNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return storage.ErrObjectNotFound
	}

	delete(b.objects, objectKey)
	return nil
}

// List returns the stored keys with the given prefix in lexical order
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
