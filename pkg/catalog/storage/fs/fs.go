package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/tendant/simple-catalog/pkg/catalog/presigned"
	"github.com/tendant/simple-catalog/pkg/catalog/storage"
)

// User metadata lives beside the data in a hidden tree so List never sees it.
const metaDir = ".meta"

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing files
	BaseURL string // Public base URL that serves the signed media paths
	Signer  *presigned.Signer
}

type sidecar struct {
	ContentType string            `json:"content_type"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Backend is a filesystem implementation of the storage.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	baseDir string
	baseURL string
	signer  *presigned.Signer
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if config.Signer == nil || !config.Signer.IsEnabled() {
		return nil, errors.New("a signer with a secret key is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir: config.BaseDir,
		baseURL: config.BaseURL,
		signer:  config.Signer,
	}, nil
}

// path resolves an object key below baseDir, refusing keys that escape it.
func (b *Backend) path(objectKey string) (string, error) {
	if objectKey == "" {
		return "", errors.New("object key is required")
	}
	clean := filepath.Clean("/" + objectKey)
	if strings.HasPrefix(clean, "/"+metaDir+"/") || clean == "/"+metaDir {
		return "", fmt.Errorf("invalid object key %q", objectKey)
	}
	return filepath.Join(b.baseDir, clean), nil
}

func (b *Backend) sidecarPath(objectKey string) string {
	return filepath.Join(b.baseDir, metaDir, filepath.Clean("/"+objectKey)+".json")
}

func (b *Backend) readSidecar(objectKey string) sidecar {
	var sc sidecar
	data, err := os.ReadFile(b.sidecarPath(objectKey))
	if err == nil {
		_ = json.Unmarshal(data, &sc)
	}
	return sc
}

// GetObjectMeta retrieves metadata for an object in the filesystem
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*storage.ObjectMeta, error) {
	filePath, err := b.path(objectKey)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, storage.ErrObjectNotFound
	} else if err != nil {
		return nil, &storage.StorageError{Backend: "fs", Key: objectKey, Op: "stat", Err: err}
	}

	sc := b.readSidecar(objectKey)
	contentType := sc.ContentType
	if contentType == "" {
		contentType = detectContentType(filePath)
	}
	metadata := make(map[string]string, len(sc.Metadata))
	for k, v := range sc.Metadata {
		metadata[k] = v
	}

	return &storage.ObjectMeta{
		Key:         objectKey,
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime(),
		Metadata:    metadata,
	}, nil
}

func detectContentType(filePath string) string {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return "application/octet-stream"
	}
	return mtype.String()
}

// Exists reports whether a regular file is stored under the key
func (b *Backend) Exists(ctx context.Context, objectKey string) (bool, error) {
	filePath, err := b.path(objectKey)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, &storage.StorageError{Backend: "fs", Key: objectKey, Op: "exists", Err: err}
	}
	return info.Mode().IsRegular(), nil
}

// SignedReadURL returns an HMAC-signed URL served by Handler behind the
// presigned validation middleware.
func (b *Backend) SignedReadURL(ctx context.Context, objectKey string, expiresAt time.Time) (string, error) {
	if _, err := b.path(objectKey); err != nil {
		return "", err
	}
	return b.signer.SignURLWithBase(b.baseURL, http.MethodGet, b.signer.PathForKey(objectKey), expiresAt)
}

// Upload writes content and its sidecar metadata
func (b *Backend) Upload(ctx context.Context, reader io.Reader, params storage.UploadParams) error {
	filePath, err := b.path(params.ObjectKey)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	sc := sidecar{ContentType: params.MimeType, Metadata: params.Metadata}
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	scPath := b.sidecarPath(params.ObjectKey)
	if err := os.MkdirAll(filepath.Dir(scPath), 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}
	if err := os.WriteFile(scPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}

// Download downloads content directly from the filesystem
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	filePath, err := b.path(objectKey)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, storage.ErrObjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete deletes content from the filesystem
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	filePath, err := b.path(objectKey)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return storage.ErrObjectNotFound
	}
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	_ = os.Remove(b.sidecarPath(objectKey))

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == filepath.Clean(b.baseDir) {
		return
	}
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}

// List walks the base directory and returns keys starting with prefix
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var keys []string
	err := filepath.WalkDir(b.baseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == metaDir {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(b.baseDir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, &storage.StorageError{Backend: "fs", Key: prefix, Op: "list", Err: err}
	}

	sort.Strings(keys)
	return keys, nil
}

// Handler serves object bytes for requests that already passed
// presigned.ValidateMiddlewareWithSigner.
func (b *Backend) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		objectKey := presigned.ObjectKeyFromContext(r.Context())
		meta, err := b.GetObjectMeta(r.Context(), objectKey)
		if err != nil {
			if storage.IsNotFound(err) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		filePath, _ := b.path(objectKey)
		w.Header().Set("Content-Type", meta.ContentType)
		http.ServeFile(w, r, filePath)
	})
}
