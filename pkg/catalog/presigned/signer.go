// Package presigned issues and verifies HMAC-signed, time-limited read URLs
// for storage backends that have no native URL signing (the filesystem
// backend). The format mirrors S3 presigned URLs closely enough that clients
// treat both the same way.
//
//	signer := presigned.New(presigned.WithSecretKey(secret), presigned.WithURLPattern("/media/{key}"))
//	url, err := signer.SignURLWithBase("https://cdn.example.com", http.MethodGet, "/media/shoe1.png", expiresAt)
//
//	r.Handle("/media/*", presigned.ValidateMiddlewareWithSigner(signer, mediaHandler))
package presigned

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Signer generates and validates HMAC-signed presigned URLs
type Signer struct {
	secretKey  []byte
	urlPattern string // e.g., "/media/{key}"
	now        func() time.Time
}

// New creates a new Signer with the given options
func New(opts ...Option) *Signer {
	s := &Signer{
		urlPattern: "/media/{key}",
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SignURL returns path with signature and expires query parameters appended.
//
//	url, err := signer.SignURL("GET", "/media/shoe1.png", expiresAt)
//	// /media/shoe1.png?signature=abc123...&expires=1704070800
func (s *Signer) SignURL(method, path string, expiresAt time.Time) (string, error) {
	if len(s.secretKey) == 0 {
		return "", ErrNoSecretKey
	}

	expires := expiresAt.Unix()
	signature := s.generateSignature(s.createPayload(method, path, expires))

	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%ssignature=%s&expires=%d", path, separator, signature, expires), nil
}

// SignURLWithBase generates a presigned URL with a base URL prefix
func (s *Signer) SignURLWithBase(baseURL, method, path string, expiresAt time.Time) (string, error) {
	signedPath, err := s.SignURL(method, path, expiresAt)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(baseURL, "/") + signedPath, nil
}

// PathForKey renders the configured URL pattern for an object key
func (s *Signer) PathForKey(objectKey string) string {
	return strings.Replace(s.urlPattern, "{key}", objectKey, 1)
}

// ValidateRequest validates the signature and expiration of an HTTP request
func (s *Signer) ValidateRequest(r *http.Request) error {
	if len(s.secretKey) == 0 {
		return nil
	}

	query := r.URL.Query()
	signature := query.Get("signature")
	expiresStr := query.Get("expires")

	if signature == "" {
		return ErrMissingSignature
	}
	if expiresStr == "" {
		return ErrMissingExpiration
	}

	expiresAt, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExpiration, err)
	}

	// Any other query parameters were part of the signed path.
	path := r.URL.Path
	cleanQuery := url.Values{}
	for k, v := range query {
		if k != "signature" && k != "expires" {
			cleanQuery[k] = v
		}
	}
	if len(cleanQuery) > 0 {
		path = path + "?" + cleanQuery.Encode()
	}

	// HEAD requests are allowed on GET signatures.
	method := r.Method
	if method == http.MethodHead {
		method = http.MethodGet
	}

	return s.Validate(method, path, signature, expiresAt)
}

// Validate validates the signature and expiration for a given method, path, signature, and expiration timestamp
func (s *Signer) Validate(method, path, signature string, expiresAt int64) error {
	if s.now().Unix() > expiresAt {
		return ErrExpired
	}

	expected := s.generateSignature(s.createPayload(method, path, expiresAt))
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}

	return nil
}

// ExtractObjectKey extracts the object key from a URL path based on the configured URL pattern
func (s *Signer) ExtractObjectKey(path string) (string, error) {
	const placeholder = "{key}"

	idx := strings.Index(s.urlPattern, placeholder)
	if idx == -1 {
		return "", fmt.Errorf("URL pattern does not contain {key} placeholder")
	}

	prefix := s.urlPattern[:idx]
	suffix := s.urlPattern[idx+len(placeholder):]

	if !strings.HasPrefix(path, prefix) {
		return "", fmt.Errorf("path does not match URL pattern prefix")
	}

	key := strings.TrimPrefix(path, prefix)
	if suffix != "" {
		key = strings.TrimSuffix(key, suffix)
	}
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}

	return key, nil
}

// IsEnabled returns true if signature validation is enabled (secret key is set)
func (s *Signer) IsEnabled() bool {
	return len(s.secretKey) > 0
}

// METHOD|PATH|EXPIRES
func (s *Signer) createPayload(method, path string, expiresAt int64) string {
	return fmt.Sprintf("%s|%s|%d", method, path, expiresAt)
}

func (s *Signer) generateSignature(payload string) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}
