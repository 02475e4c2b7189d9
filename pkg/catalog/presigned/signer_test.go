package presigned

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestSigner() *Signer {
	return New(
		WithSecretKey("test-secret-key-at-least-32-bytes!!"),
		WithURLPattern("/media/{key}"),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func TestSigner_SignAndValidate(t *testing.T) {
	signer := newTestSigner()
	expiresAt := fixedNow.Add(time.Hour)

	signed, err := signer.SignURL(http.MethodGet, "/media/shoe1.png", expiresAt)
	require.NoError(t, err)
	assert.Contains(t, signed, "/media/shoe1.png?signature=")
	assert.Contains(t, signed, "&expires=1704070800")

	req := httptest.NewRequest(http.MethodGet, signed, nil)
	assert.NoError(t, signer.ValidateRequest(req))

	head := httptest.NewRequest(http.MethodHead, signed, nil)
	assert.NoError(t, signer.ValidateRequest(head))
}

func TestSigner_NoSecretKey(t *testing.T) {
	signer := New()
	_, err := signer.SignURL(http.MethodGet, "/media/a.png", fixedNow)
	assert.ErrorIs(t, err, ErrNoSecretKey)
	assert.False(t, signer.IsEnabled())
}

func TestSigner_ValidateFailures(t *testing.T) {
	signer := newTestSigner()

	signed, err := signer.SignURL(http.MethodGet, "/media/shoe1.png", fixedNow.Add(time.Hour))
	require.NoError(t, err)
	expired, err := signer.SignURL(http.MethodGet, "/media/shoe1.png", fixedNow.Add(-time.Second))
	require.NoError(t, err)

	tests := []struct {
		name    string
		method  string
		target  string
		wantErr error
	}{
		{"missing signature", http.MethodGet, "/media/shoe1.png?expires=1704070800", ErrMissingSignature},
		{"missing expires", http.MethodGet, "/media/shoe1.png?signature=abc", ErrMissingExpiration},
		{"bad expires", http.MethodGet, "/media/shoe1.png?signature=abc&expires=soon", ErrInvalidExpiration},
		{"expired", http.MethodGet, expired, ErrExpired},
		{"wrong method", http.MethodPut, signed, ErrInvalidSignature},
		{"tampered signature", http.MethodGet, "/media/shoe1.png?signature=00&expires=1704070800", ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			err := signer.ValidateRequest(req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsAuthError(err))
		})
	}
}

func TestSigner_ExtractObjectKey(t *testing.T) {
	signer := newTestSigner()

	key, err := signer.ExtractObjectKey("/media/thumb_shoe1.png")
	require.NoError(t, err)
	assert.Equal(t, "thumb_shoe1.png", key)

	_, err = signer.ExtractObjectKey("/other/shoe1.png")
	assert.Error(t, err)

	_, err = signer.ExtractObjectKey("/media/")
	assert.Error(t, err)

	assert.Equal(t, "/media/a/b.png", signer.PathForKey("a/b.png"))
}

func TestValidateMiddleware(t *testing.T) {
	signer := newTestSigner()
	var gotKey string
	handler := ValidateMiddlewareWithSigner(signer, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = ObjectKeyFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	signed, err := signer.SignURLWithBase("http://example.com/", http.MethodGet, "/media/shoe1.png", fixedNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Contains(t, signed, "http://example.com/media/shoe1.png?")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, signed, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "shoe1.png", gotKey)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/media/shoe1.png", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	expired, err := signer.SignURL(http.MethodGet, "/media/shoe1.png", fixedNow.Add(-time.Minute))
	require.NoError(t, err)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, expired, nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
