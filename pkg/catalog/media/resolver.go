// Package media decides which image URL a catalog client should see.
//
// A product image carries its release instant as the ReleaseDate metadata
// entry of the stored object. Before that instant clients get a signed URL to
// a shared placeholder; afterwards they get a signed URL to the image itself,
// or to its pre-generated thumbnail when thumbnails are preferred and one
// exists. Resolution only reads from storage.
package media

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-catalog/pkg/catalog/storage"
)

// Defaults applied by New for zero-valued Config fields.
const (
	DefaultPlaceholderKey   = "comingsoon.png"
	DefaultThumbnailPrefix  = "thumb_"
	DefaultURLValidity      = time.Hour
	DefaultBatchConcurrency = 8

	// ReleaseDateKey is the object metadata entry holding the release instant.
	ReleaseDateKey = "ReleaseDate"
)

// Kind identifies which object a Resolution points at.
type Kind string

const (
	KindOriginal    Kind = "original"
	KindThumbnail   Kind = "thumbnail"
	KindPlaceholder Kind = "placeholder"
)

// Resolution is the outcome of resolving one image reference.
type Resolution struct {
	URL       string    `json:"url"`
	Kind      Kind      `json:"kind"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Reader is the subset of storage.BlobStore the resolver needs.
type Reader interface {
	GetObjectMeta(ctx context.Context, objectKey string) (*storage.ObjectMeta, error)
	Exists(ctx context.Context, objectKey string) (bool, error)
	SignedReadURL(ctx context.Context, objectKey string, expiresAt time.Time) (string, error)
}

// Observer receives resolution outcomes. metrics.Recorder implements it.
type Observer interface {
	ObserveResolution(kind string)
	ObserveResolutionError(reason string)
}

// Config is injected into New; there is no package-level state.
type Config struct {
	Primary          Reader // full-size images and the placeholder
	Thumbnails       Reader // optional
	PlaceholderKey   string
	ThumbnailPrefix  string
	URLValidity      time.Duration
	PreferThumbnails bool
	BatchConcurrency int
	Clock            func() time.Time // used when Resolve is called with a zero now
	Observer         Observer
	Logger           *slog.Logger
}

// Resolver resolves image references to signed URLs.
type Resolver struct {
	cfg Config
}

// New validates cfg and fills defaults.
func New(cfg Config) (*Resolver, error) {
	if cfg.Primary == nil {
		return nil, errors.New("media: primary store is required")
	}
	if cfg.PlaceholderKey == "" {
		cfg.PlaceholderKey = DefaultPlaceholderKey
	}
	if cfg.ThumbnailPrefix == "" {
		cfg.ThumbnailPrefix = DefaultThumbnailPrefix
	}
	if cfg.URLValidity <= 0 {
		cfg.URLValidity = DefaultURLValidity
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = DefaultBatchConcurrency
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Resolver{cfg: cfg}, nil
}

// ThumbnailKey returns the thumbnail object key for an image reference.
func (r *Resolver) ThumbnailKey(imageReference string) string {
	return r.cfg.ThumbnailPrefix + imageReference
}

// Resolve picks the placeholder, the thumbnail or the original for
// imageReference as of now. A zero now means the configured clock.
func (r *Resolver) Resolve(ctx context.Context, imageReference string, now time.Time) (*Resolution, error) {
	if now.IsZero() {
		now = r.cfg.Clock()
	}
	if imageReference == "" {
		r.fail("not_found")
		return nil, newResolveError(imageReference, "lookup", ErrNotFound, nil)
	}

	meta, err := r.cfg.Primary.GetObjectMeta(ctx, imageReference)
	if err != nil {
		if storage.IsNotFound(err) {
			r.fail("not_found")
			return nil, newResolveError(imageReference, "lookup", ErrNotFound, err)
		}
		r.fail("metadata")
		return nil, newResolveError(imageReference, "lookup", ErrStorageUnavailable, err)
	}

	expiresAt := now.Add(r.cfg.URLValidity)

	if now.Unix() < ReleaseInstant(meta) {
		return r.sign(ctx, r.cfg.Primary, r.cfg.PlaceholderKey, KindPlaceholder, expiresAt)
	}

	if thumb := r.probeThumbnail(ctx, imageReference, expiresAt); thumb != nil {
		r.observe(KindThumbnail)
		return thumb, nil
	}
	return r.sign(ctx, r.cfg.Primary, imageReference, KindOriginal, expiresAt)
}

// ResolveAll resolves refs concurrently. Results line up with refs; the
// first failure fails the whole batch.
func (r *Resolver) ResolveAll(ctx context.Context, refs []string, now time.Time) ([]*Resolution, error) {
	if now.IsZero() {
		now = r.cfg.Clock()
	}
	out := make([]*Resolution, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.BatchConcurrency)
	for i, ref := range refs {
		g.Go(func() error {
			res, err := r.Resolve(gctx, ref, now)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) sign(ctx context.Context, store Reader, key string, kind Kind, expiresAt time.Time) (*Resolution, error) {
	url, err := store.SignedReadURL(ctx, key, expiresAt)
	if err != nil {
		r.fail("sign")
		return nil, newResolveError(key, "sign", ErrStorageUnavailable, err)
	}
	r.observe(kind)
	return &Resolution{URL: url, Kind: kind, Key: key, ExpiresAt: expiresAt}, nil
}

// probeThumbnail returns nil whenever the original should be used instead.
func (r *Resolver) probeThumbnail(ctx context.Context, imageReference string, expiresAt time.Time) *Resolution {
	if !r.cfg.PreferThumbnails || r.cfg.Thumbnails == nil {
		return nil
	}
	key := r.ThumbnailKey(imageReference)

	probe := probeObject(ctx, r.cfg.Thumbnails, key)
	switch probe.state {
	case probeAbsent:
		return nil
	case probeFailed:
		r.cfg.Logger.Debug("thumbnail probe failed, using original", "key", key, "err", probe.err)
		return nil
	}

	url, err := r.cfg.Thumbnails.SignedReadURL(ctx, key, expiresAt)
	if err != nil {
		r.cfg.Logger.Debug("thumbnail signing failed, using original", "key", key, "err", err)
		return nil
	}
	return &Resolution{URL: url, Kind: KindThumbnail, Key: key, ExpiresAt: expiresAt}
}

func (r *Resolver) observe(kind Kind) {
	if r.cfg.Observer != nil {
		r.cfg.Observer.ObserveResolution(string(kind))
	}
}

func (r *Resolver) fail(reason string) {
	if r.cfg.Observer != nil {
		r.cfg.Observer.ObserveResolutionError(reason)
	}
}

type probeState int

const (
	probeFound probeState = iota
	probeAbsent
	probeFailed
)

// probeResult distinguishes a missing object from a failed lookup.
type probeResult struct {
	state probeState
	err   error
}

func probeObject(ctx context.Context, store Reader, key string) probeResult {
	ok, err := store.Exists(ctx, key)
	switch {
	case err != nil && storage.IsNotFound(err):
		return probeResult{state: probeAbsent}
	case err != nil:
		return probeResult{state: probeFailed, err: err}
	case !ok:
		return probeResult{state: probeAbsent}
	default:
		return probeResult{state: probeFound}
	}
}

// ReleaseInstant returns the Unix seconds stored in the ReleaseDate metadata
// entry, or 0 when it is absent or not a valid timestamp.
func ReleaseInstant(meta *storage.ObjectMeta) int64 {
	raw, ok := meta.Value(ReleaseDateKey)
	if !ok {
		return 0
	}
	t, ok := ParseReleaseDate(raw)
	if !ok {
		return 0
	}
	return t.Unix()
}

var releaseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseReleaseDate accepts ISO-8601 round-trip timestamps, with or without a
// zone designator. Timestamps without a zone are taken as UTC.
func ParseReleaseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range releaseLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatReleaseDate renders t in the round-trip form stored as ReleaseDate.
func FormatReleaseDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
