// Package thumbnail generates fixed-size cover-fit thumbnails for product
// images and stores them under the thumbnail prefix in a second container.
package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"math"
	"path"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/tendant/simple-catalog/pkg/catalog/storage"
)

// Defaults applied by NewProcessor.
const (
	DefaultWidth       = 100
	DefaultHeight      = 100
	DefaultPrefix      = "thumb_"
	DefaultJPEGQuality = 80
)

// SupportedExtensions lists the source extensions that are thumbnailed.
var SupportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
	".tiff": true,
	".bmp":  true,
}

// Outcome of processing one object.
type Outcome string

const (
	OutcomeCreated          Outcome = "created"
	OutcomeSkippedEmpty     Outcome = "skipped_empty"
	OutcomeSkippedPrefix    Outcome = "skipped_prefix"
	OutcomeSkippedExtension Outcome = "skipped_extension"
	OutcomeSkippedExists    Outcome = "skipped_exists"
	OutcomeFailed           Outcome = "failed"
)

// Skipped reports whether the object was deliberately left alone.
func (o Outcome) Skipped() bool {
	return strings.HasPrefix(string(o), "skipped_")
}

// Result describes one processed object.
type Result struct {
	Source      string
	Key         string
	Outcome     Outcome
	ContentType string
	Size        int
}

// Observer receives outcomes. metrics.Recorder implements it.
type Observer interface {
	ObserveThumbnail(outcome string)
}

// Config for a Processor.
type Config struct {
	Store       storage.BlobStore // where thumbnails are written
	Source      storage.BlobStore // where originals are read from; needed by ProcessKey and Backfill
	Width       uint
	Height      uint
	Prefix      string
	JPEGQuality int
	Observer    Observer
	Logger      *slog.Logger
}

var errNoSource = errors.New("thumbnail: source store is not configured")

// Processor turns images into thumbnails.
type Processor struct {
	cfg Config
}

// NewProcessor validates cfg and applies defaults
func NewProcessor(cfg Config) (*Processor, error) {
	if cfg.Store == nil {
		return nil, errors.New("thumbnail: store is required")
	}
	if cfg.Width == 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height == 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Processor{cfg: cfg}, nil
}

// ThumbnailKey returns the key a thumbnail of name is stored under
func (p *Processor) ThumbnailKey(name string) string {
	return p.cfg.Prefix + name
}

// Classify decides whether name with the given size would be processed.
// It returns OutcomeCreated for objects that should be thumbnailed.
func (p *Processor) Classify(name string, size int) Outcome {
	if size == 0 {
		return OutcomeSkippedEmpty
	}
	if strings.HasPrefix(strings.ToLower(path.Base(name)), strings.ToLower(p.cfg.Prefix)) ||
		strings.HasPrefix(strings.ToLower(name), strings.ToLower(p.cfg.Prefix)) {
		return OutcomeSkippedPrefix
	}
	if !SupportedExtensions[strings.ToLower(path.Ext(name))] {
		return OutcomeSkippedExtension
	}
	return OutcomeCreated
}

// Process creates and uploads the thumbnail for an object named name.
// Skipped objects return a Result and a nil error.
func (p *Processor) Process(ctx context.Context, name string, data []byte) (*Result, error) {
	res := &Result{Source: name, Key: p.ThumbnailKey(name)}

	if outcome := p.Classify(name, len(data)); outcome.Skipped() {
		res.Outcome = outcome
		p.cfg.Logger.DebugContext(ctx, "thumbnail skipped", "name", name, "outcome", outcome)
		p.observe(outcome)
		return res, nil
	}

	encoded, contentType, err := p.render(data)
	if err != nil {
		return p.fail(ctx, res, err)
	}

	err = p.cfg.Store.Upload(ctx, bytes.NewReader(encoded), storage.UploadParams{
		ObjectKey: res.Key,
		MimeType:  contentType,
	})
	if err != nil {
		return p.fail(ctx, res, fmt.Errorf("upload thumbnail: %w", err))
	}

	res.Outcome = OutcomeCreated
	res.ContentType = contentType
	res.Size = len(encoded)
	p.cfg.Logger.InfoContext(ctx, "thumbnail created", "name", name, "key", res.Key, "content_type", contentType, "size", res.Size)
	p.observe(OutcomeCreated)
	return res, nil
}

// ProcessKey downloads key from the source store and processes it.
func (p *Processor) ProcessKey(ctx context.Context, key string) (*Result, error) {
	if p.cfg.Source == nil {
		return nil, errNoSource
	}
	rc, err := p.cfg.Source.Download(ctx, key)
	if err != nil {
		return p.fail(ctx, &Result{Source: key, Key: p.ThumbnailKey(key)}, fmt.Errorf("download original: %w", err))
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return p.fail(ctx, &Result{Source: key, Key: p.ThumbnailKey(key)}, fmt.Errorf("read original: %w", err))
	}
	return p.Process(ctx, key, data)
}

func (p *Processor) render(data []byte) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	thumb := CoverFit(img, p.cfg.Width, p.cfg.Height)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: p.cfg.JPEGQuality})
		return buf.Bytes(), "image/jpeg", wrapEncode(err)
	case "gif":
		err = gif.Encode(&buf, thumb, nil)
		return buf.Bytes(), "image/gif", wrapEncode(err)
	case "bmp":
		err = bmp.Encode(&buf, thumb)
		return buf.Bytes(), "image/bmp", wrapEncode(err)
	case "tiff":
		err = tiff.Encode(&buf, thumb, &tiff.Options{Compression: tiff.Deflate})
		return buf.Bytes(), "image/tiff", wrapEncode(err)
	default:
		// There is no webp encoder; webp sources get a PNG body.
		err = png.Encode(&buf, thumb)
		return buf.Bytes(), "image/png", wrapEncode(err)
	}
}

func wrapEncode(err error) error {
	if err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	return nil
}

func (p *Processor) fail(ctx context.Context, res *Result, err error) (*Result, error) {
	res.Outcome = OutcomeFailed
	p.cfg.Logger.ErrorContext(ctx, "thumbnail failed", "name", res.Source, "err", err)
	p.observe(OutcomeFailed)
	return res, err
}

func (p *Processor) observe(outcome Outcome) {
	if p.cfg.Observer != nil {
		p.cfg.Observer.ObserveThumbnail(string(outcome))
	}
}

// CoverFit scales img so that it covers width x height and crops the
// overflow equally from both sides.
func CoverFit(img image.Image, width, height uint) image.Image {
	b := img.Bounds()
	srcW, srcH := float64(b.Dx()), float64(b.Dy())
	scale := math.Max(float64(width)/srcW, float64(height)/srcH)

	scaledW := uint(math.Max(math.Ceil(srcW*scale), float64(width)))
	scaledH := uint(math.Max(math.Ceil(srcH*scale), float64(height)))
	scaled := resize.Resize(scaledW, scaledH, img, resize.Lanczos3)

	sb := scaled.Bounds()
	x0 := sb.Min.X + (sb.Dx()-int(width))/2
	y0 := sb.Min.Y + (sb.Dy()-int(height))/2

	out := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	draw.Draw(out, out.Bounds(), scaled, image.Point{X: x0, Y: y0}, draw.Src)
	return out
}
