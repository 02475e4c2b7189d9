package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/tendant/simple-catalog/pkg/catalog"
	"github.com/tendant/simple-catalog/pkg/catalog/storage"
	"github.com/tendant/simple-catalog/pkg/catalog/storage/memory"
)

type outcomeCounter struct {
	mu sync.Mutex
	n  map[string]int
}

func (c *outcomeCounter) ObserveThumbnail(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == nil {
		c.n = map[string]int{}
	}
	c.n[outcome]++
}

func (c *outcomeCounter) get(outcome string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[outcome]
}

// stripes is wide and has a red left third, green middle and blue right third.
func stripes(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		c := color.RGBA{B: 255, A: 255}
		switch {
		case x < w/3:
			c = color.RGBA{R: 255, A: 255}
		case x < 2*w/3:
			c = color.RGBA{G: 255, A: 255}
		}
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encode(t *testing.T, format string, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch format {
	case "jpeg":
		require.NoError(t, jpeg.Encode(&buf, img, nil))
	case "gif":
		require.NoError(t, gif.Encode(&buf, img, nil))
	case "bmp":
		require.NoError(t, bmp.Encode(&buf, img))
	case "tiff":
		require.NoError(t, tiff.Encode(&buf, img, nil))
	default:
		require.NoError(t, png.Encode(&buf, img))
	}
	return buf.Bytes()
}

func newProcessor(t *testing.T) (*Processor, *memory.Backend, *memory.Backend, *outcomeCounter) {
	t.Helper()
	source, thumbs := memory.New("images"), memory.New("thumbs")
	obs := &outcomeCounter{}
	p, err := NewProcessor(Config{Store: thumbs, Source: source, Observer: obs})
	require.NoError(t, err)
	return p, source, thumbs, obs
}

func TestNewProcessor(t *testing.T) {
	_, err := NewProcessor(Config{})
	assert.Error(t, err)

	p, err := NewProcessor(Config{Store: memory.New("")})
	require.NoError(t, err)
	assert.Equal(t, uint(100), p.cfg.Width)
	assert.Equal(t, "thumb_shoe.png", p.ThumbnailKey("shoe.png"))
}

func TestProcess_Skips(t *testing.T) {
	p, _, thumbs, obs := newProcessor(t)
	ctx := context.Background()
	data := encode(t, "png", stripes(10, 10))

	tests := []struct {
		name string
		data []byte
		want Outcome
	}{
		{"shoe.png", nil, OutcomeSkippedEmpty},
		{"thumb_shoe.png", data, OutcomeSkippedPrefix},
		{"THUMB_shoe.png", data, OutcomeSkippedPrefix},
		{"ab/thumb_shoe.png", data, OutcomeSkippedPrefix},
		{"notes.txt", data, OutcomeSkippedExtension},
		{"noext", data, OutcomeSkippedExtension},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Process(ctx, tt.name, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Outcome)
		})
	}

	keys, err := thumbs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Equal(t, 3, obs.get("skipped_prefix"))
}

func TestProcess_CoverFitAndFormats(t *testing.T) {
	p, _, thumbs, obs := newProcessor(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		format      string
		contentType string
	}{
		{"wide.png", "png", "image/png"},
		{"wide.JPG", "jpeg", "image/jpeg"},
		{"wide.gif", "gif", "image/gif"},
		{"wide.bmp", "bmp", "image/bmp"},
		{"wide.tiff", "tiff", "image/tiff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Process(ctx, tt.name, encode(t, tt.format, stripes(300, 100)))
			require.NoError(t, err)
			assert.Equal(t, OutcomeCreated, res.Outcome)
			assert.Equal(t, "thumb_"+tt.name, res.Key)
			assert.Equal(t, tt.contentType, res.ContentType)

			meta, err := thumbs.GetObjectMeta(ctx, res.Key)
			require.NoError(t, err)
			assert.Equal(t, tt.contentType, meta.ContentType)

			rc, err := thumbs.Download(ctx, res.Key)
			require.NoError(t, err)
			defer rc.Close()
			img, format, err := image.Decode(rc)
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, image.Rect(0, 0, 100, 100), img.Bounds())
		})
	}
	assert.Equal(t, 5, obs.get("created"))
}

func TestCoverFit_CropsCenter(t *testing.T) {
	out := CoverFit(stripes(300, 100), 100, 100)
	require.Equal(t, image.Rect(0, 0, 100, 100), out.Bounds())

	// Only the green middle third survives a centered crop of a 3:1 image.
	r, g, b, _ := out.At(50, 50).RGBA()
	assert.Greater(t, g, r)
	assert.Greater(t, g, b)

	tall := CoverFit(image.NewRGBA(image.Rect(0, 0, 40, 400)), 100, 100)
	assert.Equal(t, image.Rect(0, 0, 100, 100), tall.Bounds())

	small := CoverFit(image.NewRGBA(image.Rect(0, 0, 7, 3)), 100, 100)
	assert.Equal(t, image.Rect(0, 0, 100, 100), small.Bounds())
}

type failingStore struct {
	storage.BlobStore
}

func (failingStore) Upload(ctx context.Context, r io.Reader, params storage.UploadParams) error {
	return errors.New("container unavailable")
}

func TestProcess_Failures(t *testing.T) {
	obs := &outcomeCounter{}
	p, err := NewProcessor(Config{Store: failingStore{memory.New("")}, Observer: obs})
	require.NoError(t, err)
	ctx := context.Background()

	res, err := p.Process(ctx, "broken.png", []byte("not an image"))
	assert.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)

	res, err = p.Process(ctx, "ok.png", encode(t, "png", stripes(10, 10)))
	assert.ErrorContains(t, err, "container unavailable")
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 2, obs.get("failed"))

	_, err = p.ProcessKey(ctx, "ok.png")
	assert.ErrorIs(t, err, errNoSource)
}

func TestWorker_ProcessesUploadedImages(t *testing.T) {
	p, source, thumbs, obs := newProcessor(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, key := range []string{"a.png", "b.png"} {
		require.NoError(t, source.Upload(ctx, bytes.NewReader(encode(t, "png", stripes(30, 20))), storage.UploadParams{ObjectKey: key}))
	}

	w := NewWorker(p, 2, 8)
	w.Start(ctx)
	hook := w.Hook()
	require.NoError(t, hook(catalog.NewHookContext(ctx), catalog.UploadedImage{Key: "a.png"}))
	assert.True(t, w.Enqueue("b.png"))
	w.Stop()

	assert.False(t, w.Enqueue("c.png"), "stopped worker rejects work")
	for _, key := range []string{"thumb_a.png", "thumb_b.png"} {
		ok, err := thumbs.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}
	assert.Equal(t, 2, obs.get("created"))
}

func TestWorker_DrainsQueueAfterCancel(t *testing.T) {
	p, source, thumbs, obs := newProcessor(t)
	ctx, cancel := context.WithCancel(context.Background())

	keys := []string{"a.png", "b.png", "c.png", "d.png", "e.png", "f.png"}
	for _, key := range keys {
		require.NoError(t, source.Upload(ctx, bytes.NewReader(encode(t, "png", stripes(30, 20))), storage.UploadParams{ObjectKey: key}))
	}

	w := NewWorker(p, 1, 8)
	for _, key := range keys {
		require.True(t, w.Enqueue(key))
	}
	w.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	listed, err := thumbs.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, listed, len(keys))
	assert.Equal(t, len(keys), obs.get("created"))
}

func TestBackfill(t *testing.T) {
	p, source, thumbs, _ := newProcessor(t)
	ctx := context.Background()

	png10 := encode(t, "png", stripes(10, 10))
	for _, key := range []string{"a.png", "b.png", "c.png", "notes.txt", "bad.png"} {
		data := png10
		if key == "bad.png" {
			data = []byte("garbage")
		}
		require.NoError(t, source.Upload(ctx, bytes.NewReader(data), storage.UploadParams{ObjectKey: key}))
	}
	require.NoError(t, thumbs.Upload(ctx, strings.NewReader("old"), storage.UploadParams{ObjectKey: "thumb_c.png"}))

	report, err := p.Backfill(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, &BackfillReport{Scanned: 5, Created: 2, Skipped: 2, Failed: 1}, report)

	rc, err := thumbs.Download(ctx, "thumb_c.png")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "old", string(data), "existing thumbnails are left alone")
}
