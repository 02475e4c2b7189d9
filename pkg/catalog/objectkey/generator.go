package objectkey

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates an object key for an uploaded image
	GenerateKey(id uuid.UUID, metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	FileName    string
	ContentType string
}

// FlatGenerator produces "<uuid><ext>" keys at the container root
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) GenerateKey(id uuid.UUID, metadata *KeyMetadata) string {
	return id.String() + Extension(metadata)
}

// ShardedGenerator provides Git-style sharding of the flat key
// Example: 98/7fcdeb51a243d19f12345678901234.png
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{ShardLength: 2}
}

func (g *ShardedGenerator) GenerateKey(id uuid.UUID, metadata *KeyMetadata) string {
	idStr := strings.ReplaceAll(id.String(), "-", "")

	shard := g.ShardLength
	if shard <= 0 || shard > len(idStr) {
		shard = 2
	}
	return fmt.Sprintf("%s/%s%s", idStr[:shard], idStr[shard:], Extension(metadata))
}

// Key layouts accepted by NewGenerator
const (
	LayoutFlat    = "flat"
	LayoutSharded = "sharded"
)

// NewGenerator returns the generator for a named layout. An empty layout
// means flat.
func NewGenerator(layout string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(layout)) {
	case "", LayoutFlat:
		return NewFlatGenerator(), nil
	case LayoutSharded:
		return NewShardedGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown key layout %q (want %s or %s)", layout, LayoutFlat, LayoutSharded)
	}
}

var extByContentType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
}

// Extension returns the lower-cased extension of the file name, falling back
// to one derived from the content type. It returns "" when neither is known.
func Extension(metadata *KeyMetadata) string {
	if metadata == nil {
		return ""
	}
	if ext := sanitizeExtension(path.Ext(metadata.FileName)); ext != "" {
		return ext
	}
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(metadata.ContentType, ";", 2)[0]))
	return extByContentType[ct]
}

// sanitizeExtension keeps only a short alphanumeric extension
func sanitizeExtension(ext string) string {
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	ext = strings.ToLower(ext)
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
