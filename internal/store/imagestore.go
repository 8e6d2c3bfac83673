// Package store implements temporary content-addressed blob storage for
// uploaded and generated images. Blobs live on the local filesystem; their
// metadata lives in memory for the lifetime of the process. Blobs are
// write-once: an id is never reused and a stored blob is never rewritten.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	// Register decoders for the upload allow-list plus gif, so that gif
	// uploads are classified as unsupported rather than undecodable.
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"effectlab/internal/domain"
)

const (
	// MaxUploadBytes caps the raw upload size before any decoding happens.
	MaxUploadBytes = 10 << 20

	// maxDimension bounds the longest side of a stored image; larger uploads
	// are downscaled preserving aspect ratio.
	maxDimension = 2048

	jpegQuality = 85
)

var allowedFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"webp": true,
}

// Metadata describes a stored image blob.
type Metadata struct {
	Width     int
	Height    int
	Format    string
	ByteSize  int64
	CreatedAt time.Time
}

// ContentType maps the stored format to its MIME type.
func (m Metadata) ContentType() string {
	switch m.Format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// ImageStore persists image blobs under a base directory and keeps their
// metadata in an in-memory table. Safe for concurrent use: blobs are keyed
// by freshly generated uuids so there are never write-write conflicts, and
// the metadata map is guarded by an RWMutex.
type ImageStore struct {
	basePath string
	ttl      time.Duration
	logger   zerolog.Logger

	mu   sync.RWMutex
	meta map[string]Metadata
}

// New initializes an ImageStore rooted at basePath. A ttl of zero disables
// expiry; blobs then live until the process exits or Delete is called.
func New(basePath string, ttl time.Duration, logger zerolog.Logger) (*ImageStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("store: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure base path: %w", err)
	}
	return &ImageStore{
		basePath: basePath,
		ttl:      ttl,
		logger:   logger,
		meta:     make(map[string]Metadata),
	}, nil
}

// Put validates, normalizes and persists an uploaded image. The declared
// MIME hint is advisory only; the actual bytes decide. Images whose longest
// side exceeds the dimension bound are downscaled and re-encoded as JPEG.
func (s *ImageStore) Put(ctx context.Context, data []byte, mimeHint string) (string, Metadata, error) {
	if err := ctx.Err(); err != nil {
		return "", Metadata{}, err
	}
	if int64(len(data)) > MaxUploadBytes {
		return "", Metadata{}, fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrImageTooLarge, len(data), MaxUploadBytes)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", Metadata{}, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	if !allowedFormats[format] {
		return "", Metadata{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, format)
	}
	if hint := normalizeMIME(mimeHint); hint != "" && hint != "image/"+format {
		s.logger.Debug().Str("declared", hint).Str("decoded", format).Msg("store: mime hint mismatch")
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width > maxDimension || height > maxDimension {
		resized := imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return "", Metadata{}, fmt.Errorf("store: re-encode: %w", err)
		}
		data = buf.Bytes()
		format = "jpeg"
		width, height = resized.Bounds().Dx(), resized.Bounds().Dy()
	}

	id := uuid.NewString()
	md := Metadata{
		Width:     width,
		Height:    height,
		Format:    format,
		ByteSize:  int64(len(data)),
		CreatedAt: time.Now().UTC(),
	}
	if err := os.WriteFile(s.blobPath(id, format), data, 0o644); err != nil {
		return "", Metadata{}, fmt.Errorf("store: write blob: %w", err)
	}

	s.mu.Lock()
	s.meta[id] = md
	s.mu.Unlock()

	s.logger.Debug().
		Str("image_id", id).
		Str("format", format).
		Int("width", width).
		Int("height", height).
		Int64("bytes", md.ByteSize).
		Msg("store: image persisted")

	return id, md, nil
}

// Get returns the blob bytes and metadata for id. A blob that has expired,
// or whose file vanished underneath a concurrent sweep, is reported as
// domain.ErrNotFound.
func (s *ImageStore) Get(ctx context.Context, id string) ([]byte, Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, Metadata{}, err
	}
	s.mu.RLock()
	md, ok := s.meta[id]
	s.mu.RUnlock()
	if !ok || s.expired(md) {
		return nil, Metadata{}, domain.ErrNotFound
	}
	data, err := os.ReadFile(s.blobPath(id, md.Format))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Metadata{}, domain.ErrNotFound
		}
		return nil, Metadata{}, fmt.Errorf("store: read blob: %w", err)
	}
	return data, md, nil
}

// Exists reports whether a live (non-expired) blob exists for id.
func (s *ImageStore) Exists(id string) bool {
	s.mu.RLock()
	md, ok := s.meta[id]
	s.mu.RUnlock()
	return ok && !s.expired(md)
}

// Delete removes a blob. Best-effort: never required for the correctness of
// in-flight jobs, so errors are logged and swallowed.
func (s *ImageStore) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	md, ok := s.meta[id]
	delete(s.meta, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := os.Remove(s.blobPath(id, md.Format)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Str("image_id", id).Msg("store: delete blob failed")
	}
}

// Sweep removes all expired blobs. Best-effort cleanup, safe to run
// concurrently with readers.
func (s *ImageStore) Sweep(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	s.mu.RLock()
	var stale []string
	for id, md := range s.meta {
		if s.expired(md) {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()
	for _, id := range stale {
		s.Delete(ctx, id)
	}
	if len(stale) > 0 {
		s.logger.Info().Int("count", len(stale)).Msg("store: swept expired blobs")
	}
}

// StartSweeper runs Sweep on a fixed interval until ctx is cancelled.
func (s *ImageStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *ImageStore) expired(md Metadata) bool {
	return s.ttl > 0 && time.Since(md.CreatedAt) > s.ttl
}

func (s *ImageStore) blobPath(id, format string) string {
	ext := format
	if ext == "jpeg" {
		ext = "jpg"
	}
	return filepath.Join(s.basePath, id+"."+ext)
}

func normalizeMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime == "image/jpg" {
		return "image/jpeg"
	}
	return mime
}
