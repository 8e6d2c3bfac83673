package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"effectlab/internal/domain"
	"effectlab/internal/store"
)

type uploadResponse struct {
	ImageID  string `json:"image_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
	ByteSize int64  `json:"byte_size"`
}

// UploadImage accepts a multipart upload under the "image" field, validates
// and normalizes it, and returns the stored image's id and metadata.
func (a *App) UploadImage(w http.ResponseWriter, r *http.Request) {
	// Slack over the blob limit so the multipart framing itself doesn't
	// trip the reader before Put can report a precise error.
	r.Body = http.MaxBytesReader(w, r.Body, store.MaxUploadBytes+1<<20)

	file, header, err := r.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds size limit")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "multipart field 'image' required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read upload")
		return
	}

	id, md, err := a.Store.Put(r.Context(), data, header.Header.Get("Content-Type"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrImageTooLarge):
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "image exceeds the 10 MiB limit")
		case errors.Is(err, domain.ErrUnsupportedFormat):
			a.error(w, http.StatusUnsupportedMediaType, "unsupported_format", "only JPEG, PNG and WebP are accepted")
		case errors.Is(err, domain.ErrInvalidImage):
			a.error(w, http.StatusBadRequest, "invalid_image", "file is not a decodable image")
		default:
			a.Logger.Error().Err(err).Msg("handlers: image upload failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to store image")
		}
		return
	}

	a.json(w, http.StatusCreated, uploadResponse{
		ImageID:  id,
		Width:    md.Width,
		Height:   md.Height,
		Format:   md.Format,
		ByteSize: md.ByteSize,
	})
}

// GetImage serves stored image bytes. Results are immutable, so clients may
// cache them indefinitely.
func (a *App) GetImage(w http.ResponseWriter, r *http.Request) {
	imageID := chi.URLParam(r, "image_id")
	data, md, err := a.Store.Get(r.Context(), imageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "image not found")
			return
		}
		a.Logger.Error().Err(err).Str("image_id", imageID).Msg("handlers: image read failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read image")
		return
	}
	w.Header().Set("Content-Type", md.ContentType())
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
