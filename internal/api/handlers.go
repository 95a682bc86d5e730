package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/nfnt/resize"

	"github.com/cjeanneret/FotoBoo/internal/debug"
	"github.com/cjeanneret/FotoBoo/internal/photostore"
)

// Thumbnail bounds and quality.
const (
	ThumbnailSize    = 300
	thumbnailQuality = 85
)

// Handlers holds HTTP handlers for the storage backend.
type Handlers struct {
	photos    *photostore.Service
	maxUpload int64
	thumbs    *thumbCache
}

type uploadResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// UploadPhoto stores the raw request body.
func (h *Handlers) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "photo too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	photo, err := h.photos.Upload(r.Context(), data)
	if err != nil {
		if errors.Is(err, photostore.ErrInvalidPhoto) {
			writeError(w, http.StatusBadRequest, "invalid photo data")
			return
		}
		debug.Error(err)
		writeError(w, http.StatusInternalServerError, "failed to save photo")
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{
		ID:        photo.ID,
		CreatedAt: photo.CreatedAt.Format(time.RFC3339),
	})
}

func (h *Handlers) lookup(w http.ResponseWriter, r *http.Request) (photostore.Photo, []byte, bool) {
	id := mux.Vars(r)["id"]
	photo, data, err := h.photos.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, photostore.ErrPhotoNotFound) {
			writeError(w, http.StatusNotFound, "photo not found")
			return photostore.Photo{}, nil, false
		}
		debug.Error(err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve photo")
		return photostore.Photo{}, nil, false
	}
	return photo, data, true
}

// GetPhoto returns the stored bytes.
func (h *Handlers) GetPhoto(w http.ResponseWriter, r *http.Request) {
	photo, data, ok := h.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", photo.ContentType)
	w.Header().Set("Content-Disposition", `inline; filename="`+photo.ID+path.Ext(photo.BlobKey)+`"`)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// GetThumbnail returns a JPEG that fits in ThumbnailSize x ThumbnailSize.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if buf, ok := h.thumbs.get(id); ok {
		writeThumbnail(w, buf)
		return
	}
	_, data, ok := h.lookup(w, r)
	if !ok {
		return
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		debug.Error(err)
		writeError(w, http.StatusInternalServerError, "failed to decode photo")
		return
	}
	thumb := resize.Thumbnail(ThumbnailSize, ThumbnailSize, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode thumbnail")
		return
	}
	h.thumbs.put(id, buf.Bytes())
	writeThumbnail(w, buf.Bytes())
}

func writeThumbnail(w http.ResponseWriter, buf []byte) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(buf)
}

// Health reports whether the metadata database answers.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.photos.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// thumbCache keeps encoded thumbnails. Photos never change, so entries
// never go stale; the map is dropped when it reaches max entries.
type thumbCache struct {
	mu    sync.Mutex
	max   int
	items map[string][]byte
}

func newThumbCache(max int) *thumbCache {
	return &thumbCache{max: max, items: make(map[string][]byte)}
}

func (c *thumbCache) get(id string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.items[id]
	return b, ok
}

func (c *thumbCache) put(id string, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) >= c.max {
		c.items = make(map[string][]byte)
	}
	c.items[id] = b
}
