package photostore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/FotoBoo/internal/debug"
)

// Service stores and retrieves photos.
type Service struct {
	index *Index
	blobs BlobStore
	now   func() time.Time
}

func NewService(index *Index, blobs BlobStore) *Service {
	return &Service{index: index, blobs: blobs, now: time.Now}
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
}

// Upload stores data under a new random id. Empty payloads and payloads
// that do not sniff as an image are rejected with ErrInvalidPhoto.
func (s *Service) Upload(ctx context.Context, data []byte) (Photo, error) {
	if len(data) == 0 {
		return Photo{}, fmt.Errorf("%w: empty body", ErrInvalidPhoto)
	}
	ct := http.DetectContentType(data)
	ext, ok := extensions[ct]
	if !ok {
		return Photo{}, fmt.Errorf("%w: content type %s", ErrInvalidPhoto, strings.TrimSpace(ct))
	}

	id := uuid.New().String()
	p := Photo{
		ID:          id,
		BlobKey:     id + ext,
		ContentType: ct,
		Size:        int64(len(data)),
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.blobs.Put(ctx, p.BlobKey, data, ct); err != nil {
		return Photo{}, err
	}
	if err := s.index.Insert(ctx, p); err != nil {
		_ = s.blobs.Delete(context.WithoutCancel(ctx), p.BlobKey)
		return Photo{}, err
	}
	debug.Upload(p.ID, len(data))
	return p, nil
}

// Get returns the metadata and bytes of a photo.
func (s *Service) Get(ctx context.Context, id string) (Photo, []byte, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Photo{}, nil, ErrPhotoNotFound
	}
	p, err := s.index.Get(ctx, id)
	if err != nil {
		return Photo{}, nil, err
	}
	data, err := s.blobs.Get(ctx, p.BlobKey)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return Photo{}, nil, fmt.Errorf("%w: blob %s missing", ErrPhotoNotFound, p.BlobKey)
		}
		return Photo{}, nil, err
	}
	return p, data, nil
}

// Ping checks the metadata database.
func (s *Service) Ping(ctx context.Context) error {
	return s.index.Ping(ctx)
}
