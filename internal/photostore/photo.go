// Package photostore keeps the photos uploaded by the booth: image bytes in a
// blob store (local directory or S3) and metadata in SQLite.
package photostore

import (
	"errors"
	"time"
)

var (
	ErrPhotoNotFound = errors.New("photo not found")
	ErrInvalidPhoto  = errors.New("invalid photo data")
)

// Photo is the metadata of one stored image.
type Photo struct {
	ID          string    `json:"id"`
	BlobKey     string    `json:"-"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}
