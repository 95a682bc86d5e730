package photostore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/cjeanneret/FotoBoo/internal/photostore/migrations"
)

// ErrDuplicatePhoto is returned when an id is inserted twice.
var ErrDuplicatePhoto = errors.New("photo already exists")

// Index stores photo metadata in SQLite.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (or creates) the SQLite database at path and applies the
// embedded migrations.
func OpenIndex(ctx context.Context, path string) (*Index, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("index path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Index{db: db}, nil
}

func (x *Index) Close() error {
	if x == nil || x.db == nil {
		return nil
	}
	return x.db.Close()
}

// Ping checks the database handle.
func (x *Index) Ping(ctx context.Context) error {
	return x.db.PingContext(ctx)
}

// Insert records p.
func (x *Index) Insert(ctx context.Context, p Photo) error {
	_, err := x.db.ExecContext(ctx,
		`INSERT INTO photos (id, blob_key, content_type, size_bytes, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.BlobKey, p.ContentType, p.Size, toMillis(p.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePhoto
		}
		return fmt.Errorf("insert photo: %w", err)
	}
	return nil
}

// Get returns the photo with id or ErrPhotoNotFound.
func (x *Index) Get(ctx context.Context, id string) (Photo, error) {
	var (
		p       Photo
		created int64
	)
	err := x.db.QueryRowContext(ctx,
		`SELECT id, blob_key, content_type, size_bytes, created_at FROM photos WHERE id = ?`, id,
	).Scan(&p.ID, &p.BlobKey, &p.ContentType, &p.Size, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Photo{}, ErrPhotoNotFound
		}
		return Photo{}, fmt.Errorf("get photo: %w", err)
	}
	p.CreatedAt = fromMillis(created)
	return p, nil
}

// Delete removes the photo with id. Deleting a missing id is not an error.
func (x *Index) Delete(ctx context.Context, id string) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}

// Count returns the number of stored photos.
func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM photos`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
