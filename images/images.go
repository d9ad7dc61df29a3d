// Package images stores binary images, such as the site logo, in SQLite.
package images

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no image exists for an ID.
var ErrNotFound = errors.New("images: not found")

// DefaultContentType is assumed for rows stored without a content type.
const DefaultContentType = "image/png"

// Image is a stored binary row.
type Image struct {
	ID          string
	Data        []byte
	ContentType string
}

// Store is a SQLite-backed image store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at dsn and ensures the schema.
// Use ":memory:" for a private in-memory database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("images: open database: %w", err)
	}

	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("images: init schema: %w", err)
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS images (
		id TEXT PRIMARY KEY,
		data BLOB,
		content_type TEXT
	)`)

	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the image stored under id. Rows without data count as
// missing.
func (s *Store) Get(ctx context.Context, id string) (*Image, error) {
	var (
		data        []byte
		contentType sql.NullString
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT data, content_type FROM images WHERE id = ? LIMIT 1`, id,
	).Scan(&data, &contentType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("images: get %s: %w", id, err)
	}

	if len(data) == 0 {
		return nil, ErrNotFound
	}

	img := &Image{ID: id, Data: data, ContentType: contentType.String}
	if img.ContentType == "" {
		img.ContentType = DefaultContentType
	}

	return img, nil
}

// Put inserts or replaces img.
func (s *Store) Put(ctx context.Context, img *Image) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO images (id, data, content_type) VALUES (?, ?, ?)`,
		img.ID, img.Data, img.ContentType,
	)
	if err != nil {
		return fmt.Errorf("images: put %s: %w", img.ID, err)
	}

	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
