// Package catalog provides the SQLite store of catalog items: a stable path
// identifier plus the free-text caption used for display and for partition
// classification.
package catalog

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Item is one catalog entry. Path uniquely addresses the display artifact;
// Caption is the raw label partition classification runs over.
type Item struct {
	Path      string    `json:"path"`
	Caption   string    `json:"caption"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists catalog items in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the catalog database at dbPath and initializes
// the schema.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS catalog_items (
		path TEXT PRIMARY KEY,
		caption TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Upsert inserts or replaces one item.
func (s *Store) Upsert(ctx context.Context, item Item) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO catalog_items (path, caption, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET caption = excluded.caption`,
		item.Path, item.Caption, time.Now().UTC(),
	)
	return err
}

// ImportCSV loads items from a CSV file with "image" and "caption" columns
// (additional columns are ignored). Image filenames are resolved against
// imageDir. Returns the number of imported rows.
func (s *Store) ImportCSV(ctx context.Context, csvPath, imageDir string) (int, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("open catalog csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}
	imageCol, captionCol := -1, -1
	for i, name := range header {
		switch name {
		case "image":
			imageCol = i
		case "caption":
			captionCol = i
		}
	}
	if imageCol < 0 || captionCol < 0 {
		return 0, fmt.Errorf("catalog csv missing image/caption columns: %v", header)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO catalog_items (path, caption, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET caption = excluded.caption`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	count := 0
	now := time.Now().UTC()
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read csv row: %w", err)
		}
		if imageCol >= len(record) || captionCol >= len(record) {
			continue
		}
		path := filepath.Join(imageDir, record[imageCol])
		if _, err := stmt.ExecContext(ctx, path, record[captionCol], now); err != nil {
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// Caption returns the caption for path, or "" when the item is unknown.
func (s *Store) Caption(ctx context.Context, path string) (string, error) {
	var caption string
	err := s.db.QueryRowContext(ctx,
		`SELECT caption FROM catalog_items WHERE path = ?`, path,
	).Scan(&caption)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return caption, err
}

// All returns every catalog item in insertion order.
func (s *Store) All(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, caption, created_at FROM catalog_items ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// RandomSample returns up to n items drawn uniformly, used as the fallback
// when personalized candidates under-fill a recommendation list.
func (s *Store) RandomSample(ctx context.Context, n int) ([]Item, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, caption, created_at FROM catalog_items ORDER BY RANDOM() LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// Count returns the number of catalog items.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog_items`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.Path, &item.Caption, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
