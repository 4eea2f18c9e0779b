// Package history archives completed downloads in a sqlite database so the
// record survives registry deletions.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hanash-dl/hanash/internal/engine/types"
)

// Entry is one archived download.
type Entry struct {
	ID          int64
	Name        string
	URL         string
	Folder      string
	Size        int64
	CompletedAt time.Time
}

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS downloads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			folder TEXT NOT NULL,
			size INTEGER NOT NULL,
			completed_at INTEGER NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("could not migrate history database: %w", err)
	}
	return nil
}

// Record archives a completed item.
func (s *Store) Record(d types.DownloadItem) error {
	_, err := s.db.Exec(
		`INSERT INTO downloads (name, url, folder, size, completed_at) VALUES (?, ?, ?, ?, ?)`,
		d.Name, d.URL, d.Folder, d.Size, time.Now().Unix(),
	)
	return err
}

// List returns archived downloads, newest first.
func (s *Store) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, name, url, folder, size, completed_at
		 FROM downloads ORDER BY completed_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.ID, &e.Name, &e.URL, &e.Folder, &e.Size, &ts); err != nil {
			return nil, err
		}
		e.CompletedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
