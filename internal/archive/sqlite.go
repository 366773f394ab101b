package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLite is an archive kept in a single SQLite file.
type SQLite struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// OpenSQLite opens an existing archive file read-only. The file must
// already hold the archive tables.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("archive path is required")
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	db, err := openDB(ctx, "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	var tables int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name IN ('subfiles', 'rows')`).Scan(&tables)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if tables != 2 {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotArchive, path)
	}
	return &SQLite{path: path, db: db}, nil
}

// CreateSQLite opens path for writing, creating the file if needed. With
// truncate set any existing file is replaced.
func CreateSQLite(ctx context.Context, path string, truncate bool) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("archive path is required")
	}
	if truncate {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{path: path, db: db}, nil
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (a *SQLite) Path() string { return a.path }

func (a *SQLite) Subfiles(ctx context.Context) ([]string, error) {
	db, err := a.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT name FROM subfiles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (a *SQLite) Legend(ctx context.Context, subfile string) ([]string, error) {
	db, err := a.getDB()
	if err != nil {
		return nil, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT legend FROM subfiles WHERE name = ?`, subfile).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s in %s", ErrSubfileNotFound, subfile, a.path)
		}
		return nil, err
	}
	var legend []string
	if err := json.Unmarshal(payload, &legend); err != nil {
		return nil, fmt.Errorf("decode legend of %s: %w", subfile, err)
	}
	return legend, nil
}

func (a *SQLite) Rows(ctx context.Context, subfile string) ([][]float64, error) {
	if _, err := a.Legend(ctx, subfile); err != nil {
		return nil, err
	}
	db, err := a.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT payload FROM rows WHERE subfile = ? ORDER BY seq`, subfile)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]float64
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var row []float64
		if err := json.Unmarshal(payload, &row); err != nil {
			return nil, fmt.Errorf("decode row of %s: %w", subfile, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (a *SQLite) InsertSubfile(ctx context.Context, subfile string, legend []string) error {
	db, err := a.getDB()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(legend)
	if err != nil {
		return err
	}
	var exists int
	err = db.QueryRowContext(ctx, `SELECT COUNT(1) FROM subfiles WHERE name = ?`, subfile).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", ErrSubfileExists, subfile)
	}
	_, err = db.ExecContext(ctx, `INSERT INTO subfiles (name, legend) VALUES (?, ?)`, subfile, payload)
	return err
}

func (a *SQLite) Append(ctx context.Context, subfile string, row []float64) error {
	legend, err := a.Legend(ctx, subfile)
	if err != nil {
		return err
	}
	if err := validateRow(subfile, legend, row); err != nil {
		return err
	}
	db, err := a.getDB()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO rows (subfile, seq, payload)
		VALUES (?, (SELECT COALESCE(MAX(seq), -1) + 1 FROM rows WHERE subfile = ?), ?)
	`, subfile, subfile, payload)
	return err
}

func (a *SQLite) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *SQLite) getDB() (*sql.DB, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.db == nil {
		return nil, ErrClosed
	}
	return a.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS subfiles (
			name TEXT PRIMARY KEY,
			legend BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS rows (
			subfile TEXT NOT NULL,
			seq INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (subfile, seq)
		);
	`)
	return err
}
