package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/medrag/internal/models"
	"github.com/hyperjump/medrag/internal/vector"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		model_id TEXT NOT NULL,
		version TEXT NOT NULL,
		dimensions INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS entries (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		text TEXT NOT NULL,
		source TEXT NOT NULL,
		section TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		PRIMARY KEY (collection, id),
		FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_entries_source ON entries(collection, source);
	`
	_, err := db.Exec(schema)
	return err
}

// GetCollection returns the named collection or ErrCollectionNotFound.
func (s *SQLiteStorage) GetCollection(ctx context.Context, name string) (*models.Collection, error) {
	var coll models.Collection
	err := s.db.QueryRowContext(ctx,
		`SELECT name, model_id, version, dimensions, created_at
		 FROM collections WHERE name = ?`, name,
	).Scan(&coll.Name, &coll.ModelID, &coll.Version, &coll.Dimensions, &coll.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &coll, nil
}

// CreateCollection inserts a collection record. CreatedAt is set when zero.
func (s *SQLiteStorage) CreateCollection(ctx context.Context, coll *models.Collection) error {
	if coll.CreatedAt.IsZero() {
		coll.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, model_id, version, dimensions, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		coll.Name, coll.ModelID, coll.Version, coll.Dimensions, coll.CreatedAt,
	)
	return err
}

// DeleteCollection removes a collection and all its entries. Unknown names are a no-op.
func (s *SQLiteStorage) DeleteCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE collection = ?`, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertEntries inserts or replaces entries by id in a single transaction.
func (s *SQLiteStorage) UpsertEntries(ctx context.Context, collection string, entries []*models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (collection, id, text, source, section, chunk_index, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET
		   text = excluded.text,
		   source = excluded.source,
		   section = excluded.section,
		   chunk_index = excluded.chunk_index,
		   embedding = excluded.embedding`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		c := e.Chunk
		if _, err := stmt.ExecContext(ctx, collection, c.ID, c.Text, c.Source, c.Section, c.ChunkIndex,
			vector.Float32SliceToBytes(e.Embedding)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteEntriesBySource removes every entry that came from source and returns how many were removed.
func (s *SQLiteStorage) DeleteEntriesBySource(ctx context.Context, collection, source string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE collection = ? AND source = ?`, collection, source)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LoadEntries returns every entry of the collection with its embedding, in insertion order.
func (s *SQLiteStorage) LoadEntries(ctx context.Context, collection string) ([]*models.IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, source, section, chunk_index, embedding
		 FROM entries WHERE collection = ? ORDER BY rowid`, collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.IndexEntry
	for rows.Next() {
		var c models.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.Text, &c.Source, &c.Section, &c.ChunkIndex, &blob); err != nil {
			return nil, err
		}
		entries = append(entries, &models.IndexEntry{Chunk: &c, Embedding: vector.BytesToFloat32Slice(blob)})
	}
	return entries, rows.Err()
}

// GetEntries returns the chunks for ids keyed by id. Missing ids are absent from the map.
func (s *SQLiteStorage) GetEntries(ctx context.Context, collection string, ids []string) (map[string]*models.Chunk, error) {
	out := make(map[string]*models.Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, source, section, chunk_index
		 FROM entries WHERE collection = ? AND id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ID, &c.Text, &c.Source, &c.Section, &c.ChunkIndex); err != nil {
			return nil, err
		}
		out[c.ID] = &c
	}
	return out, rows.Err()
}

// CountEntries returns the number of entries in the collection.
func (s *SQLiteStorage) CountEntries(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE collection = ?`, collection).Scan(&count)
	return count, err
}

// SizeBytes returns the size of the database file and its WAL side files.
func (s *SQLiteStorage) SizeBytes() (int64, error) {
	return DiskUsageBytes(s.path, s.path+"-wal", s.path+"-shm")
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
