package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/zantara/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
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

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		title TEXT,
		source TEXT,
		tier TEXT NOT NULL,
		min_level INTEGER NOT NULL DEFAULT 0,
		language TEXT,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		content_hash TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(collection, created_at);

	CREATE TABLE IF NOT EXISTS chunks (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		text TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id),
		FOREIGN KEY (collection, document_id) REFERENCES documents(collection, id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(collection, document_id, chunk_index);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertDocument inserts a document or updates the existing record, keeping its created_at.
func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *models.Document) error {
	if doc.Collection == "" || doc.ID == "" {
		return fmt.Errorf("document requires collection and id")
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, title, source, tier, min_level, language, chunk_count, content_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET
		   title = excluded.title, source = excluded.source, tier = excluded.tier,
		   min_level = excluded.min_level, language = excluded.language,
		   chunk_count = excluded.chunk_count, content_hash = excluded.content_hash,
		   updated_at = excluded.updated_at`,
		doc.Collection, doc.ID, doc.Title, doc.Source, string(doc.Tier), doc.MinLevel, doc.Language,
		doc.ChunkCount, doc.ContentHash, doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

const documentColumns = `collection, id, title, source, tier, min_level, language, chunk_count, content_hash, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var title, source, language, hash sql.NullString
	var tier string
	if err := row.Scan(&doc.Collection, &doc.ID, &title, &source, &tier, &doc.MinLevel, &language,
		&doc.ChunkCount, &hash, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.ContentHash = hash.String
	doc.Title = title.String
	doc.Source = source.String
	doc.Language = language.String
	doc.Tier = models.Tier(tier)
	return &doc, nil
}

// GetDocument returns a document by collection and ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, collection, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE collection = ? AND id = ?`, collection, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns documents of a collection with offset and limit, newest first.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, collection string, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE collection = ?
		 ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		collection, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*models.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and, through the foreign key, its chunks.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, collection, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

// ReplaceChunks deletes the document's previous chunks and inserts chunks in one transaction.
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, collection, documentID string, chunks []*models.DocumentChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE collection = ? AND document_id = ?`, collection, documentID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (collection, id, document_id, text, chunk_index, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, chunk := range chunks {
		if chunk.Collection != collection || chunk.Metadata.DocumentID != documentID {
			return fmt.Errorf("chunk %s does not belong to %s/%s", chunk.ID, collection, documentID)
		}
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx, collection, chunk.ID, documentID, chunk.Text,
			chunk.Metadata.ChunkIndex, string(metadataJSON), chunk.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const chunkColumns = `collection, id, text, metadata, created_at`

func scanChunk(row rowScanner) (*models.DocumentChunk, error) {
	var chunk models.DocumentChunk
	var metadataJSON sql.NullString
	if err := row.Scan(&chunk.Collection, &chunk.ID, &chunk.Text, &metadataJSON, &chunk.CreatedAt); err != nil {
		return nil, err
	}
	if metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &chunk, nil
}

// GetChunk returns a chunk by collection and ID.
func (s *SQLiteStorage) GetChunk(ctx context.Context, collection, id string) (*models.DocumentChunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE collection = ? AND id = ?`, collection, id)
	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// GetChunks loads the chunks among ids that exist in collection.
func (s *SQLiteStorage) GetChunks(ctx context.Context, collection string, ids []string) (map[string]*models.DocumentChunk, error) {
	out := make(map[string]*models.DocumentChunk, len(ids))
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
		`SELECT `+chunkColumns+` FROM chunks WHERE collection = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out[chunk.ID] = chunk
	}
	return out, rows.Err()
}

// GetChunksByDocumentID returns all chunks for a document ordered by chunk index.
func (s *SQLiteStorage) GetChunksByDocumentID(ctx context.Context, collection, documentID string) ([]*models.DocumentChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE collection = ? AND document_id = ? ORDER BY chunk_index`,
		collection, documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.DocumentChunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// CountDocuments returns the number of documents in collection, or in total when collection is empty.
func (s *SQLiteStorage) CountDocuments(ctx context.Context, collection string) (int64, error) {
	return s.count(ctx, "documents", collection)
}

// CountChunks returns the number of chunks in collection, or in total when collection is empty.
func (s *SQLiteStorage) CountChunks(ctx context.Context, collection string) (int64, error) {
	return s.count(ctx, "chunks", collection)
}

func (s *SQLiteStorage) count(ctx context.Context, table, collection string) (int64, error) {
	var count int64
	var err error
	if collection == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE collection = ?`, collection).Scan(&count)
	}
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
