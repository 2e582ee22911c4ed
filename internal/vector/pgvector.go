package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/hyperjump/zantara/internal/models"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

var identifierRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// PgVectorStore keeps every collection in one Postgres table with a pgvector
// column. Similarity is 1 - cosine distance.
type PgVectorStore struct {
	db          *sql.DB
	table       string
	collections string
	logger      *zap.Logger
}

var _ Store = (*PgVectorStore)(nil)

// NewPgVectorStore connects to dsn and creates the schema if needed.
func NewPgVectorStore(ctx context.Context, dsn, table string, logger *zap.Logger) (*PgVectorStore, error) {
	if !identifierRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s := &PgVectorStore{db: db, table: table, collections: table + "_collections", logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Type returns the backend identifier.
func (s *PgVectorStore) Type() string {
	return string(BackendPgVector)
}

func (s *PgVectorStore) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.table, s.collections) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	s.logger.Debug("Checked/created pgvector schema", zap.String("table", s.table))
	return nil
}

func schemaStatements(table, collections string) []string {
	t, c := pq.QuoteIdentifier(table), pq.QuoteIdentifier(collections)
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			dimensions INTEGER NOT NULL
		)`, c),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			collection TEXT NOT NULL REFERENCES %s(name) ON DELETE CASCADE,
			id TEXT NOT NULL,
			document_id TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			tier TEXT NOT NULL,
			min_level INTEGER NOT NULL DEFAULT 0,
			metadata JSONB NOT NULL,
			embedding vector NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)`, t, c),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (collection, document_id)`,
			pq.QuoteIdentifier(table+"_document_idx"), t),
	}
}

// EnsureCollection registers the collection and its dimension.
func (s *PgVectorStore) EnsureCollection(ctx context.Context, collection string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}
	var existing int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT dimensions FROM %s WHERE name = $1`, pq.QuoteIdentifier(s.collections)),
		collection).Scan(&existing)
	switch {
	case err == nil:
		if existing != dimensions {
			return fmt.Errorf("collection %s: %w", collection, &DimensionError{Got: dimensions, Want: existing})
		}
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("lookup collection: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (name, dimensions) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`, pq.QuoteIdentifier(s.collections)),
		collection, dimensions)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

func (s *PgVectorStore) dimensions(ctx context.Context, collection string) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT dimensions FROM %s WHERE name = $1`, pq.QuoteIdentifier(s.collections)),
		collection).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", collection, ErrCollectionNotFound)
	}
	return dim, err
}

// Upsert inserts or replaces chunks in a single transaction.
func (s *PgVectorStore) Upsert(ctx context.Context, collection string, chunks []*models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	dim, err := s.dimensions(ctx, collection)
	if err != nil {
		return err
	}
	if err := validateChunks(chunks, dim); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQL(s.table))
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		created := c.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			collection, c.ID, c.Metadata.DocumentID, c.Text, string(c.Metadata.Tier), c.Metadata.MinLevel,
			meta, pgvector.NewVector(c.Embedding), created,
		); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func upsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (collection, id, document_id, text, tier, min_level, metadata, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (collection, id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			text = EXCLUDED.text,
			tier = EXCLUDED.tier,
			min_level = EXCLUDED.min_level,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`, pq.QuoteIdentifier(table))
}

// searchQuery builds the similarity query and its arguments. The access filter
// is pushed down into SQL.
func searchQuery(table, collection string, query []float32, filter *Filter, k int) (string, []interface{}) {
	args := []interface{}{pgvector.NewVector(query), collection}
	where := "collection = $2"
	if filter != nil {
		args = append(args, pq.Array(filter.TierStrings()), filter.Level)
		where += " AND tier = ANY($3) AND min_level <= $4"
	}
	args = append(args, k)
	q := fmt.Sprintf(`SELECT id, text, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1, id
		LIMIT $%d`, pq.QuoteIdentifier(table), where, len(args))
	return q, args
}

// Search runs a filtered cosine similarity query.
func (s *PgVectorStore) Search(ctx context.Context, collection string, query []float32, filter *Filter, k int) ([]*models.SearchHit, error) {
	if k <= 0 {
		return []*models.SearchHit{}, nil
	}
	dim, err := s.dimensions(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(query) != dim {
		return nil, &DimensionError{Got: len(query), Want: dim}
	}

	q, args := searchQuery(s.table, collection, query, filter, k)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	hits := make([]*models.SearchHit, 0, k)
	for rows.Next() {
		h := &models.SearchHit{Collection: collection}
		var meta []byte
		if err := rows.Scan(&h.ID, &h.Text, &meta, &h.Score); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if err := json.Unmarshal(meta, &h.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", h.ID, err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return hits, nil
}

// Delete removes chunks by ID.
func (s *PgVectorStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE collection = $1 AND id = ANY($2)`, pq.QuoteIdentifier(s.table)),
		collection, pq.Array(ids))
	return err
}

// DeleteDocument removes every chunk of documentID.
func (s *PgVectorStore) DeleteDocument(ctx context.Context, collection string, documentID string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE collection = $1 AND document_id = $2`, pq.QuoteIdentifier(s.table)),
		collection, documentID)
	return err
}

// Count returns the number of chunks in collection.
func (s *PgVectorStore) Count(ctx context.Context, collection string) (int, error) {
	if _, err := s.dimensions(ctx, collection); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s WHERE collection = $1`, pq.QuoteIdentifier(s.table)),
		collection).Scan(&n)
	return n, err
}

// Collections lists registered collections, sorted.
func (s *PgVectorStore) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT name FROM %s ORDER BY name`, pq.QuoteIdentifier(s.collections)))
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

// Close closes the connection pool.
func (s *PgVectorStore) Close() error {
	return s.db.Close()
}
