// Package vectorstore implements document retrieval over pgvector.
// Governance documents are chunked rows with a JSONB metadata column
// carrying document title, source URL, NGB identifier, topic domain,
// and authority level.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/athletedesk/athletedesk/pkg/agent/state"
	"github.com/athletedesk/athletedesk/pkg/resilience"
)

// Embedder turns text into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store searches governance document chunks by vector similarity.
type Store struct {
	pool     *pgxpool.Pool
	table    string
	embedder Embedder
	breaker  *resilience.Breaker
}

// Table names are interpolated into SQL, so they are restricted to
// identifier characters up to the PostgreSQL length limit.
var validTable = regexp.MustCompile(`^[a-z_][a-zA-Z0-9_]{0,62}$`)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithEmbeddingBreaker routes embedding calls through a circuit breaker.
func WithEmbeddingBreaker(b *resilience.Breaker) StoreOption {
	return func(s *Store) { s.breaker = b }
}

// New creates a store over an existing pool. The pool is caller-owned.
func New(pool *pgxpool.Pool, table string, embedder Embedder, opts ...StoreOption) (*Store, error) {
	if !validTable.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	s := &Store{pool: pool, table: table, embedder: embedder}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search embeds the query and returns the closest document chunks,
// optionally narrowed to specific NGBs and a topic domain. Scores are
// cosine similarity in [0, 1].
func (s *Store) Search(ctx context.Context, query string, ngbIDs []string, domain state.TopicDomain, limit int) ([]state.Document, error) {
	vector, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	sql := fmt.Sprintf(`
		SELECT content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM %s`, pgx.Identifier{s.table}.Sanitize())
	args := []any{pgvector.NewVector(vector)}

	where := ""
	if len(ngbIDs) > 0 {
		args = append(args, ngbIDs)
		where = fmt.Sprintf(" WHERE metadata->>'ngbId' = ANY($%d)", len(args))
	}
	if domain != "" {
		args = append(args, string(domain))
		clause := fmt.Sprintf("metadata->>'topicDomain' = $%d", len(args))
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
	}
	args = append(args, limit)
	sql += where + fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var docs []state.Document
	for rows.Next() {
		var (
			doc      state.Document
			metaJSON []byte
		)
		if err := rows.Scan(&doc.Content, &metaJSON, &doc.Score); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		if err := json.Unmarshal(metaJSON, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decoding chunk metadata: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search rows: %w", err)
	}
	return docs, nil
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	if s.breaker == nil {
		return s.embedder.Embed(ctx, text)
	}
	return resilience.Do(ctx, s.breaker, func(c context.Context) ([]float32, error) {
		return s.embedder.Embed(c, text)
	})
}

// Chunk is one ingestable document fragment.
type Chunk struct {
	Content  string
	Metadata map[string]any
}

// Add embeds and inserts chunks in a single batch. Used by ingestion
// tooling, not the conversation path.
func (s *Store) Add(ctx context.Context, chunks []Chunk) error {
	insert := fmt.Sprintf(`
		INSERT INTO %s (content, metadata, embedding)
		VALUES ($1, $2, $3)`, pgx.Identifier{s.table}.Sanitize())

	batch := &pgx.Batch{}
	for _, c := range chunks {
		vector, err := s.embed(ctx, c.Content)
		if err != nil {
			return fmt.Errorf("embedding chunk: %w", err)
		}
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("encoding chunk metadata: %w", err)
		}
		batch.Queue(insert, c.Content, metaJSON, pgvector.NewVector(vector))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range chunks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}
	return nil
}
