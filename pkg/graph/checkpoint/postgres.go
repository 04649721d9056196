package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists checkpoints to PostgreSQL.
// It is the production store for multi-process deployments.
//
// Storage is split across three tables:
//   - agent_checkpoints:       one metadata row per (run_id, node_id)
//   - agent_checkpoint_writes: one audit row per save operation
//   - agent_checkpoint_blobs:  the serialized checkpoint payload
//
// CleanupBefore prunes all three by age; see its doc for ordering rules.
type PostgresStore struct {
	pool   *pgxpool.Pool
	mu     sync.RWMutex
	closed bool
}

// NewPostgresStore creates a Postgres checkpoint store on the given pool
// and ensures the schema exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS agent_checkpoints (
			run_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (run_id, node_id)
		);
		CREATE TABLE IF NOT EXISTS agent_checkpoint_writes (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS agent_checkpoint_blobs (
			run_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			data BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (run_id, node_id)
		);
		CREATE INDEX IF NOT EXISTS idx_agent_checkpoints_created
			ON agent_checkpoints(created_at);
		CREATE INDEX IF NOT EXISTS idx_agent_checkpoint_writes_run
			ON agent_checkpoint_writes(run_id, node_id);
	`)
	if err != nil {
		return fmt.Errorf("create checkpoint schema: %w", err)
	}
	return nil
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, runID, nodeID string, data []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin checkpoint tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO agent_checkpoints (run_id, node_id, sequence, created_at)
		VALUES (
			$1, $2,
			COALESCE((SELECT MAX(sequence) FROM agent_checkpoints WHERE run_id = $1), 0) + 1,
			NOW()
		)
		ON CONFLICT (run_id, node_id) DO UPDATE SET
			sequence = (SELECT MAX(sequence) FROM agent_checkpoints WHERE run_id = excluded.run_id) + 1,
			created_at = NOW()
	`, runID, nodeID)
	if err != nil {
		return fmt.Errorf("save checkpoint metadata: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO agent_checkpoint_blobs (run_id, node_id, data, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (run_id, node_id) DO UPDATE SET
			data = excluded.data,
			created_at = NOW()
	`, runID, nodeID, data)
	if err != nil {
		return fmt.Errorf("save checkpoint blob: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO agent_checkpoint_writes (run_id, node_id, created_at)
		VALUES ($1, $2, NOW())
	`, runID, nodeID)
	if err != nil {
		return fmt.Errorf("record checkpoint write: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, runID, nodeID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.pool.QueryRow(ctx, `
		SELECT data FROM agent_checkpoint_blobs
		WHERE run_id = $1 AND node_id = $2
	`, runID, nodeID).Scan(&data)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return data, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, runID string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.pool.Query(ctx, `
		SELECT c.node_id, c.sequence, c.created_at, COALESCE(LENGTH(b.data), 0)
		FROM agent_checkpoints c
		LEFT JOIN agent_checkpoint_blobs b
			ON b.run_id = c.run_id AND b.node_id = c.node_id
		WHERE c.run_id = $1
		ORDER BY c.sequence
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.NodeID, &info.Sequence, &info.Timestamp, &info.Size); err != nil {
			return nil, fmt.Errorf("scan checkpoint info: %w", err)
		}
		info.RunID = runID
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}

	return infos, nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, runID, nodeID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	return s.deleteWhere(ctx, "run_id = $1 AND node_id = $2", runID, nodeID)
}

// DeleteRun implements Store.
func (s *PostgresStore) DeleteRun(ctx context.Context, runID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	return s.deleteWhere(ctx, "run_id = $1", runID)
}

// deleteWhere removes matching rows from all three tables,
// writes and blobs before metadata.
func (s *PostgresStore) deleteWhere(ctx context.Context, cond string, args ...any) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"agent_checkpoint_writes", "agent_checkpoint_blobs", "agent_checkpoints"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE "+cond, args...); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// Close implements Store.
// The pool is owned by the caller and is not closed here.
func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// CleanupResult reports what a retention pass removed.
type CleanupResult struct {
	Checkpoints int64
	Writes      int64
	Blobs       int64
}

// CleanupBefore deletes checkpoints older than cutoff from all three tables,
// then removes orphaned rows in referential order: writes before blobs.
//
// It is safe to run concurrently with active turns; a checkpoint written
// after cutoff is never touched.
func (s *PostgresStore) CleanupBefore(ctx context.Context, cutoff time.Time) (CleanupResult, error) {
	var res CleanupResult

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM agent_checkpoints WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return res, fmt.Errorf("delete expired checkpoints: %w", err)
	}
	res.Checkpoints = tag.RowsAffected()

	tag, err = s.pool.Exec(ctx, `
		DELETE FROM agent_checkpoint_writes w
		WHERE NOT EXISTS (
			SELECT 1 FROM agent_checkpoints c
			WHERE c.run_id = w.run_id AND c.node_id = w.node_id
		)
	`)
	if err != nil {
		return res, fmt.Errorf("delete orphaned writes: %w", err)
	}
	res.Writes = tag.RowsAffected()

	tag, err = s.pool.Exec(ctx, `
		DELETE FROM agent_checkpoint_blobs b
		WHERE NOT EXISTS (
			SELECT 1 FROM agent_checkpoints c
			WHERE c.run_id = b.run_id AND c.node_id = b.node_id
		)
	`)
	if err != nil {
		return res, fmt.Errorf("delete orphaned blobs: %w", err)
	}
	res.Blobs = tag.RowsAffected()

	return res, nil
}
