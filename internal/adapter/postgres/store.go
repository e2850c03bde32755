package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardenhq/warden/internal/domain/gate"
)

// Store persists gate decisions in PostgreSQL. It implements the audit
// sink port and serves decision history queries.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Record inserts one decision record.
func (s *Store) Record(ctx context.Context, rec gate.DecisionRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO decisions (id, agent_id, tool, frame, verdict, stage, reason, hold_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.AgentID, rec.Tool, rec.Frame, string(rec.Verdict), string(rec.Stage),
		rec.Reason, nullIfEmpty(rec.HoldID), rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// ListRecent returns the most recent decisions, newest first. An empty
// agentID returns decisions for all agents.
func (s *Store) ListRecent(ctx context.Context, agentID string, limit int) ([]gate.DecisionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, agent_id, tool, frame, verdict, stage, reason, hold_id, created_at
		FROM decisions
		WHERE ($1 = '' OR agent_id = $1)
		ORDER BY created_at DESC
		LIMIT $2`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var recs []gate.DecisionRecord
	for rows.Next() {
		var rec gate.DecisionRecord
		var verdict, stage string
		var holdID sql.NullString
		if err := rows.Scan(&rec.ID, &rec.AgentID, &rec.Tool, &rec.Frame, &verdict, &stage,
			&rec.Reason, &holdID, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.Verdict = gate.Verdict(verdict)
		rec.Stage = gate.Stage(stage)
		if holdID.Valid {
			rec.HoldID = holdID.String
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// CountByVerdict returns decision totals grouped by verdict.
func (s *Store) CountByVerdict(ctx context.Context) (map[gate.Verdict]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT verdict, COUNT(*) FROM decisions GROUP BY verdict`)
	if err != nil {
		return nil, fmt.Errorf("count decisions: %w", err)
	}
	defer rows.Close()

	counts := make(map[gate.Verdict]int64)
	for rows.Next() {
		var verdict string
		var n int64
		if err := rows.Scan(&verdict, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[gate.Verdict(verdict)] = n
	}
	return counts, rows.Err()
}

// nullIfEmpty returns nil for empty strings (for nullable UUID columns).
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
