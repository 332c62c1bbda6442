package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateExecution records the start of an agent execution.
func (ps *PostgresStorage) CreateExecution(ctx context.Context, e *AgentExecution) error {
	if e == nil || e.AgentID == "" || e.RunID == "" {
		return ErrInvalidData
	}
	e.ID = uuid.NewString()
	if e.Status == "" {
		e.Status = ExecutionRunning
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now().UTC()
	}
	_, err := ps.pool.Exec(ctx, `INSERT INTO agent_executions (id, run_id, agent_id, action, status,
		cost_cents, started_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.RunID, e.AgentID, e.Action, e.Status, e.CostCents, e.StartedAt)
	return err
}

// FinishExecution stores the outcome of an execution.
func (ps *PostgresStorage) FinishExecution(ctx context.Context, e *AgentExecution) error {
	now := time.Now().UTC()
	e.FinishedAt = &now
	var result []byte
	if len(e.Result) > 0 {
		result = e.Result
	}
	tag, err := ps.pool.Exec(ctx, `UPDATE agent_executions SET status = $2, cost_cents = $3,
		revenue_cents = $4, result = $5, error = $6, finished_at = $7 WHERE id = $1`,
		e.ID, e.Status, e.CostCents, e.RevenueCents, result, e.Error, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExecutions returns the latest executions, optionally of one agent.
func (ps *PostgresStorage) ListExecutions(ctx context.Context, agentID string, limit int) ([]AgentExecution, error) {
	rows, err := ps.pool.Query(ctx, `SELECT id, run_id, agent_id, action, status, cost_cents,
		revenue_cents, result, error, started_at, finished_at FROM agent_executions
		WHERE ($1 = '' OR agent_id::text = $1) ORDER BY started_at DESC LIMIT $2`, agentID, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (AgentExecution, error) {
		var e AgentExecution
		var result []byte
		err := row.Scan(&e.ID, &e.RunID, &e.AgentID, &e.Action, &e.Status, &e.CostCents,
			&e.RevenueCents, &result, &e.Error, &e.StartedAt, &e.FinishedAt)
		if len(result) > 0 {
			e.Result = json.RawMessage(result)
		}
		return e, err
	})
}

// ExecutionCounts returns how many executions finished successfully and how
// many failed since the given time.
func (ps *PostgresStorage) ExecutionCounts(ctx context.Context, since time.Time) (succeeded, failed int64, err error) {
	err = ps.pool.QueryRow(ctx, `SELECT COUNT(*) FILTER (WHERE status = $2), COUNT(*) FILTER (WHERE status = $3)
		FROM agent_executions WHERE started_at >= $1`, since, ExecutionSucceeded, ExecutionFailed).
		Scan(&succeeded, &failed)
	return succeeded, failed, err
}
