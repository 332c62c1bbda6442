package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateRun stores the start of an orchestrator cycle.
func (ps *PostgresStorage) CreateRun(ctx context.Context, run *OrchestratorRun) error {
	if run == nil || run.Trigger == "" {
		return ErrInvalidData
	}
	run.ID = uuid.NewString()
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Steps == nil {
		run.Steps = []OrchestratorStep{}
	}
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return err
	}
	_, err = ps.pool.Exec(ctx, `INSERT INTO orchestrator_runs (id, trigger, status, steps, started_at)
		VALUES ($1, $2, $3, $4, $5)`, run.ID, run.Trigger, run.Status, steps, run.StartedAt)
	return err
}

// FinishRun stores the final status and steps of an orchestrator cycle.
func (ps *PostgresStorage) FinishRun(ctx context.Context, run *OrchestratorRun) error {
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	tag, err := ps.pool.Exec(ctx, `UPDATE orchestrator_runs SET status = $2, steps = $3, finished_at = $4
		WHERE id = $1`, run.ID, run.Status, steps, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRuns returns the latest orchestrator cycles, newest first.
func (ps *PostgresStorage) ListRuns(ctx context.Context, limit int) ([]OrchestratorRun, error) {
	rows, err := ps.pool.Query(ctx, `SELECT id, trigger, status, steps, started_at, finished_at
		FROM orchestrator_runs ORDER BY started_at DESC LIMIT $1`, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (OrchestratorRun, error) {
		var run OrchestratorRun
		var steps []byte
		if err := row.Scan(&run.ID, &run.Trigger, &run.Status, &steps, &run.StartedAt, &run.FinishedAt); err != nil {
			return run, err
		}
		return run, json.Unmarshal(steps, &run.Steps)
	})
}
