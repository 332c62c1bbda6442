package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const agentColumns = `id, name, type, status, priority, budget_cents, spent_cents, cost_per_run_cents,
	wallet_address, run_count, success_count, failure_count, last_run_at, created_at, updated_at`

func scanAgent(row pgx.Row) (*Agent, error) {
	a := &Agent{}
	err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Status, &a.Priority, &a.BudgetCents, &a.SpentCents,
		&a.CostPerRunCents, &a.WalletAddress, &a.RunCount, &a.SuccessCount, &a.FailureCount,
		&a.LastRunAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func collectAgents(rows pgx.Rows) ([]Agent, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Agent, error) {
		a, err := scanAgent(row)
		if err != nil {
			return Agent{}, err
		}
		return *a, nil
	})
}

// CreateAgent stores a new agent. New agents start active with nothing spent.
func (ps *PostgresStorage) CreateAgent(ctx context.Context, a *Agent) error {
	if a == nil || strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.Type) == "" ||
		a.BudgetCents < 0 || a.CostPerRunCents < 0 {
		return ErrInvalidData
	}
	a.ID = uuid.NewString()
	a.Status = AgentActive
	a.SpentCents = 0
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := ps.pool.Exec(ctx, `INSERT INTO agents (id, name, type, status, priority, budget_cents,
		spent_cents, cost_per_run_cents, wallet_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $9)`,
		a.ID, a.Name, a.Type, a.Status, a.Priority, a.BudgetCents, a.CostPerRunCents, a.WalletAddress, now)
	return err
}

// Agent returns the agent with the given id.
func (ps *PostgresStorage) Agent(ctx context.Context, id string) (*Agent, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	return scanAgent(ps.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
}

// ListAgents returns every agent, highest priority first.
func (ps *PostgresStorage) ListAgents(ctx context.Context) ([]Agent, error) {
	rows, err := ps.pool.Query(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY priority DESC, name ASC`)
	if err != nil {
		return nil, err
	}
	return collectAgents(rows)
}

// RunnableAgents returns up to limit active agents, by priority and then
// least recently run, never-run agents first.
func (ps *PostgresStorage) RunnableAgents(ctx context.Context, limit int) ([]Agent, error) {
	rows, err := ps.pool.Query(ctx, `SELECT `+agentColumns+` FROM agents WHERE status = $1
		ORDER BY priority DESC, last_run_at ASC NULLS FIRST, created_at ASC LIMIT $2`,
		AgentActive, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	return collectAgents(rows)
}

// SetAgentStatus changes the status of an agent.
func (ps *PostgresStorage) SetAgentStatus(ctx context.Context, id, status string) error {
	switch status {
	case AgentActive, AgentPaused, AgentExhausted, AgentError:
	default:
		return fmt.Errorf("%w: unknown agent status %q", ErrInvalidData, status)
	}
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	tag, err := ps.pool.Exec(ctx, `UPDATE agents SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReserveAgentBudget atomically adds cost to the spent amount of an active
// agent if it still fits in its budget. It reports whether the reservation
// was made.
func (ps *PostgresStorage) ReserveAgentBudget(ctx context.Context, id string, cost int64) (bool, error) {
	tag, err := ps.pool.Exec(ctx, `UPDATE agents SET spent_cents = spent_cents + $2, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND spent_cents + $2 <= budget_cents`, id, cost, AgentActive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RefundAgentBudget gives back a previous reservation.
func (ps *PostgresStorage) RefundAgentBudget(ctx context.Context, id string, cost int64) error {
	_, err := ps.pool.Exec(ctx, `UPDATE agents SET spent_cents = GREATEST(spent_cents - $2, 0), updated_at = NOW()
		WHERE id = $1`, id, cost)
	return err
}

// RecordAgentRun updates the run counters of an agent after an execution.
func (ps *PostgresStorage) RecordAgentRun(ctx context.Context, id string, success bool, at time.Time) error {
	successInc, failureInc := 0, 1
	if success {
		successInc, failureInc = 1, 0
	}
	tag, err := ps.pool.Exec(ctx, `UPDATE agents SET run_count = run_count + 1,
		success_count = success_count + $2, failure_count = failure_count + $3,
		last_run_at = $4, updated_at = NOW() WHERE id = $1`, id, successInc, failureInc, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetAgentBudgets zeroes the spent amount of every agent and reactivates
// the exhausted ones. It returns the number of agents touched.
func (ps *PostgresStorage) ResetAgentBudgets(ctx context.Context) (int64, error) {
	tag, err := ps.pool.Exec(ctx, `UPDATE agents SET spent_cents = 0,
		status = CASE WHEN status = $1 THEN $2 ELSE status END,
		updated_at = NOW() WHERE spent_cents > 0 OR status = $1`, AgentExhausted, AgentActive)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SetAgentBudget replaces the budget of an agent. The budget cannot go below
// what was already spent. An exhausted agent whose new budget covers another
// run is reactivated.
func (ps *PostgresStorage) SetAgentBudget(ctx context.Context, id string, budget int64) error {
	if budget < 0 {
		return ErrInvalidData
	}
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	tag, err := ps.pool.Exec(ctx, `UPDATE agents SET budget_cents = $2,
		status = CASE WHEN status = $3 AND $2 - spent_cents >= cost_per_run_cents THEN $4 ELSE status END,
		updated_at = NOW() WHERE id = $1 AND spent_cents <= $2`, id, budget, AgentExhausted, AgentActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := ps.Agent(ctx, id); err != nil {
			return err
		}
		return ErrBudgetExceeded
	}
	return nil
}

// CountStaleAgents counts active agents without a run since the given time.
// Agents that never ran count from their creation.
func (ps *PostgresStorage) CountStaleAgents(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := ps.pool.QueryRow(ctx, `SELECT COUNT(*) FROM agents
		WHERE status = $1 AND COALESCE(last_run_at, created_at) < $2`, AgentActive, before).Scan(&n)
	return n, err
}

// AgentStats aggregates agent budgets and the executions since the given time.
func (ps *PostgresStorage) AgentStats(ctx context.Context, since time.Time) (*AgentStats, error) {
	stats := &AgentStats{ByStatus: map[string]int64{}}
	rows, err := ps.pool.Query(ctx, `SELECT status, COUNT(*), COALESCE(SUM(budget_cents), 0)::bigint,
		COALESCE(SUM(spent_cents), 0)::bigint FROM agents GROUP BY status`)
	if err != nil {
		return nil, err
	}
	var status string
	var count, budget, spent int64
	_, err = pgx.ForEachRow(rows, []any{&status, &count, &budget, &spent}, func() error {
		stats.ByStatus[status] = count
		stats.Total += count
		stats.TotalBudgetCents += budget
		stats.TotalSpentCents += spent
		return nil
	})
	if err != nil {
		return nil, err
	}
	stats.RemainingCents = stats.TotalBudgetCents - stats.TotalSpentCents

	err = ps.pool.QueryRow(ctx, `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE status = $2),
		COUNT(*) FILTER (WHERE status = $3),
		COALESCE(SUM(revenue_cents), 0)::bigint
		FROM agent_executions WHERE started_at >= $1`, since, ExecutionSucceeded, ExecutionFailed).
		Scan(&stats.Executions24h, &stats.SucceededLast24h, &stats.FailedLast24h, &stats.RevenueLast24hCents)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
