package migrations

import (
	"context"

	"github.com/jackc/pgx/v5"
)

func init() {
	AddMigration(2, "initial_indexes", upInitialIndexes, downInitialIndexes)
}

func upInitialIndexes(ctx context.Context, tx pgx.Tx) error {
	return execAll(ctx, tx,
		`CREATE INDEX IF NOT EXISTS payments_created_at_idx ON payments (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS payments_status_idx ON payments (status, created_at)`,
		`CREATE INDEX IF NOT EXISTS payments_intent_idx ON payments (stripe_payment_intent_id)`,
		`CREATE INDEX IF NOT EXISTS agents_runnable_idx ON agents (status, priority DESC, last_run_at ASC NULLS FIRST)`,
		`CREATE INDEX IF NOT EXISTS agent_executions_started_idx ON agent_executions (started_at DESC)`,
		`CREATE INDEX IF NOT EXISTS agent_executions_agent_idx ON agent_executions (agent_id, started_at DESC)`,
		`CREATE INDEX IF NOT EXISTS demand_signals_observed_idx ON demand_signals (observed_at DESC)`,
		`CREATE INDEX IF NOT EXISTS demand_snapshots_computed_idx ON demand_snapshots (computed_at DESC, rank ASC)`,
		`CREATE INDEX IF NOT EXISTS system_audits_created_idx ON system_audits (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS brain_insights_created_idx ON brain_insights (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS orchestrator_runs_started_idx ON orchestrator_runs (started_at DESC)`,
	)
}

func downInitialIndexes(ctx context.Context, tx pgx.Tx) error {
	return execAll(ctx, tx,
		`DROP INDEX IF EXISTS orchestrator_runs_started_idx`,
		`DROP INDEX IF EXISTS brain_insights_created_idx`,
		`DROP INDEX IF EXISTS system_audits_created_idx`,
		`DROP INDEX IF EXISTS demand_snapshots_computed_idx`,
		`DROP INDEX IF EXISTS demand_signals_observed_idx`,
		`DROP INDEX IF EXISTS agent_executions_agent_idx`,
		`DROP INDEX IF EXISTS agent_executions_started_idx`,
		`DROP INDEX IF EXISTS agents_runnable_idx`,
		`DROP INDEX IF EXISTS payments_intent_idx`,
		`DROP INDEX IF EXISTS payments_status_idx`,
		`DROP INDEX IF EXISTS payments_created_at_idx`,
	)
}
