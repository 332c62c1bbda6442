package migrations

import (
	"context"

	"github.com/jackc/pgx/v5"
)

func init() {
	AddMigration(1, "initial_schema", upInitialSchema, downInitialSchema)
}

func upInitialSchema(ctx context.Context, tx pgx.Tx) error {
	return execAll(ctx, tx,
		`CREATE TABLE IF NOT EXISTS payments (
			id UUID PRIMARY KEY,
			provider TEXT NOT NULL CHECK (provider IN ('stripe', 'crypto')),
			status TEXT NOT NULL CHECK (status IN ('pending', 'succeeded', 'failed', 'expired', 'refunded')),
			amount_cents BIGINT NOT NULL DEFAULT 0 CHECK (amount_cents >= 0),
			currency TEXT NOT NULL DEFAULT 'usd',
			customer_email TEXT NOT NULL DEFAULT '',
			stripe_session_id TEXT UNIQUE,
			stripe_payment_intent_id TEXT,
			wallet_address TEXT NOT NULL DEFAULT '',
			tx_hash TEXT UNIQUE,
			network TEXT NOT NULL DEFAULT '',
			token TEXT NOT NULL DEFAULT '',
			token_amount NUMERIC,
			description TEXT NOT NULL DEFAULT '',
			failure_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS agents (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('active', 'paused', 'exhausted', 'error')),
			priority INT NOT NULL DEFAULT 0,
			budget_cents BIGINT NOT NULL DEFAULT 0 CHECK (budget_cents >= 0),
			spent_cents BIGINT NOT NULL DEFAULT 0 CHECK (spent_cents >= 0),
			cost_per_run_cents BIGINT NOT NULL DEFAULT 0 CHECK (cost_per_run_cents >= 0),
			wallet_address TEXT NOT NULL DEFAULT '',
			run_count BIGINT NOT NULL DEFAULT 0,
			success_count BIGINT NOT NULL DEFAULT 0,
			failure_count BIGINT NOT NULL DEFAULT 0,
			last_run_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT agents_spent_within_budget CHECK (spent_cents <= budget_cents)
		)`,
		`CREATE TABLE IF NOT EXISTS agent_executions (
			id UUID PRIMARY KEY,
			run_id UUID NOT NULL,
			agent_id UUID NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
			action TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('running', 'succeeded', 'failed')),
			cost_cents BIGINT NOT NULL DEFAULT 0,
			revenue_cents BIGINT NOT NULL DEFAULT 0,
			result JSONB,
			error TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			finished_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS demand_signals (
			id UUID PRIMARY KEY,
			source TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			keyword TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT '',
			volume BIGINT NOT NULL CHECK (volume > 0),
			observed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS demand_snapshots (
			id UUID PRIMARY KEY,
			scan_id UUID NOT NULL,
			category TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			current_volume BIGINT NOT NULL,
			previous_volume BIGINT NOT NULL,
			trend DOUBLE PRECISION NOT NULL,
			momentum TEXT NOT NULL,
			rank INT NOT NULL,
			computed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS system_audits (
			id UUID PRIMARY KEY,
			status TEXT NOT NULL,
			score INT NOT NULL,
			findings JSONB NOT NULL DEFAULT '[]',
			report_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS brain_insights (
			id UUID PRIMARY KEY,
			model TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL,
			recommendations JSONB NOT NULL DEFAULT '[]',
			adjustments JSONB NOT NULL DEFAULT '[]',
			applied BOOLEAN NOT NULL DEFAULT FALSE,
			raw TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS orchestrator_runs (
			id UUID PRIMARY KEY,
			trigger TEXT NOT NULL,
			status TEXT NOT NULL,
			steps JSONB NOT NULL DEFAULT '[]',
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			finished_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS connect_accounts (
			account_id TEXT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			charges_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			payouts_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			details_submitted BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	)
}

func downInitialSchema(ctx context.Context, tx pgx.Tx) error {
	return execAll(ctx, tx,
		`DROP TABLE IF EXISTS connect_accounts`,
		`DROP TABLE IF EXISTS orchestrator_runs`,
		`DROP TABLE IF EXISTS brain_insights`,
		`DROP TABLE IF EXISTS system_audits`,
		`DROP TABLE IF EXISTS demand_snapshots`,
		`DROP TABLE IF EXISTS demand_signals`,
		`DROP TABLE IF EXISTS agent_executions`,
		`DROP TABLE IF EXISTS agents`,
		`DROP TABLE IF EXISTS payments`,
	)
}
