package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

func init() {
	AddMigration(3, "notify_triggers", upNotifyTriggers, downNotifyTriggers)
}

// NotifyChannel is the LISTEN/NOTIFY channel fed by the table triggers.
const NotifyChannel = "table_changes"

// NotifiedTables are the tables whose row changes are published on NotifyChannel.
var NotifiedTables = []string{
	"payments",
	"agents",
	"agent_executions",
	"system_audits",
	"orchestrator_runs",
	"demand_snapshots",
	"brain_insights",
}

func upNotifyTriggers(ctx context.Context, tx pgx.Tx) error {
	fn := fmt.Sprintf(`CREATE OR REPLACE FUNCTION notify_table_change() RETURNS trigger AS $$
DECLARE
	rec RECORD;
BEGIN
	IF TG_OP = 'DELETE' THEN
		rec := OLD;
	ELSE
		rec := NEW;
	END IF;
	PERFORM pg_notify('%s', json_build_object(
		'table', TG_TABLE_NAME,
		'action', TG_OP,
		'id', rec.id
	)::text);
	RETURN rec;
END;
$$ LANGUAGE plpgsql`, NotifyChannel)
	if _, err := tx.Exec(ctx, fn); err != nil {
		return fmt.Errorf("create notify function: %w", err)
	}
	for _, table := range NotifiedTables {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DROP TRIGGER IF EXISTS %[1]s_notify ON %[1]s`, table)); err != nil {
			return fmt.Errorf("drop trigger on %s: %w", table, err)
		}
		stmt := fmt.Sprintf(`CREATE TRIGGER %[1]s_notify AFTER INSERT OR UPDATE OR DELETE ON %[1]s
			FOR EACH ROW EXECUTE FUNCTION notify_table_change()`, table)
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create trigger on %s: %w", table, err)
		}
	}
	return nil
}

func downNotifyTriggers(ctx context.Context, tx pgx.Tx) error {
	for _, table := range NotifiedTables {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DROP TRIGGER IF EXISTS %[1]s_notify ON %[1]s`, table)); err != nil {
			return fmt.Errorf("drop trigger on %s: %w", table, err)
		}
	}
	_, err := tx.Exec(ctx, `DROP FUNCTION IF EXISTS notify_table_change()`)
	return err
}
