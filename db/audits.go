package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveAudit stores a system audit.
func (ps *PostgresStorage) SaveAudit(ctx context.Context, a *SystemAudit) error {
	if a == nil || a.Status == "" {
		return ErrInvalidData
	}
	if a.Findings == nil {
		a.Findings = []AuditFinding{}
	}
	findings, err := json.Marshal(a.Findings)
	if err != nil {
		return fmt.Errorf("could not encode findings: %w", err)
	}
	a.ID = uuid.NewString()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err = ps.pool.Exec(ctx, `INSERT INTO system_audits (id, status, score, findings, report_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`, a.ID, a.Status, a.Score, findings, a.ReportURL, a.CreatedAt)
	return err
}

// SetAuditReportURL records where the report of an audit was archived.
func (ps *PostgresStorage) SetAuditReportURL(ctx context.Context, id, url string) error {
	tag, err := ps.pool.Exec(ctx, `UPDATE system_audits SET report_url = $2 WHERE id = $1`, id, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LatestAudit returns the most recent audit.
func (ps *PostgresStorage) LatestAudit(ctx context.Context) (*SystemAudit, error) {
	audits, err := ps.ListAudits(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(audits) == 0 {
		return nil, ErrNotFound
	}
	return &audits[0], nil
}

// ListAudits returns the latest audits, newest first.
func (ps *PostgresStorage) ListAudits(ctx context.Context, limit int) ([]SystemAudit, error) {
	rows, err := ps.pool.Query(ctx, `SELECT id, status, score, findings, report_url, created_at
		FROM system_audits ORDER BY created_at DESC LIMIT $1`, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SystemAudit, error) {
		var a SystemAudit
		var findings []byte
		if err := row.Scan(&a.ID, &a.Status, &a.Score, &findings, &a.ReportURL, &a.CreatedAt); err != nil {
			return a, err
		}
		if err := json.Unmarshal(findings, &a.Findings); err != nil {
			return a, fmt.Errorf("could not decode findings of audit %s: %w", a.ID, err)
		}
		return a, nil
	})
}
