package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveInsight stores the outcome of a brain cycle.
func (ps *PostgresStorage) SaveInsight(ctx context.Context, in *BrainInsight) error {
	if in == nil || in.Summary == "" {
		return ErrInvalidData
	}
	if in.Recommendations == nil {
		in.Recommendations = []string{}
	}
	if in.Adjustments == nil {
		in.Adjustments = []BudgetAdjustment{}
	}
	recs, err := json.Marshal(in.Recommendations)
	if err != nil {
		return err
	}
	adjs, err := json.Marshal(in.Adjustments)
	if err != nil {
		return err
	}
	in.ID = uuid.NewString()
	in.CreatedAt = time.Now().UTC()
	_, err = ps.pool.Exec(ctx, `INSERT INTO brain_insights (id, model, summary, recommendations,
		adjustments, applied, raw, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		in.ID, in.Model, in.Summary, recs, adjs, in.Applied, in.Raw, in.CreatedAt)
	return err
}

// ListInsights returns the latest brain insights, newest first.
func (ps *PostgresStorage) ListInsights(ctx context.Context, limit int) ([]BrainInsight, error) {
	rows, err := ps.pool.Query(ctx, `SELECT id, model, summary, recommendations, adjustments, applied,
		raw, created_at FROM brain_insights ORDER BY created_at DESC LIMIT $1`, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (BrainInsight, error) {
		var in BrainInsight
		var recs, adjs []byte
		if err := row.Scan(&in.ID, &in.Model, &in.Summary, &recs, &adjs, &in.Applied, &in.Raw,
			&in.CreatedAt); err != nil {
			return in, err
		}
		if err := json.Unmarshal(recs, &in.Recommendations); err != nil {
			return in, err
		}
		return in, json.Unmarshal(adjs, &in.Adjustments)
	})
}
