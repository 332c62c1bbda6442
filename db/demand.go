package db

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InsertSignals stores a batch of demand signals in one transaction. Signals
// without an observation time are stamped with the current time.
func (ps *PostgresStorage) InsertSignals(ctx context.Context, signals []DemandSignal) (int, error) {
	if len(signals) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for i := range signals {
		s := &signals[i]
		s.Category = strings.ToLower(strings.TrimSpace(s.Category))
		if s.Category == "" || s.Volume <= 0 {
			return 0, ErrInvalidData
		}
		s.ID = uuid.NewString()
		if s.ObservedAt.IsZero() {
			s.ObservedAt = now
		}
	}
	batch := &pgx.Batch{}
	for _, s := range signals {
		batch.Queue(`INSERT INTO demand_signals (id, source, category, keyword, region, volume, observed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.ID, s.Source, s.Category, s.Keyword, s.Region, s.Volume, s.ObservedAt)
	}
	err := pgx.BeginFunc(ctx, ps.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return 0, err
	}
	return len(signals), nil
}

// SignalsSince returns every signal observed at or after the given time.
func (ps *PostgresStorage) SignalsSince(ctx context.Context, since time.Time) ([]DemandSignal, error) {
	rows, err := ps.pool.Query(ctx, `SELECT id, source, category, keyword, region, volume, observed_at
		FROM demand_signals WHERE observed_at >= $1 ORDER BY observed_at ASC`, since)
	if err != nil {
		return nil, err
	}
	return collectSignals(rows)
}

// ListSignals returns the latest signals.
func (ps *PostgresStorage) ListSignals(ctx context.Context, limit int) ([]DemandSignal, error) {
	rows, err := ps.pool.Query(ctx, `SELECT id, source, category, keyword, region, volume, observed_at
		FROM demand_signals ORDER BY observed_at DESC LIMIT $1`, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	return collectSignals(rows)
}

func collectSignals(rows pgx.Rows) ([]DemandSignal, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (DemandSignal, error) {
		var s DemandSignal
		err := row.Scan(&s.ID, &s.Source, &s.Category, &s.Keyword, &s.Region, &s.Volume, &s.ObservedAt)
		return s, err
	})
}

// SaveSnapshot stores the ranked result of one radar scan.
func (ps *PostgresStorage) SaveSnapshot(ctx context.Context, scanID string, entries []DemandSnapshot) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for i := range entries {
		e := &entries[i]
		e.ID = uuid.NewString()
		e.ScanID = scanID
		e.ComputedAt = now
		batch.Queue(`INSERT INTO demand_snapshots (id, scan_id, category, score, current_volume,
			previous_volume, trend, momentum, rank, computed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			e.ID, e.ScanID, e.Category, e.Score, e.CurrentVolume, e.PreviousVolume, e.Trend, e.Momentum, e.Rank, now)
	}
	return pgx.BeginFunc(ctx, ps.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

// LatestSnapshot returns up to limit entries of the most recent scan, by rank.
func (ps *PostgresStorage) LatestSnapshot(ctx context.Context, limit int) ([]DemandSnapshot, error) {
	rows, err := ps.pool.Query(ctx, `SELECT id, scan_id, category, score, current_volume, previous_volume,
		trend, momentum, rank, computed_at FROM demand_snapshots
		WHERE scan_id = (SELECT scan_id FROM demand_snapshots ORDER BY computed_at DESC LIMIT 1)
		ORDER BY rank ASC LIMIT $1`, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (DemandSnapshot, error) {
		var s DemandSnapshot
		err := row.Scan(&s.ID, &s.ScanID, &s.Category, &s.Score, &s.CurrentVolume, &s.PreviousVolume,
			&s.Trend, &s.Momentum, &s.Rank, &s.ComputedAt)
		return s, err
	})
}
