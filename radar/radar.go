// Package radar turns raw demand signals into ranked category snapshots.
package radar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	"go.vocdoni.io/dvote/log"
)

const (
	DefaultWindowHours   = 24
	DefaultHalfLifeHours = 6
	DefaultLimit         = 10

	maxIngestBatch = 1000
	maxWindowHours = 24 * 30
	defaultSource  = "api"
)

// DBInterface defines the database methods required by the radar
type DBInterface interface {
	InsertSignals(ctx context.Context, signals []db.DemandSignal) (int, error)
	SignalsSince(ctx context.Context, since time.Time) ([]db.DemandSignal, error)
	ListSignals(ctx context.Context, limit int) ([]db.DemandSignal, error)
	SaveSnapshot(ctx context.Context, scanID string, entries []db.DemandSnapshot) error
	LatestSnapshot(ctx context.Context, limit int) ([]db.DemandSnapshot, error)
}

// Radar scores demand signals.
type Radar struct {
	db  DBInterface
	now func() time.Time
}

// New creates a radar over the given storage.
func New(database DBInterface) *Radar {
	if database == nil {
		return nil
	}
	return &Radar{db: database, now: time.Now}
}

// ScanOptions are the parameters of a scan. Zero values take the defaults.
type ScanOptions struct {
	WindowHours   float64 `json:"window_hours,omitempty"`
	HalfLifeHours float64 `json:"half_life_hours,omitempty"`
	Limit         int     `json:"limit,omitempty"`
}

// ScanReport is the outcome of a scan.
type ScanReport struct {
	ScanID         string              `json:"scan_id"`
	SignalsScanned int                 `json:"signals_scanned"`
	Categories     int                 `json:"categories"`
	WindowHours    float64             `json:"window_hours"`
	HalfLifeHours  float64             `json:"half_life_hours"`
	Top            []db.DemandSnapshot `json:"top"`
	ComputedAt     time.Time           `json:"computed_at"`
}

// Ingest validates and stores a batch of signals. Categories are compared
// case insensitively.
func (r *Radar) Ingest(ctx context.Context, signals []db.DemandSignal) (int, error) {
	if len(signals) == 0 {
		return 0, fmt.Errorf("%w: no signals", db.ErrInvalidData)
	}
	if len(signals) > maxIngestBatch {
		return 0, fmt.Errorf("%w: at most %d signals per batch", db.ErrInvalidData, maxIngestBatch)
	}
	now := r.now().UTC()
	for i := range signals {
		s := &signals[i]
		s.Category = strings.ToLower(strings.TrimSpace(s.Category))
		if s.Category == "" {
			return 0, fmt.Errorf("%w: signal %d has no category", db.ErrInvalidData, i)
		}
		if s.Volume <= 0 {
			return 0, fmt.Errorf("%w: signal %d volume must be positive", db.ErrInvalidData, i)
		}
		if s.Source = strings.TrimSpace(s.Source); s.Source == "" {
			s.Source = defaultSource
		}
		if s.ObservedAt.IsZero() {
			s.ObservedAt = now
		}
		if s.ObservedAt.After(now.Add(time.Hour)) {
			return 0, fmt.Errorf("%w: signal %d observed in the future", db.ErrInvalidData, i)
		}
	}
	n, err := r.db.InsertSignals(ctx, signals)
	if err != nil {
		return 0, err
	}
	log.Debugf("radar ingested %d signals", n)
	return n, nil
}

// Scan scores the signals of the last two windows and persists the top
// categories as a new snapshot.
func (r *Radar) Scan(ctx context.Context, opts ScanOptions) (*ScanReport, error) {
	if opts.WindowHours < 0 || opts.HalfLifeHours < 0 || opts.WindowHours > maxWindowHours {
		return nil, fmt.Errorf("%w: window_hours must be in (0, %d] and half_life_hours positive",
			db.ErrInvalidData, maxWindowHours)
	}
	if opts.WindowHours == 0 {
		opts.WindowHours = DefaultWindowHours
	}
	if opts.HalfLifeHours == 0 {
		opts.HalfLifeHours = DefaultHalfLifeHours
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	window := time.Duration(opts.WindowHours * float64(time.Hour))
	halfLife := time.Duration(opts.HalfLifeHours * float64(time.Hour))

	now := r.now().UTC()
	signals, err := r.db.SignalsSince(ctx, now.Add(-2*window))
	if err != nil {
		return nil, fmt.Errorf("failed to load signals: %w", err)
	}
	entries := Score(signals, now, window, halfLife)
	report := &ScanReport{
		ScanID:         uuid.NewString(),
		SignalsScanned: len(signals),
		Categories:     len(entries),
		WindowHours:    opts.WindowHours,
		HalfLifeHours:  opts.HalfLifeHours,
		Top:            entries[:min(opts.Limit, len(entries))],
		ComputedAt:     now,
	}
	if err := r.db.SaveSnapshot(ctx, report.ScanID, report.Top); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	log.Infow("radar scan finished", "scan", report.ScanID, "signals", report.SignalsScanned,
		"categories", report.Categories)
	return report, nil
}

// Signals returns the latest ingested signals.
func (r *Radar) Signals(ctx context.Context, limit int) ([]db.DemandSignal, error) {
	return r.db.ListSignals(ctx, limit)
}

// Top returns the entries of the latest snapshot.
func (r *Radar) Top(ctx context.Context, limit int) ([]db.DemandSnapshot, error) {
	return r.db.LatestSnapshot(ctx, limit)
}
