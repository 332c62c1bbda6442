// Package dashboard aggregates the metrics shown by the operations dashboard.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	"go.vocdoni.io/dvote/log"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultCacheTTL is how long computed metrics are served from cache.
	DefaultCacheTTL = 15 * time.Second
	metricsKey      = "metrics"
	demandLimit     = 10
)

// DBInterface defines the database methods required by the dashboard
type DBInterface interface {
	PaymentSummary(ctx context.Context, since time.Time) (*db.PaymentSummary, error)
	AgentStats(ctx context.Context, since time.Time) (*db.AgentStats, error)
	LatestSnapshot(ctx context.Context, limit int) ([]db.DemandSnapshot, error)
	LatestAudit(ctx context.Context) (*db.SystemAudit, error)
	ListPayments(ctx context.Context, f db.PaymentFilter) ([]db.Payment, error)
	Payment(ctx context.Context, id string) (*db.Payment, error)
}

// Metrics is the aggregate served to the dashboard.
type Metrics struct {
	Payments    *db.PaymentSummary  `json:"payments"`
	Agents      *db.AgentStats      `json:"agents"`
	Demand      []db.DemandSnapshot `json:"demand"`
	LatestAudit *db.SystemAudit     `json:"latest_audit"`
	GeneratedAt time.Time           `json:"generated_at"`
	Cached      bool                `json:"cached"`
}

// Dashboard computes metrics and keeps the last result in an expirable LRU.
type Dashboard struct {
	db    DBInterface
	cache *expirable.LRU[string, Metrics]
	now   func() time.Time
}

// New creates a dashboard whose metrics are cached for ttl. A non positive
// ttl uses DefaultCacheTTL.
func New(database DBInterface, ttl time.Duration) *Dashboard {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Dashboard{
		db:    database,
		cache: expirable.NewLRU[string, Metrics](1, nil, ttl),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Metrics returns the dashboard metrics. Cached metrics are returned unless
// fresh is set. Fresh metrics always replace the cached ones.
func (d *Dashboard) Metrics(ctx context.Context, fresh bool) (*Metrics, error) {
	if !fresh {
		if m, ok := d.cache.Get(metricsKey); ok {
			m.Cached = true
			return &m, nil
		}
	}
	m, err := d.compute(ctx)
	if err != nil {
		return nil, err
	}
	d.cache.Add(metricsKey, *m)
	return m, nil
}

// Invalidate drops the cached metrics.
func (d *Dashboard) Invalidate() {
	d.cache.Remove(metricsKey)
}

func (d *Dashboard) compute(ctx context.Context) (*Metrics, error) {
	now := d.now()
	since := now.Add(-24 * time.Hour)
	m := &Metrics{GeneratedAt: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		m.Payments, err = d.db.PaymentSummary(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		m.Agents, err = d.db.AgentStats(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		m.Demand, err = d.db.LatestSnapshot(gctx, demandLimit)
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		audit, err := d.db.LatestAudit(gctx)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return err
		}
		m.LatestAudit = audit
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("could not compute dashboard metrics: %w", err)
	}
	if m.Demand == nil {
		m.Demand = []db.DemandSnapshot{}
	}
	log.Debugf("dashboard metrics computed in %s", time.Since(now))
	return m, nil
}

// Payments returns the latest payments matching the filter. Unknown status
// or provider values are rejected.
func (d *Dashboard) Payments(ctx context.Context, f db.PaymentFilter) ([]db.Payment, error) {
	switch f.Status {
	case "", db.PaymentPending, db.PaymentSucceeded, db.PaymentFailed, db.PaymentExpired, db.PaymentRefunded:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", db.ErrInvalidData, f.Status)
	}
	switch f.Provider {
	case "", db.ProviderStripe, db.ProviderCrypto:
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", db.ErrInvalidData, f.Provider)
	}
	return d.db.ListPayments(ctx, f)
}

// Payment returns a single stored payment.
func (d *Dashboard) Payment(ctx context.Context, id string) (*db.Payment, error) {
	return d.db.Payment(ctx, id)
}
