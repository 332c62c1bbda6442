package radar

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
)

type mockStorage struct {
	signals   []db.DemandSignal
	snapshots map[string][]db.DemandSnapshot
	lastScan  string
}

func (m *mockStorage) InsertSignals(_ context.Context, signals []db.DemandSignal) (int, error) {
	m.signals = append(m.signals, signals...)
	return len(signals), nil
}

func (m *mockStorage) SignalsSince(_ context.Context, since time.Time) ([]db.DemandSignal, error) {
	out := []db.DemandSignal{}
	for _, s := range m.signals {
		if !s.ObservedAt.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStorage) ListSignals(_ context.Context, limit int) ([]db.DemandSignal, error) {
	return m.signals[:min(limit, len(m.signals))], nil
}

func (m *mockStorage) SaveSnapshot(_ context.Context, scanID string, entries []db.DemandSnapshot) error {
	if m.snapshots == nil {
		m.snapshots = map[string][]db.DemandSnapshot{}
	}
	m.snapshots[scanID] = entries
	m.lastScan = scanID
	return nil
}

func (m *mockStorage) LatestSnapshot(_ context.Context, limit int) ([]db.DemandSnapshot, error) {
	entries := m.snapshots[m.lastScan]
	return entries[:min(limit, len(entries))], nil
}

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func signal(category string, volume int64, hoursAgo float64) db.DemandSignal {
	return db.DemandSignal{
		Source:     "test",
		Category:   category,
		Volume:     volume,
		ObservedAt: now.Add(-time.Duration(hoursAgo * float64(time.Hour))),
	}
}

func TestTrendAndMomentum(t *testing.T) {
	c := qt.New(t)
	c.Assert(Trend(150, 100), qt.Equals, 0.5)
	c.Assert(Trend(5, 0), qt.Equals, 5.0)
	c.Assert(Trend(80, 100), qt.Equals, -0.2)

	c.Assert(ClassifyMomentum(150, 100, 0.5), qt.Equals, MomentumSurging)
	c.Assert(ClassifyMomentum(110, 100, 0.1), qt.Equals, MomentumRising)
	c.Assert(ClassifyMomentum(105, 100, 0.05), qt.Equals, MomentumStable)
	c.Assert(ClassifyMomentum(90, 100, -0.1), qt.Equals, MomentumFalling)
	c.Assert(ClassifyMomentum(10, 0, 10), qt.Equals, MomentumNew)
	c.Assert(ClassifyMomentum(0, 0, 0), qt.Equals, MomentumStable)
}

func TestDecayedVolume(t *testing.T) {
	c := qt.New(t)
	c.Assert(DecayedVolume(100, 0, 6*time.Hour), qt.Equals, 100.0)
	c.Assert(DecayedVolume(100, 6*time.Hour, 6*time.Hour), qt.Equals, 50.0)
	c.Assert(DecayedVolume(100, 12*time.Hour, 6*time.Hour), qt.Equals, 25.0)
}

func TestScore(t *testing.T) {
	c := qt.New(t)
	signals := []db.DemandSignal{
		signal("ai", 100, 0),
		signal("ai", 100, 6),
		signal("ai", 100, 30),  // previous window
		signal("saas", 150, 0), // same score as ai, ranked by name
		signal("crypto", 40, 1),
		signal("crypto", 100, 25),
		signal("old", 1000, 49),   // outside both windows
		signal("future", 500, -2), // ignored
	}
	entries := Score(signals, now, 24*time.Hour, 6*time.Hour)
	c.Assert(entries, qt.HasLen, 3)

	c.Assert(entries[0].Category, qt.Equals, "ai")
	c.Assert(entries[0].Score, qt.Equals, 150.0)
	c.Assert(entries[0].CurrentVolume, qt.Equals, int64(200))
	c.Assert(entries[0].PreviousVolume, qt.Equals, int64(100))
	c.Assert(entries[0].Trend, qt.Equals, 1.0)
	c.Assert(entries[0].Momentum, qt.Equals, MomentumSurging)
	c.Assert(entries[0].Rank, qt.Equals, 1)

	c.Assert(entries[1].Category, qt.Equals, "saas")
	c.Assert(entries[1].Momentum, qt.Equals, MomentumNew)
	c.Assert(entries[1].Rank, qt.Equals, 2)

	c.Assert(entries[2].Category, qt.Equals, "crypto")
	c.Assert(entries[2].Trend, qt.Equals, -0.6)
	c.Assert(entries[2].Momentum, qt.Equals, MomentumFalling)
}

func TestIngestAndScan(t *testing.T) {
	c := qt.New(t)
	storage := &mockStorage{}
	r := New(storage)
	r.now = func() time.Time { return now }
	ctx := context.Background()

	n, err := r.Ingest(ctx, []db.DemandSignal{
		{Category: " AI ", Volume: 10},
		{Category: "payments", Volume: 5, ObservedAt: now.Add(-2 * time.Hour), Source: "stripe"},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 2)
	c.Assert(storage.signals[0].Category, qt.Equals, "ai")
	c.Assert(storage.signals[0].Source, qt.Equals, defaultSource)
	c.Assert(storage.signals[0].ObservedAt, qt.Equals, now)

	_, err = r.Ingest(ctx, []db.DemandSignal{{Category: "ai", Volume: 0}})
	c.Assert(err, qt.ErrorIs, db.ErrInvalidData)
	_, err = r.Ingest(ctx, []db.DemandSignal{{Category: "  ", Volume: 3}})
	c.Assert(err, qt.ErrorIs, db.ErrInvalidData)
	_, err = r.Ingest(ctx, []db.DemandSignal{{Category: "ai", Volume: 3, ObservedAt: now.Add(48 * time.Hour)}})
	c.Assert(err, qt.ErrorIs, db.ErrInvalidData)
	_, err = r.Ingest(ctx, nil)
	c.Assert(err, qt.ErrorIs, db.ErrInvalidData)

	report, err := r.Scan(ctx, ScanOptions{Limit: 1})
	c.Assert(err, qt.IsNil)
	c.Assert(report.SignalsScanned, qt.Equals, 2)
	c.Assert(report.Categories, qt.Equals, 2)
	c.Assert(report.WindowHours, qt.Equals, float64(DefaultWindowHours))
	c.Assert(report.Top, qt.HasLen, 1)
	c.Assert(report.Top[0].Category, qt.Equals, "ai")
	c.Assert(storage.snapshots[report.ScanID], qt.HasLen, 1)

	top, err := r.Top(ctx, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(top, qt.HasLen, 1)

	_, err = r.Scan(ctx, ScanOptions{WindowHours: -1})
	c.Assert(err, qt.ErrorIs, db.ErrInvalidData)

	list, err := r.Signals(ctx, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 1)
}
