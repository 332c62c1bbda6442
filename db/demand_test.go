package db

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
)

func TestDemand(t *testing.T) {
	c := qt.New(t)
	resetDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	n, err := testDB.InsertSignals(ctx, []DemandSignal{
		{Source: "search", Category: " Shoes ", Volume: 10, ObservedAt: now.Add(-time.Hour)},
		{Source: "search", Category: "hats", Volume: 5, ObservedAt: now.Add(-30 * time.Hour)},
		{Source: "social", Category: "shoes", Volume: 3},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 3)

	_, err = testDB.InsertSignals(ctx, []DemandSignal{{Category: "shoes", Volume: 0}})
	c.Assert(err, qt.Equals, ErrInvalidData)
	_, err = testDB.InsertSignals(ctx, []DemandSignal{{Category: " ", Volume: 3}})
	c.Assert(err, qt.Equals, ErrInvalidData)

	recent, err := testDB.SignalsSince(ctx, now.Add(-2*time.Hour))
	c.Assert(err, qt.IsNil)
	c.Assert(recent, qt.HasLen, 2)
	c.Assert(recent[0].Category, qt.Equals, "shoes")

	latest, err := testDB.ListSignals(ctx, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(latest, qt.HasLen, 1)
	c.Assert(latest[0].Source, qt.Equals, "social")

	empty, err := testDB.LatestSnapshot(ctx, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(empty, qt.HasLen, 0)

	c.Assert(testDB.SaveSnapshot(ctx, uuid.NewString(), []DemandSnapshot{
		{Category: "old", Score: 1, Rank: 1},
	}), qt.IsNil)
	time.Sleep(10 * time.Millisecond)
	scanID := uuid.NewString()
	c.Assert(testDB.SaveSnapshot(ctx, scanID, []DemandSnapshot{
		{Category: "shoes", Score: 12.5, CurrentVolume: 13, Trend: 12, Momentum: "new", Rank: 1},
		{Category: "hats", Score: 0.1, PreviousVolume: 5, Trend: -1, Momentum: "falling", Rank: 2},
	}), qt.IsNil)

	snap, err := testDB.LatestSnapshot(ctx, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(snap, qt.HasLen, 2)
	c.Assert(snap[0].ScanID, qt.Equals, scanID)
	c.Assert(snap[0].Category, qt.Equals, "shoes")
	c.Assert(snap[1].Momentum, qt.Equals, "falling")
}

func TestAuditsInsightsRuns(t *testing.T) {
	c := qt.New(t)
	resetDB(t)
	ctx := context.Background()

	_, err := testDB.LatestAudit(ctx)
	c.Assert(err, qt.Equals, ErrNotFound)

	audit := &SystemAudit{Status: "degraded", Score: 95, Findings: []AuditFinding{
		{Check: "stale_agents", Severity: "warning", Message: "1 stale agent", Value: 1},
	}}
	c.Assert(testDB.SaveAudit(ctx, audit), qt.IsNil)
	c.Assert(testDB.SetAuditReportURL(ctx, audit.ID, "https://bucket/audits/1.json"), qt.IsNil)
	c.Assert(testDB.SetAuditReportURL(ctx, uuid.NewString(), "x"), qt.Equals, ErrNotFound)

	latest, err := testDB.LatestAudit(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(latest.ID, qt.Equals, audit.ID)
	c.Assert(latest.ReportURL, qt.Equals, "https://bucket/audits/1.json")
	c.Assert(latest.Findings, qt.HasLen, 1)
	c.Assert(latest.Findings[0].Check, qt.Equals, "stale_agents")

	insight := &BrainInsight{
		Model:           "gpt-4o-mini",
		Summary:         "steady",
		Recommendations: []string{"raise budget of top agent"},
		Adjustments:     []BudgetAdjustment{{AgentID: "a1", BudgetCents: 500, Reason: "performing"}},
	}
	c.Assert(testDB.SaveInsight(ctx, insight), qt.IsNil)
	c.Assert(testDB.SaveInsight(ctx, &BrainInsight{}), qt.Equals, ErrInvalidData)
	insights, err := testDB.ListInsights(ctx, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(insights, qt.HasLen, 1)
	c.Assert(insights[0].Adjustments[0].BudgetCents, qt.Equals, int64(500))
	c.Assert(insights[0].Recommendations, qt.DeepEquals, []string{"raise budget of top agent"})

	run := &OrchestratorRun{Trigger: "manual", Status: "running"}
	c.Assert(testDB.CreateRun(ctx, run), qt.IsNil)
	run.Status = "partial"
	run.Steps = []OrchestratorStep{
		{Name: "demand_scan", Status: "succeeded"},
		{Name: "agent_run", Status: "failed", Error: "boom"},
	}
	c.Assert(testDB.FinishRun(ctx, run), qt.IsNil)
	runs, err := testDB.ListRuns(ctx, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(runs, qt.HasLen, 1)
	c.Assert(runs[0].Status, qt.Equals, "partial")
	c.Assert(runs[0].Steps, qt.HasLen, 2)
	c.Assert(runs[0].FinishedAt, qt.IsNotNil)

	acct := &ConnectAccount{AccountID: "acct_1", Email: "seller@example.com", Country: "US"}
	c.Assert(testDB.UpsertConnectAccount(ctx, acct), qt.IsNil)
	c.Assert(testDB.UpsertConnectAccount(ctx, &ConnectAccount{
		AccountID: "acct_1", ChargesEnabled: true, PayoutsEnabled: true, DetailsSubmitted: true,
	}), qt.IsNil)
	got, err := testDB.ConnectAccount(ctx, "acct_1")
	c.Assert(err, qt.IsNil)
	c.Assert(got.Email, qt.Equals, "seller@example.com")
	c.Assert(got.OnboardingComplete(), qt.IsTrue)
	_, err = testDB.ConnectAccount(ctx, "acct_missing")
	c.Assert(err, qt.Equals, ErrNotFound)
}

func TestMigrationsDownAndUp(t *testing.T) {
	c := qt.New(t)
	resetDB(t)

	c.Assert(testDB.RunMigrationsDown(1), qt.IsNil)
	var exists bool
	err := testDB.pool.QueryRow(context.Background(),
		`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = 'notify_table_change')`).Scan(&exists)
	c.Assert(err, qt.IsNil)
	c.Assert(exists, qt.IsFalse)

	c.Assert(testDB.RunMigrationsUp(), qt.IsNil)
	err = testDB.pool.QueryRow(context.Background(),
		`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = 'notify_table_change')`).Scan(&exists)
	c.Assert(err, qt.IsNil)
	c.Assert(exists, qt.IsTrue)
}
