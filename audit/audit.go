// Package audit checks the health of the service, scores the result and
// alerts the operators when the system is in critical state.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/notifications"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/notifications/mailtemplates"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/objectstorage"
	"go.vocdoni.io/dvote/log"
)

const checkTimeout = 5 * time.Second

// DBInterface defines the database methods required by the auditor
type DBInterface interface {
	Ping(ctx context.Context) (time.Duration, error)
	AgentStats(ctx context.Context, since time.Time) (*db.AgentStats, error)
	CountStaleAgents(ctx context.Context, before time.Time) (int64, error)
	ExecutionCounts(ctx context.Context, since time.Time) (succeeded, failed int64, err error)
	CountPendingPaymentsBefore(ctx context.Context, before time.Time) (int64, error)
	SaveAudit(ctx context.Context, a *db.SystemAudit) error
	SetAuditReportURL(ctx context.Context, id, url string) error
	LatestAudit(ctx context.Context) (*db.SystemAudit, error)
	ListAudits(ctx context.Context, limit int) ([]db.SystemAudit, error)
}

// StripeChecker checks that the payment provider answers.
type StripeChecker interface {
	Ping(ctx context.Context) error
}

// Archiver stores report files and returns where they can be found.
type Archiver interface {
	Put(ctx context.Context, prefix string, data []byte, fileType objectstorage.ObjectFileType) (string, error)
}

// Config holds the configuration for the auditor. Only DB is required.
type Config struct {
	DB       DBInterface
	Stripe   StripeChecker
	Notifier *notifications.Dispatcher
	Archiver Archiver
}

// Auditor runs system audits.
type Auditor struct {
	db       DBInterface
	stripe   StripeChecker
	notifier *notifications.Dispatcher
	archiver Archiver
	now      func() time.Time
}

// New creates an auditor. It returns nil when no database is configured.
func New(conf *Config) *Auditor {
	if conf == nil || conf.DB == nil {
		return nil
	}
	return &Auditor{
		db:       conf.DB,
		stripe:   conf.Stripe,
		notifier: conf.Notifier,
		archiver: conf.Archiver,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Collect gathers the input of an audit. Failures are kept in the input so
// they are reported as findings instead of aborting the audit.
func (a *Auditor) Collect(ctx context.Context) *Input {
	now := a.now()
	in := &Input{}

	pingCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	in.DBLatency, in.DBError = a.db.Ping(pingCtx)
	cancel()

	if a.stripe != nil {
		in.StripeConfigured = true
		stripeCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		in.StripeError = a.stripe.Ping(stripeCtx)
		cancel()
	}

	since := now.Add(-24 * time.Hour)
	in.Agents, in.AgentsError = a.db.AgentStats(ctx, since)
	if in.AgentsError == nil {
		in.StaleAgents, in.AgentsError = a.db.CountStaleAgents(ctx, now.Add(-StaleAgentAge))
	}
	in.ExecutionsSucceeded, in.ExecutionsFailed, in.ExecutionsError = a.db.ExecutionCounts(ctx, since)
	in.StalePendingPayments, in.PaymentsError = a.db.CountPendingPaymentsBefore(ctx, now.Add(-StalePaymentAge))
	return in
}

// Run collects, evaluates and stores a new audit. When configured, the
// report is archived and a critical result is notified. Archival and
// notification failures are logged and do not fail the audit.
func (a *Auditor) Run(ctx context.Context) (*db.SystemAudit, error) {
	findings, score, status := Evaluate(a.Collect(ctx))
	audit := &db.SystemAudit{
		Status:    status,
		Score:     score,
		Findings:  findings,
		CreatedAt: a.now(),
	}
	if err := a.db.SaveAudit(ctx, audit); err != nil {
		return nil, fmt.Errorf("could not save audit: %w", err)
	}
	log.Infow("system audit finished", "id", audit.ID, "status", status, "score", score)

	if a.archiver != nil {
		if url, err := a.archive(ctx, audit); err != nil {
			log.Warnw("could not archive audit report", "id", audit.ID, "error", err)
		} else {
			audit.ReportURL = url
		}
	}
	if status == StatusCritical && a.notifier.Enabled() {
		if err := a.alert(ctx, audit); err != nil {
			log.Warnw("could not send audit alert", "id", audit.ID, "error", err)
		}
	}
	return audit, nil
}

func (a *Auditor) archive(ctx context.Context, audit *db.SystemAudit) (string, error) {
	data, err := json.MarshalIndent(audit, "", "  ")
	if err != nil {
		return "", err
	}
	prefix := "audits/" + audit.CreatedAt.Format("2006/01/02")
	url, err := a.archiver.Put(ctx, prefix, data, objectstorage.FileTypeJSON)
	if err != nil {
		return "", err
	}
	if err := a.db.SetAuditReportURL(ctx, audit.ID, url); err != nil {
		return "", fmt.Errorf("could not save report url: %w", err)
	}
	return url, nil
}

func (a *Auditor) alert(ctx context.Context, audit *db.SystemAudit) error {
	n, err := mailtemplates.AuditAlertNotification.ExecTemplate(audit)
	if err != nil {
		return err
	}
	return a.notifier.Send(ctx, n)
}

// Latest returns the most recent audit.
func (a *Auditor) Latest(ctx context.Context) (*db.SystemAudit, error) {
	return a.db.LatestAudit(ctx)
}

// History returns the latest audits, newest first.
func (a *Auditor) History(ctx context.Context, limit int) ([]db.SystemAudit, error) {
	return a.db.ListAudits(ctx, limit)
}
