package audit

import (
	"fmt"
	"time"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
)

// Check names.
const (
	CheckDatabaseLatency      = "database_latency"
	CheckStripeConnectivity   = "stripe_connectivity"
	CheckStaleAgents          = "stale_agents"
	CheckExhaustedAgents      = "exhausted_agents"
	CheckExecutionFailures    = "execution_failures"
	CheckStalePendingPayments = "stale_pending_payments"
)

// Finding severities.
const (
	SeverityOK       = "ok"
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Audit statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusCritical = "critical"
)

const (
	dbLatencyWarning  = 500 * time.Millisecond
	dbLatencyCritical = 2 * time.Second

	// StaleAgentAge is how long an active agent may go without running.
	StaleAgentAge = 24 * time.Hour
	// StalePaymentAge is how long a payment may stay pending.
	StalePaymentAge = time.Hour

	exhaustedRatioWarning = 0.5
	minExecutionsForRate  = 10
	failureRateWarning    = 0.2
	failureRateCritical   = 0.5
	stalePaymentsCritical = 10
	warningPenalty        = 5
	criticalPenalty       = 20
	maxScore              = 100
)

// Input is everything collected for one audit. A non-nil error field means
// that part could not be collected, which the related check reports.
type Input struct {
	DBLatency time.Duration
	DBError   error

	StripeConfigured bool
	StripeError      error

	Agents      *db.AgentStats
	AgentsError error
	StaleAgents int64

	ExecutionsSucceeded int64
	ExecutionsFailed    int64
	ExecutionsError     error

	StalePendingPayments int64
	PaymentsError        error
}

// Evaluate runs every check over the input and returns the findings, the
// score and the resulting status.
func Evaluate(in *Input) ([]db.AuditFinding, int, string) {
	findings := []db.AuditFinding{
		checkDatabase(in),
		checkStripe(in),
		checkStaleAgents(in),
		checkExhaustedAgents(in),
		checkExecutionFailures(in),
		checkStalePayments(in),
	}
	warnings, criticals := 0, 0
	for _, f := range findings {
		switch f.Severity {
		case SeverityWarning:
			warnings++
		case SeverityCritical:
			criticals++
		}
	}
	score := max(0, maxScore-warningPenalty*warnings-criticalPenalty*criticals)
	status := StatusHealthy
	switch {
	case criticals > 0:
		status = StatusCritical
	case warnings > 0:
		status = StatusDegraded
	}
	return findings, score, status
}

func finding(check, severity string, value any, format string, args ...any) db.AuditFinding {
	return db.AuditFinding{
		Check:    check,
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
		Value:    value,
	}
}

func checkDatabase(in *Input) db.AuditFinding {
	if in.DBError != nil {
		return finding(CheckDatabaseLatency, SeverityCritical, nil, "database unreachable: %v", in.DBError)
	}
	ms := in.DBLatency.Milliseconds()
	switch {
	case in.DBLatency > dbLatencyCritical:
		return finding(CheckDatabaseLatency, SeverityCritical, ms, "database latency %dms above %s", ms, dbLatencyCritical)
	case in.DBLatency > dbLatencyWarning:
		return finding(CheckDatabaseLatency, SeverityWarning, ms, "database latency %dms above %s", ms, dbLatencyWarning)
	}
	return finding(CheckDatabaseLatency, SeverityOK, ms, "database latency %dms", ms)
}

func checkStripe(in *Input) db.AuditFinding {
	if !in.StripeConfigured {
		return finding(CheckStripeConnectivity, SeverityInfo, nil, "stripe is not configured")
	}
	if in.StripeError != nil {
		return finding(CheckStripeConnectivity, SeverityCritical, nil, "stripe balance check failed: %v", in.StripeError)
	}
	return finding(CheckStripeConnectivity, SeverityOK, nil, "stripe reachable")
}

func checkStaleAgents(in *Input) db.AuditFinding {
	if in.AgentsError != nil {
		return finding(CheckStaleAgents, SeverityWarning, nil, "could not load agents: %v", in.AgentsError)
	}
	if in.StaleAgents > 0 {
		return finding(CheckStaleAgents, SeverityWarning, in.StaleAgents,
			"%d active agents have not run for more than %s", in.StaleAgents, StaleAgentAge)
	}
	return finding(CheckStaleAgents, SeverityOK, 0, "no stale agents")
}

func checkExhaustedAgents(in *Input) db.AuditFinding {
	if in.AgentsError != nil || in.Agents == nil {
		return finding(CheckExhaustedAgents, SeverityInfo, nil, "agent stats unavailable")
	}
	if in.Agents.Total == 0 {
		return finding(CheckExhaustedAgents, SeverityInfo, 0, "no agents registered")
	}
	exhausted := in.Agents.ByStatus[db.AgentExhausted]
	ratio := float64(exhausted) / float64(in.Agents.Total)
	if ratio > exhaustedRatioWarning {
		return finding(CheckExhaustedAgents, SeverityWarning, exhausted,
			"%d of %d agents have exhausted their budget", exhausted, in.Agents.Total)
	}
	return finding(CheckExhaustedAgents, SeverityOK, exhausted, "%d of %d agents exhausted", exhausted, in.Agents.Total)
}

func checkExecutionFailures(in *Input) db.AuditFinding {
	if in.ExecutionsError != nil {
		return finding(CheckExecutionFailures, SeverityWarning, nil, "could not count executions: %v", in.ExecutionsError)
	}
	total := in.ExecutionsSucceeded + in.ExecutionsFailed
	if total < minExecutionsForRate {
		return finding(CheckExecutionFailures, SeverityOK, total, "%d executions in the last 24h", total)
	}
	rate := float64(in.ExecutionsFailed) / float64(total)
	pct := int(rate * 100)
	switch {
	case rate > failureRateCritical:
		return finding(CheckExecutionFailures, SeverityCritical, pct, "%d%% of %d executions failed in the last 24h", pct, total)
	case rate > failureRateWarning:
		return finding(CheckExecutionFailures, SeverityWarning, pct, "%d%% of %d executions failed in the last 24h", pct, total)
	}
	return finding(CheckExecutionFailures, SeverityOK, pct, "%d%% of %d executions failed in the last 24h", pct, total)
}

func checkStalePayments(in *Input) db.AuditFinding {
	if in.PaymentsError != nil {
		return finding(CheckStalePendingPayments, SeverityWarning, nil, "could not count pending payments: %v", in.PaymentsError)
	}
	n := in.StalePendingPayments
	switch {
	case n > stalePaymentsCritical:
		return finding(CheckStalePendingPayments, SeverityCritical, n, "%d payments pending for more than %s", n, StalePaymentAge)
	case n > 0:
		return finding(CheckStalePendingPayments, SeverityWarning, n, "%d payments pending for more than %s", n, StalePaymentAge)
	}
	return finding(CheckStalePendingPayments, SeverityOK, 0, "no stale pending payments")
}
