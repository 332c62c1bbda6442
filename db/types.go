package db

import (
	"encoding/json"
	"time"
)

// Payment providers.
const (
	ProviderStripe = "stripe"
	ProviderCrypto = "crypto"
)

// Payment statuses.
const (
	PaymentPending   = "pending"
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
	PaymentExpired   = "expired"
	PaymentRefunded  = "refunded"
)

// Agent statuses.
const (
	AgentActive    = "active"
	AgentPaused    = "paused"
	AgentExhausted = "exhausted"
	AgentError     = "error"
)

// Execution statuses.
const (
	ExecutionRunning   = "running"
	ExecutionSucceeded = "succeeded"
	ExecutionFailed    = "failed"
)

type Payment struct {
	ID                    string    `json:"id"`
	Provider              string    `json:"provider"`
	Status                string    `json:"status"`
	AmountCents           int64     `json:"amount_cents"`
	Currency              string    `json:"currency"`
	CustomerEmail         string    `json:"customer_email,omitempty"`
	StripeSessionID       string    `json:"stripe_session_id,omitempty"`
	StripePaymentIntentID string    `json:"stripe_payment_intent_id,omitempty"`
	WalletAddress         string    `json:"wallet_address,omitempty"`
	TxHash                string    `json:"tx_hash,omitempty"`
	Network               string    `json:"network,omitempty"`
	Token                 string    `json:"token,omitempty"`
	TokenAmount           string    `json:"token_amount,omitempty"`
	Description           string    `json:"description,omitempty"`
	FailureReason         string    `json:"failure_reason,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// PaymentUpdate carries the optional fields set alongside a status change.
// Empty values leave the stored column untouched.
type PaymentUpdate struct {
	PaymentIntentID string
	CustomerEmail   string
	FailureReason   string
}

// PaymentFilter narrows ListPayments. Zero values mean no filter.
type PaymentFilter struct {
	Limit    int
	Status   string
	Provider string
}

// CurrencyAmount is an amount in minor units of one currency.
type CurrencyAmount struct {
	Currency    string `json:"currency"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
}

type PaymentSummary struct {
	TotalCount    int64            `json:"total_count"`
	ByStatus      map[string]int64 `json:"by_status"`
	ByProvider    map[string]int64 `json:"by_provider"`
	Volume        []CurrencyAmount `json:"volume"`
	Last24hVolume []CurrencyAmount `json:"last_24h_volume"`
}

// CanTransitionPayment reports whether a payment may move from one status to
// another. Nothing leaves refunded and succeeded only moves to refunded.
func CanTransitionPayment(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case PaymentRefunded:
		return false
	case PaymentSucceeded:
		return to == PaymentRefunded
	case PaymentPending, PaymentFailed, PaymentExpired:
		return to != PaymentPending
	}
	return false
}

type Agent struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	Priority        int        `json:"priority"`
	BudgetCents     int64      `json:"budget_cents"`
	SpentCents      int64      `json:"spent_cents"`
	CostPerRunCents int64      `json:"cost_per_run_cents"`
	WalletAddress   string     `json:"wallet_address,omitempty"`
	RunCount        int64      `json:"run_count"`
	SuccessCount    int64      `json:"success_count"`
	FailureCount    int64      `json:"failure_count"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// RemainingCents returns the budget left to spend.
func (a *Agent) RemainingCents() int64 {
	return a.BudgetCents - a.SpentCents
}

type AgentStats struct {
	Total               int64            `json:"total"`
	ByStatus            map[string]int64 `json:"by_status"`
	TotalBudgetCents    int64            `json:"total_budget_cents"`
	TotalSpentCents     int64            `json:"total_spent_cents"`
	RemainingCents      int64            `json:"remaining_cents"`
	Executions24h       int64            `json:"executions_24h"`
	SucceededLast24h    int64            `json:"succeeded_24h"`
	FailedLast24h       int64            `json:"failed_24h"`
	RevenueLast24hCents int64            `json:"revenue_24h_cents"`
}

type AgentExecution struct {
	ID           string          `json:"id"`
	RunID        string          `json:"run_id"`
	AgentID      string          `json:"agent_id"`
	Action       string          `json:"action"`
	Status       string          `json:"status"`
	CostCents    int64           `json:"cost_cents"`
	RevenueCents int64           `json:"revenue_cents"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
}

type DemandSignal struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Category   string    `json:"category"`
	Keyword    string    `json:"keyword,omitempty"`
	Region     string    `json:"region,omitempty"`
	Volume     int64     `json:"volume"`
	ObservedAt time.Time `json:"observed_at"`
}

type DemandSnapshot struct {
	ID             string    `json:"id"`
	ScanID         string    `json:"scan_id"`
	Category       string    `json:"category"`
	Score          float64   `json:"score"`
	CurrentVolume  int64     `json:"current_volume"`
	PreviousVolume int64     `json:"previous_volume"`
	Trend          float64   `json:"trend"`
	Momentum       string    `json:"momentum"`
	Rank           int       `json:"rank"`
	ComputedAt     time.Time `json:"computed_at"`
}

// AuditFinding is the outcome of one audit check.
type AuditFinding struct {
	Check    string `json:"check"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Value    any    `json:"value,omitempty"`
}

type SystemAudit struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	Score     int            `json:"score"`
	Findings  []AuditFinding `json:"findings"`
	ReportURL string         `json:"report_url,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type BudgetAdjustment struct {
	AgentID     string `json:"agent_id"`
	BudgetCents int64  `json:"budget_cents"`
	Reason      string `json:"reason,omitempty"`
}

type BrainInsight struct {
	ID              string             `json:"id"`
	Model           string             `json:"model"`
	Summary         string             `json:"summary"`
	Recommendations []string           `json:"recommendations"`
	Adjustments     []BudgetAdjustment `json:"adjustments"`
	Applied         bool               `json:"applied"`
	Raw             string             `json:"-"`
	CreatedAt       time.Time          `json:"created_at"`
}

// OrchestratorStep is the recorded outcome of one cycle step.
type OrchestratorStep struct {
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Output     any       `json:"output,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

type OrchestratorRun struct {
	ID         string             `json:"id"`
	Trigger    string             `json:"trigger"`
	Status     string             `json:"status"`
	Steps      []OrchestratorStep `json:"steps"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
}

type ConnectAccount struct {
	AccountID        string    `json:"account_id"`
	Email            string    `json:"email,omitempty"`
	Country          string    `json:"country,omitempty"`
	ChargesEnabled   bool      `json:"charges_enabled"`
	PayoutsEnabled   bool      `json:"payouts_enabled"`
	DetailsSubmitted bool      `json:"details_submitted"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// OnboardingComplete reports whether the account can take payments and
// receive payouts.
func (a *ConnectAccount) OnboardingComplete() bool {
	return a.ChargesEnabled && a.PayoutsEnabled && a.DetailsSubmitted
}
