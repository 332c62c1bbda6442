package apicommon

//revive:disable:max-public-structs

import (
	"time"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
)

// FunctionRequest is the envelope shared by every engine function.
// swagger:model FunctionRequest
type FunctionRequest struct {
	// The operation to run on the function
	Action string `json:"action"`
}

// AgentRequest selects a single agent.
// swagger:model AgentRequest
type AgentRequest struct {
	// Agent identifier
	AgentID string `json:"agent_id" validate:"required,uuid"`
}

// CreateAgentRequest registers a new agent.
// swagger:model CreateAgentRequest
type CreateAgentRequest struct {
	// Human readable agent name
	Name string `json:"name" validate:"required,max=100"`

	// Kind of work the agent performs
	Type string `json:"type" validate:"required,max=50"`

	// Higher priority agents run first
	Priority int `json:"priority" validate:"gte=0,lte=1000"`

	// Total budget in cents
	BudgetCents int64 `json:"budget_cents" validate:"gte=0"`

	// Cost charged for every run in cents
	CostPerRunCents int64 `json:"cost_per_run_cents" validate:"gt=0"`

	// Optional EVM wallet receiving the agent revenue
	WalletAddress string `json:"wallet_address,omitempty" validate:"omitempty,evmaddr"`
}

// SchedulerRunRequest configures a scheduler run.
// swagger:model SchedulerRunRequest
type SchedulerRunRequest struct {
	// Maximum number of agents to consider, zero uses the configured default
	MaxAgents int `json:"max_agents,omitempty" validate:"gte=0,lte=1000"`

	// Report what would run without executing anything
	DryRun bool `json:"dry_run,omitempty"`
}

// ExecutionsRequest lists agent executions, optionally of a single agent.
// swagger:model ExecutionsRequest
type ExecutionsRequest struct {
	AgentID string `json:"agent_id,omitempty" validate:"omitempty,uuid"`
	Limit   int    `json:"limit,omitempty" validate:"gte=0"`
}

// ExecutionsResponse lists agent executions, newest first.
// swagger:model ExecutionsResponse
type ExecutionsResponse struct {
	Executions []db.AgentExecution `json:"executions"`
}

// LimitRequest carries the page size of list actions.
// swagger:model LimitRequest
type LimitRequest struct {
	Limit int `json:"limit,omitempty" validate:"gte=0"`
}

// SignalInput is a demand signal submitted for ingestion.
// swagger:model SignalInput
type SignalInput struct {
	Source     string     `json:"source" validate:"required,max=100"`
	Category   string     `json:"category" validate:"required,max=100"`
	Keyword    string     `json:"keyword,omitempty" validate:"max=200"`
	Region     string     `json:"region,omitempty" validate:"max=50"`
	Volume     int64      `json:"volume" validate:"gt=0"`
	ObservedAt *time.Time `json:"observed_at,omitempty"`
}

// Signal converts the input into a storable signal.
func (s *SignalInput) Signal() db.DemandSignal {
	sig := db.DemandSignal{
		Source:   s.Source,
		Category: s.Category,
		Keyword:  s.Keyword,
		Region:   s.Region,
		Volume:   s.Volume,
	}
	if s.ObservedAt != nil {
		sig.ObservedAt = *s.ObservedAt
	}
	return sig
}

// IngestRequest submits a batch of demand signals.
// swagger:model IngestRequest
type IngestRequest struct {
	Signals []SignalInput `json:"signals" validate:"required,min=1,max=1000,dive"`
}

// ScanRequest configures a demand scan. Zero values use the defaults.
// swagger:model ScanRequest
type ScanRequest struct {
	WindowHours   float64 `json:"window_hours,omitempty" validate:"gte=0,lte=720"`
	HalfLifeHours float64 `json:"half_life_hours,omitempty" validate:"gte=0,lte=720"`
	Limit         int     `json:"limit,omitempty" validate:"gte=0,lte=100"`
}

// CycleRequest starts an orchestrator cycle.
// swagger:model CycleRequest
type CycleRequest struct {
	Trigger string `json:"trigger,omitempty" validate:"omitempty,oneof=manual cron"`
}

// ThinkRequest asks the brain for a new insight.
// swagger:model ThinkRequest
type ThinkRequest struct {
	// Apply the proposed budget adjustments
	Apply bool `json:"apply,omitempty"`
}

// ConnectStatusRequest selects a Stripe Connect account.
// swagger:model ConnectStatusRequest
type ConnectStatusRequest struct {
	AccountID string `json:"account_id" validate:"required"`
}

// CreateConnectAccountRequest opens a Connect onboarding.
// swagger:model CreateConnectAccountRequest
type CreateConnectAccountRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Country    string `json:"country,omitempty" validate:"omitempty,len=2"`
	ReturnURL  string `json:"return_url" validate:"required,url"`
	RefreshURL string `json:"refresh_url" validate:"required,url"`
}

// ListStripePaymentsRequest pages through Stripe payment intents.
// swagger:model ListStripePaymentsRequest
type ListStripePaymentsRequest struct {
	Limit         int    `json:"limit,omitempty" validate:"gte=0,lte=100"`
	StartingAfter string `json:"starting_after,omitempty"`
}

// CryptoPaymentRequest records an on-chain payment.
// swagger:model CryptoPaymentRequest
type CryptoPaymentRequest struct {
	// Transaction hash, 0x prefixed
	TxHash string `json:"tx_hash" validate:"required,txhash"`

	// Paying wallet
	From string `json:"from" validate:"required,evmaddr"`

	// Receiving wallet
	To string `json:"to" validate:"required,evmaddr"`

	// Token symbol, e.g. USDC
	Token string `json:"token" validate:"required,max=20"`

	// Network name, e.g. polygon
	Network string `json:"network" validate:"required,max=50"`

	// Amount in token units as a decimal string
	TokenAmount string `json:"token_amount" validate:"required,tokenamount"`

	// Fiat value of the payment in cents, derived from token_amount for
	// USD stablecoins when omitted
	AmountCents int64 `json:"amount_cents,omitempty" validate:"omitempty,gt=0"`

	// Fiat currency of amount_cents, defaults to usd
	Currency string `json:"currency,omitempty" validate:"omitempty,currency"`

	CustomerEmail string `json:"customer_email,omitempty" validate:"omitempty,email"`
}

// AgentsResponse lists agents.
// swagger:model AgentsResponse
type AgentsResponse struct {
	Agents []db.Agent `json:"agents"`
}

// ResetBudgetsResponse reports the agents whose budget was reset.
// swagger:model ResetBudgetsResponse
type ResetBudgetsResponse struct {
	Reset int64 `json:"reset"`
}

// AuditHistoryResponse lists past audits.
// swagger:model AuditHistoryResponse
type AuditHistoryResponse struct {
	Audits []db.SystemAudit `json:"audits"`
}

// IngestResponse reports the stored signals.
// swagger:model IngestResponse
type IngestResponse struct {
	Ingested int `json:"ingested"`
}

// SignalsResponse lists demand signals.
// swagger:model SignalsResponse
type SignalsResponse struct {
	Signals []db.DemandSignal `json:"signals"`
}

// TopResponse lists the latest demand snapshot.
// swagger:model TopResponse
type TopResponse struct {
	Top []db.DemandSnapshot `json:"top"`
}

// RunsResponse lists orchestrator runs.
// swagger:model RunsResponse
type RunsResponse struct {
	Runs []db.OrchestratorRun `json:"runs"`
}

// InsightsResponse lists brain insights.
// swagger:model InsightsResponse
type InsightsResponse struct {
	Insights []db.BrainInsight `json:"insights"`
}

// PaymentsResponse lists stored payments.
// swagger:model PaymentsResponse
type PaymentsResponse struct {
	Payments []db.Payment `json:"payments"`
}
