// Package brain asks a language model for an assessment of the business
// state and optionally applies the agent budget changes it proposes.
package brain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	"go.vocdoni.io/dvote/log"
)

var (
	// ErrNotConfigured is returned when no completion endpoint is set up.
	ErrNotConfigured = fmt.Errorf("brain is not configured")
	// ErrInvalidOutput is returned when the model answer is not a decision.
	ErrInvalidOutput = fmt.Errorf("invalid model output")
	// ErrCompletionFailed wraps failures of the completion endpoint.
	ErrCompletionFailed = fmt.Errorf("completion failed")
)

const (
	snapshotDemandLimit = 10
	budgetGrowthFactor  = 2
)

const systemPrompt = `You are the operations brain of a payments and automation business.
You receive a JSON snapshot with payment totals, agent budgets and the current demand ranking.
Answer with a single JSON object and nothing else, using this shape:
{"summary": string, "recommendations": [string], "budget_adjustments": [{"agent_id": string, "budget_cents": integer, "reason": string}]}
Only propose budget adjustments for agent ids present in the snapshot. Budgets are in cents.`

// DBInterface defines the database methods required by the brain
type DBInterface interface {
	PaymentSummary(ctx context.Context, since time.Time) (*db.PaymentSummary, error)
	AgentStats(ctx context.Context, since time.Time) (*db.AgentStats, error)
	ListAgents(ctx context.Context) ([]db.Agent, error)
	LatestSnapshot(ctx context.Context, limit int) ([]db.DemandSnapshot, error)
	SetAgentBudget(ctx context.Context, id string, budget int64) error
	SaveInsight(ctx context.Context, in *db.BrainInsight) error
	ListInsights(ctx context.Context, limit int) ([]db.BrainInsight, error)
}

// Completer produces the answer of the model for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Model() string
}

// Config holds the configuration for the brain. Completer is optional;
// without it only stored insights can be read.
type Config struct {
	DB        DBInterface
	Completer Completer
}

// Brain builds the prompts, parses the decisions and applies them.
type Brain struct {
	db        DBInterface
	completer Completer
	now       func() time.Time
}

// Decision is the structured answer expected from the model.
type Decision struct {
	Summary           string                `json:"summary"`
	Recommendations   []string              `json:"recommendations"`
	BudgetAdjustments []db.BudgetAdjustment `json:"budget_adjustments"`
}

// Snapshot is the business state sent to the model.
type Snapshot struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Payments    *db.PaymentSummary  `json:"payments"`
	AgentStats  *db.AgentStats      `json:"agent_stats"`
	Agents      []SnapshotAgent     `json:"agents"`
	Demand      []db.DemandSnapshot `json:"demand"`
}

// SnapshotAgent is the part of an agent the model needs to reason about.
type SnapshotAgent struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	Status          string `json:"status"`
	BudgetCents     int64  `json:"budget_cents"`
	SpentCents      int64  `json:"spent_cents"`
	CostPerRunCents int64  `json:"cost_per_run_cents"`
	SuccessCount    int64  `json:"success_count"`
	FailureCount    int64  `json:"failure_count"`
}

// New creates a brain. It returns nil when no database is configured.
func New(conf *Config) *Brain {
	if conf == nil || conf.DB == nil {
		return nil
	}
	return &Brain{
		db:        conf.DB,
		completer: conf.Completer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Configured reports whether the brain can think.
func (b *Brain) Configured() bool {
	return b != nil && b.completer != nil
}

// Snapshot collects the current business state.
func (b *Brain) Snapshot(ctx context.Context) (*Snapshot, error) {
	now := b.now()
	since := now.Add(-24 * time.Hour)
	payments, err := b.db.PaymentSummary(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("could not load payment summary: %w", err)
	}
	stats, err := b.db.AgentStats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("could not load agent stats: %w", err)
	}
	agents, err := b.db.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load agents: %w", err)
	}
	demand, err := b.db.LatestSnapshot(ctx, snapshotDemandLimit)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("could not load demand snapshot: %w", err)
	}
	snap := &Snapshot{
		GeneratedAt: now,
		Payments:    payments,
		AgentStats:  stats,
		Agents:      make([]SnapshotAgent, 0, len(agents)),
		Demand:      demand,
	}
	for _, a := range agents {
		snap.Agents = append(snap.Agents, SnapshotAgent{
			ID:              a.ID,
			Name:            a.Name,
			Type:            a.Type,
			Status:          a.Status,
			BudgetCents:     a.BudgetCents,
			SpentCents:      a.SpentCents,
			CostPerRunCents: a.CostPerRunCents,
			SuccessCount:    a.SuccessCount,
			FailureCount:    a.FailureCount,
		})
	}
	return snap, nil
}

// Think asks the model for a decision over the current snapshot and stores
// it as an insight. With apply, the budget adjustments are applied first and
// the insight records the adjustments that were actually made.
func (b *Brain) Think(ctx context.Context, apply bool) (*db.BrainInsight, error) {
	if !b.Configured() {
		return nil, ErrNotConfigured
	}
	snap, err := b.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	raw, err := b.completer.Complete(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: string(payload)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	decision, err := ParseDecision(raw)
	if err != nil {
		log.Warnw("discarding model output", "error", err, "size", len(raw))
		return nil, err
	}

	insight := &db.BrainInsight{
		Model:           b.completer.Model(),
		Summary:         decision.Summary,
		Recommendations: decision.Recommendations,
		Adjustments:     decision.BudgetAdjustments,
		Raw:             raw,
		CreatedAt:       b.now(),
	}
	if apply {
		insight.Adjustments = b.applyAdjustments(ctx, snap.Agents, decision.BudgetAdjustments)
		insight.Applied = true
	}
	if err := b.db.SaveInsight(ctx, insight); err != nil {
		return nil, fmt.Errorf("could not save insight: %w", err)
	}
	log.Infow("brain insight stored", "id", insight.ID, "adjustments", len(insight.Adjustments), "applied", insight.Applied)
	return insight, nil
}

// Insights returns the latest stored insights.
func (b *Brain) Insights(ctx context.Context, limit int) ([]db.BrainInsight, error) {
	return b.db.ListInsights(ctx, limit)
}

// ClampBudget bounds a proposed budget to [spent, 2*current].
func ClampBudget(proposed, current, spent int64) int64 {
	upper := budgetGrowthFactor * current
	if proposed > upper {
		proposed = upper
	}
	if proposed < spent {
		proposed = spent
	}
	return max(proposed, 0)
}

func (b *Brain) applyAdjustments(ctx context.Context, agents []SnapshotAgent,
	proposed []db.BudgetAdjustment,
) []db.BudgetAdjustment {
	byID := make(map[string]SnapshotAgent, len(agents))
	for _, a := range agents {
		byID[a.ID] = a
	}
	applied := []db.BudgetAdjustment{}
	for _, adj := range proposed {
		agent, ok := byID[adj.AgentID]
		if !ok {
			log.Debugf("ignoring budget adjustment for unknown agent %s", adj.AgentID)
			continue
		}
		budget := ClampBudget(adj.BudgetCents, agent.BudgetCents, agent.SpentCents)
		if budget == agent.BudgetCents {
			continue
		}
		if err := b.db.SetAgentBudget(ctx, agent.ID, budget); err != nil {
			log.Warnw("could not apply budget adjustment", "agent", agent.ID, "error", err)
			continue
		}
		applied = append(applied, db.BudgetAdjustment{AgentID: agent.ID, BudgetCents: budget, Reason: adj.Reason})
	}
	return applied
}

// ParseDecision decodes the model answer. Markdown code fences and text
// around the JSON object are tolerated.
func ParseDecision(raw string) (*Decision, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		if nl := strings.Index(text, "\n"); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object found", ErrInvalidOutput)
	}
	d := &Decision{}
	if err := json.Unmarshal([]byte(text[start:end+1]), d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if strings.TrimSpace(d.Summary) == "" {
		return nil, fmt.Errorf("%w: missing summary", ErrInvalidOutput)
	}
	if d.Recommendations == nil {
		d.Recommendations = []string{}
	}
	if d.BudgetAdjustments == nil {
		d.BudgetAdjustments = []db.BudgetAdjustment{}
	}
	return d, nil
}
