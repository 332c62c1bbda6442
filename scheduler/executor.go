package scheduler

import (
	"context"
	"time"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
)

// Outcome is what an agent produced in one execution.
type Outcome struct {
	RevenueCents int64 `json:"revenue_cents"`
	Result       any   `json:"result,omitempty"`
}

// Executor performs the work of one agent. Returning an error marks the
// execution as failed and gives back its cost.
type Executor interface {
	Execute(ctx context.Context, agent db.Agent) (*Outcome, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, agent db.Agent) (*Outcome, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, agent db.Agent) (*Outcome, error) {
	return f(ctx, agent)
}

// SimulatedExecutor accounts for the cost of a run without doing external
// work. It produces no revenue.
type SimulatedExecutor struct{}

// Execute returns a record of the simulated run.
func (SimulatedExecutor) Execute(ctx context.Context, agent db.Agent) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Outcome{
		Result: map[string]any{
			"simulated":  true,
			"agent_type": agent.Type,
			"priority":   agent.Priority,
			"ran_at":     time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}
