// Package scheduler selects the agents that can run within their budgets and
// executes them with bounded concurrency.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/internal"
	"go.vocdoni.io/dvote/log"
	"golang.org/x/sync/errgroup"
)

// ErrRunInProgress is returned when a run is requested while another one is
// still executing.
var ErrRunInProgress = fmt.Errorf("scheduler run already in progress")

// Skip reasons reported for agents that were considered but not executed.
const (
	SkipBudgetExhausted    = "budget_exhausted"
	SkipRunBudgetExhausted = "run_budget_exhausted"
	SkipBudgetRace         = "budget_race"
	SkipCanceled           = "canceled"
)

const (
	defaultMaxAgents = 10
	defaultWorkers   = 4
	executeAction    = "execute"
)

// DBInterface defines the database methods required by the scheduler
type DBInterface interface {
	CreateAgent(ctx context.Context, a *db.Agent) error
	Agent(ctx context.Context, id string) (*db.Agent, error)
	ListAgents(ctx context.Context) ([]db.Agent, error)
	RunnableAgents(ctx context.Context, limit int) ([]db.Agent, error)
	SetAgentStatus(ctx context.Context, id, status string) error
	ReserveAgentBudget(ctx context.Context, id string, cost int64) (bool, error)
	RefundAgentBudget(ctx context.Context, id string, cost int64) error
	RecordAgentRun(ctx context.Context, id string, success bool, at time.Time) error
	ResetAgentBudgets(ctx context.Context) (int64, error)
	AgentStats(ctx context.Context, since time.Time) (*db.AgentStats, error)
	CreateExecution(ctx context.Context, e *db.AgentExecution) error
	FinishExecution(ctx context.Context, e *db.AgentExecution) error
	ListExecutions(ctx context.Context, agentID string, limit int) ([]db.AgentExecution, error)
}

// Config holds the configuration for the scheduler.
type Config struct {
	DB       DBInterface
	Executor Executor
	// MaxAgents bounds the agents considered by a run when the request does
	// not set its own limit.
	MaxAgents int
	// RunBudgetCents caps the total cost of a single run. Zero means no cap.
	RunBudgetCents int64
	Workers        int
}

// Scheduler runs agents against their budgets.
type Scheduler struct {
	db         DBInterface
	executor   Executor
	maxAgents  int
	runBudget  int64
	workers    int
	running    sync.Mutex
	agentLocks *internal.LockManager
}

// RunOptions are the parameters of a single run.
type RunOptions struct {
	MaxAgents int  `json:"max_agents,omitempty"`
	DryRun    bool `json:"dry_run,omitempty"`
}

// Skip is an agent that was considered but not executed.
type Skip struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
	Reason  string `json:"reason"`
}

// ExecutionResult summarizes one agent execution of a run.
type ExecutionResult struct {
	AgentID      string `json:"agent_id"`
	ExecutionID  string `json:"execution_id"`
	Status       string `json:"status"`
	CostCents    int64  `json:"cost_cents"`
	RevenueCents int64  `json:"revenue_cents"`
	Error        string `json:"error,omitempty"`
}

// RunReport is the outcome of a run.
type RunReport struct {
	RunID             string            `json:"run_id"`
	DryRun            bool              `json:"dry_run"`
	Considered        int               `json:"considered"`
	Executed          int               `json:"executed"`
	Failed            int               `json:"failed"`
	WouldExecute      []string          `json:"would_execute,omitempty"`
	Skipped           []Skip            `json:"skipped"`
	Executions        []ExecutionResult `json:"executions"`
	TotalCostCents    int64             `json:"total_cost_cents"`
	TotalRevenueCents int64             `json:"total_revenue_cents"`
	DurationMS        int64             `json:"duration_ms"`

	mu sync.Mutex
}

func (r *RunReport) skip(a *db.Agent, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped = append(r.Skipped, Skip{AgentID: a.ID, Name: a.Name, Reason: reason})
}

func (r *RunReport) add(res ExecutionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Executions = append(r.Executions, res)
	if res.Status == db.ExecutionSucceeded {
		r.Executed++
		r.TotalCostCents += res.CostCents
		r.TotalRevenueCents += res.RevenueCents
		return
	}
	r.Failed++
}

// New creates a scheduler with the given configuration.
func New(conf *Config) *Scheduler {
	if conf == nil || conf.DB == nil {
		return nil
	}
	s := &Scheduler{
		db:         conf.DB,
		executor:   conf.Executor,
		maxAgents:  conf.MaxAgents,
		runBudget:  conf.RunBudgetCents,
		workers:    conf.Workers,
		agentLocks: internal.NewLockManager(),
	}
	if s.executor == nil {
		s.executor = SimulatedExecutor{}
	}
	if s.maxAgents <= 0 {
		s.maxAgents = defaultMaxAgents
	}
	if s.workers <= 0 {
		s.workers = defaultWorkers
	}
	return s
}

// Run selects the runnable agents and executes those whose budgets cover
// another run. Only one run executes at a time, concurrent calls fail with
// ErrRunInProgress.
func (s *Scheduler) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	start := time.Now()
	report := &RunReport{
		RunID:      uuid.NewString(),
		DryRun:     opts.DryRun,
		Skipped:    []Skip{},
		Executions: []ExecutionResult{},
	}
	limit := opts.MaxAgents
	if limit <= 0 {
		limit = s.maxAgents
	}
	agents, err := s.db.RunnableAgents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select runnable agents: %w", err)
	}
	report.Considered = len(agents)

	planned := s.plan(ctx, agents, report)
	if opts.DryRun {
		report.WouldExecute = []string{}
		for _, a := range planned {
			report.WouldExecute = append(report.WouldExecute, a.ID)
		}
		report.DurationMS = time.Since(start).Milliseconds()
		return report, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range planned {
		agent := planned[i]
		g.Go(func() error {
			s.execute(gctx, report, &agent)
			return nil
		})
	}
	_ = g.Wait()

	report.DurationMS = time.Since(start).Milliseconds()
	log.Infow("scheduler run finished", "run", report.RunID, "considered", report.Considered,
		"executed", report.Executed, "failed", report.Failed, "skipped", len(report.Skipped),
		"cost", report.TotalCostCents, "revenue", report.TotalRevenueCents)
	return report, nil
}

// plan walks the agents in priority order and keeps those that fit both
// their own budget and the run budget. Agents that cannot afford a run are
// marked exhausted unless nothing may be written.
func (s *Scheduler) plan(ctx context.Context, agents []db.Agent, report *RunReport) []db.Agent {
	planned := []db.Agent{}
	var runSpend int64
	for i := range agents {
		a := &agents[i]
		if a.RemainingCents() < a.CostPerRunCents {
			report.skip(a, SkipBudgetExhausted)
			if !report.DryRun {
				if err := s.db.SetAgentStatus(ctx, a.ID, db.AgentExhausted); err != nil {
					log.Warnw("failed to mark agent as exhausted", "agent", a.ID, "error", err)
				}
			}
			continue
		}
		if s.runBudget > 0 && runSpend+a.CostPerRunCents > s.runBudget {
			report.skip(a, SkipRunBudgetExhausted)
			continue
		}
		runSpend += a.CostPerRunCents
		planned = append(planned, *a)
	}
	return planned
}

// execute runs one agent holding its lock. The cost is reserved before the
// executor is called and refunded when it fails.
func (s *Scheduler) execute(ctx context.Context, report *RunReport, agent *db.Agent) {
	if ctx.Err() != nil {
		report.skip(agent, SkipCanceled)
		return
	}
	unlock := s.agentLocks.Lock(agent.ID)
	defer unlock()

	cost := agent.CostPerRunCents
	reserved, err := s.db.ReserveAgentBudget(ctx, agent.ID, cost)
	if err != nil {
		log.Warnw("failed to reserve agent budget", "agent", agent.ID, "error", err)
		report.add(ExecutionResult{AgentID: agent.ID, Status: db.ExecutionFailed, Error: err.Error()})
		return
	}
	if !reserved {
		report.skip(agent, SkipBudgetRace)
		return
	}

	exec := &db.AgentExecution{
		RunID:     report.RunID,
		AgentID:   agent.ID,
		Action:    executeAction,
		Status:    db.ExecutionRunning,
		CostCents: cost,
	}
	if err := s.db.CreateExecution(ctx, exec); err != nil {
		s.refund(agent.ID, cost)
		report.add(ExecutionResult{AgentID: agent.ID, Status: db.ExecutionFailed, Error: err.Error()})
		return
	}

	outcome, execErr := s.executor.Execute(ctx, *agent)
	if execErr == nil && outcome == nil {
		outcome = &Outcome{}
	}
	if execErr == nil && outcome.Result != nil {
		if exec.Result, err = json.Marshal(outcome.Result); err != nil {
			execErr = fmt.Errorf("agent result is not serializable: %w", err)
		}
	}
	if execErr != nil {
		s.refund(agent.ID, cost)
		exec.Status = db.ExecutionFailed
		exec.CostCents = 0
		exec.Error = strings.TrimSpace(execErr.Error())
	} else {
		exec.Status = db.ExecutionSucceeded
		exec.RevenueCents = outcome.RevenueCents
	}

	// storage writes after the executor must survive a canceled run
	finishCtx := context.WithoutCancel(ctx)
	if err := s.db.FinishExecution(finishCtx, exec); err != nil {
		log.Warnw("failed to store execution outcome", "execution", exec.ID, "error", err)
	}
	if err := s.db.RecordAgentRun(finishCtx, agent.ID, execErr == nil, time.Now().UTC()); err != nil {
		log.Warnw("failed to record agent run", "agent", agent.ID, "error", err)
	}
	if execErr != nil {
		log.Warnw("agent execution failed", "agent", agent.ID, "execution", exec.ID, "error", execErr)
	} else {
		log.Debugf("agent %s executed, cost %d revenue %d", agent.ID, exec.CostCents, exec.RevenueCents)
	}
	report.add(ExecutionResult{
		AgentID:      agent.ID,
		ExecutionID:  exec.ID,
		Status:       exec.Status,
		CostCents:    exec.CostCents,
		RevenueCents: exec.RevenueCents,
		Error:        exec.Error,
	})
}

func (s *Scheduler) refund(agentID string, cost int64) {
	if err := s.db.RefundAgentBudget(context.Background(), agentID, cost); err != nil {
		log.Errorw(err, fmt.Sprintf("failed to refund %d cents to agent %s", cost, agentID))
	}
}

// Status aggregates agent budgets and the executions of the last day.
func (s *Scheduler) Status(ctx context.Context) (*db.AgentStats, error) {
	return s.db.AgentStats(ctx, time.Now().Add(-24*time.Hour))
}

// ResetBudgets zeroes spent budgets and reactivates exhausted agents.
func (s *Scheduler) ResetBudgets(ctx context.Context) (int64, error) {
	n, err := s.db.ResetAgentBudgets(ctx)
	if err != nil {
		return 0, err
	}
	log.Infow("agent budgets reset", "agents", n)
	return n, nil
}

// Pause stops an agent from being selected.
func (s *Scheduler) Pause(ctx context.Context, agentID string) (*db.Agent, error) {
	return s.setStatus(ctx, agentID, db.AgentPaused)
}

// Resume makes an agent selectable again.
func (s *Scheduler) Resume(ctx context.Context, agentID string) (*db.Agent, error) {
	return s.setStatus(ctx, agentID, db.AgentActive)
}

func (s *Scheduler) setStatus(ctx context.Context, agentID, status string) (*db.Agent, error) {
	unlock := s.agentLocks.Lock(agentID)
	defer unlock()
	if err := s.db.SetAgentStatus(ctx, agentID, status); err != nil {
		return nil, err
	}
	return s.db.Agent(ctx, agentID)
}

// CreateAgentRequest holds the fields of a new agent.
type CreateAgentRequest struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	Priority        int    `json:"priority"`
	BudgetCents     int64  `json:"budget_cents"`
	CostPerRunCents int64  `json:"cost_per_run_cents"`
	WalletAddress   string `json:"wallet_address,omitempty"`
}

// Create stores a new active agent.
func (s *Scheduler) Create(ctx context.Context, req *CreateAgentRequest) (*db.Agent, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Type) == "" {
		return nil, fmt.Errorf("%w: name and type are required", db.ErrInvalidData)
	}
	if req.BudgetCents < 0 || req.CostPerRunCents < 0 {
		return nil, fmt.Errorf("%w: budget and cost cannot be negative", db.ErrInvalidData)
	}
	agent := &db.Agent{
		Name:            strings.TrimSpace(req.Name),
		Type:            strings.TrimSpace(req.Type),
		Priority:        req.Priority,
		BudgetCents:     req.BudgetCents,
		CostPerRunCents: req.CostPerRunCents,
	}
	if req.WalletAddress != "" {
		addr, err := internal.ParseAddress(req.WalletAddress)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", db.ErrInvalidData, err)
		}
		agent.WalletAddress = addr.Hex()
	}
	if err := s.db.CreateAgent(ctx, agent); err != nil {
		return nil, err
	}
	log.Infow("agent created", "agent", agent.ID, "name", agent.Name, "budget", agent.BudgetCents)
	return agent, nil
}

// List returns every agent.
func (s *Scheduler) List(ctx context.Context) ([]db.Agent, error) {
	return s.db.ListAgents(ctx)
}

// Executions returns the latest executions, of every agent when agentID is
// empty.
func (s *Scheduler) Executions(ctx context.Context, agentID string, limit int) ([]db.AgentExecution, error) {
	return s.db.ListExecutions(ctx, agentID, limit)
}
