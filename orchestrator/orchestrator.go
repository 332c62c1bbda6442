// Package orchestrator runs the full power cycle: demand scan, brain
// assessment, agent run and system audit, recording the outcome of each step.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/radar"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/scheduler"
	"go.vocdoni.io/dvote/log"
)

// ErrCycleInProgress is returned when a cycle is requested while another
// one is running.
var ErrCycleInProgress = fmt.Errorf("orchestrator cycle already in progress")

// Step names, in execution order.
const (
	StepDemandScan  = "demand_scan"
	StepBrainThink  = "brain_think"
	StepAgentRun    = "agent_run"
	StepSystemAudit = "system_audit"
)

// Run and step statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunPartial   = "partial"
	RunFailed    = "failed"

	StepSucceeded = "succeeded"
	StepFailed    = "failed"
	StepSkipped   = "skipped"
)

// Triggers.
const (
	TriggerManual = "manual"
	TriggerCron   = "cron"
)

var defaultTimeouts = map[string]time.Duration{
	StepDemandScan:  30 * time.Second,
	StepBrainThink:  90 * time.Second,
	StepAgentRun:    2 * time.Minute,
	StepSystemAudit: 30 * time.Second,
}

// DBInterface defines the database methods required by the orchestrator
type DBInterface interface {
	CreateRun(ctx context.Context, run *db.OrchestratorRun) error
	FinishRun(ctx context.Context, run *db.OrchestratorRun) error
	ListRuns(ctx context.Context, limit int) ([]db.OrchestratorRun, error)
}

// DemandScanner computes a demand snapshot.
type DemandScanner interface {
	Scan(ctx context.Context, opts radar.ScanOptions) (*radar.ScanReport, error)
}

// Thinker produces a brain insight.
type Thinker interface {
	Configured() bool
	Think(ctx context.Context, apply bool) (*db.BrainInsight, error)
}

// AgentRunner executes the runnable agents.
type AgentRunner interface {
	Run(ctx context.Context, opts scheduler.RunOptions) (*scheduler.RunReport, error)
}

// Auditor runs a system audit.
type Auditor interface {
	Run(ctx context.Context) (*db.SystemAudit, error)
}

// Config holds the configuration for the orchestrator. Missing components
// make their step be skipped. Timeouts override the default timeout of the
// named steps.
type Config struct {
	DB         DBInterface
	Radar      DemandScanner
	Brain      Thinker
	Scheduler  AgentRunner
	Auditor    Auditor
	ApplyBrain bool
	Timeouts   map[string]time.Duration
}

// Orchestrator runs one cycle at a time.
type Orchestrator struct {
	db         DBInterface
	radar      DemandScanner
	brain      Thinker
	scheduler  AgentRunner
	auditor    Auditor
	applyBrain bool
	timeouts   map[string]time.Duration
	running    sync.Mutex
}

type step struct {
	name string
	run  func(ctx context.Context) (any, error)
}

// New creates an orchestrator. It returns nil when no database is configured.
func New(conf *Config) *Orchestrator {
	if conf == nil || conf.DB == nil {
		return nil
	}
	timeouts := make(map[string]time.Duration, len(defaultTimeouts))
	for name, d := range defaultTimeouts {
		timeouts[name] = d
	}
	for name, d := range conf.Timeouts {
		if d > 0 {
			timeouts[name] = d
		}
	}
	return &Orchestrator{
		db:         conf.DB,
		radar:      conf.Radar,
		brain:      conf.Brain,
		scheduler:  conf.Scheduler,
		auditor:    conf.Auditor,
		applyBrain: conf.ApplyBrain,
		timeouts:   timeouts,
	}
}

// Cycle runs every step in order. A failing step is recorded and the cycle
// continues with the next one.
func (o *Orchestrator) Cycle(ctx context.Context, trigger string) (*db.OrchestratorRun, error) {
	if !o.running.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer o.running.Unlock()
	if trigger == "" {
		trigger = TriggerManual
	}

	run := &db.OrchestratorRun{Trigger: trigger, Status: RunRunning, StartedAt: time.Now().UTC()}
	if err := o.db.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("could not create orchestrator run: %w", err)
	}
	log.Infow("orchestrator cycle started", "id", run.ID, "trigger", trigger)

	succeeded, failed := 0, 0
	for _, s := range o.steps() {
		res := o.runStep(ctx, s)
		switch res.Status {
		case StepSucceeded:
			succeeded++
		case StepFailed:
			failed++
		}
		run.Steps = append(run.Steps, res)
	}
	run.Status = cycleStatus(succeeded, failed)

	if err := o.db.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		return nil, fmt.Errorf("could not finish orchestrator run: %w", err)
	}
	log.Infow("orchestrator cycle finished", "id", run.ID, "status", run.Status,
		"succeeded", succeeded, "failed", failed)
	return run, nil
}

// Status returns the latest cycles, newest first.
func (o *Orchestrator) Status(ctx context.Context, limit int) ([]db.OrchestratorRun, error) {
	return o.db.ListRuns(ctx, limit)
}

func cycleStatus(succeeded, failed int) string {
	switch {
	case failed == 0:
		return RunCompleted
	case succeeded == 0:
		return RunFailed
	}
	return RunPartial
}

func (o *Orchestrator) runStep(ctx context.Context, s step) db.OrchestratorStep {
	res := db.OrchestratorStep{Name: s.name, StartedAt: time.Now().UTC()}
	if s.run == nil {
		res.Status = StepSkipped
		return res
	}
	stepCtx, cancel := context.WithTimeout(ctx, o.timeouts[s.name])
	defer cancel()
	out, err := s.run(stepCtx)
	res.DurationMS = time.Since(res.StartedAt).Milliseconds()
	if err != nil {
		res.Status = StepFailed
		res.Error = err.Error()
		log.Warnw("orchestrator step failed", "step", s.name, "error", err)
		return res
	}
	res.Status = StepSucceeded
	res.Output = out
	return res
}

// steps returns the cycle steps. Steps without a configured component have
// no run function.
func (o *Orchestrator) steps() []step {
	steps := []step{{name: StepDemandScan}, {name: StepBrainThink}, {name: StepAgentRun}, {name: StepSystemAudit}}
	if o.radar != nil {
		steps[0].run = func(ctx context.Context) (any, error) {
			report, err := o.radar.Scan(ctx, radar.ScanOptions{})
			if err != nil {
				return nil, err
			}
			out := map[string]any{"scan_id": report.ScanID, "categories": report.Categories}
			if len(report.Top) > 0 {
				out["top_category"] = report.Top[0].Category
			}
			return out, nil
		}
	}
	if o.brain != nil && o.brain.Configured() {
		steps[1].run = func(ctx context.Context) (any, error) {
			insight, err := o.brain.Think(ctx, o.applyBrain)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"insight_id":  insight.ID,
				"applied":     insight.Applied,
				"adjustments": len(insight.Adjustments),
			}, nil
		}
	}
	if o.scheduler != nil {
		steps[2].run = func(ctx context.Context) (any, error) {
			report, err := o.scheduler.Run(ctx, scheduler.RunOptions{})
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"run_id":           report.RunID,
				"executed":         report.Executed,
				"failed":           report.Failed,
				"skipped":          len(report.Skipped),
				"total_cost_cents": report.TotalCostCents,
			}, nil
		}
	}
	if o.auditor != nil {
		steps[3].run = func(ctx context.Context) (any, error) {
			audit, err := o.auditor.Run(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"audit_id": audit.ID, "status": audit.Status, "score": audit.Score}, nil
		}
	}
	return steps
}
