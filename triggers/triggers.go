// Package triggers runs the periodic engine jobs on cron schedules.
package triggers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/orchestrator"
	"github.com/robfig/cron/v3"
	"go.vocdoni.io/dvote/log"
)

// Job names.
const (
	JobOrchestrator = "orchestrator"
	JobAudit        = "audit"
	JobBrain        = "brain"
)

const defaultJobTimeout = 10 * time.Minute

// CycleRunner runs an orchestrator cycle.
type CycleRunner interface {
	Cycle(ctx context.Context, trigger string) (*db.OrchestratorRun, error)
}

// AuditRunner runs a system audit.
type AuditRunner interface {
	Run(ctx context.Context) (*db.SystemAudit, error)
}

// Thinker produces a brain insight.
type Thinker interface {
	Configured() bool
	Think(ctx context.Context, apply bool) (*db.BrainInsight, error)
}

// Config holds the schedules, in standard 5 field cron format, and the
// components they run. An empty schedule disables the job.
type Config struct {
	Orchestrator     CycleRunner
	OrchestratorSpec string
	Auditor          AuditRunner
	AuditSpec        string
	Brain            Thinker
	BrainSpec        string
	ApplyBrain       bool
	JobTimeout       time.Duration
}

// JobInfo describes a scheduled job.
type JobInfo struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
}

// Triggers owns the cron scheduler.
type Triggers struct {
	cron    *cron.Cron
	timeout time.Duration
	jobs    map[string]cron.EntryID
	specs   map[string]string
}

// cronLogger sends the cron library logs to the service logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	log.Debugf("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	log.Warnw("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}

// New validates the schedules and registers the enabled jobs. Jobs do not
// run until Start is called.
func New(conf *Config) (*Triggers, error) {
	if conf == nil {
		conf = &Config{}
	}
	logger := cronLogger{}
	t := &Triggers{
		cron: cron.New(cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		timeout: conf.JobTimeout,
		jobs:    map[string]cron.EntryID{},
		specs:   map[string]string{},
	}
	if t.timeout <= 0 {
		t.timeout = defaultJobTimeout
	}
	if conf.Orchestrator != nil {
		if err := t.add(JobOrchestrator, conf.OrchestratorSpec, t.orchestratorJob(conf.Orchestrator)); err != nil {
			return nil, err
		}
	}
	if conf.Auditor != nil {
		if err := t.add(JobAudit, conf.AuditSpec, t.auditJob(conf.Auditor)); err != nil {
			return nil, err
		}
	}
	if conf.Brain != nil && conf.Brain.Configured() {
		if err := t.add(JobBrain, conf.BrainSpec, t.brainJob(conf.Brain, conf.ApplyBrain)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Triggers) add(name, spec string, job func()) error {
	if spec == "" {
		return nil
	}
	id, err := t.cron.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", name, spec, err)
	}
	t.jobs[name] = id
	t.specs[name] = spec
	log.Infow("scheduled job", "job", name, "spec", spec)
	return nil
}

// Start runs the scheduler in its own goroutine.
func (t *Triggers) Start() {
	t.cron.Start()
}

// Stop stops scheduling new jobs and waits for the running ones or ctx.
func (t *Triggers) Stop(ctx context.Context) {
	done := t.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Warnw("cron jobs still running at shutdown")
	}
}

// Jobs returns the scheduled jobs and their next activation.
func (t *Triggers) Jobs() []JobInfo {
	out := []JobInfo{}
	for _, name := range []string{JobOrchestrator, JobAudit, JobBrain} {
		id, ok := t.jobs[name]
		if !ok {
			continue
		}
		out = append(out, JobInfo{Name: name, Spec: t.specs[name], Next: t.cron.Entry(id).Next})
	}
	return out
}

func (t *Triggers) orchestratorJob(o CycleRunner) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		run, err := o.Cycle(ctx, orchestrator.TriggerCron)
		switch {
		case errors.Is(err, orchestrator.ErrCycleInProgress):
			log.Debugf("skipping scheduled cycle: %v", err)
		case err != nil:
			log.Warnw("scheduled cycle failed", "error", err)
		default:
			log.Infow("scheduled cycle finished", "id", run.ID, "status", run.Status)
		}
	}
}

func (t *Triggers) auditJob(a AuditRunner) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		audit, err := a.Run(ctx)
		if err != nil {
			log.Warnw("scheduled audit failed", "error", err)
			return
		}
		log.Infow("scheduled audit finished", "id", audit.ID, "status", audit.Status, "score", audit.Score)
	}
}

func (t *Triggers) brainJob(b Thinker, apply bool) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		insight, err := b.Think(ctx, apply)
		if err != nil {
			log.Warnw("scheduled brain think failed", "error", err)
			return
		}
		log.Infow("scheduled brain think finished", "id", insight.ID, "applied", insight.Applied)
	}
}
