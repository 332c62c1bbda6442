package api

import (
	"context"
	stderrors "errors"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/api/apicommon"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/brain"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/errors"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/internal"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/orchestrator"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/radar"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/scheduler"
)

// engineError translates the errors of the engines into coded errors.
// invalid is used for rejected input and notFound for missing rows.
func engineError(err error, invalid, notFound errors.Error) error {
	var apiErr errors.Error
	switch {
	case stderrors.As(err, &apiErr):
		return apiErr
	case stderrors.Is(err, db.ErrNotFound):
		return notFound.WithErr(err)
	case stderrors.Is(err, db.ErrInvalidData), stderrors.Is(err, db.ErrBudgetExceeded):
		return invalid.WithErr(err)
	case stderrors.Is(err, db.ErrAlreadyExists):
		return errors.ErrDuplicateConflict.WithErr(err)
	case stderrors.Is(err, db.ErrInvalidTransition):
		return errors.ErrInvalidStatusTransition.WithErr(err)
	case stderrors.Is(err, scheduler.ErrRunInProgress):
		return errors.ErrSchedulerBusy
	case stderrors.Is(err, orchestrator.ErrCycleInProgress):
		return errors.ErrOrchestratorBusy
	case stderrors.Is(err, brain.ErrNotConfigured):
		return errors.ErrBrainNotConfigured
	case stderrors.Is(err, brain.ErrCompletionFailed), stderrors.Is(err, brain.ErrInvalidOutput):
		return errors.ErrBrainCompletionFailed.WithErr(err)
	default:
		return errors.ErrInternalStorageError.WithErr(err)
	}
}

func listLimit(c *call) (int, error) {
	req := &apicommon.LimitRequest{}
	if err := c.decode(req); err != nil {
		return 0, err
	}
	return internal.ClampLimit(req.Limit, apicommon.DefaultListLimit, apicommon.MaxListLimit), nil
}

func (a *API) schedulerFunction() *function {
	fail := func(err error) error {
		return engineError(err, errors.ErrInvalidAgentData, errors.ErrAgentNotFound)
	}
	agentID := func(c *call) (string, error) {
		req := &apicommon.AgentRequest{}
		if err := c.decode(req); err != nil {
			return "", err
		}
		return req.AgentID, nil
	}
	return &function{actions: map[string]action{
		"run": {mutating: true, run: func(ctx context.Context, c *call) (any, error) {
			req := &apicommon.SchedulerRunRequest{}
			if err := c.decode(req); err != nil {
				return nil, err
			}
			report, err := a.scheduler.Run(ctx, scheduler.RunOptions{MaxAgents: req.MaxAgents, DryRun: req.DryRun})
			if err != nil {
				return nil, fail(err)
			}
			return report, nil
		}},
		"status": {run: func(ctx context.Context, _ *call) (any, error) {
			stats, err := a.scheduler.Status(ctx)
			if err != nil {
				return nil, fail(err)
			}
			return stats, nil
		}},
		"reset_budgets": {mutating: true, run: func(ctx context.Context, _ *call) (any, error) {
			n, err := a.scheduler.ResetBudgets(ctx)
			if err != nil {
				return nil, fail(err)
			}
			return &apicommon.ResetBudgetsResponse{Reset: n}, nil
		}},
		"pause": {mutating: true, run: func(ctx context.Context, c *call) (any, error) {
			id, err := agentID(c)
			if err != nil {
				return nil, err
			}
			agent, err := a.scheduler.Pause(ctx, id)
			if err != nil {
				return nil, fail(err)
			}
			return agent, nil
		}},
		"resume": {mutating: true, run: func(ctx context.Context, c *call) (any, error) {
			id, err := agentID(c)
			if err != nil {
				return nil, err
			}
			agent, err := a.scheduler.Resume(ctx, id)
			if err != nil {
				return nil, fail(err)
			}
			return agent, nil
		}},
		"create": {mutating: true, run: func(ctx context.Context, c *call) (any, error) {
			req := &apicommon.CreateAgentRequest{}
			if err := c.decode(req); err != nil {
				return nil, err
			}
			agent, err := a.scheduler.Create(ctx, &scheduler.CreateAgentRequest{
				Name:            req.Name,
				Type:            req.Type,
				Priority:        req.Priority,
				BudgetCents:     req.BudgetCents,
				CostPerRunCents: req.CostPerRunCents,
				WalletAddress:   req.WalletAddress,
			})
			if err != nil {
				return nil, fail(err)
			}
			return agent, nil
		}},
		"list": {run: func(ctx context.Context, _ *call) (any, error) {
			agents, err := a.scheduler.List(ctx)
			if err != nil {
				return nil, fail(err)
			}
			return &apicommon.AgentsResponse{Agents: agents}, nil
		}},
		"executions": {run: func(ctx context.Context, c *call) (any, error) {
			req := &apicommon.ExecutionsRequest{}
			if err := c.decode(req); err != nil {
				return nil, err
			}
			limit := internal.ClampLimit(req.Limit, apicommon.DefaultListLimit, apicommon.MaxListLimit)
			execs, err := a.scheduler.Executions(ctx, req.AgentID, limit)
			if err != nil {
				return nil, fail(err)
			}
			return &apicommon.ExecutionsResponse{Executions: execs}, nil
		}},
	}}
}

func (a *API) auditFunction() *function {
	fail := func(err error) error {
		return engineError(err, errors.ErrInvalidData, errors.ErrAuditNotFound)
	}
	return &function{actions: map[string]action{
		"run": {mutating: true, run: func(ctx context.Context, _ *call) (any, error) {
			result, err := a.auditor.Run(ctx)
			if err != nil {
				return nil, errors.ErrAuditFailed.WithErr(err)
			}
			return result, nil
		}},
		"latest": {run: func(ctx context.Context, _ *call) (any, error) {
			latest, err := a.auditor.Latest(ctx)
			if err != nil {
				return nil, fail(err)
			}
			return latest, nil
		}},
		"history": {run: func(ctx context.Context, c *call) (any, error) {
			limit, err := listLimit(c)
			if err != nil {
				return nil, err
			}
			audits, err := a.auditor.History(ctx, limit)
			if err != nil {
				return nil, fail(err)
			}
			return &apicommon.AuditHistoryResponse{Audits: audits}, nil
		}},
	}}
}

func (a *API) radarFunction() *function {
	fail := func(err error) error {
		return engineError(err, errors.ErrInvalidSignalData, errors.ErrInvalidSignalData)
	}
	return &function{actions: map[string]action{
		"ingest": {mutating: true, run: func(ctx context.Context, c *call) (any, error) {
			req := &apicommon.IngestRequest{}
			if err := c.decode(req); err != nil {
				return nil, err
			}
			signals := make([]db.DemandSignal, 0, len(req.Signals))
			for i := range req.Signals {
				signals = append(signals, req.Signals[i].Signal())
			}
			n, err := a.radar.Ingest(ctx, signals)
			if err != nil {
				return nil, fail(err)
			}
			return &apicommon.IngestResponse{Ingested: n}, nil
		}},
		"scan": {mutating: true, run: func(ctx context.Context, c *call) (any, error) {
			req := &apicommon.ScanRequest{}
			if err := c.decode(req); err != nil {
				return nil, err
			}
			report, err := a.radar.Scan(ctx, radar.ScanOptions{
				WindowHours:   req.WindowHours,
				HalfLifeHours: req.HalfLifeHours,
				Limit:         req.Limit,
			})
			if err != nil {
				return nil, fail(err)
			}
			return report, nil
		}},
		"signals": {run: func(ctx context.Context, c *call) (any, error) {
			limit, err := listLimit(c)
			if err != nil {
				return nil, err
			}
			signals, err := a.radar.Signals(ctx, limit)
			if err != nil {
				return nil, fail(err)
			}
			return &apicommon.SignalsResponse{Signals: signals}, nil
		}},
		"top": {run: func(ctx context.Context, c *call) (any, error) {
			limit, err := listLimit(c)
			if err != nil {
				return nil, err
			}
			top, err := a.radar.Top(ctx, limit)
			if err != nil {
				return nil, fail(err)
			}
			return &apicommon.TopResponse{Top: top}, nil
		}},
	}}
}

func (a *API) orchestratorFunction() *function {
	fail := func(err error) error {
		return engineError(err, errors.ErrInvalidData, errors.ErrInvalidData)
	}
	return &function{actions: map[string]action{
		"cycle": {mutating: true, run: func(ctx context.Context, c *call) (any, error) {
			req := &apicommon.CycleRequest{}
			if err := c.decode(req); err != nil {
				return nil, err
			}
			// the cycle owns its step timeouts, so it is not bound to the
			// request deadline
			run, err := a.orchestrator.Cycle(context.WithoutCancel(ctx), req.Trigger)
			if err != nil {
				return nil, fail(err)
			}
			return run, nil
		}},
		"status": {run: func(ctx context.Context, c *call) (any, error) {
			limit, err := listLimit(c)
			if err != nil {
				return nil, err
			}
			runs, err := a.orchestrator.Status(ctx, limit)
			if err != nil {
				return nil, fail(err)
			}
			return &apicommon.RunsResponse{Runs: runs}, nil
		}},
	}}
}

func (a *API) brainFunction() *function {
	fail := func(err error) error {
		return engineError(err, errors.ErrInvalidData, errors.ErrInvalidData)
	}
	return &function{actions: map[string]action{
		"think": {mutating: true, run: func(ctx context.Context, c *call) (any, error) {
			req := &apicommon.ThinkRequest{}
			if err := c.decode(req); err != nil {
				return nil, err
			}
			if !a.brain.Configured() {
				return nil, errors.ErrBrainNotConfigured
			}
			insight, err := a.brain.Think(ctx, req.Apply)
			if err != nil {
				return nil, fail(err)
			}
			return insight, nil
		}},
		"insights": {run: func(ctx context.Context, c *call) (any, error) {
			limit, err := listLimit(c)
			if err != nil {
				return nil, err
			}
			if a.brain == nil {
				return &apicommon.InsightsResponse{Insights: []db.BrainInsight{}}, nil
			}
			insights, err := a.brain.Insights(ctx, limit)
			if err != nil {
				return nil, fail(err)
			}
			return &apicommon.InsightsResponse{Insights: insights}, nil
		}},
	}}
}
