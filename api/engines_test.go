package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/audit"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/brain"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/dashboard"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/errors"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/orchestrator"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/radar"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/scheduler"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/test"
	"go.vocdoni.io/dvote/log"
)

// testDB is the Postgres storage of the engine tests, nil without docker.
var testDB *db.PostgresStorage

func TestMain(m *testing.M) {
	log.Init("debug", "stdout", nil)
	ctx := context.Background()
	container, err := test.StartPostgresContainer(ctx)
	if err != nil {
		fmt.Printf("postgres container unavailable, skipping engine tests: %v\n", err)
		os.Exit(m.Run())
	}
	url, err := test.PostgresURL(ctx, container)
	if err != nil {
		panic(fmt.Sprintf("failed to get postgres endpoint: %v", err))
	}
	if testDB, err = db.New(url); err != nil {
		panic(fmt.Sprintf("failed to create postgres storage: %v", err))
	}

	code := m.Run()

	testDB.Close()
	if err := container.Terminate(ctx); err != nil {
		panic(fmt.Sprintf("failed to stop postgres container: %v", err))
	}
	os.Exit(code)
}

// engineServer wires every engine to the test database.
func engineServer(c *qt.C) *httptest.Server {
	if testDB == nil {
		c.Skip("postgres not available")
	}
	c.Assert(testDB.Reset(context.Background()), qt.IsNil)

	sched := scheduler.New(&scheduler.Config{DB: testDB})
	rdr := radar.New(testDB)
	auditor := audit.New(&audit.Config{DB: testDB})
	thinker := brain.New(&brain.Config{DB: testDB})
	orch := orchestrator.New(&orchestrator.Config{
		DB:        testDB,
		Radar:     rdr,
		Brain:     thinker,
		Scheduler: sched,
		Auditor:   auditor,
	})
	return testServer(c, &Config{
		Payments:     testDB,
		Scheduler:    sched,
		Radar:        rdr,
		Auditor:      auditor,
		Brain:        thinker,
		Orchestrator: orch,
		Dashboard:    dashboard.New(testDB, 0),
	})
}

func TestEngineFunctions(t *testing.T) {
	c := qt.New(t)
	srv := engineServer(c)
	admin := adminToken(c)

	var agentID string
	c.Run("create and list agents", func(c *qt.C) {
		status, body := callFunction(c, srv, admin, agentSchedulerFunction, map[string]any{
			"action":             "create",
			"name":               "lead-finder",
			"type":               "prospecting",
			"priority":           10,
			"budget_cents":       1000,
			"cost_per_run_cents": 100,
		})
		c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body %s", body))
		agent := decode[db.Agent](c, body)
		c.Assert(agent.Status, qt.Equals, db.AgentActive)
		agentID = agent.ID

		status, body = callFunction(c, srv, admin, agentSchedulerFunction, map[string]any{
			"action":             "create",
			"name":               "broken",
			"type":               "prospecting",
			"cost_per_run_cents": 0,
		})
		c.Assert(status, qt.Equals, http.StatusBadRequest)
		c.Assert(errorCode(c, body), qt.Equals, errors.ErrInvalidData.Code)

		status, body = callFunction(c, srv, userToken(c), agentSchedulerFunction, map[string]any{"action": "list"})
		c.Assert(status, qt.Equals, http.StatusOK)
		agents := decode[struct {
			Agents []db.Agent `json:"agents"`
		}](c, body)
		c.Assert(agents.Agents, qt.HasLen, 1)
	})

	c.Run("dry run executes nothing", func(c *qt.C) {
		status, body := callFunction(c, srv, admin, agentSchedulerFunction, map[string]any{
			"action":  "run",
			"dry_run": true,
		})
		c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body %s", body))
		report := decode[scheduler.RunReport](c, body)
		c.Assert(report.DryRun, qt.IsTrue)
		c.Assert(report.Executed, qt.Equals, 0)
		c.Assert(report.WouldExecute, qt.DeepEquals, []string{agentID})
	})

	c.Run("pause and resume", func(c *qt.C) {
		status, body := callFunction(c, srv, admin, agentSchedulerFunction, map[string]any{
			"action":   "pause",
			"agent_id": agentID,
		})
		c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body %s", body))
		c.Assert(decode[db.Agent](c, body).Status, qt.Equals, db.AgentPaused)

		status, body = callFunction(c, srv, admin, agentSchedulerFunction, map[string]any{
			"action":   "resume",
			"agent_id": agentID,
		})
		c.Assert(status, qt.Equals, http.StatusOK)
		c.Assert(decode[db.Agent](c, body).Status, qt.Equals, db.AgentActive)

		status, body = callFunction(c, srv, admin, agentSchedulerFunction, map[string]any{
			"action":   "pause",
			"agent_id": "6f1c1f4e-4a8e-4d1b-9b59-3f2d5e0c7a11",
		})
		c.Assert(status, qt.Equals, http.StatusNotFound)
		c.Assert(errorCode(c, body), qt.Equals, errors.ErrAgentNotFound.Code)
	})

	c.Run("run and list executions", func(c *qt.C) {
		status, body := callFunction(c, srv, admin, agentSchedulerFunction, map[string]any{"action": "run"})
		c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body %s", body))
		report := decode[scheduler.RunReport](c, body)
		c.Assert(report.Executed, qt.Equals, 1)
		c.Assert(report.TotalCostCents, qt.Equals, int64(100))

		status, body = callFunction(c, srv, userToken(c), agentSchedulerFunction, map[string]any{
			"action":   "executions",
			"agent_id": agentID,
		})
		c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body %s", body))
		execs := decode[struct {
			Executions []db.AgentExecution `json:"executions"`
		}](c, body)
		c.Assert(execs.Executions, qt.HasLen, 1)
		c.Assert(execs.Executions[0].Status, qt.Equals, db.ExecutionSucceeded)
		c.Assert(execs.Executions[0].CostCents, qt.Equals, int64(100))
	})

	c.Run("ingest and scan demand", func(c *qt.C) {
		status, body := callFunction(c, srv, admin, demandRadarFunction, map[string]any{
			"action": "ingest",
			"signals": []map[string]any{
				{"source": "search", "category": "Solar Panels", "volume": 120},
				{"source": "search", "category": "solar panels", "volume": 80},
				{"source": "social", "category": "heat pumps", "volume": 40},
			},
		})
		c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body %s", body))
		c.Assert(decode[struct {
			Ingested int `json:"ingested"`
		}](c, body).Ingested, qt.Equals, 3)

		status, body = callFunction(c, srv, admin, demandRadarFunction, map[string]any{
			"action":  "ingest",
			"signals": []map[string]any{{"source": "search", "category": "x", "volume": 0}},
		})
		c.Assert(status, qt.Equals, http.StatusBadRequest)
		c.Assert(errorCode(c, body), qt.Equals, errors.ErrInvalidData.Code)

		status, body = callFunction(c, srv, admin, demandRadarFunction, map[string]any{"action": "scan"})
		c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body %s", body))
		report := decode[radar.ScanReport](c, body)
		c.Assert(report.Categories, qt.Equals, 2)
		c.Assert(report.Top[0].Category, qt.Equals, "solar panels")

		status, body = callFunction(c, srv, userToken(c), demandRadarFunction, map[string]any{"action": "top"})
		c.Assert(status, qt.Equals, http.StatusOK)
		top := decode[struct {
			Top []db.DemandSnapshot `json:"top"`
		}](c, body)
		c.Assert(top.Top, qt.HasLen, 2)
	})

	c.Run("system audit", func(c *qt.C) {
		status, body := callFunction(c, srv, userToken(c), systemAuditFunction, map[string]any{"action": "latest"})
		c.Assert(status, qt.Equals, http.StatusNotFound)
		c.Assert(errorCode(c, body), qt.Equals, errors.ErrAuditNotFound.Code)

		status, body = callFunction(c, srv, admin, systemAuditFunction, map[string]any{"action": "run"})
		c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body %s", body))
		run := decode[db.SystemAudit](c, body)
		c.Assert(run.ID, qt.Not(qt.Equals), "")
		c.Assert(run.Findings, qt.Not(qt.HasLen), 0)

		status, body = callFunction(c, srv, userToken(c), systemAuditFunction, map[string]any{"action": "latest"})
		c.Assert(status, qt.Equals, http.StatusOK)
		c.Assert(decode[db.SystemAudit](c, body).ID, qt.Equals, run.ID)
	})

	c.Run("orchestrator cycle", func(c *qt.C) {
		status, body := callFunction(c, srv, admin, orchestratorFunction, map[string]any{
			"action":  "cycle",
			"trigger": "manual",
		})
		c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body %s", body))
		run := decode[db.OrchestratorRun](c, body)
		c.Assert(run.Trigger, qt.Equals, "manual")
		c.Assert(run.Steps, qt.HasLen, 4)
		c.Assert(run.Steps[1].Status, qt.Equals, orchestrator.StepSkipped)
		c.Assert(run.Status, qt.Not(qt.Equals), orchestrator.RunFailed)

		status, body = callFunction(c, srv, userToken(c), orchestratorFunction, map[string]any{"action": "status"})
		c.Assert(status, qt.Equals, http.StatusOK)
		runs := decode[struct {
			Runs []db.OrchestratorRun `json:"runs"`
		}](c, body)
		c.Assert(runs.Runs, qt.HasLen, 1)
		c.Assert(runs.Runs[0].ID, qt.Equals, run.ID)
	})
}
