package mailtemplates

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

type finding struct {
	Check    string
	Severity string
	Message  string
}

type audit struct {
	ID        string
	Status    string
	Score     int
	ReportURL string
	Findings  []finding
}

func TestAuditAlertNotification(t *testing.T) {
	c := qt.New(t)
	n, err := AuditAlertNotification.ExecTemplate(audit{
		ID:     "a-1",
		Status: "critical",
		Score:  55,
		Findings: []finding{
			{Check: "database_latency", Severity: "ok", Message: "12ms"},
			{Check: "stripe_connectivity", Severity: "critical", Message: "balance check failed <timeout>"},
		},
		ReportURL: "https://reports.example.com/a-1.json",
	})
	c.Assert(err, qt.IsNil)
	c.Assert(n.Subject, qt.Equals, "[critical] system audit scored 55/100")
	c.Assert(n.PlainBody, qt.Contains, "- [critical] stripe_connectivity: balance check failed <timeout>")
	c.Assert(n.PlainBody, qt.Not(qt.Contains), "database_latency")
	c.Assert(n.PlainBody, qt.Contains, "Report: https://reports.example.com/a-1.json")
	c.Assert(n.Body, qt.Contains, "balance check failed &lt;timeout&gt;")
	c.Assert(n.Body, qt.Contains, `href="https://reports.example.com/a-1.json"`)
}

func TestExecTemplateErrors(t *testing.T) {
	c := qt.New(t)
	_, err := MailTemplate{Name: "broken", HTML: "{{.Missing"}.ExecTemplate(nil)
	c.Assert(err, qt.IsNotNil)

	n, err := MailTemplate{Name: "static", Subject: "hello", HTML: "<b>hi</b>"}.ExecTemplate(nil)
	c.Assert(err, qt.IsNil)
	c.Assert(n.Subject, qt.Equals, "hello")
	c.Assert(n.PlainBody, qt.Equals, "")
}
