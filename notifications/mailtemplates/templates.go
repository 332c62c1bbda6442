// Package mailtemplates renders the alert notifications sent to operators.
package mailtemplates

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/notifications"
)

// MailTemplate holds the subject, HTML and plain text templates of one
// notification. The plain body is also what SMS transports send.
type MailTemplate struct {
	Name    string
	Subject string
	HTML    string
	Plain   string
}

// ExecTemplate renders the three templates with the data provided and
// returns the resulting notification, without recipient.
func (mt MailTemplate) ExecTemplate(data any) (*notifications.Notification, error) {
	subject, err := execText(mt.Name+"_subject", mt.Subject, data)
	if err != nil {
		return nil, err
	}
	plain, err := execText(mt.Name+"_plain", mt.Plain, data)
	if err != nil {
		return nil, err
	}
	tmpl, err := htmltemplate.New(mt.Name).Parse(mt.HTML)
	if err != nil {
		return nil, fmt.Errorf("could not parse template %s: %w", mt.Name, err)
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, data); err != nil {
		return nil, fmt.Errorf("could not execute template %s: %w", mt.Name, err)
	}
	return &notifications.Notification{
		Subject:   subject,
		Body:      buf.String(),
		PlainBody: plain,
	}, nil
}

func execText(name, text string, data any) (string, error) {
	if text == "" {
		return "", nil
	}
	tmpl, err := texttemplate.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("could not parse template %s: %w", name, err)
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, data); err != nil {
		return "", fmt.Errorf("could not execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

// AuditAlertNotification is sent when a system audit ends in critical state.
// It expects the audit as data.
var AuditAlertNotification = MailTemplate{
	Name:    "audit_alert",
	Subject: "[{{.Status}}] system audit scored {{.Score}}/100",
	Plain: `System audit {{.ID}} finished with status {{.Status}} and score {{.Score}}/100.
{{range .Findings}}{{if or (eq .Severity "warning") (eq .Severity "critical")}}
- [{{.Severity}}] {{.Check}}: {{.Message}}{{end}}{{end}}
{{if .ReportURL}}
Report: {{.ReportURL}}{{end}}`,
	HTML: `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
<h2>System audit {{.Status}}</h2>
<p>Audit <code>{{.ID}}</code> scored <strong>{{.Score}}/100</strong>.</p>
<table cellpadding="6" style="border-collapse: collapse;">
<tr><th align="left">Check</th><th align="left">Severity</th><th align="left">Details</th></tr>
{{range .Findings}}<tr><td>{{.Check}}</td><td>{{.Severity}}</td><td>{{.Message}}</td></tr>
{{end}}</table>
{{if .ReportURL}}<p><a href="{{.ReportURL}}">Full report</a></p>{{end}}
</body>
</html>`,
}
