package mailer

import (
	"bytes"
	"html/template"
)

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"` // e.g. "welcome"
	Data     map[string]any `json:"data,omitempty"`
}

const TemplateWelcome = "welcome"

var welcomeTpl = template.Must(template.New("welcome").Parse(`<html>
<body style="font-family:sans-serif">
  <h2>Welcome to {{.AppName}}, {{.Fullname}}!</h2>
  <p>Your account was created with the address <b>{{.Email}}</b>.</p>
  <p>Log in any time to publish posts and join the conversation.</p>
</body>
</html>`))

// RenderWelcome renders the welcome template with job data.
func RenderWelcome(data map[string]any) (subject, html string, err error) {
	var buf bytes.Buffer
	if err = welcomeTpl.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return "Welcome aboard", buf.String(), nil
}
