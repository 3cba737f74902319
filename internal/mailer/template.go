package mailer

import (
	"fmt"

	"github.com/osteele/liquid"
)

// contactTemplate is the HTML body for a forwarded inquiry. All
// user-supplied bindings pass through the escape filter.
const contactTemplate = `<style>body{font-family:Segoe UI,Arial,sans-serif;}</style>
<h2>New portfolio inquiry</h2>
<p><b>Name:</b> {{ name | escape }}<br/>
<b>Email:</b> {{ email | escape }}<br/>
<b>Verification:</b> <a href="{{ verification_url | escape }}">{{ verification_url | escape }}</a> ({{ host | escape }})</p>
<p><b>Message</b></p>
<p style="white-space:pre-wrap">{{ message | escape | default: "(no message)" }}</p>
`

// TemplateService renders the contact email body with Liquid.
type TemplateService struct {
	engine *liquid.Engine
	tmpl   *liquid.Template
}

// NewTemplateService parses the contact template once at startup.
func NewTemplateService() (*TemplateService, error) {
	engine := liquid.NewEngine()

	tmpl, err := engine.ParseTemplate([]byte(contactTemplate))
	if err != nil {
		return nil, fmt.Errorf("parsing contact template: %w", err)
	}

	return &TemplateService{engine: engine, tmpl: tmpl}, nil
}

// RenderContact renders the HTML body for one submission.
func (ts *TemplateService) RenderContact(name, email, verificationURL, message, host string) (string, error) {
	out, err := ts.tmpl.Render(liquid.Bindings{
		"name":             name,
		"email":            email,
		"verification_url": verificationURL,
		"message":          message,
		"host":             host,
	})
	if err != nil {
		return "", fmt.Errorf("rendering contact template: %w", err)
	}
	return string(out), nil
}

// Subject builds the forwarded email subject from the sender's name and the
// verified host.
func Subject(name, host string) string {
	return fmt.Sprintf("[Portfolio] %s - from %s", name, host)
}
