package mailer

import (
	"bytes"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"sort"
	texttemplate "text/template"
)

// ErrUnknownTemplate is returned for template names that are not registered.
var ErrUnknownTemplate = errors.New("mailer: unknown template")

type emailTemplate struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// Templates is a registry of named email bodies.
type Templates struct {
	byName map[string]emailTemplate
}

// NewTemplates parses the built-in email templates.
func NewTemplates() (*Templates, error) {
	t := &Templates{byName: map[string]emailTemplate{}}
	for name, src := range builtinTemplates {
		if err := t.Add(name, src.html, src.text); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Add registers a template. Either body may be empty.
func (t *Templates) Add(name, htmlSrc, textSrc string) error {
	var et emailTemplate
	if htmlSrc != "" {
		h, err := htmltemplate.New(name).Option("missingkey=zero").Parse(htmlSrc)
		if err != nil {
			return fmt.Errorf("mailer: parse %s html: %w", name, err)
		}
		et.html = h
	}
	if textSrc != "" {
		x, err := texttemplate.New(name).Option("missingkey=zero").Parse(textSrc)
		if err != nil {
			return fmt.Errorf("mailer: parse %s text: %w", name, err)
		}
		et.text = x
	}
	t.byName[name] = et
	return nil
}

// Names lists registered templates.
func (t *Templates) Names() []string {
	out := make([]string, 0, len(t.byName))
	for n := range t.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Render executes the named template with data.
func (t *Templates) Render(name string, data map[string]any) (html, text string, err error) {
	et, ok := t.byName[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	if data == nil {
		data = map[string]any{}
	}
	var buf bytes.Buffer
	if et.html != nil {
		if err := et.html.Execute(&buf, data); err != nil {
			return "", "", fmt.Errorf("mailer: render %s html: %w", name, err)
		}
		html = buf.String()
		buf.Reset()
	}
	if et.text != nil {
		if err := et.text.Execute(&buf, data); err != nil {
			return "", "", fmt.Errorf("mailer: render %s text: %w", name, err)
		}
		text = buf.String()
	}
	return html, text, nil
}

var builtinTemplates = map[string]struct{ html, text string }{
	"contact-confirmation": {
		html: `<h1>Thanks for reaching out{{with .name}}, {{.}}{{end}}!</h1>
<p>We received your message and someone from the Ledgerline team will reply within one business day.</p>
{{with .message}}<blockquote>{{.}}</blockquote>{{end}}
<p>Meanwhile, the <a href="https://docs.ledgerline.dev">documentation</a> covers installation and the first steps.</p>`,
		text: `Thanks for reaching out{{with .name}}, {{.}}{{end}}!

We received your message and someone from the Ledgerline team will reply within one business day.
{{with .message}}
> {{.}}
{{end}}
Documentation: https://docs.ledgerline.dev
`,
	},
	"free-trial-welcome": {
		html: `<h1>Your Ledgerline trial is ready</h1>
<p>Hi{{with .name}} {{.}}{{end}}, your hosted workspace{{with .workspace}} <strong>{{.}}</strong>{{end}} is live for the next 30 days.</p>
<ul>
<li>Import your chart of accounts</li>
<li>Invite your team</li>
<li>Connect inventory and invoicing</li>
</ul>
{{with .loginUrl}}<p><a href="{{.}}">Open your workspace</a></p>{{end}}`,
		text: `Your Ledgerline trial is ready

Hi{{with .name}} {{.}}{{end}}, your hosted workspace{{with .workspace}} {{.}}{{end}} is live for the next 30 days.
{{with .loginUrl}}
Open your workspace: {{.}}
{{end}}`,
	},
	"demo-request": {
		html: `<h1>New demo request</h1>
<table>
<tr><th>Name</th><td>{{or .name "-"}}</td></tr>
<tr><th>Company</th><td>{{or .company "-"}}</td></tr>
<tr><th>Email</th><td>{{or .email "-"}}</td></tr>
<tr><th>Team size</th><td>{{or .teamSize "-"}}</td></tr>
</table>
{{with .message}}<p>{{.}}</p>{{end}}`,
		text: `New demo request
Name: {{or .name "-"}}
Company: {{or .company "-"}}
Email: {{or .email "-"}}
Team size: {{or .teamSize "-"}}
{{with .message}}
{{.}}
{{end}}`,
	},
}
