package ai

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/advisor_system.md
var advisorSystemRaw string

//go:embed prompts/advisor_user.md
var advisorUserRaw string

//go:embed prompts/alert_system.md
var AlertSystemPrompt string

//go:embed prompts/alert_user.md
var alertUserRaw string

// Parsed once at package init; reused on every call.
var (
	AdvisorSystemTemplate = template.Must(template.New("advisor_system").Parse(advisorSystemRaw))
	AdvisorUserTemplate   = template.Must(template.New("advisor_user").Parse(advisorUserRaw))
	AlertUserTemplate     = template.Must(template.New("alert_user").Parse(alertUserRaw))
)
