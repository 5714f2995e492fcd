package generation

import (
	"bytes"
	"strings"
	"text/template"
)

const promptTemplate = `You are a product designer. Design the screens and the main user journey for the app described below.

App: {{.Title}}

Brief:
{{.Brief}}
{{if .Requirements}}
Requirements:
{{.Requirements}}
{{end}}{{if .FeatureSummary}}
Key features:
{{.FeatureSummary}}
{{end}}
Answer with ONE JSON object and nothing else, shaped exactly like this:
{"appFlow":{"steps":[{"description":"...","screenReference":"<screen name or empty>"}]},
 "screens":[{"name":"...","description":"...","elements":[{"type":"image|input|text|button","properties":{"description":"...","content":"...","action":"..."}}]}]}
Use "description" for image and input elements, "content" and "action" for text and button elements.
Every screenReference must repeat the exact name of a screen, or be empty for steps that have no screen.`

var promptTmpl = template.Must(template.New("screens").Parse(promptTemplate))

// Input is what a caller supplies for one generation.
type Input struct {
	DocumentID     string
	Title          string
	Brief          string
	Requirements   string
	FeatureSummary string // callers bound this with Truncate
}

func renderPrompt(in Input) (string, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Untitled app"
	}
	data := struct {
		Title, Brief, Requirements, FeatureSummary string
	}{
		Title:          title,
		Brief:          strings.TrimSpace(in.Brief),
		Requirements:   strings.TrimSpace(in.Requirements),
		FeatureSummary: strings.TrimSpace(in.FeatureSummary),
	}
	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Truncate shortens s to at most limit runes, marking the cut with an ellipsis.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return strings.TrimSpace(string(r[:limit-3])) + "..."
}
