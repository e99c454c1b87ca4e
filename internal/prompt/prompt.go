// Package prompt builds the review prompt sent to the LLM provider.
// The default template asks for a markdown review of a unified diff; an
// optional YAML profile can override the template and focus areas.
package prompt

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/patchlens/patchlens/internal/config"
	"github.com/patchlens/patchlens/pkg/errors"
)

// DefaultFocusAreas are the review dimensions in priority order
var DefaultFocusAreas = []string{"correctness", "security", "performance", "style"}

// defaultTemplate embeds the diff via {{.Diff}} and instructs the model to
// produce a markdown review
const defaultTemplate = `## Role

You are a senior software engineer performing a code review.

## Goals

Review the unified diff below, focusing on these areas in priority order:
{{range $i, $area := .FocusAreas}}{{add $i 1}}. {{$area}}
{{end}}
## Constraints

- Report genuine issues with concrete references to changed lines.
- Do NOT describe the intent of the changes or praise them.
- Output the review as GitHub-flavored markdown: a short summary, then findings.
- Keep fenced code blocks for any code you quote.
{{- if .Language}}
- Response language: {{.Language}}
{{- end}}

## Diff

` + "```diff\n{{.Diff}}\n```\n"

// promptData is the template input
type promptData struct {
	Diff       string
	FocusAreas []string
	Language   string
}

// Builder renders review prompts from a parsed template
type Builder struct {
	tmpl       *template.Template
	focusAreas []string
	language   string
}

// NewBuilder creates a prompt builder from review configuration. When
// cfg.PromptFile names a YAML profile, its template and focus areas replace
// the defaults; a broken profile is a startup error, not a runtime one.
func NewBuilder(cfg *config.ReviewConfig) (*Builder, error) {
	templateText := defaultTemplate
	focusAreas := DefaultFocusAreas

	if cfg.PromptFile != "" {
		profile, err := LoadProfile(cfg.PromptFile)
		if err != nil {
			return nil, err
		}
		if profile.Template != "" {
			templateText = profile.Template
		}
		if len(profile.FocusAreas) > 0 {
			focusAreas = profile.FocusAreas
		}
	}

	tmpl, err := parseTemplate(templateText)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		tmpl:       tmpl,
		focusAreas: focusAreas,
	}

	lang, err := cfg.GetOutputLanguage()
	if err != nil {
		return nil, errors.Wrap(errors.KindConfigInvalid, "invalid review language", err)
	}
	// English output needs no instruction; anything else gets one
	if !lang.IsEnglish() {
		b.language = lang.PromptInstruction()
	}

	return b, nil
}

// Build renders the prompt for a diff
func (b *Builder) Build(diff string) (string, error) {
	var buf bytes.Buffer
	err := b.tmpl.Execute(&buf, promptData{
		Diff:       diff,
		FocusAreas: b.focusAreas,
		Language:   b.language,
	})
	if err != nil {
		return "", errors.Wrap(errors.KindInternal, "failed to render prompt", err)
	}
	return buf.String(), nil
}

// FocusAreas returns the active review dimensions
func (b *Builder) FocusAreas() []string {
	return b.focusAreas
}

func parseTemplate(text string) (*template.Template, error) {
	funcMap := template.FuncMap{
		"join": strings.Join,
		"add":  func(a, b int) int { return a + b },
	}
	tmpl, err := template.New("review").Funcs(funcMap).Parse(text)
	if err != nil {
		return nil, errors.Wrap(errors.KindConfigInvalid, "invalid prompt template", err)
	}
	return tmpl, nil
}
