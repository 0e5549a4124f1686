// Package web renders the HTML pages of the exercise.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/hperssn/reframe/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

type Choice struct {
	Label    string
	Selected bool
}

type WizardView struct {
	Title      string
	Base       string
	State      domain.State
	Step       StepCopy
	StepNumber int
	FieldValue string
	Choices    []Choice
	Completed  CompletedCopy
}

type EntriesView struct {
	Title   string
	Base    string
	Entries []domain.ThoughtEntry
}

type TokenErrorView struct {
	Title     string
	ExitURL   string
	ExitLabel string
}

type NotFoundView struct {
	Title string
	Base  string
}

type Renderer struct {
	tmpl  *template.Template
	steps *StepConfig
}

// NewRenderer parses the embedded templates. A nil steps uses the embedded
// default step configuration.
func NewRenderer(steps *StepConfig) (*Renderer, error) {
	if steps == nil {
		var err error
		steps, err = DefaultStepConfig()
		if err != nil {
			return nil, err
		}
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return &Renderer{tmpl: tmpl, steps: steps}, nil
}

// WizardView builds the view of the card the wizard is on.
func (r *Renderer) WizardView(base string, s domain.State) WizardView {
	step := r.steps.Steps[0]
	if s.Step.Valid() {
		step = r.steps.Steps[s.Step]
	}

	view := WizardView{
		Title:      "Reframe Thoughts",
		Base:       base,
		State:      s,
		Step:       step,
		StepNumber: int(s.Step) + 1,
		Completed:  r.steps.Completed,
	}

	switch step.Field {
	case "thought":
		view.FieldValue = s.Thought
	case "reframed":
		view.FieldValue = s.Reframed
	}

	if step.Choices {
		selected := make(map[string]bool, len(s.Distortions))
		for _, d := range s.Distortions {
			selected[d] = true
		}
		for _, label := range domain.Distortions {
			view.Choices = append(view.Choices, Choice{Label: label, Selected: selected[label]})
		}
	}

	return view
}

func (r *Renderer) Wizard(w io.Writer, view WizardView) error {
	return r.execute(w, "wizard", view)
}

func (r *Renderer) Entries(w io.Writer, view EntriesView) error {
	if view.Title == "" {
		view.Title = "My Saved Entries"
	}
	return r.execute(w, "entries", view)
}

func (r *Renderer) TokenError(w io.Writer, view TokenErrorView) error {
	if view.Title == "" {
		view.Title = "Access Required"
	}
	return r.execute(w, "token", view)
}

func (r *Renderer) NotFound(w io.Writer, view NotFoundView) error {
	if view.Title == "" {
		view.Title = "Not Found"
	}
	return r.execute(w, "notfound", view)
}

// execute renders into a buffer first so a template error never leaves a
// half-written page behind.
func (r *Renderer) execute(w io.Writer, name string, data any) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
