package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotCompleted = errors.New("wizard not completed")

// Options switches the optional affordances of the wizard on.
type Options struct {
	AllowBack  bool
	AllowRetry bool
}

// Wizard walks one user through the five reframing cards.
//
// Every mutating method returns whether it changed anything. A refused
// transition leaves the wizard untouched.
type Wizard struct {
	ID        string
	UserID    int64
	StartedAt time.Time

	opts        Options
	step        Step
	thought     string
	distortions []string
	reframed    string
	completed   bool
}

// State is a read-only snapshot of a wizard.
type State struct {
	ID          string   `json:"id"`
	Step        Step     `json:"step"`
	StepName    string   `json:"stepName"`
	TotalSteps  int      `json:"totalSteps"`
	Thought     string   `json:"thought"`
	Distortions []string `json:"distortions"`
	Reframed    string   `json:"reframed"`
	Completed   bool     `json:"completed"`
	CanAdvance  bool     `json:"canAdvance"`
	CanGoBack   bool     `json:"canGoBack"`
	CanRetry    bool     `json:"canRetry"`
}

func NewWizard(id string, userID int64, opts Options) *Wizard {
	if id == "" {
		id = uuid.New().String()
	}

	return &Wizard{
		ID:          id,
		UserID:      userID,
		StartedAt:   time.Now(),
		opts:        opts,
		step:        StepIntro,
		distortions: []string{},
	}
}

func (w *Wizard) Step() Step       { return w.step }
func (w *Wizard) Completed() bool  { return w.completed }
func (w *Wizard) Options() Options { return w.opts }

// CanAdvance reports whether the guard of the current card holds.
func (w *Wizard) CanAdvance() bool {
	if w.completed {
		return false
	}

	switch w.step {
	case StepIdentify:
		return strings.TrimSpace(w.thought) != ""
	case StepExamine:
		return len(w.distortions) > 0
	case StepReframe:
		return strings.TrimSpace(w.reframed) != ""
	default:
		return true
	}
}

// Next moves one card forward. From the last card it completes the wizard
// and the step index stays on the last card.
func (w *Wizard) Next() bool {
	if !w.CanAdvance() {
		return false
	}

	if w.step == StepIntegrate {
		w.completed = true
		return true
	}

	w.step++
	return true
}

// Back moves one card backward when the affordance is enabled.
func (w *Wizard) Back() bool {
	if !w.canGoBack() {
		return false
	}

	w.step--
	return true
}

func (w *Wizard) canGoBack() bool {
	return w.opts.AllowBack && !w.completed && w.step > StepIntro
}

// Retry resets a completed wizard to its initial state.
func (w *Wizard) Retry() bool {
	if !w.opts.AllowRetry || !w.completed {
		return false
	}

	w.step = StepIntro
	w.thought = ""
	w.distortions = []string{}
	w.reframed = ""
	w.completed = false
	return true
}

func (w *Wizard) SetThought(v string) bool {
	if w.completed || w.thought == v {
		return false
	}
	w.thought = v
	return true
}

func (w *Wizard) SetReframed(v string) bool {
	if w.completed || w.reframed == v {
		return false
	}
	w.reframed = v
	return true
}

// ToggleDistortion adds label when absent and removes it when present.
// Selection order is kept for display.
func (w *Wizard) ToggleDistortion(label string) bool {
	if w.completed || !IsDistortion(label) {
		return false
	}

	for i, d := range w.distortions {
		if d == label {
			w.distortions = append(w.distortions[:i:i], w.distortions[i+1:]...)
			return true
		}
	}

	w.distortions = append(w.distortions, label)
	return true
}

func (w *Wizard) State() State {
	distortions := make([]string, len(w.distortions))
	copy(distortions, w.distortions)

	return State{
		ID:          w.ID,
		Step:        w.step,
		StepName:    w.step.String(),
		TotalSteps:  TotalSteps,
		Thought:     w.thought,
		Distortions: distortions,
		Reframed:    w.reframed,
		Completed:   w.completed,
		CanAdvance:  w.CanAdvance(),
		CanGoBack:   w.canGoBack(),
		CanRetry:    w.opts.AllowRetry && w.completed,
	}
}

// Entry builds the thought log entry for a completed wizard.
func (w *Wizard) Entry(now time.Time) (ThoughtEntry, error) {
	if !w.completed {
		return ThoughtEntry{}, ErrNotCompleted
	}

	distortions := make([]string, len(w.distortions))
	copy(distortions, w.distortions)

	return ThoughtEntry{
		ID:              uuid.New().String(),
		UserID:          w.UserID,
		CreatedAt:       now.UTC(),
		OriginalThought: strings.TrimSpace(w.thought),
		Distortions:     distortions,
		ReframedThought: strings.TrimSpace(w.reframed),
	}, nil
}

// Progress returns the share of cards reached, in percent.
func (s State) Progress() int {
	if s.TotalSteps == 0 {
		return 0
	}
	return (int(s.Step) + 1) * 100 / s.TotalSteps
}
