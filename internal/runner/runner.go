package runner

import (
	"sync"
	"time"

	"github.com/hperssn/reframe/internal/domain"
)

// ProgressEvent is published whenever a wizard changes.
type ProgressEvent struct {
	WizardID  string `json:"wizardId"`
	Step      int    `json:"step"`
	StepName  string `json:"stepName"`
	Total     int    `json:"total"`
	Completed bool   `json:"completed"`
}

func progressFrom(s domain.State) ProgressEvent {
	return ProgressEvent{
		WizardID:  s.ID,
		Step:      int(s.Step),
		StepName:  s.StepName,
		Total:     s.TotalSteps,
		Completed: s.Completed,
	}
}

type wizardRunner struct {
	mu sync.Mutex

	wizard   *domain.Wizard
	lastSeen time.Time

	subscribers map[int]chan ProgressEvent
	nextSubID   int
	stopped     bool
}

func newWizardRunner(w *domain.Wizard, now time.Time) *wizardRunner {
	return &wizardRunner{
		wizard:      w,
		lastSeen:    now,
		subscribers: make(map[int]chan ProgressEvent),
	}
}

func (r *wizardRunner) State() domain.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wizard.State()
}

func (r *wizardRunner) apply(fn func(*domain.Wizard) bool, now time.Time) (domain.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := fn(r.wizard)
	r.lastSeen = now

	state := r.wizard.State()
	if changed {
		r.publish(progressFrom(state))
	}
	return state, changed
}

// publish must be called with r.mu held. Slow subscribers miss events.
func (r *wizardRunner) publish(ev ProgressEvent) {
	for _, ch := range r.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (r *wizardRunner) subscribe() (<-chan ProgressEvent, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan ProgressEvent, domain.TotalSteps+1)
	if r.stopped {
		close(ch)
		return ch, func() {}
	}

	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = ch

	// initial snapshot so a fresh stream can draw the progress bar
	ch <- progressFrom(r.wizard.State())

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if sub, ok := r.subscribers[id]; ok {
				delete(r.subscribers, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

func (r *wizardRunner) idleSince() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSeen
}

func (r *wizardRunner) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true
	for id, ch := range r.subscribers {
		close(ch)
		delete(r.subscribers, id)
	}
}
