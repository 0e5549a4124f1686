// Package runner keeps the live wizards of the browsers currently working
// through the exercise.
package runner

import (
	"errors"
	"sync"
	"time"

	"github.com/hperssn/reframe/internal/domain"
)

var (
	ErrWizardExists   = errors.New("wizard already exists")
	ErrWizardNotFound = errors.New("wizard not found")
)

const cleanupInterval = 5 * time.Minute

type WizardManager struct {
	mu      sync.Mutex
	wizards map[string]*wizardRunner

	idleTTL time.Duration
	now     func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewWizardManager starts a manager that forgets wizards untouched for
// longer than idleTTL. Call Close to stop the cleanup loop.
func NewWizardManager(idleTTL time.Duration) *WizardManager {
	m := &WizardManager{
		wizards: make(map[string]*wizardRunner),
		idleTTL: idleTTL,
		now:     time.Now,
		done:    make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

func (m *WizardManager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupIdle()
		case <-m.done:
			return
		}
	}
}

func (m *WizardManager) cleanupIdle() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idleTTL <= 0 {
		return 0
	}

	cutoff := m.now().Add(-m.idleTTL)
	removed := 0

	for id, r := range m.wizards {
		if r.idleSince().Before(cutoff) {
			r.stop()
			delete(m.wizards, id)
			removed++
		}
	}
	return removed
}

func (m *WizardManager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)

		m.mu.Lock()
		defer m.mu.Unlock()
		for id, r := range m.wizards {
			r.stop()
			delete(m.wizards, id)
		}
	})
}

func (m *WizardManager) StartWizard(w *domain.Wizard) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.wizards[w.ID]; exists {
		return ErrWizardExists
	}

	m.wizards[w.ID] = newWizardRunner(w, m.now())
	return nil
}

func (m *WizardManager) Get(id string) (domain.State, bool) {
	r, ok := m.lookup(id)
	if !ok {
		return domain.State{}, false
	}
	return r.State(), true
}

// Apply runs fn against the wizard under its lock. fn reports whether it
// changed the wizard; subscribers are notified only then.
func (m *WizardManager) Apply(id string, fn func(*domain.Wizard) bool) (domain.State, bool, error) {
	r, ok := m.lookup(id)
	if !ok {
		return domain.State{}, false, ErrWizardNotFound
	}

	state, changed := r.apply(fn, m.now())
	return state, changed, nil
}

func (m *WizardManager) Subscribe(id string) (<-chan ProgressEvent, func(), error) {
	r, ok := m.lookup(id)
	if !ok {
		return nil, nil, ErrWizardNotFound
	}

	ch, cancel := r.subscribe()
	return ch, cancel, nil
}

func (m *WizardManager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, exists := m.wizards[id]
	if !exists {
		return ErrWizardNotFound
	}

	r.stop()
	delete(m.wizards, id)
	return nil
}

func (m *WizardManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.wizards)
}

func (m *WizardManager) lookup(id string) (*wizardRunner, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.wizards[id]
	return r, ok
}
