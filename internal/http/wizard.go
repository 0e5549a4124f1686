package httpapi

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/hperssn/reframe/internal/domain"
	"github.com/hperssn/reframe/internal/metrics"
	"github.com/hperssn/reframe/internal/runner"
	"github.com/hperssn/reframe/internal/storage"
)

type action string

const (
	actionNext   action = "next"
	actionBack   action = "back"
	actionToggle action = "toggle"
	actionRetry  action = "retry"
)

// currentWizard returns the wizard of this browser session, starting a new
// one when there is none or the old one was evicted. Concurrent first
// requests from one browser each start a wizard; the last saved cookie wins
// and the others sit unreferenced until the idle cleanup evicts them.
func (s *Server) currentWizard(w http.ResponseWriter, r *http.Request, userID int64) (string, error) {
	bs, ok := browserSessionFrom(r.Context())
	if !ok {
		bs = s.browserSession(r)
	}

	if id := bs.WizardID(); id != "" {
		if _, ok := s.wizards.Get(id); ok {
			return id, nil
		}
	}

	wz := domain.NewWizard("", userID, s.cfg.WizardOptions)
	if err := s.wizards.StartWizard(wz); err != nil {
		return "", err
	}

	bs.SetWizardID(wz.ID)
	if err := bs.save(r, w); err != nil {
		return "", err
	}
	return wz.ID, nil
}

func (s *Server) showWizard(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	id, err := s.currentWizard(w, r, userID)
	if err != nil {
		s.logger.Error("Failed to start wizard", "error", err)
		http.Error(w, "could not start the exercise", http.StatusInternalServerError)
		return
	}

	state, ok := s.wizards.Get(id)
	if !ok {
		http.Error(w, "wizard not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Wizard(w, s.renderer.WizardView(s.cfg.BasePath, state)); err != nil {
		s.logger.Error("Failed to render wizard", "error", err)
	}
}

func (s *Server) wizardState(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	id, err := s.currentWizard(w, r, userID)
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	state, ok := s.wizards.Get(id)
	if !ok {
		respondError(w, "wizard not found", http.StatusNotFound)
		return
	}
	respondJSON(w, state, http.StatusOK)
}

func (s *Server) wizardAction(act action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.requireUser(w, r)
		if !ok {
			return
		}

		if err := r.ParseForm(); err != nil {
			respondError(w, "invalid form body", http.StatusBadRequest)
			return
		}

		id, err := s.currentWizard(w, r, userID)
		if err != nil {
			s.logger.Error("Failed to start wizard", "error", err)
			respondError(w, "could not start the exercise", http.StatusInternalServerError)
			return
		}

		var (
			applied bool
			entry   *domain.ThoughtEntry
		)
		state, _, err := s.wizards.Apply(id, func(wz *domain.Wizard) bool {
			var edited bool
			applied, edited = applyAction(wz, act, r.PostForm)

			if act == actionNext && applied && wz.Completed() && s.cfg.PersistOnComplete {
				if e, err := wz.Entry(s.now()); err == nil {
					entry = &e
				}
			}
			return applied || edited
		})
		if err != nil {
			// evicted since currentWizard; the next page load starts afresh
			if errors.Is(err, runner.ErrWizardNotFound) && !wantsJSON(r) {
				http.Redirect(w, r, s.homePath(), http.StatusSeeOther)
				return
			}
			respondError(w, err.Error(), http.StatusNotFound)
			return
		}

		s.metrics.Transitions.WithLabelValues(string(act), metrics.Result(applied)).Inc()
		if act == actionNext && applied && state.Completed {
			s.metrics.Completions.Inc()
		}
		if entry != nil {
			s.saveEntry(r, *entry)
		}

		if wantsJSON(r) {
			respondJSON(w, state, http.StatusOK)
			return
		}
		http.Redirect(w, r, s.homePath(), http.StatusSeeOther)
	}
}

// applyAction performs act on wz. applied reports whether the transition
// itself happened, edited whether submitted text changed a field.
func applyAction(wz *domain.Wizard, act action, form url.Values) (applied, edited bool) {
	switch act {
	case actionNext:
		if v, ok := form["thought"]; ok && len(v) > 0 {
			edited = wz.SetThought(v[0]) || edited
		}
		if v, ok := form["reframed"]; ok && len(v) > 0 {
			edited = wz.SetReframed(v[0]) || edited
		}
		applied = wz.Next()
	case actionBack:
		applied = wz.Back()
	case actionToggle:
		applied = wz.ToggleDistortion(form.Get("distortion"))
	case actionRetry:
		applied = wz.Retry()
	}
	return applied, edited
}

// saveEntry is best effort; the user has already seen the completion card.
func (s *Server) saveEntry(r *http.Request, entry domain.ThoughtEntry) {
	if err := s.entries.SaveEntry(r.Context(), storage.FromThoughtEntry(entry)); err != nil {
		s.metrics.EntriesSaved.WithLabelValues("error").Inc()
		s.logger.Error("Failed to save thought log entry", "entry_id", entry.ID, "error", err)
		return
	}
	s.metrics.EntriesSaved.WithLabelValues("ok").Inc()
}
