package httpapi

import (
	"net/http"

	"github.com/hperssn/reframe/internal/domain"
	"github.com/hperssn/reframe/internal/web"
)

// listEntries shows the saved thought log. A failing store is logged and
// shown as an empty list.
func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	entries := []domain.ThoughtEntry{}
	records, err := s.entries.ListEntries(r.Context(), userID)
	if err != nil {
		s.logger.Error("Error fetching entries", "user_id", userID, "error", err)
	} else {
		for _, rec := range records {
			entries = append(entries, rec.ThoughtEntry())
		}
	}

	if wantsJSON(r) {
		respondJSON(w, entries, http.StatusOK)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Entries(w, web.EntriesView{Base: s.cfg.BasePath, Entries: entries}); err != nil {
		s.logger.Error("Failed to render entries", "error", err)
	}
}
