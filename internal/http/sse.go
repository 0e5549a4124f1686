package httpapi

import (
	"encoding/json"
	"net/http"
)

// streamWizardEvents pushes a progress event for every change of the
// browser's wizard until the client goes away.
func (s *Server) streamWizardEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	id, err := s.currentWizard(w, r, userID)
	if err != nil {
		http.Error(w, "wizard not found", http.StatusNotFound)
		return
	}

	events, cancel, err := s.wizards.Subscribe(id)
	if err != nil {
		http.Error(w, "wizard not found", http.StatusNotFound)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("Failed to encode progress event", "error", err)
				continue
			}
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))

			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
