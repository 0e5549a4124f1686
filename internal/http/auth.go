package httpapi

import (
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/hperssn/reframe/internal/auth"
)

// ResolveSessionMiddleware runs the session handshake before any page. The
// resolved user id is put in the request context.
func (s *Server) ResolveSessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bs := s.browserSession(r)
		nav := &redirectNavigator{location: *r.URL}

		sess := s.resolver.Resolve(r.Context(), bs, nav)
		s.metrics.Handshakes.WithLabelValues(string(sess.Outcome)).Inc()

		if err := bs.save(r, w); err != nil {
			s.logger.Error("Failed to save session cookie", "error", err)
		}

		if nav.redirect != "" {
			http.Redirect(w, r, nav.redirect, http.StatusFound)
			return
		}
		if nav.replace != nil && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
			http.Redirect(w, r, nav.replace.String(), http.StatusFound)
			return
		}

		ctx := withBrowserSession(r.Context(), bs)
		if sess.Authenticated {
			ctx = auth.WithUserID(ctx, sess.UserID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) browserSession(r *http.Request) *browserSession {
	sess, err := s.cookies.Get(r, cookieName)
	if err != nil {
		// tampered, expired or signed with an old secret
		s.logger.Debug("Discarding unreadable session cookie", "error", err)
	}
	if sess == nil {
		sess = sessions.NewSession(s.cookies, cookieName)
	}
	return &browserSession{session: sess}
}

// requireUser returns the resolved user or sends the browser to the error
// route.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, s.resolver.ErrorPath(), http.StatusFound)
		return 0, false
	}
	return userID, true
}
