// Package auth resolves who is using the exercise.
//
// Resolution runs once per browser session. A previously cached identifier
// wins; otherwise the one-time token from the entry link is exchanged for a
// user id. Browser state is reached only through SessionStore and Navigator,
// so the handshake runs the same against real cookies and against fakes.
package auth

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
)

// TokenParam is the query parameter carrying the one-time access token.
const TokenParam = "token"

// SessionStore is the per-browser-session cache of the resolved identifier.
type SessionStore interface {
	CachedUserID() (string, bool)
	CacheUserID(id string)
}

// Navigator exposes the current location and lets the resolver move away
// from it.
type Navigator interface {
	Location() *url.URL
	// Redirect sends the browser to path.
	Redirect(path string)
	// Replace swaps the visible location without a new history entry.
	Replace(u *url.URL)
}

// Exchanger trades a one-time token for a user identifier.
type Exchanger interface {
	Exchange(ctx context.Context, token string) (int64, error)
}

// Outcome names the branch a resolution took.
type Outcome string

const (
	OutcomeTestMode       Outcome = "test_mode"
	OutcomeCached         Outcome = "cached"
	OutcomeMissingToken   Outcome = "missing_token"
	OutcomeExchanged      Outcome = "exchanged"
	OutcomeExchangeFailed Outcome = "exchange_failed"
)

// Session is the identity state of one browser session.
type Session struct {
	UserID        int64
	Authenticated bool
	Loading       bool
	Outcome       Outcome
}

func newSession() *Session {
	return &Session{Loading: true}
}

func (s *Session) adopt(id int64) {
	s.UserID = id
	s.Authenticated = true
}

func (s *Session) finish() {
	s.Loading = false
}

type Config struct {
	// ErrorPath is the route shown when no session can be established.
	ErrorPath string
	// TestUserID, when non-zero, skips the handshake and adopts this id.
	TestUserID int64
	Logger     *slog.Logger
}

type Resolver struct {
	exchanger  Exchanger
	errorPath  string
	testUserID int64
	logger     *slog.Logger
}

func NewResolver(exchanger Exchanger, cfg Config) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	errorPath := cfg.ErrorPath
	if errorPath == "" {
		errorPath = "/token"
	}

	return &Resolver{
		exchanger:  exchanger,
		errorPath:  errorPath,
		testUserID: cfg.TestUserID,
		logger:     logger,
	}
}

func (r *Resolver) ErrorPath() string { return r.errorPath }

// Resolve determines the user of the current browser session. It issues at
// most one exchange and never retries.
func (r *Resolver) Resolve(ctx context.Context, store SessionStore, nav Navigator) Session {
	sess := newSession()

	if r.testUserID != 0 {
		store.CacheUserID(strconv.FormatInt(r.testUserID, 10))
		sess.adopt(r.testUserID)
		sess.Outcome = OutcomeTestMode
		return r.done(sess)
	}

	if cached, ok := store.CachedUserID(); ok {
		id, err := strconv.ParseInt(strings.TrimSpace(cached), 10, 64)
		if err == nil {
			sess.adopt(id)
			sess.Outcome = OutcomeCached
			return r.done(sess)
		}
		r.logger.Warn("Ignoring unparsable cached user id", "value", cached)
	}

	loc := nav.Location()
	token := strings.TrimSpace(loc.Query().Get(TokenParam))

	if token == "" {
		sess.Outcome = OutcomeMissingToken
		r.leave(loc, nav)
		return r.done(sess)
	}

	id, err := r.exchanger.Exchange(ctx, token)
	if err != nil {
		r.logger.Error("Auth handshake failed", "error", err)
		sess.Outcome = OutcomeExchangeFailed
		r.leave(loc, nav)
		return r.done(sess)
	}

	store.CacheUserID(strconv.FormatInt(id, 10))
	sess.adopt(id)
	sess.Outcome = OutcomeExchanged

	nav.Replace(&url.URL{Path: loc.Path, Fragment: loc.Fragment})
	return r.done(sess)
}

// leave redirects to the error route unless the browser is already there.
func (r *Resolver) leave(loc *url.URL, nav Navigator) {
	if loc.Path != r.errorPath {
		nav.Redirect(r.errorPath)
	}
}

// done is the single exit of Resolve; it clears Loading.
func (r *Resolver) done(sess *Session) Session {
	sess.finish()
	r.logger.Debug("Session resolved",
		"outcome", string(sess.Outcome),
		"authenticated", sess.Authenticated)
	return *sess
}
