package httpapi

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/hkdf"
)

const (
	cookieName  = "reframe_session"
	userIDKey   = "user_id"
	wizardIDKey = "wizard_id"
)

// newCookieStore builds a cookie store whose signing and encryption keys
// are derived from secret. Cookies carry no Max-Age so they end with the
// browser session.
func newCookieStore(secret string, secure bool) (*sessions.CookieStore, error) {
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("reframe session cookie"))

	hashKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, hashKey); err != nil {
		return nil, fmt.Errorf("derive cookie hash key: %w", err)
	}
	blockKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, blockKey); err != nil {
		return nil, fmt.Errorf("derive cookie block key: %w", err)
	}

	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store, nil
}

// browserSession is the cookie-backed state of one browser session. It
// implements auth.SessionStore.
type browserSession struct {
	session *sessions.Session
	dirty   bool
}

func (b *browserSession) CachedUserID() (string, bool) {
	v, ok := b.session.Values[userIDKey].(string)
	return v, ok && v != ""
}

func (b *browserSession) CacheUserID(id string) {
	b.session.Values[userIDKey] = id
	b.dirty = true
}

func (b *browserSession) WizardID() string {
	v, _ := b.session.Values[wizardIDKey].(string)
	return v
}

func (b *browserSession) SetWizardID(id string) {
	b.session.Values[wizardIDKey] = id
	b.dirty = true
}

// save writes the cookie if anything changed. It must run before the
// response header is written.
func (b *browserSession) save(r *http.Request, w http.ResponseWriter) error {
	if !b.dirty {
		return nil
	}
	if err := b.session.Save(r, w); err != nil {
		return err
	}
	b.dirty = false
	return nil
}

type browserSessionKey struct{}

func withBrowserSession(ctx context.Context, b *browserSession) context.Context {
	return context.WithValue(ctx, browserSessionKey{}, b)
}

func browserSessionFrom(ctx context.Context) (*browserSession, bool) {
	b, ok := ctx.Value(browserSessionKey{}).(*browserSession)
	return b, ok
}

// redirectNavigator records what the resolver asked for; the middleware
// turns it into a redirect once the cookie is saved.
type redirectNavigator struct {
	location url.URL
	redirect string
	replace  *url.URL
}

func (n *redirectNavigator) Location() *url.URL {
	u := n.location
	return &u
}

func (n *redirectNavigator) Redirect(path string) { n.redirect = path }

func (n *redirectNavigator) Replace(u *url.URL) { n.replace = u }
