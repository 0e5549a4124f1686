package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hperssn/reframe/internal/auth"
	"github.com/hperssn/reframe/internal/domain"
	"github.com/hperssn/reframe/internal/identity"
	"github.com/hperssn/reframe/internal/metrics"
	"github.com/hperssn/reframe/internal/runner"
	"github.com/hperssn/reframe/internal/storage"
	"github.com/hperssn/reframe/internal/web"
)

const testBase = "/app"

type testEnv struct {
	server        *httptest.Server
	client        *http.Client
	identityCalls *atomic.Int32
	repo          storage.Repository
	metrics       *metrics.Metrics
}

type testOptions struct {
	identityStatus int
	testUserID     int64
	persist        bool
	secureCookies  bool
	// repo replaces the SQLite store when set.
	repo storage.Repository
	// wrapWizards decorates the wizard manager when set.
	wrapWizards func(*runner.WizardManager) WizardRegistry
}

func newTestEnv(t *testing.T, opts testOptions) *testEnv {
	t.Helper()

	calls := &atomic.Int32{}
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if opts.identityStatus != 0 && opts.identityStatus != http.StatusOK {
			w.WriteHeader(opts.identityStatus)
			return
		}
		_, _ = w.Write([]byte(`{"user_id": 7}`))
	}))
	t.Cleanup(idp.Close)

	repo := opts.repo
	if repo == nil {
		sqlite, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "reframe.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = sqlite.Close() })
		repo = sqlite
	}

	manager := runner.NewWizardManager(time.Hour)
	t.Cleanup(manager.Close)
	var wizards WizardRegistry = manager
	if opts.wrapWizards != nil {
		wizards = opts.wrapWizards(manager)
	}
	m := metrics.New(wizards.Len)

	renderer, err := web.NewRenderer(nil)
	require.NoError(t, err)

	resolver := auth.NewResolver(identity.NewClient(idp.URL, idp.Client()), auth.Config{
		ErrorPath:  testBase + "/token",
		TestUserID: opts.testUserID,
	})

	srv, err := NewServer(Config{
		BasePath:          testBase,
		ExitURL:           "https://example.com",
		ExitLabel:         "Go back",
		SessionSecret:     "0123456789abcdef0123456789abcdef",
		SecureCookies:     opts.secureCookies,
		WizardOptions:     domain.Options{AllowBack: true, AllowRetry: true},
		PersistOnComplete: opts.persist,
	}, Deps{
		Resolver: resolver,
		Wizards:  wizards,
		Entries:  repo,
		Renderer: renderer,
		Metrics:  m,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testEnv{server: ts, client: client, identityCalls: calls, repo: repo, metrics: m}
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) postJSON(t *testing.T, path string, form url.Values) domain.State {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state domain.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	return state
}

func (e *testEnv) signIn(t *testing.T) {
	t.Helper()
	resp := e.get(t, testBase+"/?token=abc")
	require.Equal(t, http.StatusFound, resp.StatusCode)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestMissingTokenRedirectsToErrorRoute(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	resp := env.get(t, testBase+"/")

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, testBase+"/token", resp.Header.Get("Location"))
	assert.Zero(t, env.identityCalls.Load())
}

func TestErrorRouteRendersWithoutSession(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	resp := env.get(t, testBase+"/token")

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Access Required")
	assert.Contains(t, body, "https://example.com")
}

func TestTokenHandshake(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	resp := env.get(t, testBase+"/?token=abc")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc := resp.Header.Get("Location")
	assert.Equal(t, testBase+"/", loc)
	assert.NotContains(t, loc, "token")
	assert.Equal(t, int32(1), env.identityCalls.Load())

	page := env.get(t, testBase+"/")
	require.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, readBody(t, page), "Let&#39;s look at the thought differently.")

	// the cached identifier is trusted from now on
	env.get(t, testBase+"/entries")
	env.get(t, testBase+"/?token=another")
	assert.Equal(t, int32(1), env.identityCalls.Load())
}

func TestFailedHandshakeRedirects(t *testing.T) {
	env := newTestEnv(t, testOptions{identityStatus: http.StatusUnauthorized})

	resp := env.get(t, testBase+"/?token=expired")

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, testBase+"/token", resp.Header.Get("Location"))

	// no retry on the following request either: without the token there is
	// nothing to exchange
	env.get(t, testBase+"/")
	assert.Equal(t, int32(1), env.identityCalls.Load())
}

func TestTestModeSkipsHandshake(t *testing.T) {
	env := newTestEnv(t, testOptions{testUserID: 123456789})

	resp := env.get(t, testBase+"/")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, env.identityCalls.Load())
}

func TestWizardFlowPersistsEntry(t *testing.T) {
	env := newTestEnv(t, testOptions{persist: true})
	env.signIn(t)

	state := env.postJSON(t, testBase+"/wizard/next", nil)
	require.Equal(t, domain.StepIdentify, state.Step)

	state = env.postJSON(t, testBase+"/wizard/next", url.Values{"thought": {"   "}})
	require.Equal(t, domain.StepIdentify, state.Step, "whitespace thought must not advance")

	state = env.postJSON(t, testBase+"/wizard/next", url.Values{"thought": {"Everyone will notice my mistake"}})
	require.Equal(t, domain.StepExamine, state.Step)

	state = env.postJSON(t, testBase+"/wizard/next", nil)
	require.Equal(t, domain.StepExamine, state.Step, "no distortion selected")

	state = env.postJSON(t, testBase+"/wizard/toggle", url.Values{"distortion": {"A worst-case scenario"}})
	require.Equal(t, []string{"A worst-case scenario"}, state.Distortions)

	state = env.postJSON(t, testBase+"/wizard/back", nil)
	require.Equal(t, domain.StepIdentify, state.Step)
	state = env.postJSON(t, testBase+"/wizard/next", nil)
	require.Equal(t, domain.StepExamine, state.Step)

	state = env.postJSON(t, testBase+"/wizard/next", nil)
	require.Equal(t, domain.StepReframe, state.Step)

	state = env.postJSON(t, testBase+"/wizard/next", url.Values{"reframed": {"Most people are busy with their own day"}})
	require.Equal(t, domain.StepIntegrate, state.Step)

	state = env.postJSON(t, testBase+"/wizard/next", nil)
	require.True(t, state.Completed)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+testBase+"/entries", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	resp, err := env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var entries []domain.ThoughtEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, int64(7), entries[0].UserID)
	assert.Equal(t, "Everyone will notice my mistake", entries[0].OriginalThought)
	assert.Equal(t, []string{"A worst-case scenario"}, entries[0].Distortions)

	state = env.postJSON(t, testBase+"/wizard/retry", nil)
	assert.Equal(t, domain.StepIntro, state.Step)
	assert.False(t, state.Completed)
	assert.Empty(t, state.Thought)
	assert.Empty(t, state.Distortions)
}

func TestCompletionWithoutPersistence(t *testing.T) {
	env := newTestEnv(t, testOptions{})
	env.signIn(t)

	env.postJSON(t, testBase+"/wizard/next", nil)
	env.postJSON(t, testBase+"/wizard/next", url.Values{"thought": {"t"}})
	env.postJSON(t, testBase+"/wizard/toggle", url.Values{"distortion": {"A prediction"}})
	env.postJSON(t, testBase+"/wizard/next", nil)
	env.postJSON(t, testBase+"/wizard/next", url.Values{"reframed": {"r"}})
	state := env.postJSON(t, testBase+"/wizard/next", nil)
	require.True(t, state.Completed)

	records, err := env.repo.ListEntries(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFormPostRedirectsHome(t *testing.T) {
	env := newTestEnv(t, testOptions{})
	env.signIn(t)

	resp, err := env.client.PostForm(env.server.URL+testBase+"/wizard/next", url.Values{})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, testBase+"/", resp.Header.Get("Location"))
}

func TestEntriesPageEmpty(t *testing.T) {
	env := newTestEnv(t, testOptions{})
	env.signIn(t)

	resp := env.get(t, testBase+"/entries")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "No entries saved yet.")
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, testOptions{})
	env.signIn(t)

	resp := env.get(t, testBase+"/does-not-exist")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	outside := env.get(t, "/elsewhere")
	assert.Equal(t, http.StatusNotFound, outside.StatusCode)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	resp := env.get(t, "/healthz")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, env.identityCalls.Load())
}

func TestWizardEventsStream(t *testing.T) {
	env := newTestEnv(t, testOptions{})
	env.signIn(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+testBase+"/wizard/events", nil)
	require.NoError(t, err)
	resp, err := env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "), "got %q", line)

	var ev runner.ProgressEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data: "))), &ev))
	assert.Equal(t, domain.TotalSteps, ev.Total)
	assert.Equal(t, 0, ev.Step)
}

// failingRepo is a thought log whose backend is unreachable.
type failingRepo struct{}

var errStoreDown = errors.New("down")

func (failingRepo) SaveEntry(context.Context, *storage.EntryRecord) error { return errStoreDown }

func (failingRepo) ListEntries(context.Context, int64) ([]storage.EntryRecord, error) {
	return nil, errStoreDown
}

func (failingRepo) ListRecentEntries(context.Context, int64, time.Time) ([]storage.EntryRecord, error) {
	return nil, errStoreDown
}

func (failingRepo) Close() error { return nil }

func TestEntriesListingFailureShowsEmptyList(t *testing.T) {
	env := newTestEnv(t, testOptions{repo: failingRepo{}})
	env.signIn(t)

	resp := env.get(t, testBase+"/entries")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "No entries saved yet.")

	req, err := http.NewRequest(http.MethodGet, env.server.URL+testBase+"/entries", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	jsonResp, err := env.client.Do(req)
	require.NoError(t, err)
	defer jsonResp.Body.Close()

	require.Equal(t, http.StatusOK, jsonResp.StatusCode)
	var entries []domain.ThoughtEntry
	require.NoError(t, json.NewDecoder(jsonResp.Body).Decode(&entries))
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestCompletionSurvivesFailedSave(t *testing.T) {
	env := newTestEnv(t, testOptions{repo: failingRepo{}, persist: true})
	env.signIn(t)

	env.postJSON(t, testBase+"/wizard/next", nil)
	env.postJSON(t, testBase+"/wizard/next", url.Values{"thought": {"t"}})
	env.postJSON(t, testBase+"/wizard/toggle", url.Values{"distortion": {"A prediction"}})
	env.postJSON(t, testBase+"/wizard/next", nil)
	env.postJSON(t, testBase+"/wizard/next", url.Values{"reframed": {"r"}})
	state := env.postJSON(t, testBase+"/wizard/next", nil)

	assert.True(t, state.Completed)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.EntriesSaved.WithLabelValues("error")))
	assert.Zero(t, testutil.ToFloat64(env.metrics.EntriesSaved.WithLabelValues("ok")))
}

// evictingWizards drops the wizard right before every action, as the idle
// cleanup would between two requests.
type evictingWizards struct {
	*runner.WizardManager
}

func (e evictingWizards) Apply(id string, fn func(*domain.Wizard) bool) (domain.State, bool, error) {
	_ = e.Remove(id)
	return e.WizardManager.Apply(id, fn)
}

func TestEvictedWizardFormPostRedirectsHome(t *testing.T) {
	env := newTestEnv(t, testOptions{
		wrapWizards: func(m *runner.WizardManager) WizardRegistry { return evictingWizards{m} },
	})
	env.signIn(t)
	require.Equal(t, http.StatusOK, env.get(t, testBase+"/").StatusCode)

	resp, err := env.client.PostForm(env.server.URL+testBase+"/wizard/next", url.Values{})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, testBase+"/", resp.Header.Get("Location"))

	page := env.get(t, testBase+"/")
	assert.Equal(t, http.StatusOK, page.StatusCode)
}

func TestEvictedWizardJSONActionIsNotFound(t *testing.T) {
	env := newTestEnv(t, testOptions{
		wrapWizards: func(m *runner.WizardManager) WizardRegistry { return evictingWizards{m} },
	})
	env.signIn(t)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+testBase+"/wizard/next", strings.NewReader(""))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	resp, err := env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSecureCookiesFlag(t *testing.T) {
	for _, secure := range []bool{false, true} {
		env := newTestEnv(t, testOptions{secureCookies: secure})

		resp := env.get(t, testBase+"/?token=abc")
		require.Equal(t, http.StatusFound, resp.StatusCode)

		cookies := resp.Cookies()
		require.NotEmpty(t, cookies)
		assert.Equal(t, secure, cookies[0].Secure, "secure=%t", secure)
	}
}
