package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediglot/internal/audit"
	"mediglot/internal/policy"
	"mediglot/internal/session"
	"mediglot/internal/translate"
	"mediglot/pkg/testutil"
)

type memorySink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *memorySink) Deliver(_ context.Context, batch []audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

type stubImprover struct{ calls int }

func (s *stubImprover) Improve(_ context.Context, text, _ string) (string, error) {
	s.calls++
	return text, nil
}

type stubTranslator struct {
	calls int
	out   string
}

func (s *stubTranslator) Translate(_ context.Context, _, _, _ string) (string, error) {
	s.calls++
	return s.out, nil
}

type env struct {
	router     http.Handler
	sink       *memorySink
	log        *audit.Log
	improver   *stubImprover
	translator *stubTranslator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	sink := &memorySink{}
	auditLog := audit.New(sink, audit.WithFlushInterval(time.Hour))
	auditLog.Start(context.Background())
	t.Cleanup(func() { auditLog.Stop(context.Background()) })

	improver := &stubImprover{}
	translator := &stubTranslator{out: "le patient a de la fièvre"}
	svc := translate.NewService(improver, translator, auditLog, session.NewPolicy(false), slog.Default())

	r := chi.NewRouter()
	r.Use(policy.Middleware(policy.New("https://generativelanguage.googleapis.com")))
	New(svc, auditLog, slog.Default()).Register(r)

	return &env{router: r, sink: sink, log: auditLog, improver: improver, translator: translator}
}

func (e *env) events(t *testing.T) []audit.Event {
	t.Helper()
	require.NoError(t, e.log.Flush(context.Background()))
	e.sink.mu.Lock()
	defer e.sink.mu.Unlock()
	out := make([]audit.Event, len(e.sink.events))
	copy(out, e.sink.events)
	return out
}

func validBody() map[string]string {
	return map[string]string{
		"text":       "patient has fever",
		"sourceLang": "en-US",
		"targetLang": "fr-FR",
	}
}

func TestHandleTranslate_Success(t *testing.T) {
	e := newEnv(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/translate", validBody())
	req.Header.Set(session.HeaderSessionStart, strconv.FormatInt(time.Now().Add(-time.Minute).UnixMilli(), 10))
	rr := testutil.DoRequest(e.router, req)

	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "translatedText", "le patient a de la fièvre")

	events := e.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionMedicalTranslation, events[0].Action)
	assert.True(t, events[0].Success)
}

func TestHandleTranslate_ValidationFailure(t *testing.T) {
	e := newEnv(t)

	body := validBody()
	body["text"] = ""
	rr := testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost, "/translate", body))

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertJSONContains(t, rr, "error", "Missing required fields")

	assert.Equal(t, 0, e.improver.calls, "no collaborator call for an invalid body")
	assert.Equal(t, 0, e.translator.calls)

	events := e.events(t)
	require.Len(t, events, 1, "exactly one error event")
	assert.Equal(t, audit.ActionValidationFailed, events[0].Action)
	assert.False(t, events[0].Success)
}

func TestHandleTranslate_UnsupportedLanguageTag(t *testing.T) {
	e := newEnv(t)

	body := validBody()
	body["targetLang"] = "tlh" // not in the supported set
	rr := testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost, "/translate", body))

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	assert.Equal(t, 0, e.improver.calls)
}

func TestHandleTranslate_MalformedJSON(t *testing.T) {
	e := newEnv(t)

	rr := testutil.DoRequest(e.router,
		testutil.NewRequestWithBody(t, http.MethodPost, "/translate", `{"text": "unterminated`))

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	events := e.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionValidationFailed, events[0].Action)
}

func TestHandleTranslate_SessionExpiry(t *testing.T) {
	e := newEnv(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/translate", validBody())
	req.Header.Set(session.HeaderSessionStart, strconv.FormatInt(time.Now().Add(-20*time.Minute).UnixMilli(), 10))
	rr := testutil.DoRequest(e.router, req)

	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	testutil.AssertJSONContains(t, rr, "error", "Session expired")

	assert.Equal(t, 0, e.improver.calls, "no collaborator call after session expiry")

	events := e.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionSessionTimeout, events[0].Action)
}

func TestHandleTranslate_HeadersOnEveryOutcome(t *testing.T) {
	e := newEnv(t)

	cases := map[string]*http.Request{
		"success":    testutil.NewJSONRequest(t, http.MethodPost, "/translate", validBody()),
		"validation": testutil.NewJSONRequest(t, http.MethodPost, "/translate", map[string]string{"text": ""}),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			rr := testutil.DoRequest(e.router, req)
			assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
			assert.NotEmpty(t, rr.Header().Get("Strict-Transport-Security"))
			assert.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))
			assert.Equal(t, "no-store, no-cache, must-revalidate", rr.Header().Get("Cache-Control"))
		})
	}
}
