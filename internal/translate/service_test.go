package translate

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediglot/internal/audit"
	"mediglot/internal/session"
	"mediglot/pkg/domainerrors"
	"mediglot/pkg/requestcontext"
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

type fakeImprover struct {
	calls int
	out   string
	err   error
}

func (f *fakeImprover) Improve(_ context.Context, text, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.out != "" {
		return f.out, nil
	}
	return text, nil
}

type fakeTranslator struct {
	calls int
	out   string
	err   error
}

func (f *fakeTranslator) Translate(_ context.Context, _, _, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

type fixture struct {
	service    *Service
	sink       *memorySink
	log        *audit.Log
	improver   *fakeImprover
	translator *fakeTranslator
}

func newFixture(t *testing.T, strict bool) *fixture {
	t.Helper()
	sink := &memorySink{}
	log := audit.New(sink, audit.WithFlushInterval(time.Hour))
	log.Start(context.Background())
	t.Cleanup(func() { log.Stop(context.Background()) })

	improver := &fakeImprover{}
	translator := &fakeTranslator{out: "le patient a de la fièvre"}
	svc := NewService(improver, translator, log, session.NewPolicy(strict), slog.Default())
	return &fixture{service: svc, sink: sink, log: log, improver: improver, translator: translator}
}

func (f *fixture) flushedEvents(t *testing.T) []audit.Event {
	t.Helper()
	require.NoError(t, f.log.Flush(context.Background()))
	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	out := make([]audit.Event, len(f.sink.events))
	copy(out, f.sink.events)
	return out
}

func sessionStartMillis(offset time.Duration) string {
	return strconv.FormatInt(time.Now().Add(offset).UnixMilli(), 10)
}

func TestTranslate_Success(t *testing.T) {
	f := newFixture(t, false)

	res, err := f.service.Translate(context.Background(), Request{
		Text:       "patient has fever",
		SourceLang: "en-US",
		TargetLang: "fr-FR",
	}, sessionStartMillis(-time.Minute))

	require.NoError(t, err)
	assert.Equal(t, "le patient a de la fièvre", res.TranslatedText)
	assert.Equal(t, 1, f.improver.calls)
	assert.Equal(t, 1, f.translator.calls)

	events := f.flushedEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, audit.TypeTranslation, events[0].Type)
	assert.Equal(t, audit.ActionMedicalTranslation, events[0].Action)
	assert.True(t, events[0].Success)
	assert.Contains(t, events[0].Details, "en-US to fr-FR")
}

func TestTranslate_ValidationFailure(t *testing.T) {
	f := newFixture(t, false)

	cases := []Request{
		{Text: "", SourceLang: "en-US", TargetLang: "fr-FR"},
		{Text: "hello", SourceLang: "", TargetLang: "fr-FR"},
		{Text: "hello", SourceLang: "en-US", TargetLang: ""},
	}
	for _, req := range cases {
		_, err := f.service.Translate(context.Background(), req, "")
		require.Error(t, err)
		assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
	}

	assert.Equal(t, 0, f.improver.calls, "no collaborator call on validation failure")
	assert.Equal(t, 0, f.translator.calls)

	events := f.flushedEvents(t)
	require.Len(t, events, len(cases), "exactly one error event per failed request")
	for _, e := range events {
		assert.Equal(t, audit.TypeError, e.Type)
		assert.Equal(t, audit.ActionValidationFailed, e.Action)
		assert.False(t, e.Success)
	}
}

func TestTranslate_UnsupportedLanguage(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.service.Translate(context.Background(), Request{
		Text: "hello", SourceLang: "en-US", TargetLang: "xx-XX",
	}, "")
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
	assert.Equal(t, 0, f.improver.calls)
}

func TestTranslate_SessionExpired(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.service.Translate(context.Background(), Request{
		Text: "patient has fever", SourceLang: "en-US", TargetLang: "fr-FR",
	}, sessionStartMillis(-20*time.Minute))

	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeSessionExpired, domainerrors.CodeOf(err))
	assert.Equal(t, 0, f.improver.calls, "no collaborator call after session expiry")
	assert.Equal(t, 0, f.translator.calls)

	events := f.flushedEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionSessionTimeout, events[0].Action)
	assert.False(t, events[0].Success)
}

func TestTranslate_MissingSessionFailOpen(t *testing.T) {
	f := newFixture(t, false)

	res, err := f.service.Translate(context.Background(), Request{
		Text: "patient has fever", SourceLang: "en-US", TargetLang: "fr-FR",
	}, "")

	require.NoError(t, err)
	assert.NotNil(t, res)

	events := f.flushedEvents(t)
	require.Len(t, events, 2, "fail-open acceptance is itself audited")
	assert.Equal(t, audit.ActionSessionMissing, events[0].Action)
	assert.Equal(t, audit.TypeAccess, events[0].Type)
	assert.Equal(t, audit.ActionMedicalTranslation, events[1].Action)
}

func TestTranslate_MissingSessionStrict(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.service.Translate(context.Background(), Request{
		Text: "patient has fever", SourceLang: "en-US", TargetLang: "fr-FR",
	}, "")

	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeSessionExpired, domainerrors.CodeOf(err))
	assert.Equal(t, 0, f.improver.calls)
}

func TestTranslate_CollaboratorFailure(t *testing.T) {
	t.Run("improver", func(t *testing.T) {
		f := newFixture(t, false)
		f.improver.err = errors.New("gemini: 503 overloaded, patient 123-45-6789 in prompt")

		_, err := f.service.Translate(context.Background(), Request{
			Text: "patient has fever", SourceLang: "en-US", TargetLang: "fr-FR",
		}, sessionStartMillis(-time.Minute))

		require.Error(t, err)
		assert.Equal(t, domainerrors.CodeCollaborator, domainerrors.CodeOf(err))
		assert.Equal(t, 0, f.translator.calls, "translation must not run after improvement failure")

		events := f.flushedEvents(t)
		require.Len(t, events, 1)
		assert.Equal(t, audit.ActionTranslationFailed, events[0].Action)
		assert.NotContains(t, events[0].Details, "123-45-6789", "PHI in a collaborator error must be scrubbed")
	})

	t.Run("translator", func(t *testing.T) {
		f := newFixture(t, false)
		f.translator.err = errors.New("upstream timeout")

		_, err := f.service.Translate(context.Background(), Request{
			Text: "patient has fever", SourceLang: "en-US", TargetLang: "fr-FR",
		}, sessionStartMillis(-time.Minute))

		require.Error(t, err)
		assert.Equal(t, domainerrors.CodeCollaborator, domainerrors.CodeOf(err))
		assert.Equal(t, 1, f.improver.calls)

		events := f.flushedEvents(t)
		require.Len(t, events, 1)
		assert.Equal(t, audit.ActionTranslationFailed, events[0].Action)
	})
}

func TestTranslate_CancelledContextStillAudited(t *testing.T) {
	f := newFixture(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.improver.err = ctx.Err()

	_, err := f.service.Translate(ctx, Request{
		Text: "patient has fever", SourceLang: "en-US", TargetLang: "fr-FR",
	}, sessionStartMillis(-time.Minute))

	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeCollaborator, domainerrors.CodeOf(err))
	assert.ErrorIs(t, err, context.Canceled)

	// Record is non-blocking, so the cancelled request context must not
	// keep the failure out of the trail.
	events := f.flushedEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionTranslationFailed, events[0].Action)
	assert.False(t, events[0].Success)
}

func TestTranslate_AuditCarriesRequestMetadata(t *testing.T) {
	f := newFixture(t, false)

	ctx := requestcontext.WithClientIP(context.Background(), "203.0.113.9")
	ctx = requestcontext.WithUserID(ctx, "clinician-7")

	_, err := f.service.Translate(ctx, Request{
		Text: "patient has fever", SourceLang: "en-US", TargetLang: "fr-FR",
	}, sessionStartMillis(-time.Minute))
	require.NoError(t, err)

	events := f.flushedEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, "203.0.113.9", events[0].IPAddress)
	assert.Equal(t, audit.HashUser("clinician-7"), events[0].UserHash)
	assert.NotContains(t, events[0].UserHash, "clinician")
}
