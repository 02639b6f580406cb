package translate

import (
	"context"
	"fmt"
	"log/slog"

	"mediglot/internal/audit"
	"mediglot/internal/session"
	"mediglot/pkg/domainerrors"
	"mediglot/pkg/requestcontext"
)

// Stable client-facing messages. Internal failure detail stays in the logs
// and the audit trail, never in a response body.
const (
	msgMissingFields  = "Missing required fields"
	msgSessionExpired = "Session expired"
	msgTranslationErr = "Translation failed"
)

// Improver is the external text-improvement collaborator.
type Improver interface {
	Improve(ctx context.Context, text, lang string) (string, error)
}

// Translator is the external translation collaborator.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Service orchestrates one translation request. It holds no per-request
// state; the only shared structure it touches is the audit log, which is
// safe for concurrent use.
type Service struct {
	improver   Improver
	translator Translator
	auditLog   *audit.Log
	sessions   session.Policy
	logger     *slog.Logger
}

// NewService wires the pipeline to its collaborators and the audit log.
func NewService(improver Improver, translator Translator, auditLog *audit.Log, sessions session.Policy, logger *slog.Logger) *Service {
	return &Service{
		improver:   improver,
		translator: translator,
		auditLog:   auditLog,
		sessions:   sessions,
		logger:     logger,
	}
}

// Translate runs the pipeline: validate, enforce the session policy, improve
// the text, translate it, and audit the outcome. sessionStart is the raw
// X-Session-Start header value, empty when absent. Exactly one audit event
// is recorded per outcome; no collaborator is called after a failed check.
func (s *Service) Translate(ctx context.Context, req Request, sessionStart string) (*Result, error) {
	if req.Text == "" || req.SourceLang == "" || req.TargetLang == "" {
		s.record(ctx, audit.TypeError, audit.ActionValidationFailed, false, "Missing required fields")
		return nil, domainerrors.New(domainerrors.CodeValidation, msgMissingFields)
	}
	if !LanguageSupported(req.SourceLang) || !LanguageSupported(req.TargetLang) {
		s.record(ctx, audit.TypeError, audit.ActionValidationFailed, false,
			fmt.Sprintf("Unsupported language pair: %s to %s", req.SourceLang, req.TargetLang))
		return nil, domainerrors.New(domainerrors.CodeValidation, msgMissingFields)
	}

	now := requestcontext.StartTime(ctx)
	expired, present := s.sessions.Check(sessionStart, now)
	if expired {
		s.record(ctx, audit.TypeError, audit.ActionSessionTimeout, false, "Session expired")
		return nil, domainerrors.New(domainerrors.CodeSessionExpired, msgSessionExpired)
	}
	if !present {
		// Fail-open path: the request proceeds, but the absent session
		// marker is visible in the trail instead of silently accepted.
		s.record(ctx, audit.TypeAccess, audit.ActionSessionMissing, true, "Request accepted without session start header")
	}

	improved, err := s.improver.Improve(ctx, req.Text, req.SourceLang)
	if err != nil {
		s.failCollaborator(ctx, "text improvement failed", err)
		return nil, domainerrors.Wrap(domainerrors.CodeCollaborator, msgTranslationErr, err)
	}

	translated, err := s.translator.Translate(ctx, improved, req.SourceLang, req.TargetLang)
	if err != nil {
		s.failCollaborator(ctx, "translation failed", err)
		return nil, domainerrors.Wrap(domainerrors.CodeCollaborator, msgTranslationErr, err)
	}

	s.record(ctx, audit.TypeTranslation, audit.ActionMedicalTranslation, true,
		fmt.Sprintf("Translation completed: %s to %s", req.SourceLang, req.TargetLang))

	return &Result{TranslatedText: translated}, nil
}

// failCollaborator audits and logs a collaborator fault. The error text goes
// into the event details, where the audit log scrubs it before persistence.
func (s *Service) failCollaborator(ctx context.Context, msg string, err error) {
	s.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	s.record(ctx, audit.TypeError, audit.ActionTranslationFailed, false, err.Error())
}

func (s *Service) record(ctx context.Context, typ audit.EventType, action string, success bool, details string) {
	s.auditLog.Record(ctx, audit.Event{
		Type:      typ,
		Action:    action,
		Success:   success,
		Details:   details,
		UserHash:  audit.HashUser(requestcontext.UserID(ctx)),
		IPAddress: requestcontext.ClientIP(ctx),
	})
}
