// Package handler wires the translation pipeline to HTTP. It stays thin:
// decode and schema-check the body, delegate to the service, translate
// domain errors to statuses.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"mediglot/internal/audit"
	"mediglot/internal/session"
	"mediglot/internal/translate"
	"mediglot/pkg/domainerrors"
	"mediglot/pkg/platform/httputil"
	"mediglot/pkg/requestcontext"
)

const maxBodyBytes = 1 << 20

// Service is the pipeline interface the handler depends on.
type Service interface {
	Translate(ctx context.Context, req translate.Request, sessionStart string) (*translate.Result, error)
}

// Handler serves the translation endpoint.
type Handler struct {
	service  Service
	auditLog *audit.Log
	logger   *slog.Logger
	schema   *requestSchema
}

// New constructs the handler; the request schema is compiled once here.
func New(service Service, auditLog *audit.Log, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		auditLog: auditLog,
		logger:   logger,
		schema:   mustCompileSchema(),
	}
}

// Register mounts the translation endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/translate", h.HandleTranslate)
}

// HandleTranslate handles POST /translate.
func (h *Handler) HandleTranslate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.rejectInvalid(ctx, w, "unreadable request body")
		return
	}

	// Shape and language-tag enum are enforced by schema before the
	// pipeline runs, so a malformed body never reaches a collaborator.
	if err := h.schema.validate(body); err != nil {
		h.rejectInvalid(ctx, w, "request body failed schema validation")
		return
	}

	var req translate.Request
	if err := json.Unmarshal(body, &req); err != nil {
		h.rejectInvalid(ctx, w, "request body is not valid JSON")
		return
	}

	result, err := h.service.Translate(ctx, req, r.Header.Get(session.HeaderSessionStart))
	if err != nil {
		// The service already audited the failure; log transport-side and map.
		h.logger.WarnContext(ctx, "translation request failed",
			"request_id", requestID,
			"code", string(domainerrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "translation completed",
		"request_id", requestID,
		"source_lang", req.SourceLang,
		"target_lang", req.TargetLang,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// rejectInvalid audits a request that never reached the pipeline and
// returns the standard validation response. The reason goes to the trail,
// not to the caller.
func (h *Handler) rejectInvalid(ctx context.Context, w http.ResponseWriter, reason string) {
	h.auditLog.Record(ctx, audit.Event{
		Type:      audit.TypeError,
		Action:    audit.ActionValidationFailed,
		Success:   false,
		Details:   reason,
		UserHash:  audit.HashUser(requestcontext.UserID(ctx)),
		IPAddress: requestcontext.ClientIP(ctx),
	})
	httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "Missing required fields"))
}
