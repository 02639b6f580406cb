// Package httputil centralizes JSON response writing so every handler emits
// the same envelopes and domain errors map to HTTP statuses in one place.
package httputil

import (
	"encoding/json"
	"net/http"

	"mediglot/pkg/domainerrors"
)

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError translates a domain error into its HTTP status and a generic
// JSON error envelope. Internal causes never appear in the body.
func WriteError(w http.ResponseWriter, err error) {
	code := domainerrors.CodeOf(err)
	WriteJSON(w, ToHTTPStatus(code), map[string]string{
		"error": domainerrors.PublicMessage(err),
	})
}

// ToHTTPStatus maps domain error codes onto response statuses. Collaborator
// failures deliberately surface as a plain 500: the caller learns nothing
// about which upstream failed or why.
func ToHTTPStatus(code domainerrors.Code) int {
	switch code {
	case domainerrors.CodeValidation:
		return http.StatusBadRequest
	case domainerrors.CodeSessionExpired:
		return http.StatusUnauthorized
	case domainerrors.CodeCollaborator, domainerrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
