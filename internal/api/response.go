// Package api implements the REST surface for docsearchd: search, collection
// inspection, and health/metrics endpoints over a chi router.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	amerrors "github.com/docsearchd/docsearchd/internal/errors"
)

// envelope is the uniform JSON response shape for every REST endpoint.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, envelope{Success: false, Error: msg})
}

// respondErr inspects err and picks an HTTP status from its DocError
// category, falling back to 500 for anything unrecognized.
func respondErr(w http.ResponseWriter, err error) {
	respondJSON(w, statusForError(err), envelope{Success: false, Error: err.Error()})
}

// statusForError maps a DocError's category to an HTTP status code, the
// REST equivalent of internal/mcp/errors.go's category switch.
func statusForError(err error) int {
	var de *amerrors.DocError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}

	switch de.Category {
	case amerrors.CategoryValidation:
		return http.StatusBadRequest
	case amerrors.CategoryNotFound:
		return http.StatusNotFound
	case amerrors.CategoryConflict:
		return http.StatusConflict
	case amerrors.CategoryRateLimited:
		return http.StatusTooManyRequests
	case amerrors.CategoryCancelled:
		return http.StatusGatewayTimeout
	case amerrors.CategoryNetwork, amerrors.CategoryPartial:
		return http.StatusBadGateway
	case amerrors.CategoryConfig, amerrors.CategoryIO:
		switch de.Code {
		case amerrors.ErrCodeCollectionNotFound, amerrors.ErrCodeDocumentNotFound, amerrors.ErrCodeFileNotFound:
			return http.StatusNotFound
		default:
			return http.StatusInternalServerError
		}
	default:
		return http.StatusInternalServerError
	}
}
