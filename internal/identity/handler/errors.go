package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"ger/backend/internal/identity/service"
	"ger/backend/internal/log"
	"ger/backend/internal/platform/rbac"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// classify maps an error to its HTTP status, error name and message.
func classify(err error) ErrorBody {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return ErrorBody{http.StatusBadRequest, "invalid authentication credentials", "invalid authentication credentials"}
	case errors.Is(err, service.ErrUnauthorized):
		return ErrorBody{http.StatusUnauthorized, "unauthorized", "session timed out"}
	case errors.Is(err, rbac.ErrForbidden):
		return ErrorBody{http.StatusForbidden, "forbidden", "you do not have to role to access this content"}
	case errors.Is(err, service.ErrInputValidation):
		return ErrorBody{http.StatusBadRequest, "input validation error", "input field validation failed"}
	case errors.Is(err, service.ErrUserNotFound):
		return ErrorBody{http.StatusNotFound, "user not found", "user not found"}
	case errors.Is(err, service.ErrIncorrectPassword):
		return ErrorBody{http.StatusBadRequest, "incorrect password", "password is incorrect"}
	default:
		return ErrorBody{http.StatusInternalServerError, "internal server error", "internal server error"}
	}
}

// WriteError renders err as an ErrorBody. Unclassified errors are logged and never echoed.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	body := classify(err)
	if body.StatusCode == http.StatusInternalServerError {
		log.Error(r.Context()).Err(err).Str("path", r.URL.Path).Msg("identity: request failed")
	} else {
		log.Debug(r.Context()).Err(err).Int("status", body.StatusCode).Msg("identity: request rejected")
	}
	writeJSON(w, r, body.StatusCode, body)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn(r.Context()).Err(err).Msg("identity: write response")
	}
}
