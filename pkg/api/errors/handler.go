// Package errors provides HTTP error handling utilities for the REST API.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/ssobridge/ssobridge/pkg/errors"
	"github.com/ssobridge/ssobridge/pkg/logger"
)

// HandlerWithError is an HTTP handler that can return an error.
type HandlerWithError func(http.ResponseWriter, *http.Request) error

// Response is the JSON body written for every failed REST request.
type Response struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorHandler wraps a HandlerWithError and converts returned errors into
// JSON error responses.
//
//	r.Get("/{id}/profile", apierrors.ErrorHandler(routes.getProfile))
func ErrorHandler(fn HandlerWithError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			Write(w, r, err)
		}
	}
}

// Write writes err as a JSON error response. Server errors are logged at
// warn level and their details are not sent to the client; client errors are
// logged at debug level.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.HTTPStatus(err)
	body := Response{Type: errors.TypeOf(err), Message: message(err)}

	if code >= http.StatusInternalServerError {
		logger.Warnw("REST request failed", "method", r.Method, "path", r.URL.Path, "status", code, "error", err)
		if body.Type == "" {
			body.Type = errors.ErrInternal
		}
		if code != http.StatusNotImplemented {
			body.Message = http.StatusText(code)
		}
	} else {
		logger.Debugw("REST request rejected", "method", r.Method, "path", r.URL.Path, "status", code, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		logger.Errorf("Failed to write error response: %v", encErr)
	}
}

func message(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
