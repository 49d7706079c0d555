// internal/app/features/errors/errors.go
// Package errors renders JSON error responses for the REST surface and logs
// server-side failures with request context.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/tripsync/internal/app/system/apperr"
	"github.com/dalemusser/tripsync/internal/app/system/auth"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Body is the error envelope: {"error":{"kind":"...","message":"..."}}.
type Body struct {
	Error Detail `json:"error"`
}

// Detail describes one failure.
type Detail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the error envelope.
func WriteError(w http.ResponseWriter, status int, kind, msg string) {
	WriteJSON(w, status, Body{Error: Detail{Kind: kind, Message: msg}})
}

// ErrorLogger maps application errors to responses. Client errors are
// logged at debug; everything else at error with the request details.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

// Write renders err. Classified errors keep their message; anything else
// becomes a 500 with a generic message.
func (l *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := apperr.Status(err)
	kind := string(apperr.KindOf(err))
	if kind == "" {
		kind = "internal"
	}

	fields := l.requestFields(r, op, err)
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusBadGateway:
		l.log.Error("request failed", fields...)
	case status == http.StatusBadGateway:
		l.log.Warn("upstream failure", fields...)
	default:
		l.log.Debug("request rejected", fields...)
	}

	WriteError(w, status, kind, apperr.PublicMessage(err))
}

// LogBadRequest reports an undecodable request body.
func (l *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, op string, err error, msg string) {
	l.log.Debug("bad request", l.requestFields(r, op, err)...)
	WriteError(w, http.StatusBadRequest, string(apperr.KindValidation), msg)
}

func (l *ErrorLogger) requestFields(r *http.Request, op string, err error) []zap.Field {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	}
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	if u, ok := auth.CurrentUser(r); ok {
		fields = append(fields, zap.String("user_id", u.ID))
	}
	return fields
}
