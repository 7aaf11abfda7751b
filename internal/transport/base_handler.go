package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/claims-management/internal"
	"github.com/frahmantamala/claims-management/internal/core/identity"
	"github.com/frahmantamala/claims-management/pkg/logger"
)

const DateLayout = "2006-01-02"

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes an AppError-shaped response for errors raised in the transport layer.
func (h *BaseHandler) WriteError(w http.ResponseWriter, err *internal.AppError) {
	status, body := err.ToHTTPResponse()
	h.WriteJSON(w, status, body)
}

// HandleServiceError converts a service error into its HTTP response. Unexpected
// errors are logged with their cause and reported with the generic store message.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	lg := logger.From(r.Context())

	appErr, ok := internal.IsAppError(err)
	if !ok {
		lg.Error("unhandled service error", "error", err, "path", r.URL.Path)
		h.WriteError(w, internal.ErrStoreFailure.WithCause(err))
		return
	}

	switch {
	case appErr.StatusCode >= http.StatusInternalServerError:
		lg.Error("request failed", "error", err, "code", appErr.Code, "path", r.URL.Path)
	case appErr.Type == internal.ErrorTypeForbidden || appErr.Type == internal.ErrorTypeInvalidTransition:
		lg.Warn("request rejected", "code", appErr.Code, "message", appErr.Message, "path", r.URL.Path)
	default:
		lg.Debug("request rejected", "code", appErr.Code, "path", r.URL.Path)
	}

	h.WriteError(w, appErr)
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[7:])
}

// RequireActor returns the authenticated actor or writes a 401.
func (h *BaseHandler) RequireActor(w http.ResponseWriter, r *http.Request) (identity.Actor, bool) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.Logger.Error("actor not found in context", "path", r.URL.Path)
		h.WriteError(w, internal.ErrMissingToken)
		return identity.Actor{}, false
	}
	return actor, true
}

// ParseIDParam reads a positive int64 path parameter.
func (h *BaseHandler) ParseIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, internal.NewValidationFieldError(name, "invalid "+name, internal.ErrCodeValidationFailed))
		return 0, false
	}
	return id, true
}

// ParseDateRange reads optional from/to query parameters in YYYY-MM-DD form.
func (h *BaseHandler) ParseDateRange(w http.ResponseWriter, r *http.Request) (from, to *time.Time, ok bool) {
	var errs []internal.ValidationError
	parse := func(name string) *time.Time {
		raw := strings.TrimSpace(r.URL.Query().Get(name))
		if raw == "" {
			return nil
		}
		t, err := time.Parse(DateLayout, raw)
		if err != nil {
			errs = append(errs, internal.ValidationError{
				Field:   name,
				Message: name + " must be a date in YYYY-MM-DD format",
				Code:    string(internal.ErrCodeInvalidDate),
			})
			return nil
		}
		return &t
	}

	from = parse("from")
	to = parse("to")
	if len(errs) > 0 {
		h.WriteError(w, internal.NewValidationErrors(errs))
		return nil, nil, false
	}
	return from, to, true
}
