// internal/app/features/errors/errors.go
package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/stratablog/internal/app/blog"
	"github.com/dalemusser/stratablog/internal/app/system/jsonutil"
	"go.uber.org/zap"
)

// ErrorLogger wraps the zap logger for handler-level error logging.
type ErrorLogger struct {
	logger *zap.Logger
}

// NewErrorLogger creates a new ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{logger: logger}
}

// Log logs an error with the request path and method.
func (e *ErrorLogger) Log(r *http.Request, msg string, err error) {
	e.LogWithFields(r, msg, err)
}

// LogWithFields logs an error with additional fields.
func (e *ErrorLogger) LogWithFields(r *http.Request, msg string, err error, fields ...zap.Field) {
	if e == nil || e.logger == nil {
		return
	}
	all := append([]zap.Field{
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	}, fields...)
	e.logger.Error(msg, all...)
}

// WriteDomainError maps a blog service error to its HTTP status and JSON body.
// Unexpected errors are logged and reported as a bare 500.
func (e *ErrorLogger) WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *blog.ValidationError
	switch {
	case stderrors.As(err, &ve):
		jsonutil.ValidationError(w, ve.Fields)
	case stderrors.Is(err, blog.ErrValidation):
		jsonutil.BadRequest(w, err.Error())
	case stderrors.Is(err, blog.ErrDuplicateUsername):
		jsonutil.Conflict(w, "Username already exists.")
	case stderrors.Is(err, blog.ErrDuplicateEmail):
		jsonutil.Conflict(w, "Email already registered.")
	case stderrors.Is(err, blog.ErrSlugConflict):
		jsonutil.Conflict(w, "A post with this title already exists.")
	case stderrors.Is(err, blog.ErrLastAdmin):
		jsonutil.Conflict(w, "At least one administrator must remain.")
	case stderrors.Is(err, blog.ErrNotFound):
		jsonutil.NotFound(w, "Not found.")
	case stderrors.Is(err, blog.ErrForbidden):
		jsonutil.Forbidden(w, "You do not have permission to do that.")
	case stderrors.Is(err, blog.ErrUnsupportedMediaType):
		jsonutil.UnsupportedMediaType(w, "Images must be png, jpg, jpeg, gif or webp.")
	default:
		e.Log(r, "request failed", err)
		jsonutil.InternalError(w, "Something went wrong. Please try again.")
	}
}

// Handler serves the router's fallback responses.
type Handler struct{}

// NewHandler creates a new error Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// NotFound is the router's 404 handler.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	jsonutil.NotFound(w, "Not found.")
}

// MethodNotAllowed is the router's 405 handler.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	jsonutil.Error(w, http.StatusMethodNotAllowed, "Method not allowed.")
}

// Forbidden is the CSRF failure handler.
func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	jsonutil.Forbidden(w, "Forbidden.")
}
