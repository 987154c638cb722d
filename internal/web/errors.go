package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//   - Formatted appropriately based on request type (HTMX, JSON, or HTML)
//
// A rejected token sends the browser back to the login page instead.

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/secretaria/internal/api"
	"github.com/JonMunkholm/secretaria/internal/auth"
	"github.com/JonMunkholm/secretaria/internal/logging"
	mw "github.com/JonMunkholm/secretaria/internal/web/middleware"
	"github.com/JonMunkholm/secretaria/internal/web/templates"
)

// Errors raised by the web layer itself. Their text is matched by
// api.MapError.
var (
	errViewNotFound   = errors.New("view not found")
	errRecordNotFound = errors.New("record not found")
	errUnknownAction  = errors.New("unknown table action")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError handles error responses with user-friendly messages.
// It logs the technical error server-side and returns an appropriate response
// based on the request type (HTMX, JSON, or HTML).
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := api.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if api.IsUnauthorized(err) || errors.Is(err, auth.ErrNoToken) {
		s.clearCookie(w)
		mw.Redirect(w, r, mw.LoginURL(r.Header.Get("HX-Current-URL")))
		return
	}

	switch {
	case isHTMX(r):
		s.renderErrorPartial(w, r, userMsg, statusCode)
	case wantsJSON(r):
		respondErrorJSON(w, userMsg, statusCode)
	default:
		s.render(w, r, statusCode, templates.ErrorPage(s.page(r, "Error", "", nil), userMsg.Message, userMsg.Action, userMsg.Code))
	}
}

// statusFor picks the HTTP status for an error from the backend or the
// web layer.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errViewNotFound), errors.Is(err, errRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, errUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrLoginFailed):
		return http.StatusUnauthorized
	}
	if status := api.StatusOf(err); status >= 400 && status < 500 {
		return status
	}
	return http.StatusBadGateway
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg api.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// renderErrorPartial renders an HTMX-compatible error fragment. HTMX does not
// swap error responses by default, so the fragment is retargeted to the
// overlay.
func (s *Server) renderErrorPartial(w http.ResponseWriter, r *http.Request, msg api.UserMessage, statusCode int) {
	w.Header().Set("HX-Retarget", "#overlay")
	w.Header().Set("HX-Reswap", "innerHTML")
	s.render(w, r, statusCode, templates.ErrorAlert(msg.Message, msg.Action, msg.Code))
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
