package api

// # Error Codes Reference
//
// User-facing messages carry a code that support staff can look up here.
//
// # Authentication (AUTH001-AUTH099)
//
//	AUTH001 - Session expired: La sesión ha expirado
//	          Action: Inicie sesión nuevamente
//	          Match: status 401, "no hay token", "no hay refresh token"
//
//	AUTH002 - Forbidden: No tiene permisos para realizar esta acción
//	          Action: Solicite el permiso a un administrador
//	          Match: status 403
//
//	AUTH003 - Login failed: backend message
//	          Action: Verifique su correo y contraseña
//	          Match: "login failed"
//
// # Backend (API001-API099)
//
//	API001 - Bad request: backend message
//	         Action: Revise los datos enviados
//	         Match: status 400, 409, 422
//
//	API002 - Not found: El registro no existe
//	         Action: Actualice la lista e intente de nuevo
//	         Match: status 404
//
//	API003 - Server error: El servidor no pudo completar la solicitud
//	         Action: Intente de nuevo en unos minutos
//	         Match: status >= 500
//
//	API004 - Rejected: backend message
//	         Action: Revise los datos enviados
//	         Match: error reported inside a successful response
//
// # Network (NET001-NET099)
//
//	NET001 - Unreachable: No fue posible conectar con el servidor
//	         Match: "connection refused", "no such host"
//
//	NET002 - Timeout: El servidor tardó demasiado en responder
//	         Match: "deadline exceeded", "timeout"
//
//	NET003 - Cancelled: La solicitud fue cancelada
//	         Match: "context canceled"
//
// # Tables (TBL001-TBL099)
//
//	TBL001 - View not found: La vista solicitada no existe
//	         Match: "view not found"
//
//	TBL002 - Unknown action: La acción no está disponible
//	         Match: "unknown table action"
//
//	TBL003 - Record not found: El registro ya no está en la lista
//	         Match: "record not found"
//
//	TBL004 - Confirmation expired: La confirmación ya no es válida
//	         Match: "unknown confirmation"
//
// # Rate limiting (RATE001)
//
//	RATE001 - Demasiadas solicitudes
//	          Match: "rate limit"
//
// Fallback: ERR000.

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are matched case-insensitively with strings.Contains.
// The first match wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "no hay refresh token",
		msg:     msgSessionExpired,
	},
	{
		pattern: "no hay token",
		msg:     msgSessionExpired,
	},
	{
		pattern: "login failed",
		msg: UserMessage{
			Message: "No fue posible iniciar sesión",
			Action:  "Verifique su correo y contraseña",
			Code:    "AUTH003",
		},
	},
	{
		pattern: "view not found",
		msg: UserMessage{
			Message: "La vista solicitada no existe",
			Action:  "Vuelva al menú principal",
			Code:    "TBL001",
		},
	},
	{
		pattern: "unknown table action",
		msg: UserMessage{
			Message: "La acción no está disponible",
			Action:  "Actualice la página e intente de nuevo",
			Code:    "TBL002",
		},
	},
	{
		pattern: "record not found",
		msg: UserMessage{
			Message: "El registro ya no está en la lista",
			Action:  "Actualice la lista e intente de nuevo",
			Code:    "TBL003",
		},
	},
	{
		pattern: "unknown confirmation",
		msg: UserMessage{
			Message: "La confirmación ya no es válida",
			Action:  "Repita la operación",
			Code:    "TBL004",
		},
	},
	{
		pattern: "connection refused",
		msg:     msgUnreachable,
	},
	{
		pattern: "no such host",
		msg:     msgUnreachable,
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "La solicitud fue cancelada",
			Action:  "Intente de nuevo",
			Code:    "NET003",
		},
	},
	{
		pattern: "deadline exceeded",
		msg:     msgTimeout,
	},
	{
		pattern: "timeout",
		msg:     msgTimeout,
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Demasiadas solicitudes",
			Action:  "Espere un momento antes de intentar de nuevo",
			Code:    "RATE001",
		},
	},
}

var (
	msgSessionExpired = UserMessage{
		Message: "La sesión ha expirado",
		Action:  "Inicie sesión nuevamente",
		Code:    "AUTH001",
	}
	msgUnreachable = UserMessage{
		Message: "No fue posible conectar con el servidor",
		Action:  "Intente de nuevo en unos minutos",
		Code:    "NET001",
	}
	msgTimeout = UserMessage{
		Message: "El servidor tardó demasiado en responder",
		Action:  "Intente de nuevo",
		Code:    "NET002",
	}
)

// defaultMessage is returned when nothing matches (ERR000). Support staff
// should check the logs for the technical error.
var defaultMessage = UserMessage{
	Message: "Ocurrió un error inesperado",
	Action:  "Intente de nuevo o contacte a soporte",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Backend errors map by status; everything else by pattern.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		if msg, ok := mapStatus(apiErr); ok {
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func mapStatus(e *Error) (UserMessage, bool) {
	switch {
	case e.Status == http.StatusUnauthorized:
		return msgSessionExpired, true
	case e.Status == http.StatusForbidden:
		return UserMessage{
			Message: "No tiene permisos para realizar esta acción",
			Action:  "Solicite el permiso a un administrador",
			Code:    "AUTH002",
		}, true
	case e.Status == http.StatusNotFound:
		return UserMessage{
			Message: "El registro no existe",
			Action:  "Actualice la lista e intente de nuevo",
			Code:    "API002",
		}, true
	case e.Status >= 500:
		return UserMessage{
			Message: "El servidor no pudo completar la solicitud",
			Action:  "Intente de nuevo en unos minutos",
			Code:    "API003",
		}, true
	case e.Status >= 400:
		return UserMessage{
			Message: backendMessage(e, "La solicitud no es válida"),
			Action:  "Revise los datos enviados",
			Code:    "API001",
		}, true
	case e.Status >= 200 && e.Status < 300:
		return UserMessage{
			Message: backendMessage(e, "El servidor rechazó la operación"),
			Action:  "Revise los datos enviados",
			Code:    "API004",
		}, true
	}
	return UserMessage{}, false
}

func backendMessage(e *Error, fallback string) string {
	if e.Message == "" || e.Message == http.StatusText(e.Status) {
		return fallback
	}
	return e.Message
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Código: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Código: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
