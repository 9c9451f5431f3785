// Package apperror carries an HTTP status alongside a user-facing message.
// Handlers fail fast by pushing one of these onto the gin error list; the
// error middleware is the single point that renders them.
package apperror

import "net/http"

type Error struct {
	Message    string
	StatusCode int
}

func (e *Error) Error() string { return e.Message }

func New(statusCode int, message string) *Error {
	return &Error{Message: message, StatusCode: statusCode}
}

func BadRequest(message string) *Error   { return New(http.StatusBadRequest, message) }
func Unauthorized(message string) *Error { return New(http.StatusUnauthorized, message) }
func Forbidden(message string) *Error    { return New(http.StatusForbidden, message) }
func NotFound(message string) *Error     { return New(http.StatusNotFound, message) }
func Conflict(message string) *Error     { return New(http.StatusConflict, message) }
func Internal(message string) *Error     { return New(http.StatusInternalServerError, message) }
