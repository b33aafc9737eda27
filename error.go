package main

import "net/http"

const (
	// ErrMessageInternalError is the generic message shown for failures the
	// visitor can't do anything about, keeping internal detail out of
	// responses.
	ErrMessageInternalError = "An internal error has occurred."

	ErrMessageNotFound    = "The page you are looking for does not exist."
	ErrMessageNotLoggedIn = "Not logged in"
)

// ServerError is an error that a handler wants rendered as a specific HTTP
// error page rather than the generic 500. Title and Message become the
// heading and body of the rendered page.
type ServerError struct {
	Message    string
	StatusCode int
	Title      string
}

func NewServerError(statusCode int, title, message string) *ServerError {
	return &ServerError{StatusCode: statusCode, Title: title, Message: message}
}

// NewNotFoundError is the error behind every not-found page. Invalid IDs,
// missing rows and unauthenticated requests for privileged pages all funnel
// through it so that none of them is distinguishable from the others.
func NewNotFoundError() *ServerError {
	return NewServerError(http.StatusNotFound, "Not found", ErrMessageNotFound)
}

// NewUnauthorizedError is the explicit rejection used for privileged POSTs,
// where hiding the route's existence no longer matters because the form that
// targets it is itself behind a login.
func NewUnauthorizedError() *ServerError {
	return NewServerError(http.StatusUnauthorized, "Unauthorized", ErrMessageNotLoggedIn)
}

func (e *ServerError) Error() string {
	return e.Message
}
