package server

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed request into one of the fixed fallback
// responses in the error table.
type ErrorKind int

const (
	ErrBadRequest ErrorKind = iota
	ErrNotFound
	ErrInternal
)

// Status returns the HTTP status line fragment for the kind, e.g.
// "404 Not Found".
func (k ErrorKind) Status() string {
	switch k {
	case ErrBadRequest:
		return "400 Bad Request"
	case ErrNotFound:
		return "404 Not Found"
	default:
		return "500 Internal Server Error"
	}
}

// Error makes ErrorKind usable as the error result of a [RouteFunc].
func (k ErrorKind) Error() string { return k.Status() }

// classify maps a RouteFunc error onto the error table, defaulting to
// ErrInternal for errors that do not wrap an ErrorKind.
func classify(err error) ErrorKind {
	var kind ErrorKind
	if errors.As(err, &kind) {
		return kind
	}
	return ErrInternal
}

// FormatResponse renders a minimal HTTP/1.1 response: status line,
// Content-Length header, blank line, body.
func FormatResponse(status, body string) string {
	return fmt.Sprintf("HTTP/1.1 %s\r\nContent-Length: %d\r\n\r\n%s", status, len(body), body)
}

const statusOK = "200 OK"
