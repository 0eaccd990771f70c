package server

import (
	"bufio"
	"fmt"
	"strings"
)

// Method is an HTTP request method recognized by the route table.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

// ParseMethod maps a request-line token to a Method.
func ParseMethod(s string) (Method, bool) {
	switch m := Method(s); m {
	case MethodGet, MethodPost, MethodPut, MethodDelete:
		return m, true
	default:
		return "", false
	}
}

// Request is the parsed request line of one connection. Nothing beyond the
// method and URI is retained; full HTTP parsing is out of scope.
type Request struct {
	Method Method
	URI    string
}

const (
	// maxLineBytes bounds a single request or header line. Lines that do not
	// fit in the reader's buffer are rejected as bad requests.
	maxLineBytes = 4096

	// maxHeaderLines caps how many header lines are drained before the
	// request is considered complete. Protects the acceptor from a client
	// that streams headers forever.
	maxHeaderLines = 100
)

// ReadRequest parses the request line from r and drains the remaining header
// lines through the blank separator, discarding them. All parse failures
// wrap [ErrBadRequest] so the dispatcher can fall back to the error table.
func ReadRequest(r *bufio.Reader) (Request, error) {
	line, err := readLine(r)
	if err != nil {
		return Request{}, fmt.Errorf("read request line: %v: %w", err, ErrBadRequest)
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Request{}, fmt.Errorf("malformed request line %q: %w", line, ErrBadRequest)
	}
	m, ok := ParseMethod(fields[0])
	if !ok {
		return Request{}, fmt.Errorf("unsupported method %q: %w", fields[0], ErrBadRequest)
	}
	req := Request{Method: m, URI: fields[1]}

	for i := 0; i < maxHeaderLines; i++ {
		h, err := readLine(r)
		if err != nil || h == "" {
			break
		}
	}
	return req, nil
}

// readLine reads one \r\n-terminated line. A line longer than the reader's
// buffer is an error rather than a partial read.
func readLine(r *bufio.Reader) (string, error) {
	line, isPrefix, err := r.ReadLine()
	if err != nil {
		return "", err
	}
	if isPrefix {
		return "", fmt.Errorf("line exceeds %d bytes", r.Size())
	}
	return string(line), nil
}
