// Package netx holds small HTTP helpers shared by the outbound clients.
package netx

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of a failed response is kept in StatusError.
const maxErrorBody = 512

// StatusError is a response with an unexpected status code.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// CheckResponse returns nil for a 2xx response. Otherwise it drains and
// closes the body and returns a *StatusError.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_, _ = io.Copy(io.Discard, resp.Body)

	se := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	if resp.Request != nil {
		se.Method = resp.Request.Method
		se.URL = resp.Request.URL.String()
	}
	return se
}
