package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// unknownErrorCode is used when the error body is not JSON.
const unknownErrorCode = "Unknown Error"

// Error is a normalized non-success gateway response.
type Error struct {
	Status     int    // HTTP status code
	StatusText string // HTTP status text
	Message    string // Message from a JSON body, or the raw body text
	Code       string // Error field of a JSON body
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.StatusText
	}
	return fmt.Sprintf("gateway error (%d): %s", e.Status, msg)
}

// Unwrap exposes the error as a GATEWAY_ERROR so errors.Is and the CLI
// formatter treat it like the rest of the taxonomy.
func (e *Error) Unwrap() error {
	details := map[string]string{"status": strconv.Itoa(e.Status)}
	if e.Code != "" {
		details["code"] = e.Code
	}
	return &siwferr.SiwfError{
		Code:     siwferr.ErrGateway.Code,
		Message:  e.Error(),
		Details:  details,
		ExitCode: siwferr.ErrGateway.ExitCode,
	}
}

// Retryable reports whether the status is worth another attempt.
func (e *Error) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// errorBody is the structured error shape returned by the gateway.
type errorBody struct {
	Message    string `json:"message"`
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
}

// parseError builds an Error from a non-success response body.
func parseError(status int, body []byte) *Error {
	e := &Error{
		Status:     status,
		StatusText: http.StatusText(status),
	}

	// Any JSON body is taken as structured; a missing message falls back
	// to the status text in Error.
	if json.Valid(body) {
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		e.Message = eb.Message
		e.Code = eb.Error
		return e
	}

	e.Message = strings.TrimSpace(string(body))
	e.Code = unknownErrorCode
	return e
}
