// Package errors provides structured error handling for siwf.
// It defines the error taxonomy of the login bridge, exit codes, and helpers
// for adding context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the CLI.
const (
	ExitSuccess  = 0 // Successful execution
	ExitGeneral  = 1 // General/unknown error, gateway and SDK failures
	ExitInput    = 2 // Invalid input or address
	ExitRejected = 3 // Wallet prompt declined
	ExitNotFound = 4 // Resource not found
)

// SiwfError is the structured error type for siwf.
type SiwfError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *SiwfError) Error() string {
	msg := e.Message

	// Details are sorted for deterministic output
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	// A verbatim passthrough carries the cause text as its message already
	if e.Cause != nil && e.Cause.Error() != msg {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *SiwfError) Unwrap() error {
	return e.Cause
}

// Is matches any SiwfError carrying the same code.
func (e *SiwfError) Is(target error) bool {
	var t *SiwfError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Generic sentinels.
var (
	ErrGeneral = &SiwfError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &SiwfError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrNotFound = &SiwfError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	ErrDecryptionFailed = &SiwfError{
		Code:     "DECRYPTION_FAILED",
		Message:  "decryption failed - wrong password or corrupted key file",
		ExitCode: ExitRejected,
	}

	ErrConfigInvalid = &SiwfError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}

	ErrUnknownConfigKey = &SiwfError{
		Code:     "UNKNOWN_CONFIG_KEY",
		Message:  "unknown config key",
		ExitCode: ExitInput,
	}
)

// Login bridge taxonomy.
var (
	// ErrInvalidAccountID is the validation error raised before any signing
	// or network attempt when an address does not match its wallet kind.
	ErrInvalidAccountID = &SiwfError{
		Code:     "INVALID_ACCOUNT_ID",
		Message:  "invalid account ID format",
		ExitCode: ExitInput,
	}

	ErrUnknownWalletKind = &SiwfError{
		Code:     "UNKNOWN_WALLET_KIND",
		Message:  "unknown wallet kind",
		ExitCode: ExitInput,
	}

	ErrUnsupportedMethod = &SiwfError{
		Code:     "UNSUPPORTED_SIGNING_METHOD",
		Message:  "unsupported signing method",
		ExitCode: ExitInput,
	}

	ErrInvalidSigningRequest = &SiwfError{
		Code:     "INVALID_SIGNING_REQUEST",
		Message:  "malformed signing request",
		ExitCode: ExitInput,
	}

	ErrWalletRejected = &SiwfError{
		Code:     "WALLET_REJECTED",
		Message:  "signing request rejected in wallet",
		ExitCode: ExitRejected,
	}

	ErrWalletNotConnected = &SiwfError{
		Code:     "WALLET_NOT_CONNECTED",
		Message:  "wallet not connected - connect your wallet first",
		ExitCode: ExitInput,
	}

	ErrWalletUnavailable = &SiwfError{
		Code:     "WALLET_UNAVAILABLE",
		Message:  "wallet has no accounts available",
		ExitCode: ExitNotFound,
	}

	ErrGateway = &SiwfError{
		Code:     "GATEWAY_ERROR",
		Message:  "gateway request failed",
		ExitCode: ExitGeneral,
	}

	ErrSDKProtocol = &SiwfError{
		Code:     "SDK_PROTOCOL_ERROR",
		Message:  "SIWF SDK failed",
		ExitCode: ExitGeneral,
	}

	ErrInvalidSignedRequest = &SiwfError{
		Code:     "INVALID_SIGNED_REQUEST",
		Message:  "Invalid signed request format. Please check the SIWF configuration.",
		ExitCode: ExitInput,
	}

	ErrAccountValidation = &SiwfError{
		Code:     "ACCOUNT_VALIDATION_FAILED",
		Message:  "account validation failed",
		ExitCode: ExitInput,
	}

	ErrLoginInProgress = &SiwfError{
		Code:     "LOGIN_IN_PROGRESS",
		Message:  "a login attempt is already in flight",
		ExitCode: ExitGeneral,
	}

	ErrLoginSuperseded = &SiwfError{
		Code:     "LOGIN_SUPERSEDED",
		Message:  "wallet changed while login was in flight; result discarded",
		ExitCode: ExitGeneral,
	}
)

// New creates a new SiwfError with the given code and message.
func New(code, message string) *SiwfError {
	return &SiwfError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var se *SiwfError
	if errors.As(err, &se) {
		return &SiwfError{
			Code:       se.Code,
			Message:    fmt.Sprintf("%s: %s", msg, se.Message),
			Details:    se.Details,
			Suggestion: se.Suggestion,
			Cause:      err,
			ExitCode:   se.ExitCode,
		}
	}

	return &SiwfError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithMessage returns a copy of err with its message replaced. The code and
// exit code are kept so errors.Is still matches the sentinel.
func WithMessage(err error, message string) error {
	if err == nil {
		return nil
	}

	var se *SiwfError
	if errors.As(err, &se) {
		return &SiwfError{
			Code:       se.Code,
			Message:    message,
			Details:    se.Details,
			Suggestion: se.Suggestion,
			Cause:      se.Cause,
			ExitCode:   se.ExitCode,
		}
	}

	return &SiwfError{
		Code:     "GENERAL_ERROR",
		Message:  message,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause attaches an underlying cause to a sentinel copy.
func WithCause(err, cause error) error {
	if err == nil {
		return nil
	}

	var se *SiwfError
	if errors.As(err, &se) {
		return &SiwfError{
			Code:       se.Code,
			Message:    se.Message,
			Details:    se.Details,
			Suggestion: se.Suggestion,
			Cause:      cause,
			ExitCode:   se.ExitCode,
		}
	}
	return err
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var se *SiwfError
	if errors.As(err, &se) {
		return &SiwfError{
			Code:       se.Code,
			Message:    se.Message,
			Details:    details,
			Suggestion: se.Suggestion,
			Cause:      se.Cause,
			ExitCode:   se.ExitCode,
		}
	}

	return &SiwfError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var se *SiwfError
	if errors.As(err, &se) {
		return &SiwfError{
			Code:       se.Code,
			Message:    se.Message,
			Details:    se.Details,
			Suggestion: suggestion,
			Cause:      se.Cause,
			ExitCode:   se.ExitCode,
		}
	}

	return &SiwfError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var se *SiwfError
	if errors.As(err, &se) {
		return se.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var se *SiwfError
	if errors.As(err, &se) {
		return se.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
