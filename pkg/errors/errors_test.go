package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

var (
	errInner = errors.New("inner")
	errPlain = errors.New("plain error")
)

func TestExitCodes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"success", nil, siwferr.ExitSuccess},
		{"general error", siwferr.ErrGeneral, siwferr.ExitGeneral},
		{"invalid account", siwferr.ErrInvalidAccountID, siwferr.ExitInput},
		{"unsupported method", siwferr.ErrUnsupportedMethod, siwferr.ExitInput},
		{"wallet rejected", siwferr.ErrWalletRejected, siwferr.ExitRejected},
		{"gateway", siwferr.ErrGateway, siwferr.ExitGeneral},
		{"not found", siwferr.ErrNotFound, siwferr.ExitNotFound},
		{"plain error", errPlain, siwferr.ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, siwferr.ExitCode(tt.err))
		})
	}
}

func TestWrapPreservesIdentity(t *testing.T) {
	t.Parallel()

	wrapped := siwferr.Wrap(siwferr.ErrWalletRejected, "personal_sign")
	require.ErrorIs(t, wrapped, siwferr.ErrWalletRejected)
	assert.Equal(t, siwferr.ExitRejected, siwferr.ExitCode(wrapped))
	assert.Contains(t, wrapped.Error(), "personal_sign: signing request rejected in wallet")

	assert.NoError(t, siwferr.Wrap(nil, "nothing"))
}

func TestWrapPlainError(t *testing.T) {
	t.Parallel()

	wrapped := siwferr.Wrap(errInner, "loading key")
	require.ErrorIs(t, wrapped, errInner)
	assert.Equal(t, "GENERAL_ERROR", siwferr.Code(wrapped))
	assert.Equal(t, "loading key: inner", wrapped.Error())
}

func TestWithDetailsSortedOutput(t *testing.T) {
	t.Parallel()

	err := siwferr.WithDetails(siwferr.ErrUnsupportedMethod, map[string]string{
		"wallet_kind": "polkadot",
		"method":      "eth_sign",
	})
	require.ErrorIs(t, err, siwferr.ErrUnsupportedMethod)
	assert.Equal(t, "unsupported signing method (method: eth_sign) (wallet_kind: polkadot)", err.Error())
}

func TestWithMessageKeepsCode(t *testing.T) {
	t.Parallel()

	err := siwferr.WithMessage(siwferr.ErrAccountValidation, "Account validation failed for metamask.")
	require.ErrorIs(t, err, siwferr.ErrAccountValidation)
	assert.Equal(t, "Account validation failed for metamask.", err.Error())
}

func TestVerbatimCauseNotDuplicated(t *testing.T) {
	t.Parallel()

	err := &siwferr.SiwfError{
		Code:    siwferr.ErrSDKProtocol.Code,
		Message: errInner.Error(),
		Cause:   errInner,
	}
	assert.Equal(t, "inner", err.Error())
	require.ErrorIs(t, err, errInner)
	require.ErrorIs(t, err, siwferr.ErrSDKProtocol)
}

func TestWithSuggestion(t *testing.T) {
	t.Parallel()

	err := siwferr.WithSuggestion(siwferr.ErrWalletNotConnected, "run: siwf wallet connect")
	var se *siwferr.SiwfError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "run: siwf wallet connect", se.Suggestion)

	plain := siwferr.WithSuggestion(errPlain, "retry")
	require.ErrorAs(t, plain, &se)
	assert.Equal(t, "GENERAL_ERROR", se.Code)
}

func TestWithCause(t *testing.T) {
	t.Parallel()

	err := siwferr.WithCause(siwferr.ErrDecryptionFailed, errInner)
	require.ErrorIs(t, err, errInner)
	require.ErrorIs(t, err, siwferr.ErrDecryptionFailed)
	assert.Equal(t, errPlain, siwferr.WithCause(errPlain, errInner))
}
