// Package siwf drives a Sign In With Frequency login. The protocol itself
// lives in an external SDK; this package supplies it with a wallet-backed
// signature callback and a gateway transport, then reshapes its answer.
package siwf

import (
	"context"
	"encoding/json"

	"github.com/mrz1836/siwf/internal/gateway"
	"github.com/mrz1836/siwf/internal/signer"
)

// SignatureFunc answers SDK signing requests.
type SignatureFunc = signer.Func

// FetchFunc performs SDK gateway calls.
type FetchFunc = gateway.FetchFunc

// Account is reported by the SDK when an MSA is allocated or found.
type Account struct {
	MsaID  string `json:"msaId"`
	Handle string `json:"handle,omitempty"`
}

// StartParams is everything the SDK entry point receives.
type StartParams struct {
	AccountID     string
	Sign          SignatureFunc
	Fetch         FetchFunc
	SignedRequest string
	Handle        string
	Email         string

	// OnMsaCreated may be called at most once while Start is running.
	OnMsaCreated func(Account)
}

// StartResponse is the raw SDK result.
type StartResponse struct {
	ControlKey        string            `json:"controlKey"`
	MsaID             string            `json:"msaId,omitempty"`
	Email             string            `json:"email,omitempty"`
	PhoneNumber       string            `json:"phoneNumber,omitempty"`
	GraphKey          json.RawMessage   `json:"graphKey,omitempty"`
	RawCredentials    []json.RawMessage `json:"rawCredentials,omitempty"`
	SignUpReferenceID string            `json:"signUpReferenceId,omitempty"`
	SignUpStatus      string            `json:"signUpStatus,omitempty"`
}

// SDK is the external SIWF entry point.
type SDK interface {
	Start(ctx context.Context, p StartParams) (*StartResponse, error)
}

// SDKFunc adapts a function to SDK.
type SDKFunc func(ctx context.Context, p StartParams) (*StartResponse, error)

// Start calls f.
func (f SDKFunc) Start(ctx context.Context, p StartParams) (*StartResponse, error) {
	return f(ctx, p)
}
