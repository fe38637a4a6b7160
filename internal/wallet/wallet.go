// Package wallet models the connected browser-style wallet: the signing
// capability surface, the approval prompt, and the connection state record.
package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/mrz1836/siwf/internal/account"
)

// Wallet is the capability surface shared by both wallet kinds.
type Wallet interface {
	// Kind returns the wallet ecosystem.
	Kind() account.Kind

	// Accounts discovers the addresses the wallet exposes.
	Accounts(ctx context.Context) ([]string, error)

	// SignMessage signs a plain message for address.
	SignMessage(ctx context.Context, address, message string) (string, error)
}

// TypedDataSigner is implemented by wallets with native structured-data
// signing. Only Ethereum-style wallets provide it.
type TypedDataSigner interface {
	SignTypedData(ctx context.Context, address string, data apitypes.TypedData) (string, error)
}

// Prompt describes a signing request shown to the user for approval.
type Prompt struct {
	Kind    account.Kind
	Address string
	Method  string
	Payload string
}

// Approver decides whether a signing prompt is accepted. It stands in for
// the browser extension popup.
type Approver interface {
	Approve(ctx context.Context, p Prompt) (bool, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, p Prompt) (bool, error)

// Approve calls f.
func (f ApproverFunc) Approve(ctx context.Context, p Prompt) (bool, error) {
	return f(ctx, p)
}

// AutoApprove accepts every prompt.
//
//nolint:gochecknoglobals // Stateless approver
var AutoApprove Approver = ApproverFunc(func(context.Context, Prompt) (bool, error) {
	return true, nil
})
