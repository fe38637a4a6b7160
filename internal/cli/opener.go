package cli

import (
	"context"
	"fmt"

	"github.com/mrz1836/siwf/internal/account"
	"github.com/mrz1836/siwf/internal/keyfile"
	"github.com/mrz1836/siwf/internal/siwf"
	"github.com/mrz1836/siwf/internal/wallet"
	"github.com/mrz1836/siwf/internal/wallet/ethkey"
	"github.com/mrz1836/siwf/internal/wallet/substratekey"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// loadWallet opens the key file of the given kind.
func loadWallet(kind account.Kind, keyFile string, prefix uint16, approver wallet.Approver) (wallet.Wallet, error) {
	if keyFile == "" {
		return nil, siwferr.WithSuggestion(siwferr.ErrWalletUnavailable, "connect with --key-file")
	}

	var pass keyfile.PassphraseFunc = keyPassphrase
	switch kind {
	case account.KindEthereum:
		return ethkey.Load(keyFile, pass, approver)
	case account.KindSubstrate:
		return substratekey.Load(keyFile, pass, prefix, approver)
	default:
		return nil, siwferr.WithDetails(siwferr.ErrUnknownWalletKind, map[string]string{"kind": kind.String()})
	}
}

// opener reopens the connected wallet from its key file.
func (c *CommandContext) opener(approver wallet.Approver) siwf.Opener {
	return func(_ context.Context, h wallet.Handle) (wallet.Wallet, error) {
		return loadWallet(h.Kind, h.KeyFile, c.Cfg.Wallet.SS58Prefix, approver)
	}
}

// firstAccount discovers the address a wallet exposes.
func firstAccount(ctx context.Context, w wallet.Wallet) (string, error) {
	accounts, err := w.Accounts(ctx)
	if err != nil {
		return "", fmt.Errorf("discovering accounts: %w", err)
	}
	if len(accounts) == 0 {
		return "", siwferr.ErrWalletUnavailable
	}
	return accounts[0], nil
}
