// Package ethkey is a local Ethereum-style wallet backed by a secp256k1 key.
// It offers the same signing surface as a browser extension: EIP-191
// personal messages and EIP-712 typed data.
package ethkey

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/mrz1836/siwf/internal/account"
	"github.com/mrz1836/siwf/internal/keyfile"
	"github.com/mrz1836/siwf/internal/wallet"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// Compile-time interface checks.
var (
	_ wallet.Wallet          = (*Wallet)(nil)
	_ wallet.TypedDataSigner = (*Wallet)(nil)
)

const (
	signatureLength = 65
	recoveryOffset  = 27
)

// Wallet signs with a single private key.
type Wallet struct {
	key      *ecdsa.PrivateKey
	address  common.Address
	approver wallet.Approver
}

// New wraps a private key. A nil approver signs without prompting.
func New(key *ecdsa.PrivateKey, approver wallet.Approver) *Wallet {
	return &Wallet{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		approver: approver,
	}
}

// FromHex parses a hex private key (with or without 0x).
func FromHex(s string, approver wallet.Approver) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, siwferr.WithCause(
			siwferr.WithMessage(siwferr.ErrInvalidInput, "invalid Ethereum private key"),
			err,
		)
	}
	return New(key, approver), nil
}

// Load reads the key from a key file.
func Load(path string, passphrase keyfile.PassphraseFunc, approver wallet.Approver) (*Wallet, error) {
	raw, err := keyfile.Read(path, passphrase)
	if err != nil {
		return nil, err
	}
	defer func() {
		for i := range raw {
			raw[i] = 0
		}
	}()
	return FromHex(hex.EncodeToString(raw), approver)
}

// Generate creates a wallet with a fresh random key.
func Generate(approver wallet.Approver) (*Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return New(key, approver), nil
}

// PrivateKeyBytes returns the raw 32-byte private key.
func (w *Wallet) PrivateKeyBytes() []byte {
	return crypto.FromECDSA(w.key)
}

// Address returns the checksummed address.
func (w *Wallet) Address() string {
	return w.address.Hex()
}

// Kind implements wallet.Wallet.
func (w *Wallet) Kind() account.Kind {
	return account.KindEthereum
}

// Accounts implements wallet.Wallet.
func (w *Wallet) Accounts(_ context.Context) ([]string, error) {
	return []string{w.address.Hex()}, nil
}

// SignMessage signs an EIP-191 personal message. A 0x-prefixed hex message
// is signed as the bytes it encodes, like personal_sign in browser wallets.
func (w *Wallet) SignMessage(ctx context.Context, address, message string) (string, error) {
	if err := w.checkAddress(address); err != nil {
		return "", err
	}
	if err := wallet.RequireApproval(ctx, w.approver, wallet.Prompt{
		Kind:    account.KindEthereum,
		Address: w.address.Hex(),
		Method:  "personal_sign",
		Payload: message,
	}); err != nil {
		return "", err
	}

	return w.sign(accounts.TextHash(messageBytes(message)))
}

// SignTypedData signs EIP-712 typed data.
func (w *Wallet) SignTypedData(ctx context.Context, address string, data apitypes.TypedData) (string, error) {
	if err := w.checkAddress(address); err != nil {
		return "", err
	}

	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return "", siwferr.WithCause(
			siwferr.WithMessage(siwferr.ErrInvalidSigningRequest, "typed data cannot be hashed"),
			err,
		)
	}

	payload, _ := json.Marshal(data)
	if err := wallet.RequireApproval(ctx, w.approver, wallet.Prompt{
		Kind:    account.KindEthereum,
		Address: w.address.Hex(),
		Method:  "eth_signTypedData_v4",
		Payload: string(payload),
	}); err != nil {
		return "", err
	}

	return w.sign(hash)
}

func (w *Wallet) sign(hash []byte) (string, error) {
	sig, err := crypto.Sign(hash, w.key)
	if err != nil {
		return "", fmt.Errorf("signing: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += recoveryOffset
	return hexutil.Encode(sig), nil
}

// checkAddress allows an empty address, meaning the wallet's own account.
func (w *Wallet) checkAddress(address string) error {
	if address == "" || strings.EqualFold(address, w.address.Hex()) {
		return nil
	}
	return siwferr.WithDetails(
		siwferr.WithMessage(siwferr.ErrInvalidAccountID, "account is not managed by this wallet"),
		map[string]string{"address": address},
	)
}

func messageBytes(message string) []byte {
	if strings.HasPrefix(message, "0x") {
		if b, err := hexutil.Decode(message); err == nil {
			return b
		}
	}
	return []byte(message)
}

// RecoverPersonal returns the signer address of a personal_sign signature.
func RecoverPersonal(message, signature string) (string, error) {
	return recoverAddress(accounts.TextHash(messageBytes(message)), signature)
}

// RecoverTypedData returns the signer address of an EIP-712 signature.
func RecoverTypedData(data apitypes.TypedData, signature string) (string, error) {
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return "", err
	}
	return recoverAddress(hash, signature)
}

func recoverAddress(hash []byte, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("decoding signature: %w", err)
	}
	if len(sig) != signatureLength {
		return "", fmt.Errorf("signature must be %d bytes, got %d", signatureLength, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= recoveryOffset {
		sig[crypto.RecoveryIDOffset] -= recoveryOffset
	}

	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return "", fmt.Errorf("recovering public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
