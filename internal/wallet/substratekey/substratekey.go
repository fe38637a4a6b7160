// Package substratekey is a local Substrate-style wallet. Keys are ed25519
// and addresses are SS58 encoded. Raw messages are wrapped in <Bytes> tags
// before signing, matching the signRaw behavior of the Polkadot.js extension.
package substratekey

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mrz1836/siwf/internal/account"
	"github.com/mrz1836/siwf/internal/keyfile"
	"github.com/mrz1836/siwf/internal/wallet"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// Compile-time interface check.
var _ wallet.Wallet = (*Wallet)(nil)

const (
	bytesPrefix = "<Bytes>"
	bytesSuffix = "</Bytes>"
)

// Wallet signs with a single ed25519 key.
type Wallet struct {
	key      ed25519.PrivateKey
	address  string
	approver wallet.Approver
}

// FromSeed builds a wallet from a 32-byte seed. The address uses the given
// SS58 network prefix.
func FromSeed(seed []byte, prefix uint16, approver wallet.Approver) (*Wallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, siwferr.WithMessage(siwferr.ErrInvalidInput,
			fmt.Sprintf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed)))
	}

	key := ed25519.NewKeyFromSeed(seed)
	pub, _ := key.Public().(ed25519.PublicKey)
	address, err := account.EncodeSS58(pub, prefix)
	if err != nil {
		return nil, err
	}

	return &Wallet{key: key, address: address, approver: approver}, nil
}

// Generate creates a wallet with a fresh random seed.
func Generate(prefix uint16, approver wallet.Approver) (*Wallet, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("reading entropy: %w", err)
	}
	return FromSeed(seed, prefix, approver)
}

// Load reads the seed from a key file.
func Load(path string, passphrase keyfile.PassphraseFunc, prefix uint16, approver wallet.Approver) (*Wallet, error) {
	seed, err := keyfile.Read(path, passphrase)
	if err != nil {
		return nil, err
	}
	defer func() {
		for i := range seed {
			seed[i] = 0
		}
	}()
	return FromSeed(seed, prefix, approver)
}

// Seed returns the 32-byte private seed.
func (w *Wallet) Seed() []byte {
	return w.key.Seed()
}

// PublicKey returns the raw public key.
func (w *Wallet) PublicKey() []byte {
	pub, _ := w.key.Public().(ed25519.PublicKey)
	return pub
}

// Address returns the SS58 address.
func (w *Wallet) Address() string {
	return w.address
}

// Kind implements wallet.Wallet.
func (w *Wallet) Kind() account.Kind {
	return account.KindSubstrate
}

// Accounts implements wallet.Wallet.
func (w *Wallet) Accounts(_ context.Context) ([]string, error) {
	return []string{w.address}, nil
}

// SignMessage signs message as raw bytes and returns a 0x hex signature.
// Substrate wallets have no structured-data signing, so typed data arrives
// here as its undecoded JSON text.
func (w *Wallet) SignMessage(ctx context.Context, address, message string) (string, error) {
	if address != "" && address != w.address {
		return "", siwferr.WithDetails(
			siwferr.WithMessage(siwferr.ErrInvalidAccountID, "account is not managed by this wallet"),
			map[string]string{"address": address},
		)
	}
	if err := wallet.RequireApproval(ctx, w.approver, wallet.Prompt{
		Kind:    account.KindSubstrate,
		Address: w.address,
		Method:  "signRaw",
		Payload: message,
	}); err != nil {
		return "", err
	}

	sig := ed25519.Sign(w.key, WrapBytes(messageBytes(message)))
	return hexutil.Encode(sig), nil
}

// WrapBytes adds the <Bytes> envelope unless data already carries it.
func WrapBytes(data []byte) []byte {
	if bytes.HasPrefix(data, []byte(bytesPrefix)) && bytes.HasSuffix(data, []byte(bytesSuffix)) {
		return data
	}
	out := make([]byte, 0, len(bytesPrefix)+len(data)+len(bytesSuffix))
	out = append(out, bytesPrefix...)
	out = append(out, data...)
	return append(out, bytesSuffix...)
}

// Verify checks a signature produced by SignMessage against an SS58 address.
func Verify(address, message, signature string) (bool, error) {
	pub, _, err := account.DecodeSS58(address)
	if err != nil {
		return false, err
	}
	if len(pub) != ed25519.PublicKeySize {
		return false, account.ErrInvalidPublicKey
	}

	sig, err := hexutil.Decode(signature)
	if err != nil {
		return false, fmt.Errorf("decoding signature: %w", err)
	}
	return ed25519.Verify(pub, WrapBytes(messageBytes(message)), sig), nil
}

func messageBytes(message string) []byte {
	if strings.HasPrefix(message, "0x") {
		if b, err := hexutil.Decode(message); err == nil {
			return b
		}
	}
	return []byte(message)
}
