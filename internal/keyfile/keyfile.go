// Package keyfile reads and writes wallet secret keys, optionally sealed
// with an age passphrase.
package keyfile

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"

	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

const (
	keyFilePerms = 0o600

	// ageHeader starts every binary age file.
	ageHeader = "age-encryption.org/v1"
)

// PassphraseFunc supplies the passphrase for a sealed key file.
type PassphraseFunc func() (string, error)

// Seal encrypts plaintext with an age scrypt recipient.
func Seal(plaintext []byte, passphrase string) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	w, err := age.Encrypt(buf, recipient)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Open decrypts an age scrypt ciphertext.
func Open(ciphertext []byte, passphrase string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, err
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, siwferr.WithCause(siwferr.ErrDecryptionFailed, err)
	}
	return io.ReadAll(r)
}

// IsSealed reports whether data is an age file.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, []byte(ageHeader))
}

// Write stores a secret key as hex, sealed when passphrase is not empty.
func Write(path string, secret []byte, passphrase string) error {
	encoded := []byte(hex.EncodeToString(secret) + "\n")
	defer zero(encoded)

	data := encoded
	if passphrase != "" {
		sealed, err := Seal(encoded, passphrase)
		if err != nil {
			return fmt.Errorf("sealing key: %w", err)
		}
		data = sealed
	}

	// #nosec G304 -- key file path is chosen by the user
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, keyFilePerms)
	if err != nil {
		return fmt.Errorf("creating key file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing key file: %w", err)
	}
	return f.Close()
}

// Read loads a secret key. Sealed files ask passphrase for the passphrase.
// The caller should zero the returned bytes when done.
func Read(path string, passphrase PassphraseFunc) ([]byte, error) {
	// #nosec G304 -- key file path comes from the connection record
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, siwferr.WithCause(
			siwferr.WithDetails(siwferr.ErrNotFound, map[string]string{"key_file": path}),
			err,
		)
	}
	defer zero(data)

	if IsSealed(data) {
		if passphrase == nil {
			return nil, siwferr.WithSuggestion(siwferr.ErrDecryptionFailed, "key file is encrypted; a passphrase is required")
		}
		pass, err := passphrase()
		if err != nil {
			return nil, err
		}
		plain, err := Open(data, pass)
		if err != nil {
			return nil, err
		}
		defer zero(plain)
		return decodeHex(plain)
	}
	return decodeHex(data)
}

func decodeHex(data []byte) ([]byte, error) {
	s := strings.TrimPrefix(strings.TrimSpace(string(data)), "0x")
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, siwferr.WithCause(
			siwferr.WithMessage(siwferr.ErrInvalidInput, "key file does not contain a hex key"),
			err,
		)
	}
	return key, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
