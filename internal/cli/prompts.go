package cli

import (
	"fmt"
	"os"

	"golang.org/x/term"

	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// minPassphraseLength is the shortest passphrase accepted for a new key file.
const minPassphraseLength = 8

// Prompt hooks, replaced in tests.
//
//nolint:gochecknoglobals // Swappable for tests
var (
	promptPasswordFn    = promptPassword
	promptNewPasswordFn = promptNewPassword
)

// promptPassword reads a line from the terminal without echo.
// The caller should zero the returned bytes.
func promptPassword(prompt string) ([]byte, error) {
	out(os.Stderr, "%s", prompt)

	password, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // G115: Fd() fits in int on supported platforms
	outln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	return password, nil
}

// promptNewPassword asks for a key file passphrase twice.
func promptNewPassword() ([]byte, error) {
	password, err := promptPasswordFn("Key file passphrase: ")
	if err != nil {
		return nil, err
	}

	if len(password) < minPassphraseLength {
		zeroBytes(password)
		return nil, siwferr.WithSuggestion(
			siwferr.ErrInvalidInput,
			fmt.Sprintf("passphrase must be at least %d characters", minPassphraseLength),
		)
	}

	confirm, err := promptPasswordFn("Confirm passphrase: ")
	if err != nil {
		zeroBytes(password)
		return nil, err
	}
	defer zeroBytes(confirm)

	if string(password) != string(confirm) {
		zeroBytes(password)
		return nil, siwferr.WithSuggestion(siwferr.ErrInvalidInput, "passphrases do not match")
	}
	return password, nil
}

// keyPassphrase unlocks a sealed key file.
func keyPassphrase() (string, error) {
	b, err := promptPasswordFn("Key file passphrase: ")
	if err != nil {
		return "", err
	}
	defer zeroBytes(b)
	return string(b), nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
