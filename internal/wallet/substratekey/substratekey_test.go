package substratekey

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/siwf/internal/account"
	"github.com/mrz1836/siwf/internal/keyfile"
	"github.com/mrz1836/siwf/internal/wallet"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

func testSeed() []byte {
	return bytes.Repeat([]byte{0x07}, 32)
}

func TestFromSeedAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix uint16
	}{
		{"generic", account.SS58PrefixGeneric},
		{"frequency", account.SS58PrefixFrequency},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			w, err := FromSeed(testSeed(), tc.prefix, nil)
			require.NoError(t, err)
			assert.Equal(t, account.KindSubstrate, w.Kind())
			assert.True(t, account.Validate(w.Address(), account.KindSubstrate))

			pub, prefix, err := account.DecodeSS58(w.Address())
			require.NoError(t, err)
			assert.Equal(t, tc.prefix, prefix)
			assert.Equal(t, w.PublicKey(), pub)
		})
	}
}

func TestFromSeedInvalid(t *testing.T) {
	t.Parallel()
	_, err := FromSeed([]byte{1, 2, 3}, account.SS58PrefixGeneric, nil)
	require.ErrorIs(t, err, siwferr.ErrInvalidInput)
}

func TestSignAndVerify(t *testing.T) {
	t.Parallel()

	w, err := FromSeed(testSeed(), account.SS58PrefixFrequency, wallet.AutoApprove)
	require.NoError(t, err)

	messages := []string{
		"Sign in with Frequency",
		`{"types":{},"primaryType":"Login"}`,
		"0x48656c6c6f",
	}
	for _, msg := range messages {
		sig, err := w.SignMessage(context.Background(), w.Address(), msg)
		require.NoError(t, err)

		ok, err := Verify(w.Address(), msg, sig)
		require.NoError(t, err)
		assert.True(t, ok, msg)

		ok, err = Verify(w.Address(), msg+"x", sig)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestWrapBytes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte("<Bytes>hi</Bytes>"), WrapBytes([]byte("hi")))
	assert.Equal(t, []byte("<Bytes>hi</Bytes>"), WrapBytes([]byte("<Bytes>hi</Bytes>")))
}

func TestHexMessageSignsDecodedBytes(t *testing.T) {
	t.Parallel()

	w, err := FromSeed(testSeed(), account.SS58PrefixGeneric, nil)
	require.NoError(t, err)

	a, err := w.SignMessage(context.Background(), "", "Hello")
	require.NoError(t, err)
	b, err := w.SignMessage(context.Background(), "", "0x48656c6c6f")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSignWrongAccount(t *testing.T) {
	t.Parallel()

	w, err := FromSeed(testSeed(), account.SS58PrefixGeneric, nil)
	require.NoError(t, err)

	_, err = w.SignMessage(context.Background(), "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY", "hi")
	require.ErrorIs(t, err, siwferr.ErrInvalidAccountID)
}

func TestSignRejected(t *testing.T) {
	t.Parallel()

	deny := wallet.ApproverFunc(func(_ context.Context, p wallet.Prompt) (bool, error) {
		assert.Equal(t, "signRaw", p.Method)
		return false, nil
	})
	w, err := FromSeed(testSeed(), account.SS58PrefixGeneric, deny)
	require.NoError(t, err)

	_, err = w.SignMessage(context.Background(), w.Address(), "hi")
	require.ErrorIs(t, err, siwferr.ErrWalletRejected)
}

func TestLoadSealed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dot.key")
	require.NoError(t, keyfile.Write(path, testSeed(), "hunter2"))

	w, err := Load(path, func() (string, error) { return "hunter2", nil }, account.SS58PrefixGeneric, nil)
	require.NoError(t, err)

	want, err := FromSeed(testSeed(), account.SS58PrefixGeneric, nil)
	require.NoError(t, err)
	assert.Equal(t, want.Address(), w.Address())
	assert.Equal(t, testSeed(), w.Seed())
}

func TestGenerateUnique(t *testing.T) {
	t.Parallel()

	a, err := Generate(account.SS58PrefixGeneric, nil)
	require.NoError(t, err)
	b, err := Generate(account.SS58PrefixGeneric, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.Address(), b.Address())
}
