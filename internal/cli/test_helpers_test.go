package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/siwf/internal/account"
	"github.com/mrz1836/siwf/internal/config"
	"github.com/mrz1836/siwf/internal/keyfile"
	"github.com/mrz1836/siwf/internal/metrics"
	"github.com/mrz1836/siwf/internal/output"
)

const (
	testEthKey     = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testEthAddress = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
)

// testEnv is an isolated home directory with a command context.
type testEnv struct {
	home   string
	cc     *CommandContext
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newTestEnv(t *testing.T, format output.Format) *testEnv {
	t.Helper()

	home := t.TempDir()
	c := config.Defaults()
	c.Home = home
	c.Logging.Level = "off"

	out := &bytes.Buffer{}
	cc := NewCommandContext(c, config.NullLogger(), output.NewFormatter(format, out))
	cc.Metrics = &metrics.Metrics{}

	return &testEnv{home: home, cc: cc, out: out, errOut: &bytes.Buffer{}}
}

// command returns a bare command wired to the env. Output is reset.
func (e *testEnv) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	SetCmdContext(cmd, e.cc)

	e.out.Reset()
	e.errOut.Reset()
	cmd.SetOut(e.out)
	cmd.SetErr(e.errOut)
	cmd.SetIn(strings.NewReader(""))
	return cmd
}

// writeKey stores an unsealed key file and returns its path.
func (e *testEnv) writeKey(t *testing.T, name string, secret []byte) string {
	t.Helper()
	path := filepath.Join(e.home, name)
	require.NoError(t, keyfile.Write(path, secret, ""))
	return path
}

// connect runs wallet connect for kind with keyFile.
func (e *testEnv) connect(t *testing.T, kind account.Kind, keyFile string) {
	t.Helper()
	walletKind, walletKeyFile = string(kind), keyFile
	t.Cleanup(func() { walletKind, walletKeyFile = "", "" })
	require.NoError(t, runWalletConnect(e.command(), nil))
}

// withMockPrompts answers every passphrase prompt with passphrase.
func withMockPrompts(t *testing.T, passphrase string) {
	t.Helper()
	origPW, origNew := promptPasswordFn, promptNewPasswordFn
	t.Cleanup(func() {
		promptPasswordFn, promptNewPasswordFn = origPW, origNew
	})
	promptPasswordFn = func(string) ([]byte, error) {
		return []byte(passphrase), nil
	}
	promptNewPasswordFn = func() ([]byte, error) {
		return []byte(passphrase), nil
	}
}

func mustHex(s string) []byte {
	return hexutil.MustDecode("0x" + s)
}
