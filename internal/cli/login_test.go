package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/siwf/internal/account"
	"github.com/mrz1836/siwf/internal/output"
	"github.com/mrz1836/siwf/internal/signer"
	"github.com/mrz1836/siwf/internal/siwf"
	"github.com/mrz1836/siwf/internal/wallet"
	"github.com/mrz1836/siwf/internal/wallet/ethkey"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

var errNoBrowser = errors.New("no browser available")

type recordingNavigator struct {
	targets []string
	err     error
}

func (n *recordingNavigator) Navigate(_ context.Context, target string) error {
	n.targets = append(n.targets, target)
	return n.err
}

func withLoginFlags(t *testing.T, open, qr, requireWallet bool) {
	t.Helper()
	loginOpen, loginQR, loginRequireWallet = open, qr, requireWallet
	t.Cleanup(func() { loginOpen, loginQR, loginRequireWallet = true, false, false })
}

func TestLoginRedirect_NavigatesToHostedPage(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	nav := &recordingNavigator{}
	env.cc.Navigator = nav
	withLoginFlags(t, true, false, false)

	require.NoError(t, runLoginRedirect(env.command(), nil))

	require.Len(t, nav.targets, 1)
	u, err := url.Parse(nav.targets[0])
	require.NoError(t, err)
	assert.Equal(t, "testnet.frequencyaccess.com", u.Host)
	assert.Equal(t, "/siwa/start", u.Path)
	assert.Equal(t, siwf.DefaultSignedRequest, u.Query().Get("signedRequest"))

	text := env.out.String()
	assert.Contains(t, text, "Permissions: 6, 7, 8, 9, 10")
	assert.Contains(t, text, "Callback:    http://localhost:3000/login/callback")
	assert.True(t, strings.HasSuffix(text, nav.targets[0]+"\n"))
	assert.NotContains(t, text, "Signing in as")
}

func TestLoginRedirect_NoOpen(t *testing.T) {
	env := newTestEnv(t, output.FormatJSON)
	nav := &recordingNavigator{}
	env.cc.Navigator = nav
	withLoginFlags(t, false, false, false)

	require.NoError(t, runLoginRedirect(env.command(), nil))
	assert.Empty(t, nav.targets)

	var r siwf.Redirect
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &r))
	assert.Equal(t, []int{6, 7, 8, 9, 10}, r.Permissions)
	assert.Contains(t, r.URL, "signedRequest=")
}

func TestLoginRedirect_WithConnectedWallet(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	env.connect(t, account.KindEthereum, env.writeKey(t, "eth.key", mustHex(testEthKey)))
	env.cc.Navigator = &recordingNavigator{}
	withLoginFlags(t, true, false, true)

	require.NoError(t, runLoginRedirect(env.command(), nil))
	assert.Contains(t, env.out.String(), "Signing in as "+testEthAddress+" (MetaMask (Ethereum))")
}

func TestLoginRedirect_RequireWallet(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	nav := &recordingNavigator{}
	env.cc.Navigator = nav
	withLoginFlags(t, true, false, true)

	err := runLoginRedirect(env.command(), nil)
	require.ErrorIs(t, err, siwferr.ErrWalletNotConnected)
	assert.Empty(t, nav.targets)
}

func TestLoginRedirect_NavigatorFailureStillPrintsURL(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	env.cc.Navigator = &recordingNavigator{err: errNoBrowser}
	withLoginFlags(t, true, false, false)

	require.NoError(t, runLoginRedirect(env.command(), nil))
	assert.Contains(t, env.errOut.String(), "could not open browser")
	assert.Contains(t, env.out.String(), "signedRequest=")
}

func TestLoginRedirect_InvalidRedirectURL(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	env.cc.Cfg.SIWF.RedirectURL = "ftp://example.com"
	withLoginFlags(t, false, false, false)

	err := runLoginRedirect(env.command(), nil)
	require.ErrorIs(t, err, siwferr.ErrConfigInvalid)
}

func TestLoginRedirect_QRSkippedOffTerminal(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	withLoginFlags(t, false, true, false)

	require.NoError(t, runLoginRedirect(env.command(), nil))
	assert.NotContains(t, env.out.String(), "█")
}

func TestJoinInts(t *testing.T) {
	assert.Empty(t, joinInts(nil))
	assert.Equal(t, "6", joinInts([]int{6}))
	assert.Equal(t, "6, 7", joinInts([]int{6, 7}))
}

func TestOpenBrowser_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, openBrowser(ctx, "https://example.com"), context.Canceled)
}

func withLoginStartFlags(t *testing.T, handle, email string) {
	t.Helper()
	loginHandle, loginEmail = handle, email
	t.Cleanup(func() { loginHandle, loginEmail = "", "" })
}

// stubSDK signs once, calls the gateway once and reports an allocation.
func stubSDK(signature *string) siwf.SDKFunc {
	return func(ctx context.Context, p siwf.StartParams) (*siwf.StartResponse, error) {
		sig, err := p.Sign(ctx, signer.Request{
			Method: string(signer.MethodPersonalSign),
			Params: []any{"Sign in to Frequency", p.AccountID},
		})
		if err != nil {
			return nil, err
		}
		*signature = sig

		resp, err := p.Fetch(ctx, "POST", "/v1/accounts/siwf", map[string]string{"handle": p.Handle})
		if err != nil {
			return nil, err
		}
		_ = resp.Body.Close()

		p.OnMsaCreated(siwf.Account{MsaID: "42", Handle: p.Handle + ".19"})
		return &siwf.StartResponse{
			ControlKey:        p.AccountID,
			MsaID:             "42",
			RawCredentials:    []json.RawMessage{json.RawMessage(`{"id":"c1"}`)},
			SignUpReferenceID: "ref-1",
		}, nil
	}
}

func TestLoginStart_SignsAndCallsGateway(t *testing.T) {
	env := newTestEnv(t, output.FormatJSON)
	env.connect(t, account.KindEthereum, env.writeKey(t, "eth.key", mustHex(testEthKey)))
	env.cc.Approver = wallet.AutoApprove
	srv, seen := gatewayServer(t)
	env.cc.Cfg.Gateway.BaseURL = srv.URL
	var signature string
	env.cc.SDK = stubSDK(&signature)
	withLoginStartFlags(t, "coolUser123", "user@example.com")

	require.NoError(t, runLoginStart(env.command(), nil))

	var res siwf.LoginResult
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &res))
	assert.Equal(t, "42", res.MsaID)
	assert.Equal(t, testEthAddress, res.AccountID)
	assert.Equal(t, "coolUser123", res.Handle)
	assert.True(t, res.IsNewUser)
	assert.Len(t, res.Credentials, 1)

	recovered, err := ethkey.RecoverPersonal("Sign in to Frequency", signature)
	require.NoError(t, err)
	assert.Equal(t, testEthAddress, recovered)

	req := <-seen
	assert.Equal(t, "POST", req.method)
	assert.JSONEq(t, `{"handle":"coolUser123"}`, req.body)

	assert.Contains(t, env.errOut.String(), "MSA created or retrieved: 42 (coolUser123.19)")
	snap := env.cc.Metrics.Snapshot()
	assert.Equal(t, int64(1), snap.SignRequestsTotal)
	assert.Equal(t, int64(1), snap.GatewayCallsTotal)
}

func TestLoginStart_TextOutput(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	env.connect(t, account.KindEthereum, env.writeKey(t, "eth.key", mustHex(testEthKey)))
	env.cc.SDK = siwf.SDKFunc(func(context.Context, siwf.StartParams) (*siwf.StartResponse, error) {
		return &siwf.StartResponse{ControlKey: "key", MsaID: "7"}, nil
	})
	withLoginStartFlags(t, "", "")

	require.NoError(t, runLoginStart(env.command(), nil))

	text := env.out.String()
	assert.Contains(t, text, "Signed in as "+testEthAddress+" (returning user)")
	assert.Contains(t, text, "MSA ID:      7")
	assert.Contains(t, text, "Credentials: 0")
	assert.NotContains(t, text, "Handle:")
}

func TestLoginStart_NotConnected(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	called := false
	env.cc.SDK = siwf.SDKFunc(func(context.Context, siwf.StartParams) (*siwf.StartResponse, error) {
		called = true
		return nil, errors.New("unreachable")
	})
	withLoginStartFlags(t, "", "")

	err := runLoginStart(env.command(), nil)
	require.ErrorIs(t, err, siwferr.ErrWalletNotConnected)
	assert.False(t, called)
}

func TestLoginStart_RemapsSDKFailure(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	env.connect(t, account.KindEthereum, env.writeKey(t, "eth.key", mustHex(testEthKey)))
	env.cc.SDK = siwf.SDKFunc(func(context.Context, siwf.StartParams) (*siwf.StartResponse, error) {
		return nil, errors.New("bad accountId for provider")
	})
	withLoginStartFlags(t, "", "")

	err := runLoginStart(env.command(), nil)
	require.ErrorIs(t, err, siwferr.ErrAccountValidation)
	assert.Empty(t, env.out.String())
}

func TestLoginStart_NoSDKConfigured(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	withLoginStartFlags(t, "", "")

	err := runLoginStart(env.command(), nil)
	require.ErrorIs(t, err, siwferr.ErrConfigInvalid)
}

func TestCommandContextSDKFromConfig(t *testing.T) {
	env := newTestEnv(t, output.FormatText)
	env.cc.Cfg.SIWF.SDKCommand = "node  siwf-bridge.js --testnet"

	sdk, err := env.cc.sdk(env.errOut)
	require.NoError(t, err)
	p, ok := sdk.(*siwf.ProcessSDK)
	require.True(t, ok)
	assert.Equal(t, "node", p.Command)
	assert.Equal(t, []string{"siwf-bridge.js", "--testnet"}, p.Args)

	injected := siwf.SDKFunc(func(context.Context, siwf.StartParams) (*siwf.StartResponse, error) {
		return nil, nil
	})
	env.cc.SDK = injected
	sdk, err = env.cc.sdk(env.errOut)
	require.NoError(t, err)
	assert.NotNil(t, sdk)
	_, ok = sdk.(*siwf.ProcessSDK)
	assert.False(t, ok)
}
