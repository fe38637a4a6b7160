package siwf

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/siwf/internal/account"
	"github.com/mrz1836/siwf/internal/metrics"
	"github.com/mrz1836/siwf/internal/signer"
	"github.com/mrz1836/siwf/internal/wallet"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

var testAccount = "0x" + strings.Repeat("A", 40)

// fakeWallet signs everything with a fixed signature.
type fakeWallet struct {
	kind account.Kind

	mu       sync.Mutex
	messages []string
}

func (f *fakeWallet) Kind() account.Kind { return f.kind }

func (f *fakeWallet) Accounts(context.Context) ([]string, error) { return []string{testAccount}, nil }

func (f *fakeWallet) SignMessage(_ context.Context, _, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return "0xsigned", nil
}

type harness struct {
	state    *wallet.State
	wallet   *fakeWallet
	sdkCalls int
	params   StartParams
	metrics  *metrics.Metrics
	states   []State
	orch     *Orchestrator
}

func newHarness(t *testing.T, sdk SDKFunc) *harness {
	t.Helper()

	h := &harness{
		state:   wallet.NewState(),
		wallet:  &fakeWallet{kind: account.KindEthereum},
		metrics: &metrics.Metrics{},
	}
	var mu sync.Mutex
	h.orch = New(Config{
		SDK: SDKFunc(func(ctx context.Context, p StartParams) (*StartResponse, error) {
			h.sdkCalls++
			h.params = p
			return sdk(ctx, p)
		}),
		Wallets: h.state,
		Open: func(context.Context, wallet.Handle) (wallet.Wallet, error) {
			return h.wallet, nil
		},
		Fetch: func(context.Context, string, string, any) (*http.Response, error) {
			return nil, errors.New("no gateway in tests")
		},
		OnStateChange: func(_, next State) {
			mu.Lock()
			defer mu.Unlock()
			h.states = append(h.states, next)
		},
		Metrics: h.metrics,
	})
	t.Cleanup(h.orch.Close)
	return h
}

func newUserResponse() *StartResponse {
	return &StartResponse{
		ControlKey:        "f6cL4wq1HUNx11TcvdABNf9UNXXoyH47mVUwT59tzSFRW8yDH",
		MsaID:             "42",
		Email:             "user@example.com",
		RawCredentials:    []json.RawMessage{json.RawMessage(`{"id":"c1"}`), json.RawMessage(`{"id":"c2"}`)},
		SignUpReferenceID: "ref-1",
		SignUpStatus:      "waiting",
	}
}

func TestLoginNewUser(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(_ context.Context, p StartParams) (*StartResponse, error) {
		p.OnMsaCreated(Account{MsaID: "42", Handle: "coolUser123"})
		return newUserResponse(), nil
	})
	h.state.Connect(account.KindEthereum, testAccount, "")

	var observed []Account
	res, err := h.orch.Login(context.Background(), LoginOptions{Handle: "coolUser123", Email: "user@example.com"},
		func(a Account) { observed = append(observed, a) })
	require.NoError(t, err)

	assert.True(t, res.IsNewUser)
	assert.Len(t, res.Credentials, 2)
	assert.Equal(t, testAccount, res.AccountID)
	assert.Equal(t, "42", res.MsaID)
	assert.Equal(t, "coolUser123", res.Handle)

	assert.Equal(t, 1, h.sdkCalls)
	assert.Equal(t, testAccount, h.params.AccountID)
	assert.Equal(t, "coolUser123", h.params.Handle)
	assert.Equal(t, "user@example.com", h.params.Email)
	assert.Equal(t, DefaultSignedRequest, h.params.SignedRequest)
	assert.NotNil(t, h.params.Sign)
	assert.NotNil(t, h.params.Fetch)

	assert.Equal(t, []Account{{MsaID: "42", Handle: "coolUser123"}}, observed)
	assert.Equal(t, StateSucceeded, h.orch.State())
	assert.Equal(t, []State{StateValidating, StateInFlight, StateSucceeded}, h.states)

	stored, ok := h.orch.Result()
	require.True(t, ok)
	assert.Equal(t, res, stored)
	assert.Equal(t, int64(1), h.metrics.Snapshot().LoginsSucceeded)
}

func TestLoginReturningUser(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(context.Context, StartParams) (*StartResponse, error) {
		resp := newUserResponse()
		resp.SignUpReferenceID = ""
		resp.RawCredentials = nil
		return resp, nil
	})
	h.state.Connect(account.KindEthereum, testAccount, "")

	res, err := h.orch.Login(context.Background(), LoginOptions{Handle: "coolUser123"}, nil)
	require.NoError(t, err)
	assert.False(t, res.IsNewUser)
	assert.NotNil(t, res.Credentials)
	assert.Empty(t, res.Credentials)
}

func TestLoginWalletNotConnected(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(context.Context, StartParams) (*StartResponse, error) {
		return newUserResponse(), nil
	})

	_, err := h.orch.Login(context.Background(), LoginOptions{}, nil)
	require.ErrorIs(t, err, siwferr.ErrWalletNotConnected)
	assert.Contains(t, err.Error(), "connect your wallet")
	assert.Zero(t, h.sdkCalls)
	assert.Equal(t, StateFailed, h.orch.State())
	require.ErrorIs(t, h.orch.Err(), siwferr.ErrWalletNotConnected)
}

func TestLoginInvalidAccount(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(context.Context, StartParams) (*StartResponse, error) {
		return newUserResponse(), nil
	})
	h.state.Connect(account.KindEthereum, "0x1234", "")

	_, err := h.orch.Login(context.Background(), LoginOptions{}, nil)
	require.ErrorIs(t, err, siwferr.ErrInvalidAccountID)
	assert.Contains(t, err.Error(), "Invalid account ID format for metamask: 0x1234")
	assert.Zero(t, h.sdkCalls)
}

func TestLoginSDKErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sdkErr  error
		target  error
		message string
	}{
		{
			name:    "bad encoding",
			sdkErr:  errors.New("Invalid UTF-8 sequence at byte 3"),
			target:  siwferr.ErrInvalidSignedRequest,
			message: "Invalid signed request format. Please check the SIWF configuration.",
		},
		{
			name:    "account id",
			sdkErr:  errors.New("accountId does not match signature"),
			target:  siwferr.ErrAccountValidation,
			message: "Account validation failed for metamask. Please check your wallet address format.",
		},
		{
			name:    "verbatim",
			sdkErr:  errors.New("provider signature expired"),
			target:  siwferr.ErrSDKProtocol,
			message: "provider signature expired",
		},
		{
			name:    "wallet rejection keeps identity",
			sdkErr:  siwferr.ErrWalletRejected,
			target:  siwferr.ErrWalletRejected,
			message: siwferr.ErrWalletRejected.Error(),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, func(context.Context, StartParams) (*StartResponse, error) {
				return nil, tc.sdkErr
			})
			h.state.Connect(account.KindEthereum, testAccount, "")

			_, err := h.orch.Login(context.Background(), LoginOptions{}, nil)
			require.ErrorIs(t, err, tc.target)
			assert.Equal(t, tc.message, err.Error())
			assert.Equal(t, StateFailed, h.orch.State())
			assert.Equal(t, int64(1), h.metrics.Snapshot().LoginsFailed)
		})
	}
}

func TestLoginNilResponse(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(context.Context, StartParams) (*StartResponse, error) {
		return nil, nil //nolint:nilnil // simulates a misbehaving SDK
	})
	h.state.Connect(account.KindEthereum, testAccount, "")

	_, err := h.orch.Login(context.Background(), LoginOptions{}, nil)
	require.ErrorIs(t, err, siwferr.ErrSDKProtocol)
}

func TestObserverNeverAfterTerminal(t *testing.T) {
	t.Parallel()

	var late func(Account)
	h := newHarness(t, func(_ context.Context, p StartParams) (*StartResponse, error) {
		late = p.OnMsaCreated
		return newUserResponse(), nil
	})
	h.state.Connect(account.KindEthereum, testAccount, "")

	calls := 0
	_, err := h.orch.Login(context.Background(), LoginOptions{}, func(Account) { calls++ })
	require.NoError(t, err)

	late(Account{MsaID: "42"})
	assert.Zero(t, calls)
}

func TestLoginWaitsForRunningObserver(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	h := newHarness(t, func(_ context.Context, p StartParams) (*StartResponse, error) {
		go p.OnMsaCreated(Account{MsaID: "42"})
		<-entered
		return newUserResponse(), nil
	})
	h.state.Connect(account.KindEthereum, testAccount, "")

	var observed atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := h.orch.Login(context.Background(), LoginOptions{}, func(Account) {
			close(entered)
			<-release
			observed.Store(true)
		})
		assert.NoError(t, err)
		assert.True(t, observed.Load(), "observer must finish before Login returns")
	}()

	<-entered
	select {
	case <-done:
		t.Fatal("Login returned while the observer was running")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, StateInFlight, h.orch.State())

	close(release)
	<-done
	assert.Equal(t, StateSucceeded, h.orch.State())
}

func TestObserverAtMostOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(_ context.Context, p StartParams) (*StartResponse, error) {
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.OnMsaCreated(Account{MsaID: "42"})
			}()
		}
		wg.Wait()
		return newUserResponse(), nil
	})
	h.state.Connect(account.KindEthereum, testAccount, "")

	var mu sync.Mutex
	calls := 0
	_, err := h.orch.Login(context.Background(), LoginOptions{}, func(Account) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestLoginSignsThroughAdapter(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(ctx context.Context, p StartParams) (*StartResponse, error) {
		sig, err := p.Sign(ctx, signer.Request{
			Method: string(signer.MethodPersonalSign),
			Params: []any{"Sign in with Frequency", p.AccountID},
		})
		if err != nil {
			return nil, err
		}
		resp := newUserResponse()
		resp.ControlKey = sig
		return resp, nil
	})
	h.state.Connect(account.KindEthereum, testAccount, "")

	_, err := h.orch.Login(context.Background(), LoginOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sign in with Frequency"}, h.wallet.messages)
	assert.Equal(t, int64(1), h.metrics.Snapshot().PersonalSigns)
}

func TestLoginUnsupportedMethodFromSDK(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(ctx context.Context, p StartParams) (*StartResponse, error) {
		_, err := p.Sign(ctx, signer.Request{Method: "eth_sign", Params: []any{p.AccountID, "0x00"}})
		return nil, err
	})
	h.state.Connect(account.KindEthereum, testAccount, "")

	_, err := h.orch.Login(context.Background(), LoginOptions{}, nil)
	require.ErrorIs(t, err, siwferr.ErrUnsupportedMethod)
}

func TestLoginSupersededByWalletSwitch(t *testing.T) {
	t.Parallel()

	var h *harness
	h = newHarness(t, func(context.Context, StartParams) (*StartResponse, error) {
		h.state.Disconnect()
		return newUserResponse(), nil
	})
	h.state.Connect(account.KindEthereum, testAccount, "")

	_, err := h.orch.Login(context.Background(), LoginOptions{}, nil)
	require.ErrorIs(t, err, siwferr.ErrLoginSuperseded)
	assert.Equal(t, StateIdle, h.orch.State())
	_, ok := h.orch.Result()
	assert.False(t, ok)
	assert.Equal(t, int64(1), h.metrics.Snapshot().LoginsSuperseded)
}

func TestWalletChangeResetsFinishedLogin(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(context.Context, StartParams) (*StartResponse, error) {
		return newUserResponse(), nil
	})
	h.state.Connect(account.KindEthereum, testAccount, "")

	_, err := h.orch.Login(context.Background(), LoginOptions{}, nil)
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, h.orch.State())

	h.state.Connect(account.KindEthereum, "0x"+strings.Repeat("b", 40), "")
	assert.Equal(t, StateIdle, h.orch.State())
	_, ok := h.orch.Result()
	assert.False(t, ok)
}

func TestLoginInProgress(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	h := newHarness(t, func(context.Context, StartParams) (*StartResponse, error) {
		close(started)
		<-release
		return newUserResponse(), nil
	})
	h.state.Connect(account.KindEthereum, testAccount, "")

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.Login(context.Background(), LoginOptions{}, nil)
		done <- err
	}()

	<-started
	_, err := h.orch.Login(context.Background(), LoginOptions{}, nil)
	require.ErrorIs(t, err, siwferr.ErrLoginInProgress)
	assert.Equal(t, StateInFlight, h.orch.State())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateSucceeded, h.orch.State())
}

func TestLoginAfterFailureStartsFresh(t *testing.T) {
	t.Parallel()

	fail := true
	h := newHarness(t, func(context.Context, StartParams) (*StartResponse, error) {
		if fail {
			return nil, errors.New("temporary")
		}
		return newUserResponse(), nil
	})
	h.state.Connect(account.KindEthereum, testAccount, "")

	_, err := h.orch.Login(context.Background(), LoginOptions{}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, h.sdkCalls)

	fail = false
	_, err = h.orch.Login(context.Background(), LoginOptions{}, nil)
	require.NoError(t, err)
	require.NoError(t, h.orch.Err())
	assert.Equal(t, 2, h.sdkCalls)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "in_flight", StateInFlight.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateValidating.Terminal())
}

func TestMaskEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", MaskEmail(""))
	assert.Equal(t, "***@***.***", MaskEmail("user@example.com"))
}
