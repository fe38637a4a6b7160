package siwf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mrz1836/siwf/internal/account"
	"github.com/mrz1836/siwf/internal/metrics"
	"github.com/mrz1836/siwf/internal/signer"
	"github.com/mrz1836/siwf/internal/wallet"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// State is the orchestrator lifecycle state.
type State int

// Orchestrator states.
const (
	StateIdle State = iota
	StateValidating
	StateInFlight
	StateSucceeded
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateInFlight:
		return "in_flight"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends an attempt.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Substrings the SDK uses for failures that get friendlier wording.
const (
	sdkInvalidEncoding = "Invalid UTF-8 sequence"
	sdkAccountID       = "accountId"
)

// Opener turns the connection record into a signing-capable wallet.
type Opener func(ctx context.Context, h wallet.Handle) (wallet.Wallet, error)

// Logger is the interface for login logging.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

// Config wires an Orchestrator.
type Config struct {
	SDK           SDK
	Wallets       *wallet.State
	Open          Opener
	Fetch         FetchFunc
	SignedRequest string

	// OnStateChange is called outside the lock after every transition.
	OnStateChange func(prev, next State)

	Logger  Logger
	Metrics *metrics.Metrics
}

// Orchestrator runs login attempts against the connected wallet.
type Orchestrator struct {
	cfg         Config
	logger      Logger
	metrics     *metrics.Metrics
	unsubscribe func()

	mu      sync.Mutex
	state   State
	result  *LoginResult
	err     error
	attempt *attempt
}

// attempt guards the allocation observer of one login. observeMu is held
// for the whole observer call, so marking the attempt terminal waits for a
// running observer and no observer starts afterwards.
type attempt struct {
	observeMu sync.Mutex
	fired     bool
	terminal  bool

	mu         sync.Mutex
	superseded bool
}

// end marks the attempt terminal once no observer is running.
func (a *attempt) end() {
	a.observeMu.Lock()
	a.terminal = true
	a.observeMu.Unlock()
}

// New creates an orchestrator and subscribes it to wallet changes.
// Call Close to unsubscribe.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if o.logger == nil {
		o.logger = nopLogger{}
	}
	if o.metrics == nil {
		o.metrics = metrics.Global
	}
	if o.cfg.SignedRequest == "" {
		o.cfg.SignedRequest = DefaultSignedRequest
	}
	if cfg.Wallets != nil {
		o.unsubscribe = cfg.Wallets.Subscribe(o.onWalletChange)
	}
	return o
}

// Close detaches the orchestrator from wallet changes.
func (o *Orchestrator) Close() {
	if o.unsubscribe != nil {
		o.unsubscribe()
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Result returns the last successful result, if the state is Succeeded.
func (o *Orchestrator) Result() (LoginResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.result == nil {
		return LoginResult{}, false
	}
	return o.result.clone(), true
}

// Err returns the failure of the last attempt, if the state is Failed.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Login runs one attempt. observer, if not nil, is told about MSA
// allocation at most once and never after Login has returned.
func (o *Orchestrator) Login(ctx context.Context, opts LoginOptions, observer func(Account)) (LoginResult, error) {
	a, err := o.begin()
	if err != nil {
		return LoginResult{}, err
	}

	var h wallet.Handle
	if o.cfg.Wallets != nil {
		h = o.cfg.Wallets.Current()
	}
	if !h.Connected {
		return o.fail(a, siwferr.WithSuggestion(siwferr.ErrWalletNotConnected, "run: siwf wallet connect"))
	}

	o.logger.Debug("login started: account=%s kind=%s handle=%s email=%s",
		h.Address, h.Kind, opts.Handle, MaskEmail(opts.Email))

	if err := account.ValidateAddress(h.Address, h.Kind); err != nil {
		return o.fail(a, err)
	}

	if o.cfg.Open == nil || o.cfg.SDK == nil {
		return o.fail(a, siwferr.WithMessage(siwferr.ErrGeneral, "login is not configured with a wallet opener and SDK"))
	}
	w, err := o.cfg.Open(ctx, h)
	if err != nil {
		return o.fail(a, err)
	}

	adapter := signer.New(w, h.Address, signer.WithLogger(o.logger), signer.WithMetrics(o.metrics))

	o.transition(StateInFlight)
	o.metrics.RecordLoginStart()

	resp, err := o.cfg.SDK.Start(ctx, StartParams{
		AccountID:     h.Address,
		Sign:          adapter.Func(),
		Fetch:         o.cfg.Fetch,
		SignedRequest: o.cfg.SignedRequest,
		Handle:        opts.Handle,
		Email:         opts.Email,
		OnMsaCreated:  o.observe(a, observer),
	})

	a.end()
	a.mu.Lock()
	superseded := a.superseded
	a.mu.Unlock()

	if superseded || (o.cfg.Wallets != nil && o.cfg.Wallets.Generation() != h.Generation) {
		o.logger.Debug("login for %s discarded: wallet changed", h.Address)
		o.metrics.RecordLoginResult(siwferr.ErrLoginSuperseded)
		o.reset(a)
		return LoginResult{}, siwferr.ErrLoginSuperseded
	}

	if err == nil && resp == nil {
		err = errors.New("SDK returned no response")
	}
	if err != nil {
		o.logger.Error("login failed for %s: %v", h.Address, err)
		mapped := remapSDKError(err, h.Kind)
		o.metrics.RecordLoginResult(mapped)
		return o.fail(a, mapped)
	}

	o.logger.Debug("login response: controlKey=%s msaId=%s email=%s phone=%t graphKey=%t credentials=%d signUpStatus=%s",
		resp.ControlKey, resp.MsaID, MaskEmail(resp.Email), resp.PhoneNumber != "",
		len(resp.GraphKey) > 0, len(resp.RawCredentials), resp.SignUpStatus)

	result := newResult(h.Address, opts.Handle, resp)
	o.metrics.RecordLoginResult(nil)
	o.finish(a, StateSucceeded, &result, nil)
	return result.clone(), nil
}

// observe wraps observer with the at-most-once, never-after-terminal guard.
func (o *Orchestrator) observe(a *attempt, observer func(Account)) func(Account) {
	return func(acct Account) {
		a.observeMu.Lock()
		defer a.observeMu.Unlock()
		if a.fired || a.terminal {
			return
		}
		a.fired = true

		handle := acct.Handle
		if handle == "" {
			handle = "No handle"
		}
		o.logger.Debug("MSA created or retrieved: msaId=%s handle=%s", acct.MsaID, handle)

		if observer != nil {
			observer(acct)
		}
	}
}

// remapSDKError rewords two known SDK failures and passes the rest through.
func remapSDKError(err error, kind account.Kind) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, sdkInvalidEncoding):
		return siwferr.ErrInvalidSignedRequest
	case strings.Contains(msg, sdkAccountID):
		return siwferr.WithMessage(siwferr.ErrAccountValidation,
			fmt.Sprintf("Account validation failed for %s. Please check your wallet address format.", kind))
	}

	// Errors from our own adapter and transport keep their identity.
	var se *siwferr.SiwfError
	if errors.As(err, &se) {
		return err
	}
	return &siwferr.SiwfError{
		Code:     siwferr.ErrSDKProtocol.Code,
		Message:  msg,
		Cause:    err,
		ExitCode: siwferr.ErrSDKProtocol.ExitCode,
	}
}

func (o *Orchestrator) begin() (*attempt, error) {
	o.mu.Lock()
	if o.state == StateValidating || o.state == StateInFlight {
		o.mu.Unlock()
		return nil, siwferr.ErrLoginInProgress
	}
	prev := o.state
	a := &attempt{}
	o.attempt = a
	o.state = StateValidating
	o.result = nil
	o.err = nil
	o.mu.Unlock()

	o.notify(prev, StateValidating)
	return a, nil
}

func (o *Orchestrator) fail(a *attempt, err error) (LoginResult, error) {
	a.end()

	o.finish(a, StateFailed, nil, err)
	return LoginResult{}, err
}

// finish records a terminal state for a unless a newer attempt owns the
// orchestrator.
func (o *Orchestrator) finish(a *attempt, next State, result *LoginResult, err error) {
	o.mu.Lock()
	if o.attempt != a {
		o.mu.Unlock()
		return
	}
	prev := o.state
	o.state = next
	o.result = result
	o.err = err
	o.mu.Unlock()

	o.notify(prev, next)
}

func (o *Orchestrator) reset(a *attempt) {
	o.finish(a, StateIdle, nil, nil)
}

func (o *Orchestrator) transition(next State) {
	o.mu.Lock()
	prev := o.state
	o.state = next
	o.mu.Unlock()

	o.notify(prev, next)
}

// onWalletChange marks an in-flight attempt as stale and clears a finished
// one, so results never outlive the wallet they were produced for.
func (o *Orchestrator) onWalletChange(prev, next wallet.Handle) {
	if prev.Same(next) {
		return
	}

	o.mu.Lock()
	state := o.state
	a := o.attempt
	if state.Terminal() {
		o.state = StateIdle
		o.result = nil
		o.err = nil
	}
	o.mu.Unlock()

	switch {
	case state == StateValidating || state == StateInFlight:
		if a != nil {
			a.mu.Lock()
			a.superseded = true
			a.mu.Unlock()
		}
	case state.Terminal():
		o.notify(state, StateIdle)
	}
}

func (o *Orchestrator) notify(prev, next State) {
	if o.cfg.OnStateChange != nil && prev != next {
		o.cfg.OnStateChange(prev, next)
	}
}
