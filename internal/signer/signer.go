// Package signer adapts SDK signing requests onto the connected wallet.
//
// The SDK asks for signatures using Ethereum JSON-RPC method names. The
// adapter maps each (method, wallet kind) pair onto exactly one wallet
// capability call and answers every request exactly once.
package signer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/mrz1836/siwf/internal/account"
	"github.com/mrz1836/siwf/internal/metrics"
	"github.com/mrz1836/siwf/internal/wallet"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// Method is a signing method requested by the SDK.
type Method string

// Supported signing methods.
const (
	MethodUnknown      Method = ""
	MethodTypedData    Method = "eth_signTypedData_v4"
	MethodPersonalSign Method = "personal_sign"
)

// Methods returns the supported method names.
func Methods() []Method {
	return []Method{MethodTypedData, MethodPersonalSign}
}

// ParseMethod maps a wire name to a Method. Unknown names map to MethodUnknown.
func ParseMethod(name string) Method {
	switch Method(strings.TrimSpace(name)) {
	case MethodTypedData:
		return MethodTypedData
	case MethodPersonalSign:
		return MethodPersonalSign
	default:
		return MethodUnknown
	}
}

// SuggestMethod returns the closest supported method name, or "" when none
// is close enough to be a likely typo.
func SuggestMethod(name string) string {
	best, bestDist := "", 4
	for _, m := range Methods() {
		if d := levenshtein.ComputeDistance(name, string(m)); d < bestDist {
			best, bestDist = string(m), d
		}
	}
	return best
}

// Request is a single signing request issued by the SDK. Params are
// positional: typed-data is [address, typedDataJSON] and personal_sign is
// [message, address].
type Request struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

// Func is the signature callback handed to the SDK.
type Func func(ctx context.Context, req Request) (string, error)

// Logger is the interface for signer logging.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

// Adapter binds signing requests to one wallet and account.
type Adapter struct {
	wallet  wallet.Wallet
	address string
	logger  Logger
	metrics *metrics.Metrics
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(l Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to metrics.Global.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) {
		if m != nil {
			a.metrics = m
		}
	}
}

// New creates an adapter for address on w.
func New(w wallet.Wallet, address string, opts ...Option) *Adapter {
	a := &Adapter{
		wallet:  w,
		address: address,
		logger:  nopLogger{},
		metrics: metrics.Global,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Func returns the adapter as an SDK signature callback.
func (a *Adapter) Func() Func {
	return a.Sign
}

// Sign answers req with a signature or an error, never both empty.
func (a *Adapter) Sign(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	sig, err := a.dispatch(ctx, req)
	if err == nil && sig == "" {
		err = siwferr.WithMessage(siwferr.ErrGeneral, "wallet returned an empty signature")
	}

	a.metrics.RecordSign(req.Method, err)
	if err != nil {
		a.logger.Error("sign %s failed for %s: %v", req.Method, a.wallet.Kind(), err)
		return "", err
	}
	a.logger.Debug("sign %s completed for %s in %s", req.Method, a.wallet.Kind(), time.Since(start))
	return sig, nil
}

func (a *Adapter) dispatch(ctx context.Context, req Request) (string, error) {
	kind := a.wallet.Kind()
	method := ParseMethod(req.Method)

	switch {
	case method == MethodTypedData && kind == account.KindEthereum:
		return a.signTypedData(ctx, req)
	case method == MethodTypedData && kind == account.KindSubstrate:
		// No structured signing on Substrate: the JSON text is signed as-is.
		raw, err := param(req, 1, "typed data")
		if err != nil {
			return "", err
		}
		return a.wallet.SignMessage(ctx, a.address, raw)
	case method == MethodPersonalSign && (kind == account.KindEthereum || kind == account.KindSubstrate):
		message, err := param(req, 0, "message")
		if err != nil {
			return "", err
		}
		return a.wallet.SignMessage(ctx, a.address, message)
	default:
		return "", unsupported(req.Method, kind)
	}
}

func (a *Adapter) signTypedData(ctx context.Context, req Request) (string, error) {
	tds, ok := a.wallet.(wallet.TypedDataSigner)
	if !ok {
		return "", unsupported(req.Method, a.wallet.Kind())
	}

	raw, err := param(req, 1, "typed data")
	if err != nil {
		return "", err
	}

	var data apitypes.TypedData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return "", siwferr.WithCause(
			siwferr.WithMessage(siwferr.ErrInvalidSigningRequest, "typed data is not valid JSON"),
			err,
		)
	}
	return tds.SignTypedData(ctx, a.address, data)
}

func unsupported(method string, kind account.Kind) error {
	err := siwferr.WithMessage(siwferr.ErrUnsupportedMethod,
		fmt.Sprintf("Unsupported signing method: %s for wallet type: %s", method, kind))
	err = siwferr.WithDetails(err, map[string]string{
		"method":      method,
		"wallet_kind": kind.String(),
	})
	if s := SuggestMethod(method); s != "" && s != method {
		err = siwferr.WithSuggestion(err, fmt.Sprintf("did you mean '%s'?", s))
	}
	return err
}

// param returns positional parameter i as text. Non-string values are
// re-encoded as JSON so object-shaped typed data is accepted too.
func param(req Request, i int, name string) (string, error) {
	if i >= len(req.Params) || req.Params[i] == nil {
		return "", siwferr.WithDetails(
			siwferr.WithMessage(siwferr.ErrInvalidSigningRequest, fmt.Sprintf("missing %s parameter", name)),
			map[string]string{"method": req.Method},
		)
	}

	switch v := req.Params[i].(type) {
	case string:
		return v, nil
	case json.RawMessage:
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s, nil
		}
		return string(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", siwferr.WithCause(
				siwferr.WithMessage(siwferr.ErrInvalidSigningRequest, fmt.Sprintf("%s parameter cannot be encoded", name)),
				err,
			)
		}
		return string(b), nil
	}
}
