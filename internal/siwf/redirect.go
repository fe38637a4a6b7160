package siwf

import (
	"context"
	"net/url"

	"github.com/mrz1836/siwf/internal/account"
	"github.com/mrz1836/siwf/internal/wallet"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// DefaultRedirectURL is the testnet authentication host.
const DefaultRedirectURL = "https://testnet.frequencyaccess.com/siwa/start"

// Navigator sends the user to an external URL.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, target string) error

// Navigate calls f.
func (f NavigatorFunc) Navigate(ctx context.Context, target string) error {
	return f(ctx, target)
}

// RedirectFlow is the alternate login: instead of running the SDK locally
// it hands a pre-signed request to the hosted authentication page.
type RedirectFlow struct {
	Host          string
	SignedRequest string
	Wallets       *wallet.State
	Navigator     Navigator

	// RequireWallet refuses to redirect without a connected wallet.
	RequireWallet bool

	Logger Logger
}

// Redirect describes a started redirect.
type Redirect struct {
	URL             string         `json:"url"`
	AccountID       string         `json:"accountId,omitempty"`
	WalletKind      account.Kind   `json:"walletKind,omitempty"`
	Callback        string         `json:"callback"`
	Permissions     []int          `json:"permissions"`
	CredentialTypes []string       `json:"credentialTypes,omitempty"`
	Request         *SignedRequest `json:"-"`
}

// Start validates the wallet and token, builds the URL and navigates.
// The login result comes back through the callback URL, not here.
func (f *RedirectFlow) Start(ctx context.Context) (*Redirect, error) {
	logger := f.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	var h wallet.Handle
	if f.Wallets != nil {
		h = f.Wallets.Current()
	}
	switch {
	case h.Connected:
		if err := account.ValidateAddress(h.Address, h.Kind); err != nil {
			return nil, err
		}
	case f.RequireWallet:
		return nil, siwferr.WithSuggestion(siwferr.ErrWalletNotConnected, "run: siwf wallet connect")
	}

	token := f.SignedRequest
	if token == "" {
		token = DefaultSignedRequest
	}
	req, err := DecodeSignedRequest(token)
	if err != nil {
		return nil, err
	}

	target, err := BuildRedirectURL(f.Host, token)
	if err != nil {
		return nil, err
	}

	r := &Redirect{
		URL:             target,
		Callback:        req.Callback(),
		Permissions:     req.Permissions(),
		CredentialTypes: req.CredentialTypes(),
		Request:         req,
	}
	if h.Connected {
		r.AccountID = h.Address
		r.WalletKind = h.Kind
	}

	logger.Debug("redirecting to %s (permissions %v)", target, r.Permissions)
	if f.Navigator != nil {
		if err := f.Navigator.Navigate(ctx, target); err != nil {
			logger.Error("redirect navigation failed: %v", err)
			return r, siwferr.Wrap(err, "opening authentication page")
		}
	}
	return r, nil
}

// BuildRedirectURL appends the token as the signedRequest query parameter.
func BuildRedirectURL(host, token string) (string, error) {
	if host == "" {
		host = DefaultRedirectURL
	}
	u, err := url.Parse(host)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return "", siwferr.WithDetails(
			siwferr.WithMessage(siwferr.ErrConfigInvalid, "invalid redirect URL"),
			map[string]string{"url": host},
		)
	}
	q := u.Query()
	q.Set("signedRequest", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
