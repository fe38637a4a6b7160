package config

import (
	"time"

	"github.com/mrz1836/siwf/internal/account"
	"github.com/mrz1836/siwf/internal/gateway"
	"github.com/mrz1836/siwf/internal/siwf"
)

// maxSS58Prefix is the largest network prefix SS58 can encode.
const maxSS58Prefix = 16383

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.siwf",
		Gateway: GatewayConfig{
			BaseURL:        gateway.DefaultBaseURL,
			TimeoutSeconds: 30,
			RatePerSecond:  5,
			Burst:          10,
			MaxAttempts:    1,
		},
		SIWF: SIWFConfig{
			RedirectURL: siwf.DefaultRedirectURL,
		},
		Wallet: WalletConfig{
			SS58Prefix:  account.SS58PrefixFrequency,
			AutoApprove: false,
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.siwf/siwf.log",
		},
	}
}

// SignedRequest returns the configured token or the built-in testnet one.
func (c *Config) SignedRequest() string {
	if c.SIWF.SignedRequest != "" {
		return c.SIWF.SignedRequest
	}
	return siwf.DefaultSignedRequest
}

// GatewayTimeout returns the per-request gateway timeout.
func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.Gateway.TimeoutSeconds) * time.Second
}
