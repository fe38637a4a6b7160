package cli

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/siwf/internal/config"
	"github.com/mrz1836/siwf/internal/gateway"
	"github.com/mrz1836/siwf/internal/metrics"
	"github.com/mrz1836/siwf/internal/output"
	"github.com/mrz1836/siwf/internal/siwf"
	"github.com/mrz1836/siwf/internal/wallet"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

type cmdContextKey struct{}

// CommandContext holds dependencies for CLI commands.
type CommandContext struct {
	Cfg *config.Config
	Log *config.Logger
	Fmt *output.Formatter

	// Store persists the wallet connection record.
	Store wallet.Store

	// Approver answers signing prompts. Nil means decide from config.
	Approver wallet.Approver

	// Navigator opens the redirect URL. Nil means the system browser.
	Navigator siwf.Navigator

	// SDK runs in-process logins. Nil means the siwf.sdk_command bridge.
	SDK siwf.SDK

	Metrics *metrics.Metrics
}

// NewCommandContext creates a context with default dependencies.
func NewCommandContext(c *config.Config, l *config.Logger, f *output.Formatter) *CommandContext {
	return &CommandContext{
		Cfg:     c,
		Log:     l,
		Fmt:     f,
		Store:   wallet.NewFileStore(filepath.Join(config.ExpandHome(c.Home), "state")),
		Metrics: metrics.Global,
	}
}

// SetCmdContext attaches cc to the command's context.
func SetCmdContext(cmd *cobra.Command, cc *CommandContext) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	cmd.SetContext(context.WithValue(base, cmdContextKey{}, cc))
}

// GetCmdContext returns the command context attached to cmd, or nil.
func GetCmdContext(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	cc, _ := ctx.Value(cmdContextKey{}).(*CommandContext)
	return cc
}

// LoadWallets restores the persisted connection into a fresh state.
func (c *CommandContext) LoadWallets() (*wallet.State, error) {
	state := wallet.NewState()
	h, err := c.Store.Load()
	if err != nil {
		return nil, err
	}
	state.Restore(h)
	return state, nil
}

// persist saves later changes of state and returns the unsubscribe func.
func (c *CommandContext) persist(state *wallet.State) func() {
	return wallet.Persist(state, c.Store, func(err error) {
		c.logger().Error("saving wallet connection: %v", err)
	})
}

// approver picks the prompt implementation for signing.
func (c *CommandContext) approver(in io.Reader, w io.Writer) wallet.Approver {
	switch {
	case c.Approver != nil:
		return c.Approver
	case c.Cfg.Wallet.AutoApprove:
		return wallet.AutoApprove
	default:
		return wallet.NewTerminalApprover(in, w)
	}
}

// Gateway builds a gateway client from config.
func (c *CommandContext) Gateway() (*gateway.Client, error) {
	g := c.Cfg.Gateway
	retry := gateway.DefaultRetryConfig()
	retry.MaxAttempts = g.MaxAttempts

	return gateway.New(gateway.Options{
		BaseURL:       g.BaseURL,
		Origin:        g.Origin,
		Timeout:       c.Cfg.GatewayTimeout(),
		RatePerSecond: g.RatePerSecond,
		Burst:         g.Burst,
		Retry:         retry,
		Logger:        c.logger(),
		Metrics:       c.Metrics,
	})
}

// sdk returns the injected SDK or a bridge to the configured program.
func (c *CommandContext) sdk(stderr io.Writer) (siwf.SDK, error) {
	if c.SDK != nil {
		return c.SDK, nil
	}
	fields := strings.Fields(c.Cfg.SIWF.SDKCommand)
	if len(fields) == 0 {
		return nil, siwferr.WithSuggestion(
			siwferr.WithMessage(siwferr.ErrConfigInvalid, "no SIWF SDK command configured"),
			"run: siwf config set siwf.sdk_command \"<program> [args]\", or use: siwf login redirect",
		)
	}
	return &siwf.ProcessSDK{
		Command: fields[0],
		Args:    fields[1:],
		Stderr:  stderr,
		Logger:  c.logger(),
	}, nil
}

func (c *CommandContext) logger() *config.Logger {
	if c.Log == nil {
		return config.NullLogger()
	}
	return c.Log
}
