package cli

import (
	"context"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/siwf/internal/output"
	"github.com/mrz1836/siwf/internal/siwf"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	loginQR            bool
	loginOpen          bool
	loginRequireWallet bool
	loginHandle        string
	loginEmail         string
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with Frequency",
	Long: `Start a Sign In With Frequency login. The redirect flow hands the
provider signed request to the hosted authentication page; the result
comes back to the provider callback URL. The start flow runs the SIWF SDK
locally and signs its requests with the connected wallet.`,
	GroupID: groupLogin,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var loginRedirectCmd = &cobra.Command{
	Use:   "redirect",
	Short: "Open the hosted SIWF login page",
	Long: `Build the hosted login URL from siwf.redirect_url and the signed request,
then open it in the system browser. With --qr the URL is also drawn as a
QR code so the login can continue on a phone.`,
	Example: `  siwf login redirect
  siwf login redirect --open=false --qr
  siwf login redirect --require-wallet -o json`,
	Args: cobra.NoArgs,
	RunE: runLoginRedirect,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var loginStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Sign in through the local SIWF SDK",
	Long: `Run the SIWF SDK against the connected wallet. The SDK program named by
siwf.sdk_command talks to siwf over its stdin and stdout: siwf answers its
signing requests with the wallet and forwards its HTTP calls to the
gateway. New users may pass a handle and email for registration.`,
	Example: `  siwf login start
  siwf login start --handle coolUser123 --email user@example.com
  siwf login start -o json`,
	Args: cobra.NoArgs,
	RunE: runLoginStart,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.AddCommand(loginRedirectCmd)
	loginCmd.AddCommand(loginStartCmd)

	loginStartCmd.Flags().StringVar(&loginHandle, "handle", "", "handle to register for a new account")
	loginStartCmd.Flags().StringVar(&loginEmail, "email", "", "email to register for a new account")

	loginRedirectCmd.Flags().BoolVar(&loginQR, "qr", false, "draw the login URL as a QR code")
	loginRedirectCmd.Flags().BoolVar(&loginOpen, "open", true, "open the login URL in the browser")
	loginRedirectCmd.Flags().BoolVar(&loginRequireWallet, "require-wallet", false, "refuse to start without a connected wallet")
}

func runLoginRedirect(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	state, err := cc.LoadWallets()
	if err != nil {
		return err
	}

	flow := &siwf.RedirectFlow{
		Host:          cc.Cfg.SIWF.RedirectURL,
		SignedRequest: cc.Cfg.SignedRequest(),
		Wallets:       state,
		RequireWallet: loginRequireWallet,
		Logger:        cc.logger(),
	}
	if loginOpen {
		flow.Navigator = cc.Navigator
		if flow.Navigator == nil {
			flow.Navigator = siwf.NavigatorFunc(openBrowser)
		}
	}

	ctx, cancel := contextWithTimeout(cmd, cc.Cfg.GatewayTimeout())
	defer cancel()

	r, err := flow.Start(ctx)
	if r == nil {
		return err
	}
	if err != nil {
		// The URL is still usable by hand.
		output.Warnf(cmd.ErrOrStderr(), "could not open browser: %v", err)
	}

	w := cmd.OutOrStdout()
	if cc.Fmt.IsJSON() {
		return output.WriteJSON(w, r)
	}

	if r.AccountID != "" {
		out(w, "Signing in as %s (%s)\n", r.AccountID, r.WalletKind.DisplayName())
	}
	out(w, "Permissions: %s\n", joinInts(r.Permissions))
	out(w, "Callback:    %s\n", r.Callback)
	outln(w)
	outln(w, r.URL)

	if loginQR {
		outln(w)
		if err := output.RenderQR(w, r.URL, output.DefaultQRConfig()); err != nil {
			cc.logger().Error("rendering QR code: %v", err)
		}
	}
	return nil
}

func runLoginStart(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	state, err := cc.LoadWallets()
	if err != nil {
		return err
	}
	sdk, err := cc.sdk(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	gw, err := cc.Gateway()
	if err != nil {
		return err
	}

	approver := cc.approver(cmd.InOrStdin(), cmd.ErrOrStderr())
	orch := siwf.New(siwf.Config{
		SDK:           sdk,
		Wallets:       state,
		Open:          cc.opener(approver),
		Fetch:         gw.Func(),
		SignedRequest: cc.Cfg.SignedRequest(),
		Logger:        cc.logger(),
		Metrics:       cc.Metrics,
	})
	defer orch.Close()

	ctx, cancel := contextWithTimeout(cmd, 0)
	defer cancel()

	errOut := cmd.ErrOrStderr()
	result, err := orch.Login(ctx, siwf.LoginOptions{Handle: loginHandle, Email: loginEmail}, func(a siwf.Account) {
		handle := a.Handle
		if handle == "" {
			handle = "No handle"
		}
		out(errOut, "MSA created or retrieved: %s (%s)\n", a.MsaID, handle)
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if cc.Fmt.IsJSON() {
		return output.WriteJSON(w, result)
	}

	status := "returning user"
	if result.IsNewUser {
		status = "new user"
	}
	out(w, "Signed in as %s (%s)\n", result.AccountID, status)
	if result.MsaID != "" {
		out(w, "MSA ID:      %s\n", result.MsaID)
	}
	if result.Handle != "" {
		out(w, "Handle:      %s\n", result.Handle)
	}
	out(w, "Credentials: %d\n", len(result.Credentials))
	return nil
}

// openBrowser launches the platform URL handler. The handler outlives the
// command, so it is not bound to ctx.
func openBrowser(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var c *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		c = exec.Command("open", target) //nolint:gosec,noctx // G204: target is a URL built by BuildRedirectURL
	case "windows":
		c = exec.Command("rundll32", "url.dll,FileProtocolHandler", target) //nolint:gosec,noctx // G204: see above
	default:
		c = exec.Command("xdg-open", target) //nolint:gosec,noctx // G204: see above
	}
	if err := c.Start(); err != nil {
		return err
	}
	go func() { _ = c.Wait() }()
	return nil
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

func formatUint(n uint16) string {
	return strconv.FormatUint(uint64(n), 10)
}
