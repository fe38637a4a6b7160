package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/siwf/internal/account"
	"github.com/mrz1836/siwf/internal/output"
	"github.com/mrz1836/siwf/internal/signer"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	signMethod string
	signParams []string
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Answer a signing request with the connected wallet",
	Long: `Run a signing request through the same adapter the login flow uses.

Supported methods are personal_sign (params: message) and
eth_signTypedData_v4 (params: account, typed data JSON). Polkadot wallets
sign typed data as raw text.`,
	Example: `  siwf sign --method personal_sign --param "hello"
  siwf sign --method eth_signTypedData_v4 --param 0xAbc... --param "$(cat payload.json)"`,
	GroupID: groupWallet,
	Args:    cobra.NoArgs,
	RunE:    runSign,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringVar(&signMethod, "method", "", "signing method (required)")
	signCmd.Flags().StringArrayVar(&signParams, "param", nil, "positional request parameter, repeatable")
	_ = signCmd.MarkFlagRequired("method")
}

// signResult is the JSON shape of a signature.
type signResult struct {
	Method    string       `json:"method"`
	Account   string       `json:"account"`
	Kind      account.Kind `json:"kind"`
	Signature string       `json:"signature"`
}

func runSign(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	state, err := cc.LoadWallets()
	if err != nil {
		return err
	}
	h := state.Current()
	if !h.Connected {
		return siwferr.WithSuggestion(siwferr.ErrWalletNotConnected, "run: siwf wallet connect")
	}
	if err := account.ValidateAddress(h.Address, h.Kind); err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(cmd, 0)
	defer cancel()

	approver := cc.approver(cmd.InOrStdin(), cmd.ErrOrStderr())
	w, err := cc.opener(approver)(ctx, h)
	if err != nil {
		return err
	}

	params := make([]any, len(signParams))
	for i, p := range signParams {
		params[i] = p
	}

	adapter := signer.New(w, h.Address, signer.WithLogger(cc.logger()), signer.WithMetrics(cc.Metrics))
	sig, err := adapter.Sign(ctx, signer.Request{Method: signMethod, Params: params})
	if err != nil {
		return err
	}

	res := signResult{Method: signMethod, Account: h.Address, Kind: h.Kind, Signature: sig}
	if cc.Fmt.IsJSON() {
		return output.WriteJSON(cmd.OutOrStdout(), res)
	}
	outln(cmd.OutOrStdout(), sig)
	return nil
}
