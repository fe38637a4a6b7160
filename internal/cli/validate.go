package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/siwf/internal/account"
	"github.com/mrz1836/siwf/internal/output"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var validateKind string

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var validateCmd = &cobra.Command{
	Use:   "validate ADDRESS",
	Short: "Check an account ID against a wallet kind",
	Long: `Check that an account ID has the shape the SIWF SDK expects for the
wallet kind. Ethereum accounts must be 0x followed by 40 hex digits.
Substrate accounts must be at least 40 characters.`,
	Example: `  siwf validate 0x2c7536E3605D9C16a7a3D7b1898e529396a65c23 --kind metamask
  siwf validate f6a2Hf7WBkw55T8yXgz7JBHf2iZFnGrcoZWwFqj3MnnioUN4n --kind polkadot`,
	GroupID: groupWallet,
	Args:    cobra.ExactArgs(1),
	RunE:    runValidate,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateKind, "kind", "", "wallet kind: metamask or polkadot (required)")
	_ = validateCmd.MarkFlagRequired("kind")
}

// validateResult is the JSON shape of a passed validation.
type validateResult struct {
	Address    string       `json:"address"`
	Kind       account.Kind `json:"kind"`
	Valid      bool         `json:"valid"`
	Checksum   string       `json:"checksum,omitempty"`
	ChecksumOK *bool        `json:"checksumOk,omitempty"`
	SS58Prefix *uint16      `json:"ss58Prefix,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)
	address := args[0]

	kind, err := account.ParseKind(validateKind)
	if err != nil {
		return err
	}
	if err := account.ValidateAddress(address, kind); err != nil {
		cc.logger().Debug("validation failed: %v", err)
		return err
	}

	res := validateResult{Address: address, Kind: kind, Valid: true}
	switch kind {
	case account.KindEthereum:
		ok := account.VerifyChecksum(address) == nil
		res.Checksum = account.ChecksumAddress(address)
		res.ChecksumOK = &ok
	case account.KindSubstrate:
		// Shape is all the SDK needs; a decodable address is reported as a bonus.
		if _, prefix, decErr := account.DecodeSS58(address); decErr == nil {
			res.SS58Prefix = &prefix
		}
	}

	if cc.Fmt.IsJSON() {
		return output.WriteJSON(cmd.OutOrStdout(), res)
	}

	w := cmd.OutOrStdout()
	output.Successf(w, "Valid %s account", kind.DisplayName())
	if res.ChecksumOK != nil && !*res.ChecksumOK {
		output.Warnf(cmd.ErrOrStderr(), "EIP-55 checksum mismatch, expected %s", res.Checksum)
	}
	if res.SS58Prefix != nil {
		out(w, "SS58 network prefix: %d\n", *res.SS58Prefix)
	}
	return nil
}
