package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/siwf/internal/account"
	"github.com/mrz1836/siwf/internal/config"
	"github.com/mrz1836/siwf/internal/keyfile"
	"github.com/mrz1836/siwf/internal/output"
	"github.com/mrz1836/siwf/internal/wallet"
	"github.com/mrz1836/siwf/internal/wallet/ethkey"
	"github.com/mrz1836/siwf/internal/wallet/substratekey"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	walletKind    string
	walletOut     string
	walletKeyFile string
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletCmd = &cobra.Command{
	Use:     "wallet",
	Short:   "Manage the connected wallet",
	Long:    `Create local wallet key files and connect or disconnect the wallet used for signing.`,
	GroupID: groupWallet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create an encrypted wallet key file",
	Long: `Generate a fresh key for a MetaMask-style (Ethereum) or Polkadot-style
(Substrate) wallet and store it in an age-encrypted key file.`,
	Example: `  siwf wallet new --kind metamask
  siwf wallet new --kind polkadot --out ~/keys/dot.key`,
	Args: cobra.NoArgs,
	RunE: runWalletNew,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect a wallet from its key file",
	Long: `Open a key file, discover its account and record it as the connected
wallet. Connecting a different account counts as a wallet switch.`,
	Example: `  siwf wallet connect --kind metamask --key-file ~/.siwf/keys/metamask.key`,
	Args:    cobra.NoArgs,
	RunE:    runWalletConnect,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletDisconnectCmd = &cobra.Command{
	Use:     "disconnect",
	Short:   "Disconnect the current wallet",
	Long:    `Clear the connection record. Key files are left untouched.`,
	Example: `  siwf wallet disconnect`,
	Args:    cobra.NoArgs,
	RunE:    runWalletDisconnect,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show the connected wallet",
	Long:    `Show the wallet kind, account and key file of the current connection.`,
	Example: `  siwf wallet status -o json`,
	Args:    cobra.NoArgs,
	RunE:    runWalletStatus,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletNewCmd, walletConnectCmd, walletDisconnectCmd, walletStatusCmd)

	walletNewCmd.Flags().StringVar(&walletKind, "kind", "", "wallet kind: metamask or polkadot (required)")
	walletNewCmd.Flags().StringVar(&walletOut, "out", "", "key file path (default: <home>/keys/<kind>.key)")
	_ = walletNewCmd.MarkFlagRequired("kind")

	walletConnectCmd.Flags().StringVar(&walletKind, "kind", "", "wallet kind: metamask or polkadot (required)")
	walletConnectCmd.Flags().StringVar(&walletKeyFile, "key-file", "", "key file to connect (required)")
	_ = walletConnectCmd.MarkFlagRequired("kind")
	_ = walletConnectCmd.MarkFlagRequired("key-file")
}

// walletInfo is the JSON shape for wallet commands.
type walletInfo struct {
	Kind       account.Kind `json:"kind"`
	Address    string       `json:"address"`
	KeyFile    string       `json:"keyFile,omitempty"`
	Connected  bool         `json:"connected"`
	Generation uint64       `json:"generation,omitempty"`
}

func runWalletNew(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	kind, err := account.ParseKind(walletKind)
	if err != nil {
		return err
	}

	path := walletOut
	if path == "" {
		path = filepath.Join(config.ExpandHome(cc.Cfg.Home), "keys", string(kind)+".key")
	}
	path = config.ExpandHome(path)
	if _, err := os.Stat(path); err == nil {
		return siwferr.WithSuggestion(
			siwferr.WithDetails(siwferr.ErrInvalidInput, map[string]string{"key_file": path}),
			"key file already exists; choose another path with --out",
		)
	}

	var (
		secret  []byte
		address string
	)
	switch kind {
	case account.KindEthereum:
		w, genErr := ethkey.Generate(nil)
		if genErr != nil {
			return genErr
		}
		secret, address = w.PrivateKeyBytes(), w.Address()
	default:
		w, genErr := substratekey.Generate(cc.Cfg.Wallet.SS58Prefix, nil)
		if genErr != nil {
			return genErr
		}
		secret, address = w.Seed(), w.Address()
	}
	defer zeroBytes(secret)

	passphrase, err := promptNewPasswordFn()
	if err != nil {
		return err
	}
	defer zeroBytes(passphrase)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return siwferr.Wrap(err, "creating key directory")
	}
	if err := keyfile.Write(path, secret, string(passphrase)); err != nil {
		return err
	}
	cc.logger().Debug("created %s key file %s for %s", kind, path, address)

	info := walletInfo{Kind: kind, Address: address, KeyFile: path}
	if cc.Fmt.IsJSON() {
		return output.WriteJSON(cmd.OutOrStdout(), info)
	}

	w := cmd.OutOrStdout()
	output.Successf(w, "Created %s key file", kind.DisplayName())
	tbl := output.NewTable()
	tbl.AddRow("Address:", address)
	tbl.AddRow("Key file:", path)
	_ = tbl.Render(w)
	outln(w)
	out(w, "Connect it with: siwf wallet connect --kind %s --key-file %s\n", kind, path)
	return nil
}

func runWalletConnect(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	kind, err := account.ParseKind(walletKind)
	if err != nil {
		return err
	}

	path, err := filepath.Abs(config.ExpandHome(strings.TrimSpace(walletKeyFile)))
	if err != nil {
		return siwferr.Wrap(err, "resolving key file path")
	}

	w, err := loadWallet(kind, path, cc.Cfg.Wallet.SS58Prefix, nil)
	if err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(cmd, cc.Cfg.GatewayTimeout())
	defer cancel()

	address, err := firstAccount(ctx, w)
	if err != nil {
		return err
	}
	if err := account.ValidateAddress(address, kind); err != nil {
		return err
	}

	state, err := cc.LoadWallets()
	if err != nil {
		return err
	}
	prev := state.Current()

	unsubscribe := cc.persist(state)
	h := state.Connect(kind, address, path)
	unsubscribe()

	switch {
	case !prev.Connected:
		cc.logger().Debug("wallet connected: %s %s", kind, address)
	case !prev.Same(h):
		cc.logger().Debug("wallet switched: %s %s -> %s %s", prev.Kind, prev.Address, kind, address)
	}

	return printHandle(cmd, cc, h)
}

func runWalletDisconnect(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	state, err := cc.LoadWallets()
	if err != nil {
		return err
	}

	unsubscribe := cc.persist(state)
	h := state.Disconnect()
	unsubscribe()

	if cc.Fmt.IsJSON() {
		return output.WriteJSON(cmd.OutOrStdout(), walletInfo{Connected: false, Generation: h.Generation})
	}
	output.Successf(cmd.OutOrStdout(), "Wallet disconnected")
	return nil
}

func runWalletStatus(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	state, err := cc.LoadWallets()
	if err != nil {
		return err
	}
	return printHandle(cmd, cc, state.Current())
}

func printHandle(cmd *cobra.Command, cc *CommandContext, h wallet.Handle) error {
	info := walletInfo{
		Kind:       h.Kind,
		Address:    h.Address,
		KeyFile:    h.KeyFile,
		Connected:  h.Connected,
		Generation: h.Generation,
	}
	if cc.Fmt.IsJSON() {
		return output.WriteJSON(cmd.OutOrStdout(), info)
	}

	w := cmd.OutOrStdout()
	if !h.Connected {
		outln(w, "No wallet connected.")
		outln(w, "Run: siwf wallet connect --kind <metamask|polkadot> --key-file <file>")
		return nil
	}

	tbl := output.NewTable()
	tbl.AddRow("Wallet:", h.Kind.DisplayName())
	tbl.AddRow("Account:", h.Address)
	tbl.AddRow("Key file:", h.KeyFile)
	return tbl.Render(w)
}
