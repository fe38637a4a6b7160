package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/siwf/internal/config"
	"github.com/mrz1836/siwf/internal/output"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage configuration",
	Long:    `View and change siwf settings stored in <home>/config.yaml.`,
	GroupID: groupTools,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Create <home>/config.yaml with default settings. An existing file is
kept unless --force is given.`,
	Example: `  siwf config init
  siwf config init --force`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show every setting after the config file, environment variables and
flags have been applied.`,
	Example: `  siwf config show
  siwf config show -o json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print one configuration value",
	Long:  `Print the effective value of a dotted key such as gateway.base_url.`,
	Example: `  siwf config get gateway.base_url
  siwf config get wallet.ss58_prefix`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
	ValidArgsFunction: func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.Keys(), cobra.ShellCompDirectiveNoFileComp
	},
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Change one configuration value",
	Long: `Set a dotted key in the config file. The file is validated before it is
written, so an invalid value leaves it unchanged.`,
	Example: `  siwf config set gateway.base_url https://gateway.example.com
  siwf config set wallet.auto_approve true
  siwf config set logging.level debug`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configGetCmd, configSetCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing configuration file")
}

func configPath(cc *CommandContext) string {
	return config.Path(config.ExpandHome(cc.Cfg.Home))
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	path := configPath(cc)

	if _, err := os.Stat(path); err == nil && !configForce {
		return siwferr.WithSuggestion(
			siwferr.WithDetails(siwferr.ErrInvalidInput, map[string]string{"path": path}),
			"configuration already exists; use --force to overwrite",
		)
	}

	fresh := config.Defaults()
	fresh.Home = cc.Cfg.Home
	if err := config.Save(fresh, path); err != nil {
		return siwferr.Wrap(err, "writing config file")
	}

	if cc.Fmt.IsJSON() {
		return output.FormatSuccess(cmd.OutOrStdout(), "configuration initialized at "+path, output.FormatJSON)
	}

	w := cmd.OutOrStdout()
	output.Successf(w, "Configuration initialized at %s", path)
	outln(w)
	outln(w, "Settings you may want to change:")
	outln(w, "  gateway.base_url      backend gateway (default http://localhost:3013)")
	outln(w, "  siwf.redirect_url     hosted login page")
	outln(w, "  siwf.signed_request   provider signed request (default: testnet example)")
	outln(w, "  wallet.ss58_prefix    Substrate address prefix (90 = Frequency)")
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	if cc.Fmt.IsJSON() {
		return output.WriteJSON(cmd.OutOrStdout(), cc.Cfg)
	}

	tbl := output.NewTable("KEY", "VALUE")
	for _, key := range config.Keys() {
		value, err := cc.Cfg.Get(key)
		if err != nil {
			return err
		}
		if key == "siwf.signed_request" && len(value) > 32 {
			value = value[:32] + "..."
		}
		tbl.AddRow(key, value)
	}
	return tbl.Render(cmd.OutOrStdout())
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)

	value, err := cc.Cfg.Get(args[0])
	if err != nil {
		return err
	}
	if cc.Fmt.IsJSON() {
		return output.WriteJSON(cmd.OutOrStdout(), map[string]string{"key": args[0], "value": value})
	}
	outln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)
	key, value := args[0], args[1]
	path := configPath(cc)

	// Edit the file, not the effective config, so env overrides are not persisted.
	current, err := config.LoadOrDefault(path)
	if err != nil {
		return err
	}
	if err := current.Set(key, value); err != nil {
		return err
	}
	if err := current.Validate(); err != nil {
		return err
	}
	if err := config.Save(current, path); err != nil {
		return siwferr.Wrap(err, "saving config")
	}

	cc.logger().Debug("config %s set in %s", key, path)
	if cc.Fmt.IsJSON() {
		return output.WriteJSON(cmd.OutOrStdout(), map[string]string{"key": key, "value": value})
	}
	out(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
	return nil
}

// describeConfig is used by verbose startup logging.
func describeConfig(c *config.Config) string {
	return fmt.Sprintf("gateway=%s redirect=%s ss58=%d format=%s",
		c.Gateway.BaseURL, c.SIWF.RedirectURL, c.Wallet.SS58Prefix, c.Output.DefaultFormat)
}
