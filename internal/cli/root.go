// Package cli implements the siwf command-line interface.
//
// Commands follow the Cobra convention of package-level command variables.
// Global state (config, logger, formatter, command context) is initialized
// in PersistentPreRunE and released in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mrz1836/siwf/internal/config"
	"github.com/mrz1836/siwf/internal/metrics"
	"github.com/mrz1836/siwf/internal/output"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// Command group IDs.
const (
	groupWallet = "wallet"
	groupLogin  = "login"
	groupTools  = "tools"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter
	cmdCtx    *CommandContext

	buildInfo BuildInfo
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// SetBuildInfo records version information for the version command.
func SetBuildInfo(info BuildInfo) {
	buildInfo = info
}

func formatVersion(info BuildInfo) string {
	v, c, d := info.Version, info.Commit, info.Date
	if v == "" {
		v = "dev"
	}
	if c == "" {
		c = "unknown"
	}
	if d == "" {
		d = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

var rootCmd = &cobra.Command{
	Use:   "siwf",
	Short: "Sign In With Frequency from the terminal",
	Long: `siwf bridges a local Ethereum or Substrate wallet to the Sign In With
Frequency (SIWF) login flow.

It keeps a wallet connection, answers SIWF signing requests through the
wallet, talks to the backend gateway and starts the hosted redirect login.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initGlobals(cmd)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print version information",
	Long:    `Print the siwf version, commit and build date.`,
	Example: `  siwf version`,
	GroupID: groupTools,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if formatter != nil && formatter.IsJSON() {
			return output.WriteJSON(cmd.OutOrStdout(), map[string]string{
				"version": buildInfo.Version,
				"commit":  buildInfo.Commit,
				"date":    buildInfo.Date,
			})
		}
		outln(cmd.OutOrStdout(), "siwf "+formatVersion(buildInfo))
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	enrichCommandTree(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		formatErr(err)
		return err
	}
	return nil
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	return siwferr.ExitCode(err)
}

// formatErr prints err to stderr in the active format.
func formatErr(err error) {
	format := output.FormatText
	if formatter != nil {
		format = formatter.Format()
	}
	_ = output.FormatError(os.Stderr, err, format)
}

// initGlobals loads config, applies env and flag overrides, and builds the
// logger, formatter and command context.
func initGlobals(cmd *cobra.Command) error {
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	loaded, err := config.LoadOrDefault(config.Path(home))
	if err != nil {
		return err
	}
	cfg = loaded
	cfg.Home = home

	config.ApplyEnvironment(cfg)

	if homeDir != "" {
		cfg.Home = homeDir
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != string(output.FormatAuto) {
		cfg.Output.DefaultFormat = outputFormat
	}
	if cfg.Logging.File == config.Defaults().Logging.File {
		cfg.Logging.File = filepath.Join(config.ExpandHome(cfg.Home), "siwf.log")
	}

	logger, err = config.NewLogger(config.ParseLogLevel(cfg.Logging.Level), cfg.Logging.File)
	if err != nil {
		logger = config.NullLogger()
	}

	format := output.DetectFormat(os.Stdout, output.ParseFormat(cfg.Output.DefaultFormat))
	formatter = output.NewFormatter(format, os.Stdout)

	cmdCtx = NewCommandContext(cfg, logger, formatter)
	SetCmdContext(cmd, cmdCtx)

	logger.Debug("siwf %s home=%s %s", formatVersion(buildInfo), cfg.Home, describeConfig(cfg))
	return nil
}

// cleanup writes a metrics summary to the debug log and closes the logger.
func cleanup() {
	if logger == nil {
		return
	}
	if logger.Level() == config.LogLevelDebug {
		if data, err := json.Marshal(metrics.Global.Snapshot()); err == nil {
			logger.Debug("metrics %s", data)
		}
	}
	_ = logger.Close()
}

// Config returns the global configuration.
func Config() *config.Config {
	return cfg
}

// Logger returns the global logger.
func Logger() *config.Logger {
	return logger
}

// Formatter returns the global output formatter.
func Formatter() *output.Formatter {
	return formatter
}

// Context returns the global command context.
func Context() *CommandContext {
	return cmdCtx
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: groupWallet, Title: "Wallet Operations:"},
		&cobra.Group{ID: groupLogin, Title: "Sign In:"},
		&cobra.Group{ID: groupTools, Title: "Gateway & Configuration:"},
	)
	rootCmd.SetHelpCommandGroupID(groupTools)

	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "siwf data directory (default: ~/.siwf)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
}
