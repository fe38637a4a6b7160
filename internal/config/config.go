// Package config provides configuration management for siwf.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/siwf/internal/fileutil"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Home    string        `yaml:"home" json:"home"`
	Gateway GatewayConfig `yaml:"gateway" json:"gateway"`
	SIWF    SIWFConfig    `yaml:"siwf" json:"siwf"`
	Wallet  WalletConfig  `yaml:"wallet" json:"wallet"`
	Output  OutputConfig  `yaml:"output" json:"output"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// GatewayConfig defines the backend gateway transport.
type GatewayConfig struct {
	BaseURL        string  `yaml:"base_url" json:"base_url"`
	Origin         string  `yaml:"origin,omitempty" json:"origin,omitempty"`
	TimeoutSeconds int     `yaml:"timeout_seconds" json:"timeout_seconds"`
	RatePerSecond  float64 `yaml:"rate_per_second" json:"rate_per_second"`
	Burst          int     `yaml:"burst" json:"burst"`
	MaxAttempts    int     `yaml:"max_attempts" json:"max_attempts"`
}

// SIWFConfig defines the provider request and the hosted login page.
type SIWFConfig struct {
	SignedRequest string `yaml:"signed_request,omitempty" json:"signed_request,omitempty"`
	RedirectURL   string `yaml:"redirect_url" json:"redirect_url"`

	// SDKCommand runs the SIWF SDK bridge for in-process logins. It is split
	// on whitespace into a program and its arguments.
	SDKCommand string `yaml:"sdk_command,omitempty" json:"sdk_command,omitempty"`
}

// WalletConfig defines local wallet behavior.
type WalletConfig struct {
	SS58Prefix  uint16 `yaml:"ss58_prefix" json:"ss58_prefix"`
	AutoApprove bool   `yaml:"auto_approve" json:"auto_approve"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format" json:"default_format"`
	Color         string `yaml:"color" json:"color"`
	Verbose       bool   `yaml:"verbose" json:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Load reads configuration from the specified file on top of the defaults.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, siwferr.WithCause(
			siwferr.WithDetails(siwferr.ErrConfigInvalid, map[string]string{"path": path}),
			err,
		)
	}
	return cfg, nil
}

// LoadOrDefault is Load with a missing file meaning defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	return cfg, err
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, data, 0o600, 0o750)
}

// Path returns the config file path inside home.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// DefaultHome returns the default siwf home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".siwf"
	}
	return filepath.Join(home, ".siwf")
}

// ExpandHome replaces a leading ~/ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Validate checks values that would otherwise fail later and far away.
func (c *Config) Validate() error {
	invalid := func(key, value, reason string) error {
		return siwferr.WithDetails(siwferr.ErrConfigInvalid, map[string]string{
			"key": key, "value": value, "reason": reason,
		})
	}

	if c.Gateway.BaseURL == "" {
		return invalid("gateway.base_url", "", "must not be empty")
	}
	if !strings.HasPrefix(c.Gateway.BaseURL, "/") && !isHTTPURL(c.Gateway.BaseURL) {
		return invalid("gateway.base_url", c.Gateway.BaseURL, "must be an http(s) URL or a /prefix")
	}
	if strings.HasPrefix(c.Gateway.BaseURL, "/") && !isHTTPURL(c.Gateway.Origin) {
		return invalid("gateway.origin", c.Gateway.Origin, "required for a relative base_url")
	}
	if c.Gateway.TimeoutSeconds < 0 {
		return invalid("gateway.timeout_seconds", strconv.Itoa(c.Gateway.TimeoutSeconds), "must not be negative")
	}
	if c.Gateway.MaxAttempts < 1 || c.Gateway.MaxAttempts > 10 {
		return invalid("gateway.max_attempts", strconv.Itoa(c.Gateway.MaxAttempts), "must be between 1 and 10")
	}
	if c.SIWF.RedirectURL != "" && !isHTTPURL(c.SIWF.RedirectURL) {
		return invalid("siwf.redirect_url", c.SIWF.RedirectURL, "must be an http(s) URL")
	}
	if c.Wallet.SS58Prefix > maxSS58Prefix {
		return invalid("wallet.ss58_prefix", strconv.Itoa(int(c.Wallet.SS58Prefix)), "must be at most 16383")
	}
	switch c.Output.DefaultFormat {
	case "auto", "text", "json":
	default:
		return invalid("output.default_format", c.Output.DefaultFormat, "must be auto, text or json")
	}
	return nil
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https")
}

// field binds a dotted key to its getter and setter.
type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringField(p func(c *Config) *string) field {
	return field{
		get: func(c *Config) string { return *p(c) },
		set: func(c *Config, v string) error { *p(c) = v; return nil },
	}
}

func intField(p func(c *Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*p(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return siwferr.WithDetails(siwferr.ErrInvalidInput, map[string]string{"value": v, "expected": "integer"})
			}
			*p(c) = n
			return nil
		},
	}
}

func boolField(p func(c *Config) *bool) field {
	return field{
		get: func(c *Config) string { return strconv.FormatBool(*p(c)) },
		set: func(c *Config, v string) error { *p(c) = parseBool(v); return nil },
	}
}

func oneOf(f field, valid ...string) field {
	set := f.set
	f.set = func(c *Config, v string) error {
		for _, ok := range valid {
			if v == ok {
				return set(c, v)
			}
		}
		return siwferr.WithDetails(siwferr.ErrInvalidInput, map[string]string{
			"value": v, "valid": strings.Join(valid, ", "),
		})
	}
	return f
}

//nolint:gochecknoglobals // Static key table
var fields = map[string]field{
	"home":                    stringField(func(c *Config) *string { return &c.Home }),
	"gateway.base_url":        stringField(func(c *Config) *string { return &c.Gateway.BaseURL }),
	"gateway.origin":          stringField(func(c *Config) *string { return &c.Gateway.Origin }),
	"gateway.timeout_seconds": intField(func(c *Config) *int { return &c.Gateway.TimeoutSeconds }),
	"gateway.burst":           intField(func(c *Config) *int { return &c.Gateway.Burst }),
	"gateway.max_attempts":    intField(func(c *Config) *int { return &c.Gateway.MaxAttempts }),
	"gateway.rate_per_second": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Gateway.RatePerSecond, 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return siwferr.WithDetails(siwferr.ErrInvalidInput, map[string]string{"value": v, "expected": "number"})
			}
			c.Gateway.RatePerSecond = f
			return nil
		},
	},
	"siwf.signed_request": stringField(func(c *Config) *string { return &c.SIWF.SignedRequest }),
	"siwf.redirect_url":   stringField(func(c *Config) *string { return &c.SIWF.RedirectURL }),
	"siwf.sdk_command":    stringField(func(c *Config) *string { return &c.SIWF.SDKCommand }),
	"wallet.ss58_prefix": {
		get: func(c *Config) string { return strconv.Itoa(int(c.Wallet.SS58Prefix)) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 16)
			if err != nil || n > maxSS58Prefix {
				return siwferr.WithDetails(siwferr.ErrInvalidInput, map[string]string{"value": v, "expected": "0-16383"})
			}
			c.Wallet.SS58Prefix = uint16(n)
			return nil
		},
	},
	"wallet.auto_approve":   boolField(func(c *Config) *bool { return &c.Wallet.AutoApprove }),
	"output.default_format": oneOf(stringField(func(c *Config) *string { return &c.Output.DefaultFormat }), "auto", "text", "json"),
	"output.color":          oneOf(stringField(func(c *Config) *string { return &c.Output.Color }), "auto", "always", "never"),
	"output.verbose":        boolField(func(c *Config) *bool { return &c.Output.Verbose }),
	"logging.level":         oneOf(stringField(func(c *Config) *string { return &c.Logging.Level }), "off", "error", "debug"),
	"logging.file":          stringField(func(c *Config) *string { return &c.Logging.File }),
}

// Keys lists every settable key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value at a dotted key such as gateway.base_url.
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", unknownKey(key)
	}
	return f.get(c), nil
}

// Set assigns the value at a dotted key.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return unknownKey(key)
	}
	if err := f.set(c, value); err != nil {
		return siwferr.Wrap(err, "setting %s", key)
	}
	return nil
}

func unknownKey(key string) error {
	return siwferr.WithSuggestion(
		siwferr.WithDetails(siwferr.ErrUnknownConfigKey, map[string]string{"key": key}),
		fmt.Sprintf("valid keys: %s", strings.Join(Keys(), ", ")),
	)
}
