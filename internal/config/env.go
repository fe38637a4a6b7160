package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/mrz1836/go-sanitize"
)

// Environment variable names.
const (
	EnvHome          = "SIWF_HOME"
	EnvGatewayURL    = "SIWF_GATEWAY_URL"
	EnvRedirectURL   = "SIWF_REDIRECT_URL"
	EnvSignedRequest = "SIWF_SIGNED_REQUEST"
	EnvSDKCommand    = "SIWF_SDK_COMMAND"
	EnvOutputFormat  = "SIWF_OUTPUT_FORMAT"
	EnvVerbose       = "SIWF_VERBOSE"
	EnvLogLevel      = "SIWF_LOG_LEVEL"
	EnvNoColor       = "NO_COLOR"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvGatewayURL); v != "" {
		cfg.Gateway.BaseURL = SanitizeURL(v)
	}

	if v := os.Getenv(EnvRedirectURL); v != "" {
		cfg.SIWF.RedirectURL = SanitizeURL(v)
	}

	if v := os.Getenv(EnvSignedRequest); v != "" {
		cfg.SIWF.SignedRequest = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvSDKCommand); v != "" {
		cfg.SIWF.SDKCommand = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL cleans a URL string by removing invalid characters and trimming
// whitespace left behind by copy and paste.
func SanitizeURL(url string) string {
	return sanitize.URL(strings.TrimSpace(url))
}
