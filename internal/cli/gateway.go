package cli

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/mrz1836/siwf/internal/output"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// maxGatewayBody caps how much of a response is printed.
const maxGatewayBody = 1 << 20

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var gatewayData string

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Call the backend gateway",
	Long: `Send requests to the backend gateway through the same transport the login
flow uses: base URL resolution, rate limiting, retries and error decoding.`,
	GroupID: groupTools,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var gatewayGetCmd = &cobra.Command{
	Use:     "get PATH",
	Short:   "Send a GET request",
	Long:    `Send a GET request to PATH, relative to gateway.base_url.`,
	Example: `  siwf gateway get /v1/accounts/siwf`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGateway(cmd, http.MethodGet, args[0], nil)
	},
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var gatewayPostCmd = &cobra.Command{
	Use:     "post PATH",
	Short:   "Send a POST request with a JSON body",
	Long:    `Send a POST request to PATH with the JSON given by --data. POST is never retried.`,
	Example: `  siwf gateway post /v1/accounts/siwf --data '{"authorizationCode":"abc"}'`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if gatewayData == "" {
			gatewayData = "{}"
		}
		if !json.Valid([]byte(gatewayData)) {
			return siwferr.WithSuggestion(siwferr.ErrInvalidInput, "--data must be valid JSON")
		}
		return runGateway(cmd, http.MethodPost, args[0], json.RawMessage(gatewayData))
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(gatewayCmd)
	gatewayCmd.AddCommand(gatewayGetCmd, gatewayPostCmd)
	gatewayPostCmd.Flags().StringVar(&gatewayData, "data", "", "JSON request body")
}

// gatewayResult is the JSON shape of a gateway response.
type gatewayResult struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
	Text   string          `json:"text,omitempty"`
}

func runGateway(cmd *cobra.Command, method, path string, body any) error {
	cc := GetCmdContext(cmd)

	client, err := cc.Gateway()
	if err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(cmd, 0)
	defer cancel()

	resp, err := client.Fetch(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayBody))
	if err != nil {
		return siwferr.WithCause(siwferr.ErrGateway, err)
	}

	if cc.Fmt.IsJSON() {
		res := gatewayResult{Status: resp.StatusCode}
		if json.Valid(data) {
			res.Body = data
		} else {
			res.Text = string(data)
		}
		return output.WriteJSON(cmd.OutOrStdout(), res)
	}

	w := cmd.OutOrStdout()
	_, err = w.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		outln(w)
	}
	return err
}
