package wallet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// payloadPreviewLimit caps how much of a payload the terminal prompt shows.
const payloadPreviewLimit = 240

// TerminalApprover asks for approval on a terminal.
type TerminalApprover struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalApprover creates an approver reading answers from in.
func NewTerminalApprover(in io.Reader, out io.Writer) *TerminalApprover {
	return &TerminalApprover{in: bufio.NewReader(in), out: out}
}

// Approve prints the request and reads a y/N answer.
func (a *TerminalApprover) Approve(ctx context.Context, p Prompt) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	payload := p.Payload
	if len(payload) > payloadPreviewLimit {
		payload = payload[:payloadPreviewLimit] + "..."
	}

	_, _ = fmt.Fprintf(a.out, "\n%s signature request\n", p.Kind.DisplayName())
	_, _ = fmt.Fprintf(a.out, "  Account: %s\n", p.Address)
	_, _ = fmt.Fprintf(a.out, "  Method:  %s\n", p.Method)
	_, _ = fmt.Fprintf(a.out, "  Payload: %s\n", payload)
	_, _ = fmt.Fprint(a.out, "Sign this request? [y/N]: ")

	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, fmt.Errorf("reading approval: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// RequireApproval runs the prompt and converts a refusal into a wallet
// rejection error.
func RequireApproval(ctx context.Context, a Approver, p Prompt) error {
	if a == nil {
		return nil
	}

	ok, err := a.Approve(ctx, p)
	if err != nil {
		return siwferr.WithCause(siwferr.ErrWalletRejected, err)
	}
	if !ok {
		return siwferr.WithDetails(siwferr.ErrWalletRejected, map[string]string{
			"method": p.Method,
		})
	}
	return nil
}
