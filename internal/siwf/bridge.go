package siwf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/mrz1836/siwf/internal/gateway"
	"github.com/mrz1836/siwf/internal/signer"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// Bridge message types. The host writes start and reply; the SDK writes
// the rest.
const (
	msgStart      = "start"
	msgReply      = "reply"
	msgSign       = "sign"
	msgFetch      = "fetch"
	msgMsaCreated = "msaCreated"
	msgResult     = "result"
	msgError      = "error"
)

// bridgeMessage is one line of the bridge protocol.
type bridgeMessage struct {
	ID   int64  `json:"id,omitempty"`
	Type string `json:"type"`

	Start    *bridgeStart    `json:"start,omitempty"`
	Sign     *signer.Request `json:"sign,omitempty"`
	Fetch    *bridgeFetch    `json:"fetch,omitempty"`
	Account  *Account        `json:"account,omitempty"`
	Response *StartResponse  `json:"response,omitempty"`

	Result string          `json:"result,omitempty"`
	Status int             `json:"status,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
	Error  *bridgeError    `json:"error,omitempty"`
}

type bridgeStart struct {
	AccountID     string `json:"accountId"`
	SignedRequest string `json:"signedRequest"`
	Handle        string `json:"handle,omitempty"`
	Email         string `json:"email,omitempty"`
}

type bridgeFetch struct {
	Method string          `json:"method"`
	Path   string          `json:"path"`
	Body   json.RawMessage `json:"body,omitempty"`
}

type bridgeError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

// ProcessSDK runs an external SDK program and speaks the bridge protocol
// with it: one JSON message per line on its stdin and stdout. The program
// asks the host to sign and fetch, and ends with a result or an error.
type ProcessSDK struct {
	Command string
	Args    []string

	// Stderr receives the program's diagnostics. Nil discards them.
	Stderr io.Writer
	Logger Logger
}

// Start launches the program and serves it until it answers.
func (p *ProcessSDK) Start(ctx context.Context, params StartParams) (*StartResponse, error) {
	if strings.TrimSpace(p.Command) == "" {
		return nil, siwferr.WithMessage(siwferr.ErrConfigInvalid, "no SIWF SDK command configured")
	}

	cmd := exec.CommandContext(ctx, p.Command, p.Args...) //nolint:gosec // G204: command comes from the user's config
	cmd.Stderr = p.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening SDK stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening SDK stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, siwferr.WithCause(
			siwferr.WithMessage(siwferr.ErrSDKProtocol, "starting SIWF SDK "+p.Command), err)
	}

	resp, err := ServeBridge(ctx, stdout, stdin, params, p.Logger)
	_ = stdin.Close()
	waitErr := cmd.Wait()
	if err != nil {
		return nil, err
	}
	if waitErr != nil && p.Logger != nil {
		p.Logger.Debug("SIWF SDK exited after answering: %v", waitErr)
	}
	return resp, nil
}

// ServeBridge runs the host side of the bridge protocol over r and w. It
// sends the start message, answers requests one at a time and returns when
// the SDK reports a result or an error.
func ServeBridge(ctx context.Context, r io.Reader, w io.Writer, params StartParams, logger Logger) (*StartResponse, error) {
	if logger == nil {
		logger = nopLogger{}
	}
	enc := json.NewEncoder(w)
	dec := json.NewDecoder(r)

	err := enc.Encode(bridgeMessage{Type: msgStart, Start: &bridgeStart{
		AccountID:     params.AccountID,
		SignedRequest: params.SignedRequest,
		Handle:        params.Handle,
		Email:         params.Email,
	}})
	if err != nil {
		return nil, bridgeFailure("sending start", err)
	}

	for {
		var msg bridgeMessage
		if err := dec.Decode(&msg); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, io.EOF) {
				return nil, siwferr.WithMessage(siwferr.ErrSDKProtocol, "SIWF SDK exited without a result")
			}
			return nil, bridgeFailure("reading SDK message", err)
		}

		switch msg.Type {
		case msgSign:
			reply := answerSign(ctx, params.Sign, msg)
			if err := enc.Encode(reply); err != nil {
				return nil, bridgeFailure("sending sign reply", err)
			}
		case msgFetch:
			reply := answerFetch(ctx, params.Fetch, msg)
			if err := enc.Encode(reply); err != nil {
				return nil, bridgeFailure("sending fetch reply", err)
			}
		case msgMsaCreated:
			if msg.Account != nil && params.OnMsaCreated != nil {
				params.OnMsaCreated(*msg.Account)
			}
		case msgResult:
			if msg.Response == nil {
				return nil, siwferr.WithMessage(siwferr.ErrSDKProtocol, "SIWF SDK result has no response")
			}
			return msg.Response, nil
		case msgError:
			// Plain text so the orchestrator can reword known failures.
			if msg.Error == nil || msg.Error.Message == "" {
				return nil, errors.New("SIWF SDK failed without a message")
			}
			return nil, errors.New(msg.Error.Message)
		default:
			logger.Error("unexpected SDK message type %q", msg.Type)
			return nil, siwferr.WithDetails(
				siwferr.WithMessage(siwferr.ErrSDKProtocol, "unexpected SIWF SDK message"),
				map[string]string{"type": msg.Type},
			)
		}
	}
}

func answerSign(ctx context.Context, sign SignatureFunc, msg bridgeMessage) bridgeMessage {
	reply := bridgeMessage{ID: msg.ID, Type: msgReply}
	if sign == nil || msg.Sign == nil {
		reply.Error = &bridgeError{Code: siwferr.ErrInvalidInput.Code, Message: "sign request without a signer"}
		return reply
	}
	sig, err := sign(ctx, *msg.Sign)
	if err != nil {
		reply.Error = toBridgeError(err)
		return reply
	}
	reply.Result = sig
	return reply
}

func answerFetch(ctx context.Context, fetch FetchFunc, msg bridgeMessage) bridgeMessage {
	reply := bridgeMessage{ID: msg.ID, Type: msgReply}
	if fetch == nil || msg.Fetch == nil {
		reply.Error = &bridgeError{Code: siwferr.ErrInvalidInput.Code, Message: "fetch request without a transport"}
		return reply
	}

	var body any
	if len(msg.Fetch.Body) > 0 {
		body = msg.Fetch.Body
	}
	resp, err := fetch(ctx, msg.Fetch.Method, msg.Fetch.Path, body)
	if err != nil {
		reply.Error = toBridgeError(err)
		return reply
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		reply.Error = toBridgeError(err)
		return reply
	}
	reply.Status = resp.StatusCode
	if len(data) > 0 {
		if json.Valid(data) {
			reply.Body = data
		} else {
			reply.Body, _ = json.Marshal(string(data))
		}
	}
	return reply
}

func toBridgeError(err error) *bridgeError {
	be := &bridgeError{Message: err.Error()}

	var ge *gateway.Error
	if errors.As(err, &ge) {
		be.Status = ge.Status
		be.Code = ge.Code
		return be
	}
	var se *siwferr.SiwfError
	if errors.As(err, &se) {
		be.Code = se.Code
	}
	return be
}

func bridgeFailure(what string, err error) error {
	return siwferr.WithCause(siwferr.WithMessage(siwferr.ErrSDKProtocol, what), err)
}
