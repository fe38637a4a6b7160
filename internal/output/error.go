package output

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// ErrorOutput is the JSON envelope for a failed command.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes the failure.
type ErrorDetail struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	ExitCode   int               `json:"exit_code"`
}

// NewErrorDetail flattens err into its displayable parts.
func NewErrorDetail(err error) ErrorDetail {
	var se *siwferr.SiwfError
	if !errors.As(err, &se) {
		return ErrorDetail{
			Code:     siwferr.ErrGeneral.Code,
			Message:  err.Error(),
			ExitCode: siwferr.ExitGeneral,
		}
	}

	msg := se.Message
	if se.Cause != nil && se.Cause.Error() != msg {
		msg = fmt.Sprintf("%s: %v", msg, se.Cause)
	}
	return ErrorDetail{
		Code:       se.Code,
		Message:    msg,
		Details:    se.Details,
		Suggestion: se.Suggestion,
		ExitCode:   se.ExitCode,
	}
}

// FormatError writes err to w. A nil error writes nothing.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}

	detail := NewErrorDetail(err)
	if format == FormatJSON {
		return WriteJSON(w, ErrorOutput{Error: detail})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", detail.Message)

	if len(detail.Details) > 0 {
		keys := make([]string, 0, len(detail.Details))
		for k := range detail.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("\nDetails:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, detail.Details[k])
		}
	}

	if detail.Suggestion != "" {
		fmt.Fprintf(&sb, "\nSuggestion: %s\n", detail.Suggestion)
	}

	_, werr := io.WriteString(w, sb.String())
	return werr
}

// FormatSuccess writes a one-line success message.
func FormatSuccess(w io.Writer, message string, format Format) error {
	if format == FormatJSON {
		return WriteJSON(w, map[string]string{"status": "success", "message": message})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}
