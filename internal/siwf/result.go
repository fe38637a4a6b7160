package siwf

import "encoding/json"

// LoginOptions are user hints passed through to the SDK unchanged.
type LoginOptions struct {
	Handle string `json:"handle,omitempty"`
	Email  string `json:"email,omitempty"`
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	MsaID       string            `json:"msaId,omitempty"`
	AccountID   string            `json:"accountId"`
	Handle      string            `json:"handle,omitempty"`
	Credentials []json.RawMessage `json:"credentials"`
	IsNewUser   bool              `json:"isNewUser"`
}

// newResult reshapes an SDK response. A sign-up reference marks a new
// registration; credentials are never nil.
func newResult(accountID, handle string, resp *StartResponse) LoginResult {
	return LoginResult{
		MsaID:       resp.MsaID,
		AccountID:   accountID,
		Handle:      handle,
		Credentials: copyCredentials(resp.RawCredentials),
		IsNewUser:   resp.SignUpReferenceID != "",
	}
}

func (r LoginResult) clone() LoginResult {
	r.Credentials = copyCredentials(r.Credentials)
	return r
}

func copyCredentials(in []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, len(in))
	for i, c := range in {
		out[i] = append(json.RawMessage(nil), c...)
	}
	return out
}

// MaskEmail hides an email address for logging.
func MaskEmail(email string) string {
	if email == "" {
		return "none"
	}
	return "***@***.***"
}
