package siwf

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/mrz1836/siwf/internal/account"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// DefaultSignedRequest is the testnet provider request used when none is
// configured. It asks for permissions 6-10, an email or phone credential,
// and a graph key, with a localhost callback.
const DefaultSignedRequest = "eyJyZXF1ZXN0ZWRTaWduYXR1cmVzIjp7InB1YmxpY0tleSI6eyJlbmNvZGVkVmFsdWUiOiJmNmEySGY3V0JrdzU1VDh5WGd6N0pCSGYyaVpGbkdyY29aV3dGcWozTW5uaW9VTjRuIiwiZW5jb2RpbmciOiJiYXNlNTgiLCJmb3JtYXQiOiJzczU4IiwidHlwZSI6IlNyMjU1MTkifSwic2lnbmF0dXJlIjp7ImFsZ28iOiJTUjI1NTE5IiwiZW5jb2RpbmciOiJiYXNlMTYiLCJlbmNvZGVkVmFsdWUiOiIweDdhY2RjNjQyN2NiMmRlMWE4OGUyMzFhM2JlZDQyMzdlYjA5MjUxMzNlZWRmOGI1MDU4NTMzYzA5ZDIzZDgzNmFmZTlhNjk1MjM3YjdkNzgyNmVlMzc4OGEyZTQ4YzRmZTkzZWM3ZjM2Y2U1YjI3ODUwNjM3ZTJkMGQ3NTIyNjgyIn0sInBheWxvYWQiOnsiY2FsbGJhY2siOiJodHRwOi8vbG9jYWxob3N0OjMwMDAvbG9naW4vY2FsbGJhY2siLCJwZXJtaXNzaW9ucyI6WzYsNyw4LDksMTBdfX0sInJlcXVlc3RlZENyZWRlbnRpYWxzIjpbeyJhbnlPZiI6W3sidHlwZSI6IlZlcmlmaWVkRW1haWxBZGRyZXNzQ3JlZGVudGlhbCIsImhhc2giOlsiYmNpcWU0cW9jemhmdGljaTRkemZ2ZmJlbDdmbzRoNHNyNWdyY28zb292d3lrNnk0eW5mNDR0c2kiXX0seyJ0eXBlIjoiVmVyaWZpZWRQaG9uZU51bWJlckNyZWRlbnRpYWwiLCJoYXNoIjpbImJjaXFqc3BuYndwYzN3ang0ZmV3Y2VrNWRheXNkanBiZjV4amltejV3bnU1dWo3ZTN2dTJ1d25xIl19XX0seyJ0eXBlIjoiVmVyaWZpZWRHcmFwaEtleUNyZWRlbnRpYWwiLCJoYXNoIjpbImJjaXFtZHZteGQ1NHp2ZTVraWZ5Y2dzZHRvYWhzNWVjZjRoYWwydHMzZWV4a2dvY3ljNW9jYTJ5Il19XX0"

// SignedRequest is the decoded provider request token.
type SignedRequest struct {
	RequestedSignatures  RequestedSignatures `json:"requestedSignatures"`
	RequestedCredentials []CredentialRequest `json:"requestedCredentials,omitempty"`
}

// RequestedSignatures is the provider-signed part of the request.
type RequestedSignatures struct {
	PublicKey EncodedKey       `json:"publicKey"`
	Signature EncodedSignature `json:"signature"`
	Payload   RequestPayload   `json:"payload"`
}

// EncodedKey is the provider public key.
type EncodedKey struct {
	EncodedValue string `json:"encodedValue"`
	Encoding     string `json:"encoding"`
	Format       string `json:"format"`
	Type         string `json:"type"`
}

// EncodedSignature is the provider signature over the payload.
type EncodedSignature struct {
	Algo         string `json:"algo"`
	Encoding     string `json:"encoding"`
	EncodedValue string `json:"encodedValue"`
}

// RequestPayload is what the provider signed.
type RequestPayload struct {
	Callback    string `json:"callback"`
	Permissions []int  `json:"permissions"`
}

// CredentialRequest asks for one credential type, or any of a set.
type CredentialRequest struct {
	Type  string              `json:"type,omitempty"`
	Hash  []string            `json:"hash,omitempty"`
	AnyOf []CredentialRequest `json:"anyOf,omitempty"`
}

// DecodeSignedRequest parses a base64url token.
func DecodeSignedRequest(token string) (*SignedRequest, error) {
	token = strings.TrimRight(strings.TrimSpace(token), "=")
	if token == "" {
		return nil, invalidRequest("signed request is empty")
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, invalidRequest("signed request is not base64url")
	}
	if !utf8.Valid(raw) {
		return nil, invalidRequest("signed request is not valid UTF-8")
	}

	var req SignedRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, invalidRequest("signed request is not JSON")
	}
	if req.RequestedSignatures.PublicKey.EncodedValue == "" {
		return nil, invalidRequest("signed request has no provider public key")
	}
	if req.RequestedSignatures.Signature.EncodedValue == "" {
		return nil, invalidRequest("signed request has no provider signature")
	}
	if req.RequestedSignatures.Payload.Callback == "" {
		return nil, invalidRequest("signed request has no callback")
	}
	return &req, nil
}

// Encode returns the base64url token for r.
func (r *SignedRequest) Encode() (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Permissions returns the requested delegation schema IDs.
func (r *SignedRequest) Permissions() []int {
	return append([]int(nil), r.RequestedSignatures.Payload.Permissions...)
}

// Callback returns the provider callback URL.
func (r *SignedRequest) Callback() string {
	return r.RequestedSignatures.Payload.Callback
}

// CredentialTypes lists every credential type named in the request,
// including alternatives.
func (r *SignedRequest) CredentialTypes() []string {
	var out []string
	var walk func([]CredentialRequest)
	walk = func(reqs []CredentialRequest) {
		for _, c := range reqs {
			if c.Type != "" {
				out = append(out, c.Type)
			}
			walk(c.AnyOf)
		}
	}
	walk(r.RequestedCredentials)
	return out
}

// ProviderKey decodes an SS58 provider public key.
func (r *SignedRequest) ProviderKey() ([]byte, uint16, error) {
	pk := r.RequestedSignatures.PublicKey
	if !strings.EqualFold(pk.Format, "ss58") {
		return nil, 0, siwferr.WithDetails(
			siwferr.WithMessage(siwferr.ErrInvalidInput, "provider key is not ss58"),
			map[string]string{"format": pk.Format},
		)
	}
	return account.DecodeSS58(pk.EncodedValue)
}

func invalidRequest(reason string) error {
	return siwferr.WithDetails(siwferr.ErrInvalidSignedRequest, map[string]string{"reason": reason})
}
