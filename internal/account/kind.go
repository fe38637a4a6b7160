// Package account validates and formats account identifiers for the two
// wallet ecosystems the bridge supports.
package account

import (
	"strings"

	"github.com/agnivade/levenshtein"

	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// Kind identifies a wallet ecosystem.
type Kind string

// Supported wallet kinds. The values match the wallet type names the SIWF
// reference client uses.
const (
	KindUnknown   Kind = ""
	KindEthereum  Kind = "metamask"
	KindSubstrate Kind = "polkadot"
)

// maxSuggestDistance bounds how far a typo may be from a known name before
// no suggestion is offered.
const maxSuggestDistance = 3

//nolint:gochecknoglobals // Lookup table for kind aliases
var kindAliases = map[string]Kind{
	"metamask":  KindEthereum,
	"eth":       KindEthereum,
	"ethereum":  KindEthereum,
	"evm":       KindEthereum,
	"polkadot":  KindSubstrate,
	"substrate": KindSubstrate,
	"dot":       KindSubstrate,
	"frequency": KindSubstrate,
}

// Kinds returns all supported wallet kinds.
func Kinds() []Kind {
	return []Kind{KindEthereum, KindSubstrate}
}

// String returns the canonical name.
func (k Kind) String() string {
	if k == KindUnknown {
		return "unknown"
	}
	return string(k)
}

// DisplayName returns a human label for the kind.
func (k Kind) DisplayName() string {
	switch k {
	case KindEthereum:
		return "MetaMask (Ethereum)"
	case KindSubstrate:
		return "Polkadot.js (Substrate)"
	default:
		return "Unknown"
	}
}

// ParseKind maps a name or alias to a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if k, ok := kindAliases[name]; ok {
		return k, nil
	}

	err := siwferr.WithDetails(siwferr.ErrUnknownWalletKind, map[string]string{"kind": s})
	if suggestion := suggestKind(name); suggestion != "" {
		err = siwferr.WithSuggestion(err, "did you mean '"+suggestion+"'?")
	}
	return KindUnknown, err
}

// suggestKind returns the closest known alias, or "" if nothing is close.
func suggestKind(input string) string {
	best := ""
	bestDist := maxSuggestDistance + 1
	for alias := range kindAliases {
		d := levenshtein.ComputeDistance(input, alias)
		if d < bestDist || (d == bestDist && alias < best) {
			best = alias
			bestDist = d
		}
	}
	if bestDist > maxSuggestDistance {
		return ""
	}
	return best
}
