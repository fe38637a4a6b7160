package account

import (
	"regexp"

	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// SubstrateMinLength is the shortest string accepted as a Substrate account.
// Real checksum validation is left to the SIWF SDK.
const SubstrateMinLength = 40

//nolint:gochecknoglobals // Compiled once
var ethAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Validate reports whether address has the canonical shape for kind.
func Validate(address string, kind Kind) bool {
	switch kind {
	case KindEthereum:
		return ethAddressPattern.MatchString(address)
	case KindSubstrate:
		return len(address) >= SubstrateMinLength
	default:
		return false
	}
}

// ValidateAddress is Validate returning an error suitable for display.
func ValidateAddress(address string, kind Kind) error {
	if Validate(address, kind) {
		return nil
	}
	return siwferr.WithMessage(
		siwferr.WithDetails(siwferr.ErrInvalidAccountID, map[string]string{
			"wallet_kind": kind.String(),
		}),
		"Invalid account ID format for "+kind.String()+": "+address,
	)
}
