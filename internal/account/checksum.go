package account

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// ChecksumAddress converts an Ethereum address to EIP-55 checksum form.
// Invalid input is returned unchanged.
func ChecksumAddress(address string) string {
	if !Validate(address, KindEthereum) {
		return address
	}
	return common.HexToAddress(address).Hex()
}

// VerifyChecksum checks the EIP-55 checksum of a mixed-case address.
// All-lowercase and all-uppercase addresses carry no checksum and pass.
func VerifyChecksum(address string) error {
	if err := ValidateAddress(address, KindEthereum); err != nil {
		return err
	}

	hexPart := address[2:]
	if hexPart == strings.ToLower(hexPart) || hexPart == strings.ToUpper(hexPart) {
		return nil
	}

	expected := ChecksumAddress(address)
	if address != expected {
		return siwferr.WithDetails(siwferr.ErrInvalidAccountID, map[string]string{
			"expected": expected,
			"actual":   address,
		})
	}
	return nil
}

// SameAddress compares two addresses of the given kind. Ethereum addresses
// compare case-insensitively.
func SameAddress(a, b string, kind Kind) bool {
	if kind == KindEthereum {
		return strings.EqualFold(a, b)
	}
	return a == b
}
