package account

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// SS58 network prefixes.
const (
	SS58PrefixGeneric   uint16 = 42
	SS58PrefixFrequency uint16 = 90
)

const (
	ss58PublicKeyLength = 32
	ss58ChecksumLength  = 2
	ss58MaxPrefix       = 16383
)

//nolint:gochecknoglobals // SS58 checksum domain separator
var ss58Context = []byte("SS58PRE")

var (
	// ErrInvalidPublicKey indicates a public key of the wrong length.
	ErrInvalidPublicKey = errors.New("public key must be 32 bytes")

	// ErrInvalidSS58 indicates an address that does not decode as SS58.
	ErrInvalidSS58 = errors.New("invalid SS58 address")

	// ErrInvalidPrefix indicates a network prefix outside the SS58 range.
	ErrInvalidPrefix = errors.New("SS58 prefix out of range")
)

// EncodeSS58 encodes a 32-byte public key as an SS58 address for prefix.
func EncodeSS58(publicKey []byte, prefix uint16) (string, error) {
	if len(publicKey) != ss58PublicKeyLength {
		return "", ErrInvalidPublicKey
	}

	pre, err := encodePrefix(prefix)
	if err != nil {
		return "", err
	}

	payload := make([]byte, 0, len(pre)+ss58PublicKeyLength+ss58ChecksumLength)
	payload = append(payload, pre...)
	payload = append(payload, publicKey...)

	sum := ss58Checksum(payload)
	payload = append(payload, sum[:ss58ChecksumLength]...)

	return base58.Encode(payload), nil
}

// DecodeSS58 returns the public key and network prefix of an SS58 address.
func DecodeSS58(address string) ([]byte, uint16, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrInvalidSS58, err)
	}
	if len(raw) < 1 {
		return nil, 0, ErrInvalidSS58
	}

	prefix, preLen, err := decodePrefix(raw)
	if err != nil {
		return nil, 0, err
	}

	if len(raw) != preLen+ss58PublicKeyLength+ss58ChecksumLength {
		return nil, 0, ErrInvalidSS58
	}

	body := raw[:preLen+ss58PublicKeyLength]
	sum := ss58Checksum(body)
	if !bytes.Equal(sum[:ss58ChecksumLength], raw[len(body):]) {
		return nil, 0, fmt.Errorf("%w: checksum mismatch", ErrInvalidSS58)
	}

	pub := make([]byte, ss58PublicKeyLength)
	copy(pub, raw[preLen:])
	return pub, prefix, nil
}

func ss58Checksum(data []byte) [blake2b.Size]byte {
	buf := make([]byte, 0, len(ss58Context)+len(data))
	buf = append(buf, ss58Context...)
	buf = append(buf, data...)
	return blake2b.Sum512(buf)
}

// encodePrefix uses one byte below 64 and the two-byte form up to 16383.
func encodePrefix(prefix uint16) ([]byte, error) {
	switch {
	case prefix < 64:
		return []byte{byte(prefix)}, nil
	case prefix <= ss58MaxPrefix:
		first := byte((prefix&0b1111_1100)>>2) | 0b0100_0000
		second := byte(prefix>>8) | byte((prefix&0b11)<<6)
		return []byte{first, second}, nil
	default:
		return nil, ErrInvalidPrefix
	}
}

func decodePrefix(raw []byte) (uint16, int, error) {
	first := raw[0]
	switch {
	case first < 64:
		return uint16(first), 1, nil
	case first < 128:
		if len(raw) < 2 {
			return 0, 0, ErrInvalidSS58
		}
		second := raw[1]
		lower := uint16(first<<2) | uint16(second>>6)
		upper := uint16(second & 0b0011_1111)
		return (lower & 0xff) | (upper << 8), 2, nil
	default:
		return 0, 0, ErrInvalidPrefix
	}
}
