package usecases

import (
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ValidateAddress reports whether address is a base58 encoded 32-byte account key.
func ValidateAddress(address string) bool {
	_, err := ParseAddress(address)
	return err == nil
}

// ParseAddress decodes a recipient address, rejecting surrounding whitespace
// and anything that is not exactly one public key long.
func ParseAddress(address string) (solana.PublicKey, error) {
	if address == "" || strings.TrimSpace(address) != address {
		return solana.PublicKey{}, errInvalidAddressFormat
	}

	key, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, err
	}

	return key, nil
}
