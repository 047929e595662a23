package usecases

import (
	"math/big"
	"strings"

	"github.com/sand/solnests/backend/internal/core/ports"
	"github.com/shopspring/decimal"
)

// maxWholeDigits is the number of integer digits of the largest SOL amount
// that fits uint64 lamports (18446744073.709551615).
const maxWholeDigits = 11

// ParseLamports converts a decimal SOL amount into lamports without going
// through floating point. Amounts with sub-lamport precision, non-positive
// amounts and amounts beyond the uint64 range are rejected.
func ParseLamports(amount string) (uint64, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return 0, ports.ErrInvalidAmount
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, ports.ErrInvalidAmount
	}

	if !value.IsPositive() {
		return 0, ports.ErrInvalidAmount
	}

	// Bounds the integer part before anything is scaled, so an exponent like
	// 1e99999999 is rejected without materialising the number.
	if value.NumDigits()+int(value.Exponent()) > maxWholeDigits {
		return 0, ports.ErrInvalidAmount
	}

	lamports := value.Shift(ports.LamportsExponent)
	if !lamports.IsInteger() {
		return 0, ports.ErrInvalidAmount
	}

	n := lamports.BigInt()
	if !n.IsUint64() {
		return 0, ports.ErrInvalidAmount
	}

	return n.Uint64(), nil
}

// FormatLamports renders lamports as a decimal SOL amount.
func FormatLamports(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -ports.LamportsExponent).String()
}
