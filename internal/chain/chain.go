// Package chain holds the chain descriptor the core is configured with and the
// account and amount conventions of EVM chains.
package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// DIDPrefix is the method prefix used by the messaging layer for accounts.
const DIDPrefix = "eip155:"

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidAmount  = errors.New("invalid amount")
)

// Chain describes the network whose native currency rewards are paid in.
type Chain struct {
	ID       int64
	Name     string
	Currency string
	Decimals int32
}

// NormalizeAddress validates a hex account address and returns its EIP-55
// checksummed form.
func NormalizeAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s).Hex(), nil
}

// IsZeroAddress reports whether s is the zero account.
func IsZeroAddress(s string) bool {
	return common.HexToAddress(s) == (common.Address{})
}

// AddressFromDID accepts "eip155:<address>", the CAIP-10 form
// "eip155:<chain id>:<address>", or a bare address.
func AddressFromDID(did string) (string, error) {
	did = strings.TrimSpace(did)
	if strings.HasPrefix(did, DIDPrefix) {
		rest := strings.TrimPrefix(did, DIDPrefix)
		if i := strings.LastIndex(rest, ":"); i >= 0 {
			rest = rest[i+1:]
		}
		did = rest
	}
	return NormalizeAddress(did)
}

// DID renders an address the way the messaging layer expects it.
func DID(address string) string {
	return DIDPrefix + address
}

// ParseAmount converts a decimal amount in native units ("0.1") to the
// smallest unit. Negative values and values finer than the unit are rejected.
func ParseAmount(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, decimals)
	}
	return scaled.BigInt(), nil
}

// ParseWei parses an integer amount already expressed in the smallest unit.
func ParseWei(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v, nil
}

// FormatAmount renders a smallest-unit amount in native units.
func FormatAmount(wei *big.Int, decimals int32) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -decimals).String()
}
