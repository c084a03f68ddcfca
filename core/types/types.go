package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address identifies a principal on the ledger. The module never interprets
// the bytes; signature verification happens upstream of this component.
type Address [20]byte

// ParseAddress decodes a hex-encoded address, accepting an optional 0x prefix.
func ParseAddress(s string) (Address, error) {
	var addr Address
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("invalid address length %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// Hex returns the canonical lowercase hex encoding without prefix.
func (a Address) Hex() string { return hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

// IsZero reports whether the address is the zero value, used to detect unset
// optional principals.
func (a Address) IsZero() bool { return a == Address{} }

// Account captures the ledger-side balance for a principal. The escrow module
// moves value between accounts exclusively through the state Transfer
// primitive.
type Account struct {
	Balance uint64
	Nonce   uint64
}

// Event represents a structured audit record emitted after a successful
// mutating operation.
type Event struct {
	Type       string
	Attributes map[string]string
}
