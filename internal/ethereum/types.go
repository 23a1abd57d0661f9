// Package ethereum provides Ethereum-specific types and utilities.
package ethereum

import (
	"encoding/json"
	"fmt"
)

// Address represents an Ethereum address (20 bytes).
type Address [20]byte

// Hash represents a 32-byte hash.
type Hash [32]byte

// MarshalJSON implements json.Marshaler for Address.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("0x%x", a[:]))
}

// UnmarshalJSON implements json.Unmarshaler for Address.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := DecodeAddress(s)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// String returns the hex string representation of the address.
func (a Address) String() string {
	return fmt.Sprintf("0x%x", a[:])
}

// Hex returns the hex string with 0x prefix.
func (a Address) Hex() string {
	return EncodeAddress(a)
}

// IsZero returns true if the address is all zeros.
// The zero address is never a valid deployed-contract address.
func (a Address) IsZero() bool {
	for _, b := range a {
		if b != 0 {
			return false
		}
	}
	return true
}

// MarshalJSON implements json.Marshaler for Hash.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("0x%x", h[:]))
}

// UnmarshalJSON implements json.Unmarshaler for Hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := DecodeHash(s)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

// String returns the hex string representation of the hash.
func (h Hash) String() string {
	return fmt.Sprintf("0x%x", h[:])
}

// AddressFromHex creates an Address from a hex string.
func AddressFromHex(s string) (Address, error) {
	return DecodeAddress(s)
}

// HashFromHex creates a Hash from a hex string.
func HashFromHex(s string) (Hash, error) {
	return DecodeHash(s)
}
