// Package mac provides the MAC address value used to identify sensor nodes.
//
// A MAC address is an unsigned integer of 48 or 64 bits. Equality is by
// numeric value: "4a3", "0x04A3" and "00000000000004A3" are the same address.
package mac

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Mode selects the width used when an address is rendered.
type Mode int

const (
	// Mode48 renders 12 hex digits.
	Mode48 Mode = 48
	// Mode64 renders 16 hex digits.
	Mode64 Mode = 64
)

// ErrInvalid is returned when a string is not a valid hex MAC address.
var ErrInvalid = errors.New("mac: invalid address")

// Address is a 48- or 64-bit MAC address. The zero value is address 0.
// Address is comparable and can be used as a map key.
type Address struct {
	value uint64
}

// New returns the address with the given numeric value.
func New(value uint64) Address {
	return Address{value: value}
}

// ParseHex parses a hexadecimal MAC address.
//
// An optional "0x" prefix and ':' or '-' separators are accepted, casing is
// ignored and leading zeros are optional. At most 16 significant digits fit.
func ParseHex(s string) (Address, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(strings.TrimPrefix(cleaned, "0x"), "0X")
	cleaned = strings.NewReplacer(":", "", "-", "").Replace(cleaned)
	if cleaned == "" {
		return Address{}, fmt.Errorf("%w: %q is empty", ErrInvalid, s)
	}

	v, err := strconv.ParseUint(cleaned, 16, 64)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %w", ErrInvalid, s, err)
	}
	return Address{value: v}, nil
}

// Uint64 returns the numeric value.
func (a Address) Uint64() uint64 {
	return a.value
}

// Fits reports whether the address can be represented in mode without loss.
func (a Address) Fits(mode Mode) bool {
	if mode == Mode48 {
		return a.value < 1<<48
	}
	return true
}

// Hex returns the canonical rendering: uppercase, no separators, zero padded
// to the width of mode. Values wider than mode are not truncated.
func (a Address) Hex(mode Mode) string {
	width := 16
	if mode == Mode48 {
		width = 12
	}
	return fmt.Sprintf("%0*X", width, a.value)
}

// String returns the 64-bit canonical rendering.
func (a Address) String() string {
	return a.Hex(Mode64)
}
