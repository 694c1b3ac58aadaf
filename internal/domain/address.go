package domain

import (
	"fmt"
	"strings"
)

// Address is a 20-byte EVM address in canonical lower-case hex form
// (0x-prefixed). Checksum casing is an adapter concern; domain code
// compares addresses case-insensitively by normalizing on construction.
type Address string

// ZeroAddress is the conventional burn/renounce target.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// ParseAddress validates and normalizes a hex address string.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	if len(s) != 42 {
		return "", fmt.Errorf("address %q must be 20 bytes (40 hex chars): %w", s, ErrInvalidAddress)
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return "", fmt.Errorf("address %q contains non-hex character: %w", s, ErrInvalidAddress)
		}
	}
	return Address(strings.ToLower(s)), nil
}

// MustAddress parses an address and panics on failure. For constants and tests.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Equal compares two addresses ignoring case.
func (a Address) Equal(other Address) bool {
	return strings.EqualFold(string(a), string(other))
}

// IsZero reports whether the address is the zero address.
func (a Address) IsZero() bool {
	return a.Equal(ZeroAddress)
}

// Short returns an abbreviated form for logs (0x1234..abcd).
func (a Address) Short() string {
	if len(a) != 42 {
		return string(a)
	}
	return string(a[:6]) + ".." + string(a[38:])
}

func (a Address) String() string { return string(a) }
