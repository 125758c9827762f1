package anchorlog

import "strings"

// maxAddressLen bounds principal addresses; anything longer is malformed.
const maxAddressLen = 128

// Principal is the address of an identity that can call mutating operations.
// The zero value means "no principal".
type Principal string

// IsZero reports whether p is the empty principal.
func (p Principal) IsZero() bool { return p == "" }

// Valid reports whether p is a well-formed, non-empty address: printable,
// no surrounding or embedded whitespace, at most maxAddressLen bytes.
func (p Principal) Valid() bool {
	if p == "" || len(p) > maxAddressLen {
		return false
	}
	s := string(p)
	if strings.TrimSpace(s) != s {
		return false
	}
	return !strings.ContainsAny(s, " \t\n\r")
}

func (p Principal) String() string { return string(p) }
