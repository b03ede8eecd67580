package jwtx

import "fmt"

// TokenType is the closed set of token kinds this package issues. The zero
// value is deliberately invalid so a token missing the claim never passes.
type TokenType uint8

const (
	TokenTypeAccess TokenType = iota + 1
	TokenTypeRefresh
)

// Valid reports whether t is one of the known token types.
func (t TokenType) Valid() bool {
	switch t {
	case TokenTypeAccess, TokenTypeRefresh:
		return true
	default:
		return false
	}
}

func (t TokenType) String() string {
	switch t {
	case TokenTypeAccess:
		return "access"
	case TokenTypeRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// ParseTokenType maps the wire form back to a TokenType.
func ParseTokenType(s string) (TokenType, error) {
	switch s {
	case "access":
		return TokenTypeAccess, nil
	case "refresh":
		return TokenTypeRefresh, nil
	default:
		return 0, fmt.Errorf("jwtx: unknown token type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t TokenType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("jwtx: cannot marshal token type %d", t)
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TokenType) UnmarshalText(b []byte) error {
	parsed, err := ParseTokenType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
