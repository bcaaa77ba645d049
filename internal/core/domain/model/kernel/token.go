package kernel

import (
	"fmt"

	"github.com/google/uuid"
)

// Token is an opaque continuation token minted when a workflow stage suspends.
// It must be redeemed at most once; a resume carrying any other token is ignored.
//
// The zero value of Token means "no token" and is what an order carries while
// nothing is awaited. Tokens are immutable and safe for concurrent use.
//
// Example usage:
//
//	token := kernel.NewToken()
//	stored := token.String()
//
//	parsed, err := kernel.ParseToken(stored)
//	if err != nil {
//	    // handle corrupt value
//	}
//	fmt.Println(parsed.Equal(token)) // true
type Token struct {
	id uuid.UUID
}

// NewToken mints a fresh random token.
func NewToken() Token {
	return Token{id: uuid.New()}
}

// ParseToken restores a token from its string form.
// An empty string yields the zero token without error, matching how a
// missing token is persisted.
//
// Example:
//
//	token, err := kernel.ParseToken(row.PendingToken)
//	if err != nil {
//	    return fmt.Errorf("restoring order: %w", err)
//	}
func ParseToken(s string) (Token, error) {
	if s == "" {
		return Token{}, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return Token{}, fmt.Errorf("invalid token format: %w", err)
	}
	return Token{id: id}, nil
}

// MustParseToken is like ParseToken but panics on malformed input.
// Intended for tests and constants.
func MustParseToken(s string) Token {
	t, err := ParseToken(s)
	if err != nil {
		panic(err)
	}
	return t
}

// IsZero reports whether t carries no token.
func (t Token) IsZero() bool {
	return t.id == uuid.Nil
}

// Equal reports whether both tokens hold the same value.
// Two zero tokens are equal.
func (t Token) Equal(other Token) bool {
	return t.id == other.id
}

// String returns the canonical UUID form, or "" for the zero token.
func (t Token) String() string {
	if t.IsZero() {
		return ""
	}
	return t.id.String()
}

// NewExecutionID returns an identifier for a newly started workflow execution.
func NewExecutionID() string {
	return uuid.NewString()
}
