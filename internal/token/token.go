// Package token generates opaque bearer tokens and the digests used to store them.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/mr-tron/base58"
)

// Size is the number of random bytes in a generated token (256 bits).
const Size = 32

// CodeDigits is the length of the numeric one-time codes sent by email.
const CodeDigits = 6

var codeSpace = big.NewInt(1_000_000)

// Generate returns a new random token rendered as base58 text.
// The randomness comes from crypto/rand.
func Generate() (string, error) {
	buf := make([]byte, Size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	return base58.Encode(buf), nil
}

// Hash returns the base58-encoded SHA-256 digest of a token.
// It is the only form of a token that is ever persisted or used as a lookup key.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base58.Encode(sum[:])
}

// GenerateCode returns a random zero-padded numeric code of CodeDigits digits.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ValidCode reports whether code has the shape of a generated code.
func ValidCode(code string) bool {
	if len(code) != CodeDigits {
		return false
	}
	for _, ch := range code {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
