package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewVerificationToken returns 256 bits of randomness as a 64-character hex string.
func NewVerificationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewNumericCode returns n uniformly random decimal digits, zero-padded.
func NewNumericCode(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	out := make([]byte, n)
	for i := range b {
		// Rejection sampling keeps digits uniform: 250 is the largest multiple of 10 <= 256.
		for b[i] >= 250 {
			var one [1]byte
			if _, err := rand.Read(one[:]); err != nil {
				return "", fmt.Errorf("generate code: %w", err)
			}
			b[i] = one[0]
		}
		out[i] = '0' + b[i]%10
	}
	return string(out), nil
}
