package code

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphabet excludes characters that are easy to confuse on a handwritten
// note held next to a plate (0/O, 1/I/L).
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// Length is the number of characters in a verification code.
const Length = 6

// New returns a random verification code.
func New() (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	b := make([]byte, Length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate verification code: %w", err)
		}
		b[i] = Alphabet[n.Int64()]
	}
	return string(b), nil
}
