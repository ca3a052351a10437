package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Ambiguous characters (0/O, 1/I/L) are left out because codes get read
// aloud and retyped from printed cards.
const tokenCharset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateToken returns a random alphanumeric token of the given length,
// suitable for referral codes shared in links and by word of mouth.
func GenerateToken(length int) (string, error) {
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(tokenCharset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random token: %w", err)
		}
		result[i] = tokenCharset[n.Int64()]
	}
	return string(result), nil
}
