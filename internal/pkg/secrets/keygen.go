// Package secrets generates random credentials for deployment tooling.
package secrets

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// JWTSecretLength is the length of generated token-signing secrets.
// Config validation requires at least 32 characters; 48 leaves margin.
const JWTSecretLength = 48

// secretChars contains the characters used in generated secrets.
const secretChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateJWTSecret generates a random secret for signing access tokens.
func GenerateJWTSecret() (string, error) {
	return generateRandomString(JWTSecretLength, secretChars)
}

// generateRandomString builds a string of length n from the given charset
// using crypto/rand.
func generateRandomString(n int, charset string) (string, error) {
	result := make([]byte, n)
	max := big.NewInt(int64(len(charset)))

	for i := range result {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random string: %w", err)
		}
		result[i] = charset[idx.Int64()]
	}

	return string(result), nil
}
