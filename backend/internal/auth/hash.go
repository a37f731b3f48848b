package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// HashSecret generates a bcrypt hash of a password or middleman secret.
func HashSecret(secret string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// CheckSecretHash compares a plaintext secret with a stored hash. The
// comparison is one-way; plaintext secrets are never stored or logged.
func CheckSecretHash(secret, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	return err == nil
}
