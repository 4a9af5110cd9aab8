package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// HashSecret bcrypt-hashes a password or PIN.
func HashSecret(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckSecret compares a password or PIN with its bcrypt hash. An empty hash
// or secret never matches.
func CheckSecret(hash, secret string) bool {
	if hash == "" || secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
