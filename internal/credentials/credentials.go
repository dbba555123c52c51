// Package credentials wraps the one-way hashing used for both account
// passwords and password-reset codes.
package credentials

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Hash returns a salted bcrypt hash of the plaintext. The cost factor keeps
// verification in the tens-of-milliseconds range.
func Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Check reports whether plaintext matches the stored hash. A mismatch is
// not an error; a malformed hash is.
func Check(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
