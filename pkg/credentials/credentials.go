// Package credentials provides one-way password hashing and constant-time
// verification on bcrypt, plus the password strength policy.
package credentials

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher produces salted bcrypt hashes. The cost factor makes hashing
// intentionally slow to resist brute force.
type Hasher struct {
	cost int
}

// NewHasher creates a hasher with the given bcrypt cost; zero or negative
// selects the bcrypt default.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a salted hash of the plaintext. The same input produces a
// different hash on every call; Verify still succeeds against any of them.
func (h *Hasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext produced the stored hash. Malformed
// hashes simply verify false; this never panics on untrusted input.
func Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
