// Package service defines interfaces for core, stateless domain logic.
// These services encapsulate business rules that don't naturally fit within a single entity.
package service

// PasswordHasher defines the interface for password hashing, verification and
// strength validation. This abstracts the underlying hashing algorithm
// (e.g., bcrypt) and the configured strength policy, keeping the domain pure.
type PasswordHasher interface {
	// Hash generates a salted hash from a plaintext password.
	Hash(password string) (string, error)

	// Check compares a plaintext password with a hash to see if they match.
	Check(password, hash string) bool

	// ValidatePasswordStrength checks a candidate password against the
	// configured strength rules. Returns nil when the password is acceptable.
	ValidatePasswordStrength(password string) error
}
