package repository

import "context"

// TransactionManager defines the interface for managing database transactions.
// This allows the use case layer to handle transactions without depending on a specific DB driver like GORM.
type TransactionManager interface {
	// Execute runs a function within a database transaction.
	// If the function returns an error, the transaction is rolled back. Otherwise, it's committed.
	// All repository operations within the function will use the same database transaction.
	Execute(ctx context.Context, fn func(txRepoFactory RepositoryFactory) error) error
}

// RepositoryFactory provides repository instances bound to a specific
// transaction, so multi-step operations stay atomic.
type RepositoryFactory interface {
	// NewUserRepository returns a UserRepository bound to the current transaction.
	NewUserRepository() UserRepository

	// NewSessionRepository returns a SessionRepository bound to the current transaction.
	NewSessionRepository() SessionRepository

	// NewBiometricCredentialRepository returns a BiometricCredentialRepository bound to the current transaction.
	NewBiometricCredentialRepository() BiometricCredentialRepository

	// NewOAuthConnectionRepository returns an OAuthConnectionRepository bound to the current transaction.
	NewOAuthConnectionRepository() OAuthConnectionRepository

	// NewRBACRepository returns an RBACRepository bound to the current transaction.
	NewRBACRepository() RBACRepository

	// NewAuditRepository returns an AuditRepository bound to the current transaction.
	NewAuditRepository() AuditRepository
}
