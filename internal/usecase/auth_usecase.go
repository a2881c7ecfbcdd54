// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"propguard/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     entity.AccountRole
}

// LoginInput defines the data required for a password login.
type LoginInput struct {
	Email      string
	Password   string
	DeviceName string
	IPAddress  string
	UserAgent  string
}

// VerifyMFAInput completes an MFA-gated login with a TOTP code.
type VerifyMFAInput struct {
	MFAToken   string // The short-lived token returned by the password step.
	Code       string
	DeviceName string
	IPAddress  string
	UserAgent  string
}

// RefreshInput rotates a refresh token into a new token pair.
type RefreshInput struct {
	RefreshToken string
}

// LogoutInput terminates one session and clears the refresh slot.
type LogoutInput struct {
	UserID       uuid.UUID
	SessionToken string
}

// UpdatePasswordInput changes the password of an authenticated user.
// SessionToken identifies the caller's current session, which survives the
// change; every other session is revoked.
type UpdatePasswordInput struct {
	UserID          uuid.UUID
	CurrentPassword string
	NewPassword     string
	SessionToken    string
	IPAddress       string
	UserAgent       string
}

// ForgotPasswordInput starts the password reset flow.
type ForgotPasswordInput struct {
	Email     string
	IPAddress string
}

// ResetPasswordInput completes the password reset flow.
type ResetPasswordInput struct {
	Token       string
	NewPassword string
	IPAddress   string
	UserAgent   string
}

// --- Output DTOs ---

// RegisterOutput returns the newly created account's basic information.
type RegisterOutput struct {
	User *entity.User
}

// LoginOutput returns the result of an authentication attempt. When
// RequiresMFA is set only MFAToken is populated; tokens and session are
// withheld until the second factor passes. IsNewUser reports that the SSO
// flow provisioned the account during this login.
type LoginOutput struct {
	RequiresMFA  bool
	MFAToken     string
	AccessToken  string
	RefreshToken string
	SessionToken string
	IsNewUser    bool
	User         *entity.User
}

// RefreshOutput returns the rotated token pair.
type RefreshOutput struct {
	AccessToken  string
	RefreshToken string
}

// ForgotPasswordOutput carries the reset token. The HTTP layer never returns
// it; it exists so a mail dispatcher can be attached and tests can observe it.
type ForgotPasswordOutput struct {
	ResetToken string
}

// AuthUsecase defines the interface for authentication orchestration.
// All login paths (password, MFA step-up, biometric, SSO) converge on the
// same session and token issuance semantics.
type AuthUsecase interface {
	Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error)
	Login(ctx context.Context, input LoginInput) (*LoginOutput, error)
	VerifyMFA(ctx context.Context, input VerifyMFAInput) (*LoginOutput, error)
	RefreshToken(ctx context.Context, input RefreshInput) (*RefreshOutput, error)
	Logout(ctx context.Context, input LogoutInput) error
	UpdatePassword(ctx context.Context, input UpdatePasswordInput) error
	ForgotPassword(ctx context.Context, input ForgotPasswordInput) (*ForgotPasswordOutput, error)
	ResetPassword(ctx context.Context, input ResetPasswordInput) error

	// CompleteLogin finishes authentication for an already-verified user.
	// The biometric and SSO flows call it after their own proofs succeed.
	CompleteLogin(ctx context.Context, user *entity.User, method string, device DeviceInfo) (*LoginOutput, error)
}

// DeviceInfo carries the client context attached to sessions and audit entries.
type DeviceInfo struct {
	DeviceName string
	IPAddress  string
	UserAgent  string
}
