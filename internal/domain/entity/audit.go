package entity

import (
	"time"

	"github.com/google/uuid"
)

// Severity classifies how security-relevant an audit entry is.
type Severity string

const (
	// SeverityInfo is the default severity for routine events.
	SeverityInfo Severity = "INFO"
	// SeverityWarning marks events worth attention, such as failed logins.
	SeverityWarning Severity = "WARNING"
	// SeverityError marks failed operations.
	SeverityError Severity = "ERROR"
	// SeverityCritical marks events requiring immediate attention.
	SeverityCritical Severity = "CRITICAL"
)

// IsValid checks if the Severity is a valid value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	default:
		return false
	}
}

// ComplianceType tags an audit entry with the regulatory framework it serves.
type ComplianceType string

const (
	// ComplianceGeneral marks entries with no specific regulatory framework.
	ComplianceGeneral ComplianceType = "GENERAL"
	// ComplianceGDPR marks data-protection events under GDPR.
	ComplianceGDPR ComplianceType = "GDPR"
	// ComplianceCCPA marks consumer-privacy events under CCPA.
	ComplianceCCPA ComplianceType = "CCPA"
	// ComplianceSOX marks financial-control events under SOX.
	ComplianceSOX ComplianceType = "SOX"
)

// Audit action names recorded by the core. Kept as plain strings so business
// modules outside the core can record their own actions through the same log.
const (
	ActionLoginSuccess       = "LOGIN_SUCCESS"
	ActionLoginFailed        = "LOGIN_FAILED"
	ActionAccountLocked      = "ACCOUNT_LOCKED"
	ActionPasswordChanged    = "PASSWORD_CHANGED"
	ActionPasswordReset      = "PASSWORD_RESET"
	ActionMFAEnabled         = "MFA_ENABLED"
	ActionMFADisabled        = "MFA_DISABLED"
	ActionMFAFailed          = "MFA_FAILED"
	ActionBiometricRegister  = "BIOMETRIC_REGISTERED"
	ActionBiometricVerify    = "BIOMETRIC_VERIFIED"
	ActionBiometricFailed    = "BIOMETRIC_FAILED"
	ActionBiometricRemoved   = "BIOMETRIC_REMOVED"
	ActionSSOLogin           = "SSO_LOGIN"
	ActionSessionRevoked     = "SESSION_REVOKED"
	ActionRoleAssigned       = "ROLE_ASSIGNED"
	ActionRoleRemoved        = "ROLE_REMOVED"
	ActionPermissionDenied   = "PERMISSION_DENIED"
	ActionDataAccess         = "DATA_ACCESS"
	ActionDataExport         = "DATA_EXPORT"
	ActionRetentionCleanup   = "RETENTION_CLEANUP"
	ActionComplianceReport   = "COMPLIANCE_REPORT_GENERATED"
	ActionSecuritySettings   = "SECURITY_SETTINGS_CHANGED"
	ActionFinancialDataRead  = "FINANCIAL_DATA_READ"
	ActionFinancialDataWrite = "FINANCIAL_DATA_WRITE"
)

// AuditEntry is an append-only record of one security-relevant event.
// Entries are never updated and only deleted by retention cleanup.
type AuditEntry struct {
	ID             uuid.UUID
	Action         string
	EntityType     string
	EntityID       string
	ActorID        *uuid.UUID // Nil for system-initiated actions.
	Details        map[string]any
	IPAddress      string
	UserAgent      string
	Severity       Severity
	ComplianceType ComplianceType
	CreatedAt      time.Time
}

// SecurityIncident is a derived record created when suspicious activity
// patterns are detected over the audit stream.
type SecurityIncident struct {
	ID           uuid.UUID
	Type         string // e.g. "BRUTE_FORCE", "PERMISSION_PROBING", "OFF_HOURS_FINANCIAL_ACCESS".
	Severity     Severity
	Description  string
	AuditEntryID uuid.UUID // The entry that triggered detection.
	UserID       *uuid.UUID
	Resolved     bool
	CreatedAt    time.Time
}
