package entity

import (
	"time"

	"github.com/google/uuid"
)

// Data type keys recognized by retention policies.
const (
	DataTypeAuditLogs = "audit_logs"
	DataTypeSessions  = "sessions"
)

// RequiredRetentionDataTypes lists the data types that must have an active
// retention policy; the violation detector reports any that are missing.
var RequiredRetentionDataTypes = []string{DataTypeAuditLogs, DataTypeSessions}

// DataRetentionPolicy states how long one category of data may be kept and
// whether automated deletion is permitted.
type DataRetentionPolicy struct {
	ID            uuid.UUID
	DataType      string // Unique key, e.g. "audit_logs".
	RetentionDays int
	AutoDelete    bool
	IsActive      bool
	LastCleanup   *time.Time
	UpdatedAt     time.Time
}

// ComplianceReport is an immutable, checksummed summary of audit activity
// over a time window, assembled for one regulatory framework.
// Re-generation always creates a new record.
type ComplianceReport struct {
	ID          uuid.UUID
	Type        ComplianceType
	PeriodStart time.Time
	PeriodEnd   time.Time
	Payload     []byte // Canonical JSON serialization of the report body.
	Checksum    string // Hex SHA-256 over Payload.
	ValidUntil  time.Time
	GeneratedAt time.Time
}

// ComplianceViolation is one finding from the violation detector.
// It is computed on demand and not persisted.
type ComplianceViolation struct {
	Type        string // e.g. "OVERDUE_DSR", "MISSING_RETENTION_POLICY", "UNAUTHORIZED_FINANCIAL_ACCESS".
	Severity    Severity
	Description string
	Details     map[string]any
}

// DataSubjectRequest tracks a privacy request (access/erasure/portability)
// from a data subject; responses are due within 30 days.
type DataSubjectRequest struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	RequestType string // "access", "erasure", "portability", "opt_out".
	Status      string // "pending", "in_progress", "completed", "rejected".
	RequestedAt time.Time
	RespondedAt *time.Time
}
