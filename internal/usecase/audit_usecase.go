package usecase

import (
	"context"
	"time"

	"propguard/internal/domain/entity"
	"propguard/internal/domain/repository"

	"github.com/google/uuid"
)

// LogEventInput records one security-relevant event.
type LogEventInput struct {
	Action         string
	EntityType     string
	EntityID       string
	ActorID        *uuid.UUID
	Details        map[string]any
	IPAddress      string
	UserAgent      string
	Severity       entity.Severity       // Defaults to INFO.
	ComplianceType entity.ComplianceType // Defaults to GENERAL.
}

// AuditQueryOutput returns one page of entries with the total match count.
type AuditQueryOutput struct {
	Entries []*entity.AuditEntry
	Total   int64
	Limit   int
	Offset  int
}

// ExportFormat selects the serialization of an audit export.
type ExportFormat string

// Supported export formats.
const (
	ExportFormatJSON     ExportFormat = "json"
	ExportFormatCSV      ExportFormat = "csv"
	ExportFormatMarkdown ExportFormat = "markdown"
)

// ExportOutput carries a rendered export document.
type ExportOutput struct {
	Format      ExportFormat
	ContentType string
	Data        []byte
	Entries     int
}

// AuthMetricsOutput summarizes authentication activity over a window.
type AuthMetricsOutput struct {
	From            time.Time
	To              time.Time
	Logins          int64
	FailedLogins    int64
	Lockouts        int64
	MFAFailures     int64
	SSOLogins       int64
	BiometricLogins int64
}

// AuditUsecase defines the append-only audit log and the suspicious-activity
// detection that runs over it.
type AuditUsecase interface {
	// LogEvent appends an entry and synchronously runs pattern detection,
	// creating a SecurityIncident when a threshold trips. Detection failures
	// never fail the underlying operation.
	LogEvent(ctx context.Context, input LogEventInput) error

	// QueryEvents lists entries matching the filter with pagination.
	QueryEvents(ctx context.Context, filter repository.AuditFilter) (*AuditQueryOutput, error)

	// ExportEvents renders matching entries in the requested format.
	ExportEvents(ctx context.Context, filter repository.AuditFilter, format ExportFormat) (*ExportOutput, error)

	// GetAuthMetrics aggregates authentication counters over a window.
	GetAuthMetrics(ctx context.Context, from, to time.Time) (*AuthMetricsOutput, error)

	// ListIncidents returns detected security incidents.
	ListIncidents(ctx context.Context, filter repository.IncidentFilter) ([]*entity.SecurityIncident, error)
}
