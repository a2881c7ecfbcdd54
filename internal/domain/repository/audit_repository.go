package repository

import (
	"context"
	"time"

	"propguard/internal/domain/entity"

	"github.com/google/uuid"
)

// AuditFilter narrows audit queries. Zero values mean "any".
type AuditFilter struct {
	ActorID        *uuid.UUID
	Action         string
	EntityType     string
	EntityID       string
	ComplianceType entity.ComplianceType
	Severity       entity.Severity
	IPAddress      string
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
}

// IncidentFilter narrows security incident queries.
type IncidentFilter struct {
	Resolved *bool
	Severity entity.Severity
	Limit    int
	Offset   int
}

// AuditRepository defines persistence for the append-only audit log and the
// incidents derived from it. Entries are never updated; deletion happens only
// through retention cleanup.
type AuditRepository interface {
	// Create appends one audit entry.
	Create(ctx context.Context, entry *entity.AuditEntry) error

	// Query lists entries matching the filter, newest first, with the total
	// match count for pagination.
	Query(ctx context.Context, filter AuditFilter) ([]*entity.AuditEntry, int64, error)

	// Count returns only the number of entries matching the filter.
	Count(ctx context.Context, filter AuditFilter) (int64, error)

	// DeleteOlderThan removes entries created before the cutoff. When severity
	// is non-empty only entries of that severity are removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, severity entity.Severity) (int64, error)

	// CreateIncident persists a derived security incident.
	CreateIncident(ctx context.Context, incident *entity.SecurityIncident) error

	// ListIncidents returns incidents matching the filter, newest first.
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]*entity.SecurityIncident, error)
}
