package repository

import (
	"context"
	"errors"
	"time"

	"propguard/internal/domain/entity"
)

// ErrPolicyNotFound is returned when no retention policy exists for a data type.
var ErrPolicyNotFound = errors.New("retention policy not found")

// ComplianceRepository defines persistence for retention policies, generated
// reports and data-subject requests.
type ComplianceRepository interface {
	// FindPolicyByDataType retrieves the retention policy for one data type.
	FindPolicyByDataType(ctx context.Context, dataType string) (*entity.DataRetentionPolicy, error)

	// ListPolicies returns all retention policies.
	ListPolicies(ctx context.Context) ([]*entity.DataRetentionPolicy, error)

	// UpsertPolicy creates or replaces a retention policy.
	UpsertPolicy(ctx context.Context, policy *entity.DataRetentionPolicy) error

	// MarkCleanup records when cleanup last ran for a data type.
	MarkCleanup(ctx context.Context, dataType string, ranAt time.Time) error

	// CreateReport persists a generated compliance report. Reports are
	// immutable; re-generation creates a new record.
	CreateReport(ctx context.Context, report *entity.ComplianceReport) error

	// ListReports returns reports of one type, newest first. Empty type lists all.
	ListReports(ctx context.Context, reportType entity.ComplianceType, limit int) ([]*entity.ComplianceReport, error)

	// ListOverdueRequests returns data-subject requests still unanswered past
	// the respond-by cutoff.
	ListOverdueRequests(ctx context.Context, requestedBefore time.Time) ([]*entity.DataSubjectRequest, error)

	// ListRequestsInWindow returns requests made inside the window, optionally
	// narrowed to one request type.
	ListRequestsInWindow(ctx context.Context, from, to time.Time, requestType string) ([]*entity.DataSubjectRequest, error)
}
