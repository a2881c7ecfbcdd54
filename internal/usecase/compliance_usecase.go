package usecase

import (
	"context"
	"time"

	"propguard/internal/domain/entity"
)

// RetentionCleanupOutput reports one cleanup run.
type RetentionCleanupOutput struct {
	DataType       string
	Deleted        int64
	Skipped        bool // True when the policy is inactive or forbids auto-delete.
	RetentionDays  int
	CutoffExecuted time.Time
}

// ComplianceUsecase defines retention enforcement, violation detection and
// regulatory report generation.
type ComplianceUsecase interface {
	// ExecuteDataRetentionCleanup enforces the retention policy for one data
	// type. Without an active auto-delete policy the run is a recorded no-op.
	ExecuteDataRetentionCleanup(ctx context.Context, dataType string) (*RetentionCleanupOutput, error)

	// DetectComplianceViolations computes current violations on demand.
	DetectComplianceViolations(ctx context.Context) ([]*entity.ComplianceViolation, error)

	// GenerateReport assembles, checksums and persists a report for one
	// regulatory framework over the given window.
	GenerateReport(ctx context.Context, reportType entity.ComplianceType, periodStart, periodEnd time.Time) (*entity.ComplianceReport, error)

	// ListReports returns persisted reports, newest first.
	ListReports(ctx context.Context, reportType entity.ComplianceType, limit int) ([]*entity.ComplianceReport, error)

	// ListRetentionPolicies returns all configured retention policies.
	ListRetentionPolicies(ctx context.Context) ([]*entity.DataRetentionPolicy, error)

	// UpsertRetentionPolicy creates or updates a retention policy.
	UpsertRetentionPolicy(ctx context.Context, policy *entity.DataRetentionPolicy) error
}
