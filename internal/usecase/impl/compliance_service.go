package impl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"propguard/config"
	deliverycontext "propguard/internal/delivery/context"
	"propguard/internal/domain/entity"
	domainerrors "propguard/internal/domain/errors"
	"propguard/internal/domain/repository"
	"propguard/internal/domain/service"
	"propguard/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// Violation types reported by the detector.
const (
	violationOverdueDSR      = "OVERDUE_DSR"
	violationMissingPolicy   = "MISSING_RETENTION_POLICY"
	violationFinancialAccess = "UNAUTHORIZED_FINANCIAL_ACCESS"
)

// complianceService implements the ComplianceUsecase interface: retention
// enforcement, on-demand violation detection and regulatory reports.
type complianceService struct {
	complianceRepo repository.ComplianceRepository
	auditRepo      repository.AuditRepository
	sessionRepo    repository.SessionRepository
	rbacRepo       repository.RBACRepository
	audit          usecase.AuditUsecase
	cfg            *config.Config
	clock          service.Clock
	logger         *slog.Logger
}

// ComplianceServiceParams holds dependencies for complianceService, injected by Fx.
type ComplianceServiceParams struct {
	fx.In

	ComplianceRepo repository.ComplianceRepository
	AuditRepo      repository.AuditRepository
	SessionRepo    repository.SessionRepository
	RBACRepo       repository.RBACRepository
	Audit          usecase.AuditUsecase
	Config         *config.Config
	Clock          service.Clock
	Logger         *slog.Logger
}

// NewComplianceService is the constructor for complianceService.
func NewComplianceService(params ComplianceServiceParams) usecase.ComplianceUsecase {
	return &complianceService{
		complianceRepo: params.ComplianceRepo,
		auditRepo:      params.AuditRepo,
		sessionRepo:    params.SessionRepo,
		rbacRepo:       params.RBACRepo,
		audit:          params.Audit,
		cfg:            params.Config,
		clock:          params.Clock,
		logger:         params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *complianceService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// ExecuteDataRetentionCleanup enforces the policy for one data type. Audit
// logs purge only INFO-severity entries; session rows go by age alone.
func (srv *complianceService) ExecuteDataRetentionCleanup(ctx context.Context, dataType string) (*usecase.RetentionCleanupOutput, error) {
	policy, err := srv.complianceRepo.FindPolicyByDataType(ctx, dataType)
	if err != nil {
		if errors.Is(err, repository.ErrPolicyNotFound) {
			return nil, domainerrors.ErrNotFound.WrapMessage("no retention policy for data type")
		}

		return nil, errors.Wrap(err, "failed to find retention policy")
	}

	now := srv.clock()
	output := &usecase.RetentionCleanupOutput{
		DataType:       dataType,
		RetentionDays:  policy.RetentionDays,
		CutoffExecuted: now,
	}

	if !policy.IsActive || !policy.AutoDelete {
		output.Skipped = true

		return output, nil
	}

	cutoff := now.AddDate(0, 0, -policy.RetentionDays)

	var deleted int64
	switch dataType {
	case entity.DataTypeAuditLogs:
		deleted, err = srv.auditRepo.DeleteOlderThan(ctx, cutoff, entity.SeverityInfo)
	case entity.DataTypeSessions:
		deleted, err = srv.sessionRepo.DeleteOlderThan(ctx, cutoff)
	default:
		return nil, domainerrors.ErrValidationFailed.WrapMessage("no cleanup handler for data type")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to purge %s", dataType)
	}
	output.Deleted = deleted

	if err := srv.complianceRepo.MarkCleanup(ctx, dataType, now); err != nil {
		srv.log(ctx).Error("Failed to record cleanup run", slog.String("dataType", dataType), slog.Any("error", err))
	}

	srv.auditEvent(ctx, usecase.LogEventInput{
		Action:     entity.ActionRetentionCleanup,
		EntityType: "data_retention_policy",
		EntityID:   dataType,
		Details: map[string]any{
			"deleted":       deleted,
			"retentionDays": policy.RetentionDays,
			"cutoff":        cutoff.Format(time.RFC3339),
		},
	})

	return output, nil
}

// DetectComplianceViolations runs the three independent checks and merges
// their findings.
func (srv *complianceService) DetectComplianceViolations(ctx context.Context) ([]*entity.ComplianceViolation, error) {
	violations := make([]*entity.ComplianceViolation, 0)

	overdue, err := srv.detectOverdueRequests(ctx)
	if err != nil {
		return nil, err
	}
	violations = append(violations, overdue...)

	missing, err := srv.detectMissingPolicies(ctx)
	if err != nil {
		return nil, err
	}
	violations = append(violations, missing...)

	financial, err := srv.detectFinancialAccess(ctx)
	if err != nil {
		return nil, err
	}
	violations = append(violations, financial...)

	return violations, nil
}

// GenerateReport assembles a framework-specific payload, checksums it and
// persists the result with a validity window.
func (srv *complianceService) GenerateReport(ctx context.Context, reportType entity.ComplianceType, periodStart, periodEnd time.Time) (*entity.ComplianceReport, error) {
	var (
		body any
		err  error
	)
	switch reportType {
	case entity.ComplianceGDPR:
		body, err = srv.buildGDPRBody(ctx, periodStart, periodEnd)
	case entity.ComplianceCCPA:
		body, err = srv.buildCCPABody(ctx, periodStart, periodEnd)
	case entity.ComplianceSOX:
		body, err = srv.buildSOXBody(ctx, periodStart, periodEnd)
	default:
		return nil, domainerrors.ErrValidationFailed.WrapMessage("unsupported report type")
	}
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize report payload")
	}
	checksum := sha256.Sum256(payload)

	now := srv.clock()
	report := &entity.ComplianceReport{
		Type:        reportType,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Payload:     payload,
		Checksum:    hex.EncodeToString(checksum[:]),
		ValidUntil:  now.Add(srv.cfg.Compliance.ReportValidity),
		GeneratedAt: now,
	}
	if err := srv.complianceRepo.CreateReport(ctx, report); err != nil {
		return nil, errors.Wrap(err, "failed to persist report")
	}

	srv.auditEvent(ctx, usecase.LogEventInput{
		Action:         entity.ActionComplianceReport,
		EntityType:     "compliance_report",
		EntityID:       report.ID.String(),
		Details:        map[string]any{"reportType": string(reportType), "checksum": report.Checksum},
		ComplianceType: reportType,
	})

	return report, nil
}

// ListReports returns persisted reports, newest first.
func (srv *complianceService) ListReports(ctx context.Context, reportType entity.ComplianceType, limit int) ([]*entity.ComplianceReport, error) {
	reports, err := srv.complianceRepo.ListReports(ctx, reportType, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list reports")
	}

	return reports, nil
}

// ListRetentionPolicies returns all configured retention policies.
func (srv *complianceService) ListRetentionPolicies(ctx context.Context) ([]*entity.DataRetentionPolicy, error) {
	policies, err := srv.complianceRepo.ListPolicies(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list retention policies")
	}

	return policies, nil
}

// UpsertRetentionPolicy creates or updates a retention policy.
func (srv *complianceService) UpsertRetentionPolicy(ctx context.Context, policy *entity.DataRetentionPolicy) error {
	if policy.DataType == "" || policy.RetentionDays <= 0 {
		return domainerrors.ErrValidationFailed.WrapMessage("data type and a positive retention period are required")
	}

	policy.UpdatedAt = srv.clock()
	if err := srv.complianceRepo.UpsertPolicy(ctx, policy); err != nil {
		return errors.Wrap(err, "failed to upsert retention policy")
	}

	return nil
}

func (srv *complianceService) detectOverdueRequests(ctx context.Context) ([]*entity.ComplianceViolation, error) {
	cutoff := srv.clock().AddDate(0, 0, -srv.cfg.Compliance.DSRResponseDays)
	requests, err := srv.complianceRepo.ListOverdueRequests(ctx, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list overdue requests")
	}

	violations := make([]*entity.ComplianceViolation, 0, len(requests))
	for _, request := range requests {
		violations = append(violations, &entity.ComplianceViolation{
			Type:     violationOverdueDSR,
			Severity: entity.SeverityCritical,
			Description: fmt.Sprintf("data subject request %s (%s) unanswered for more than %d days",
				request.ID, request.RequestType, srv.cfg.Compliance.DSRResponseDays),
			Details: map[string]any{
				"requestID":   request.ID.String(),
				"userID":      request.UserID.String(),
				"requestType": request.RequestType,
				"requestedAt": request.RequestedAt.Format(time.RFC3339),
			},
		})
	}

	return violations, nil
}

func (srv *complianceService) detectMissingPolicies(ctx context.Context) ([]*entity.ComplianceViolation, error) {
	policies, err := srv.complianceRepo.ListPolicies(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list retention policies")
	}

	active := make(map[string]bool, len(policies))
	for _, policy := range policies {
		if policy.IsActive {
			active[policy.DataType] = true
		}
	}

	violations := make([]*entity.ComplianceViolation, 0)
	for _, dataType := range entity.RequiredRetentionDataTypes {
		if active[dataType] {
			continue
		}
		violations = append(violations, &entity.ComplianceViolation{
			Type:        violationMissingPolicy,
			Severity:    entity.SeverityWarning,
			Description: fmt.Sprintf("no active retention policy for %s", dataType),
			Details:     map[string]any{"dataType": dataType},
		})
	}

	return violations, nil
}

func (srv *complianceService) detectFinancialAccess(ctx context.Context) ([]*entity.ComplianceViolation, error) {
	resolved := false
	incidents, err := srv.auditRepo.ListIncidents(ctx, repository.IncidentFilter{
		Resolved: &resolved,
		Limit:    srv.cfg.Audit.MaxQueryLimit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list incidents")
	}

	violations := make([]*entity.ComplianceViolation, 0)
	for _, incident := range incidents {
		if incident.Type != incidentOffHoursFinance {
			continue
		}
		details := map[string]any{
			"incidentID": incident.ID.String(),
			"createdAt":  incident.CreatedAt.Format(time.RFC3339),
		}
		if incident.UserID != nil {
			details["userID"] = incident.UserID.String()
		}
		violations = append(violations, &entity.ComplianceViolation{
			Type:        violationFinancialAccess,
			Severity:    incident.Severity,
			Description: incident.Description,
			Details:     details,
		})
	}

	return violations, nil
}

// gdprReportBody summarizes data-protection activity for one window.
type gdprReportBody struct {
	PeriodStart              time.Time `json:"periodStart"`
	PeriodEnd                time.Time `json:"periodEnd"`
	DataProcessingActivities int64     `json:"dataProcessingActivities"`
	DataExports              int64     `json:"dataExports"`
	SubjectAccessRequests    int       `json:"subjectAccessRequests"`
	ErasureRequests          int       `json:"erasureRequests"`
	PortabilityRequests      int       `json:"portabilityRequests"`
	BreachIncidents          int       `json:"breachIncidents"`
}

func (srv *complianceService) buildGDPRBody(ctx context.Context, from, to time.Time) (*gdprReportBody, error) {
	processing, err := srv.auditRepo.Count(ctx, repository.AuditFilter{
		ComplianceType: entity.ComplianceGDPR,
		From:           &from,
		To:             &to,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count gdpr entries")
	}

	exports, err := srv.auditRepo.Count(ctx, repository.AuditFilter{
		Action: entity.ActionDataExport,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count exports")
	}

	requests, err := srv.complianceRepo.ListRequestsInWindow(ctx, from, to, "")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list data subject requests")
	}

	body := &gdprReportBody{
		PeriodStart:              from,
		PeriodEnd:                to,
		DataProcessingActivities: processing,
		DataExports:              exports,
	}
	for _, request := range requests {
		switch request.RequestType {
		case "access":
			body.SubjectAccessRequests++
		case "erasure":
			body.ErasureRequests++
		case "portability":
			body.PortabilityRequests++
		}
	}

	incidents, err := srv.auditRepo.ListIncidents(ctx, repository.IncidentFilter{
		Severity: entity.SeverityCritical,
		Limit:    srv.cfg.Audit.MaxQueryLimit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list incidents")
	}
	for _, incident := range incidents {
		if !incident.CreatedAt.Before(from) && incident.CreatedAt.Before(to) {
			body.BreachIncidents++
		}
	}

	return body, nil
}

// ccpaReportBody summarizes consumer-privacy activity for one window.
type ccpaReportBody struct {
	PeriodStart     time.Time `json:"periodStart"`
	PeriodEnd       time.Time `json:"periodEnd"`
	ConsumerEvents  int64     `json:"consumerEvents"`
	OptOutRequests  int       `json:"optOutRequests"`
	DataSaleRecords int64     `json:"dataSaleRecords"` // Always zero; the platform does not sell personal data.
}

func (srv *complianceService) buildCCPABody(ctx context.Context, from, to time.Time) (*ccpaReportBody, error) {
	events, err := srv.auditRepo.Count(ctx, repository.AuditFilter{
		ComplianceType: entity.ComplianceCCPA,
		From:           &from,
		To:             &to,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count ccpa entries")
	}

	optOuts, err := srv.complianceRepo.ListRequestsInWindow(ctx, from, to, "opt_out")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list opt-out requests")
	}

	return &ccpaReportBody{
		PeriodStart:    from,
		PeriodEnd:      to,
		ConsumerEvents: events,
		OptOutRequests: len(optOuts),
	}, nil
}

// soxReportBody summarizes financial-control activity for one window.
type soxReportBody struct {
	PeriodStart          time.Time `json:"periodStart"`
	PeriodEnd            time.Time `json:"periodEnd"`
	FinancialReads       int64     `json:"financialReads"`
	FinancialWrites      int64     `json:"financialWrites"`
	AccessControlChanges int64     `json:"accessControlChanges"`
	SegregationConflicts []string  `json:"segregationConflicts"`
}

func (srv *complianceService) buildSOXBody(ctx context.Context, from, to time.Time) (*soxReportBody, error) {
	reads, err := srv.auditRepo.Count(ctx, repository.AuditFilter{
		Action: entity.ActionFinancialDataRead,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count financial reads")
	}

	writes, err := srv.auditRepo.Count(ctx, repository.AuditFilter{
		Action: entity.ActionFinancialDataWrite,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count financial writes")
	}

	roleChanges, err := srv.auditRepo.Count(ctx, repository.AuditFilter{
		Action: entity.ActionRoleAssigned,
		From:   &from,
		To:     &to,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count role changes")
	}

	conflictIDs, err := srv.rbacRepo.ListSegregationConflicts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list segregation conflicts")
	}
	conflicts := make([]string, 0, len(conflictIDs))
	for _, id := range conflictIDs {
		conflicts = append(conflicts, id.String())
	}
	// Store order must not leak into the checksummed payload.
	sort.Strings(conflicts)

	return &soxReportBody{
		PeriodStart:          from,
		PeriodEnd:            to,
		FinancialReads:       reads,
		FinancialWrites:      writes,
		AccessControlChanges: roleChanges,
		SegregationConflicts: conflicts,
	}, nil
}

func (srv *complianceService) auditEvent(ctx context.Context, input usecase.LogEventInput) {
	if err := srv.audit.LogEvent(ctx, input); err != nil {
		srv.log(ctx).Error("Failed to write audit entry", slog.String("action", input.Action), slog.Any("error", err))
	}
}
