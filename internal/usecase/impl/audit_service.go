package impl

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
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

// Incident types raised by pattern detection.
const (
	incidentBruteForce      = "BRUTE_FORCE"
	incidentProbing         = "PERMISSION_PROBING"
	incidentOffHoursFinance = "OFF_HOURS_FINANCIAL_ACCESS"
)

// auditService implements the AuditUsecase interface: an append-only log
// with synchronous suspicious-pattern detection over the incoming stream.
type auditService struct {
	auditRepo repository.AuditRepository
	cfg       *config.Config
	clock     service.Clock
	logger    *slog.Logger
}

// AuditServiceParams holds dependencies for auditService, injected by Fx.
type AuditServiceParams struct {
	fx.In

	AuditRepo repository.AuditRepository
	Config    *config.Config
	Clock     service.Clock
	Logger    *slog.Logger
}

// NewAuditService is the constructor for auditService.
func NewAuditService(params AuditServiceParams) usecase.AuditUsecase {
	return &auditService{
		auditRepo: params.AuditRepo,
		cfg:       params.Config,
		clock:     params.Clock,
		logger:    params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *auditService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// LogEvent appends an entry, then runs detection. A detection failure is
// logged and swallowed so it can never fail the operation being audited.
func (srv *auditService) LogEvent(ctx context.Context, input usecase.LogEventInput) error {
	severity := input.Severity
	if severity == "" {
		severity = entity.SeverityInfo
	}
	complianceType := input.ComplianceType
	if complianceType == "" {
		complianceType = entity.ComplianceGeneral
	}

	entry := &entity.AuditEntry{
		Action:         input.Action,
		EntityType:     input.EntityType,
		EntityID:       input.EntityID,
		ActorID:        input.ActorID,
		Details:        input.Details,
		IPAddress:      input.IPAddress,
		UserAgent:      input.UserAgent,
		Severity:       severity,
		ComplianceType: complianceType,
		CreatedAt:      srv.clock(),
	}

	if err := srv.auditRepo.Create(ctx, entry); err != nil {
		return errors.Wrap(err, "failed to append audit entry")
	}

	if err := srv.detectSuspiciousActivity(ctx, entry); err != nil {
		srv.log(ctx).Error("Suspicious-activity detection failed",
			slog.String("action", entry.Action), slog.Any("error", err))
	}

	return nil
}

// QueryEvents lists entries matching the filter, newest first, with limits
// clamped to configuration.
func (srv *auditService) QueryEvents(ctx context.Context, filter repository.AuditFilter) (*usecase.AuditQueryOutput, error) {
	filter.Limit = srv.clampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	entries, total, err := srv.auditRepo.Query(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query audit entries")
	}

	return &usecase.AuditQueryOutput{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// ExportEvents renders matching entries in the requested format. The export
// itself is recorded as a DATA_EXPORT entry.
func (srv *auditService) ExportEvents(ctx context.Context, filter repository.AuditFilter, format usecase.ExportFormat) (*usecase.ExportOutput, error) {
	filter.Limit = srv.cfg.Audit.ExportMaxEntries
	filter.Offset = 0

	entries, _, err := srv.auditRepo.Query(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query audit entries")
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case usecase.ExportFormatJSON:
		data, err = renderExportJSON(entries)
		contentType = "application/json"
	case usecase.ExportFormatCSV:
		data, err = renderExportCSV(entries)
		contentType = "text/csv"
	case usecase.ExportFormatMarkdown:
		data = renderExportMarkdown(entries)
		contentType = "text/markdown"
	default:
		return nil, domainerrors.ErrValidationFailed.WrapMessage("unsupported export format")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to render export")
	}

	exportErr := srv.LogEvent(ctx, usecase.LogEventInput{
		Action:     entity.ActionDataExport,
		EntityType: "audit_entries",
		Details:    map[string]any{"format": string(format), "entries": len(entries)},
	})
	if exportErr != nil {
		srv.log(ctx).Error("Failed to audit export", slog.Any("error", exportErr))
	}

	return &usecase.ExportOutput{
		Format:      format,
		ContentType: contentType,
		Data:        data,
		Entries:     len(entries),
	}, nil
}

// GetAuthMetrics aggregates authentication counters over a window.
func (srv *auditService) GetAuthMetrics(ctx context.Context, from, to time.Time) (*usecase.AuthMetricsOutput, error) {
	output := &usecase.AuthMetricsOutput{From: from, To: to}

	counters := []struct {
		action string
		target *int64
	}{
		{entity.ActionLoginSuccess, &output.Logins},
		{entity.ActionLoginFailed, &output.FailedLogins},
		{entity.ActionAccountLocked, &output.Lockouts},
		{entity.ActionMFAFailed, &output.MFAFailures},
		{entity.ActionSSOLogin, &output.SSOLogins},
		{entity.ActionBiometricVerify, &output.BiometricLogins},
	}

	for _, counter := range counters {
		count, err := srv.auditRepo.Count(ctx, repository.AuditFilter{
			Action: counter.action,
			From:   &from,
			To:     &to,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to count %s entries", counter.action)
		}
		*counter.target = count
	}

	return output, nil
}

// ListIncidents returns detected security incidents.
func (srv *auditService) ListIncidents(ctx context.Context, filter repository.IncidentFilter) ([]*entity.SecurityIncident, error) {
	if filter.Limit <= 0 {
		filter.Limit = srv.cfg.Audit.DefaultQueryLimit
	}

	incidents, err := srv.auditRepo.ListIncidents(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list incidents")
	}

	return incidents, nil
}

// detectSuspiciousActivity compares the fresh entry against the configured
// thresholds and raises an incident on a match.
func (srv *auditService) detectSuspiciousActivity(ctx context.Context, entry *entity.AuditEntry) error {
	switch entry.Action {
	case entity.ActionLoginFailed:
		return srv.detectBruteForce(ctx, entry)
	case entity.ActionPermissionDenied:
		return srv.detectPermissionProbing(ctx, entry)
	case entity.ActionFinancialDataRead, entity.ActionFinancialDataWrite:
		return srv.detectOffHoursFinancialAccess(ctx, entry)
	default:
		return nil
	}
}

// detectBruteForce counts recent failed logins from the entry's source IP.
func (srv *auditService) detectBruteForce(ctx context.Context, entry *entity.AuditEntry) error {
	if entry.IPAddress == "" {
		return nil
	}

	windowStart := entry.CreatedAt.Add(-srv.cfg.Audit.FailedLoginWindow)
	count, err := srv.auditRepo.Count(ctx, repository.AuditFilter{
		Action:    entity.ActionLoginFailed,
		IPAddress: entry.IPAddress,
		From:      &windowStart,
	})
	if err != nil {
		return errors.Wrap(err, "failed to count failed logins")
	}
	if count < int64(srv.cfg.Audit.FailedLoginThreshold) {
		return nil
	}

	return srv.raiseIncident(ctx, entry, incidentBruteForce, entity.SeverityCritical,
		fmt.Sprintf("%d failed logins from %s within %s", count, entry.IPAddress, srv.cfg.Audit.FailedLoginWindow))
}

// detectPermissionProbing counts recent denials attributed to the same actor.
func (srv *auditService) detectPermissionProbing(ctx context.Context, entry *entity.AuditEntry) error {
	if entry.ActorID == nil {
		return nil
	}

	windowStart := entry.CreatedAt.Add(-srv.cfg.Audit.PermissionDenyWindow)
	count, err := srv.auditRepo.Count(ctx, repository.AuditFilter{
		Action:  entity.ActionPermissionDenied,
		ActorID: entry.ActorID,
		From:    &windowStart,
	})
	if err != nil {
		return errors.Wrap(err, "failed to count permission denials")
	}
	if count < int64(srv.cfg.Audit.PermissionDenyThreshold) {
		return nil
	}

	return srv.raiseIncident(ctx, entry, incidentProbing, entity.SeverityWarning,
		fmt.Sprintf("%d permission denials for one actor within %s", count, srv.cfg.Audit.PermissionDenyWindow))
}

// detectOffHoursFinancialAccess flags financial-data access outside the
// configured business-hours window.
func (srv *auditService) detectOffHoursFinancialAccess(ctx context.Context, entry *entity.AuditEntry) error {
	hour := entry.CreatedAt.Hour()
	if hour >= srv.cfg.Audit.BusinessHoursStart && hour < srv.cfg.Audit.BusinessHoursEnd {
		return nil
	}

	return srv.raiseIncident(ctx, entry, incidentOffHoursFinance, entity.SeverityWarning,
		fmt.Sprintf("financial data access at hour %02d, outside business hours %02d-%02d",
			hour, srv.cfg.Audit.BusinessHoursStart, srv.cfg.Audit.BusinessHoursEnd))
}

func (srv *auditService) raiseIncident(ctx context.Context, entry *entity.AuditEntry, incidentType string, severity entity.Severity, description string) error {
	if srv.cfg.Audit.IncidentSeverityEscalate && severity == entity.SeverityWarning && entry.Severity == entity.SeverityCritical {
		severity = entity.SeverityCritical
	}

	incident := &entity.SecurityIncident{
		Type:         incidentType,
		Severity:     severity,
		Description:  description,
		AuditEntryID: entry.ID,
		UserID:       entry.ActorID,
		CreatedAt:    srv.clock(),
	}

	if err := srv.auditRepo.CreateIncident(ctx, incident); err != nil {
		return errors.Wrap(err, "failed to create incident")
	}

	srv.log(ctx).Warn("Security incident raised",
		slog.String("type", incidentType),
		slog.String("severity", string(severity)),
		slog.String("description", description))

	return nil
}

func (srv *auditService) clampLimit(limit int) int {
	if limit <= 0 {
		return srv.cfg.Audit.DefaultQueryLimit
	}
	if limit > srv.cfg.Audit.MaxQueryLimit {
		return srv.cfg.Audit.MaxQueryLimit
	}

	return limit
}

func renderExportJSON(entries []*entity.AuditEntry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}

func renderExportCSV(entries []*entity.AuditEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"id", "action", "entityType", "entityID", "actorID", "ipAddress", "severity", "complianceType", "createdAt"}
	if err := writer.Write(header); err != nil {
		return nil, err
	}

	for _, entry := range entries {
		actorID := ""
		if entry.ActorID != nil {
			actorID = entry.ActorID.String()
		}
		record := []string{
			entry.ID.String(),
			entry.Action,
			entry.EntityType,
			entry.EntityID,
			actorID,
			entry.IPAddress,
			string(entry.Severity),
			string(entry.ComplianceType),
			entry.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func renderExportMarkdown(entries []*entity.AuditEntry) []byte {
	var builder strings.Builder
	builder.WriteString("| Time | Action | Entity | Actor | IP | Severity |\n")
	builder.WriteString("|------|--------|--------|-------|----|----------|\n")

	for _, entry := range entries {
		actorID := "-"
		if entry.ActorID != nil {
			actorID = entry.ActorID.String()
		}
		builder.WriteString(fmt.Sprintf("| %s | %s | %s/%s | %s | %s | %s |\n",
			entry.CreatedAt.Format(time.RFC3339),
			entry.Action,
			entry.EntityType, entry.EntityID,
			actorID,
			entry.IPAddress,
			entry.Severity))
	}

	return []byte(builder.String())
}
