package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"propguard/internal/delivery/http/response"
	"propguard/internal/domain/entity"
	"propguard/internal/domain/repository"
	"propguard/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// SecurityHandler holds dependencies for audit and compliance handlers.
type SecurityHandler struct {
	audit      usecase.AuditUsecase
	compliance usecase.ComplianceUsecase
	logger     *slog.Logger
}

// NewSecurityHandler is the constructor for SecurityHandler, injected by Fx.
func NewSecurityHandler(audit usecase.AuditUsecase, compliance usecase.ComplianceUsecase, logger *slog.Logger) *SecurityHandler {
	return &SecurityHandler{audit: audit, compliance: compliance, logger: logger}
}

// Overview summarizes the last 24 hours of authentication activity together
// with open incidents and current violations.
func (h *SecurityHandler) Overview(c echo.Context) error {
	ctx := c.Request().Context()
	now := time.Now()

	metrics, err := h.audit.GetAuthMetrics(ctx, now.Add(-24*time.Hour), now)
	if err != nil {
		return errors.WithStack(err)
	}

	unresolved := false
	incidents, err := h.audit.ListIncidents(ctx, repository.IncidentFilter{Resolved: &unresolved})
	if err != nil {
		return errors.WithStack(err)
	}

	violations, err := h.compliance.DetectComplianceViolations(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]any{
		"authMetrics":   metrics,
		"openIncidents": len(incidents),
		"violations":    len(violations),
	}, "Security overview retrieved")
}

// AuthMetrics aggregates authentication counters over a window. Defaults to
// the last 24 hours.
func (h *SecurityHandler) AuthMetrics(c echo.Context) error {
	now := time.Now()
	from, to := now.Add(-24*time.Hour), now

	if raw := c.QueryParam("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return response.BadRequest(c, "INVALID_INPUT", "Invalid from timestamp")
		}
		from = parsed
	}
	if raw := c.QueryParam("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return response.BadRequest(c, "INVALID_INPUT", "Invalid to timestamp")
		}
		to = parsed
	}

	metrics, err := h.audit.GetAuthMetrics(c.Request().Context(), from, to)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, metrics, "Auth metrics retrieved")
}

// ListIncidents returns detected security incidents.
func (h *SecurityHandler) ListIncidents(c echo.Context) error {
	filter := repository.IncidentFilter{
		Severity: entity.Severity(c.QueryParam("severity")),
	}
	if raw := c.QueryParam("resolved"); raw != "" {
		resolved := raw == "true"
		filter.Resolved = &resolved
	}
	filter.Limit, filter.Offset = pagination(c)

	incidents, err := h.audit.ListIncidents(c.Request().Context(), filter)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, incidents, "Incidents retrieved")
}

// QueryAuditLogs lists audit entries matching the query filter.
func (h *SecurityHandler) QueryAuditLogs(c echo.Context) error {
	filter, err := auditFilterFromQuery(c)
	if err != nil {
		return err
	}

	output, err := h.audit.QueryEvents(c.Request().Context(), filter)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, output, "Audit logs retrieved")
}

// ExportAuditLogs renders matching audit entries as a downloadable document.
func (h *SecurityHandler) ExportAuditLogs(c echo.Context) error {
	filter, err := auditFilterFromQuery(c)
	if err != nil {
		return err
	}

	format := usecase.ExportFormat(c.QueryParam("format"))
	if format == "" {
		format = usecase.ExportFormatJSON
	}

	output, err := h.audit.ExportEvents(c.Request().Context(), filter, format)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.Blob(http.StatusOK, output.ContentType, output.Data)
}

// ListComplianceReports returns persisted reports, newest first.
func (h *SecurityHandler) ListComplianceReports(c echo.Context) error {
	limit, _ := pagination(c)
	reports, err := h.compliance.ListReports(c.Request().Context(),
		entity.ComplianceType(c.QueryParam("type")), limit)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, reports, "Compliance reports retrieved")
}

type generateReportRequest struct {
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
}

// GenerateComplianceReport assembles and persists a report for one framework.
func (h *SecurityHandler) GenerateComplianceReport(c echo.Context) error {
	var req generateReportRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid report input")
	}

	now := time.Now()
	if req.PeriodEnd.IsZero() {
		req.PeriodEnd = now
	}
	if req.PeriodStart.IsZero() {
		req.PeriodStart = req.PeriodEnd.AddDate(0, -12, 0)
	}

	report, err := h.compliance.GenerateReport(c.Request().Context(),
		entity.ComplianceType(c.Param("type")), req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, report, "Compliance report generated")
}

// RunRetentionCleanup enforces the retention policy for one data type.
func (h *SecurityHandler) RunRetentionCleanup(c echo.Context) error {
	output, err := h.compliance.ExecuteDataRetentionCleanup(c.Request().Context(), c.Param("dataType"))
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, output, "Retention cleanup executed")
}

// ListRetentionPolicies returns all configured retention policies.
func (h *SecurityHandler) ListRetentionPolicies(c echo.Context) error {
	policies, err := h.compliance.ListRetentionPolicies(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, policies, "Retention policies retrieved")
}

type retentionPolicyRequest struct {
	RetentionDays int  `json:"retentionDays" validate:"required"`
	AutoDelete    bool `json:"autoDelete"`
	IsActive      bool `json:"isActive"`
}

// UpsertRetentionPolicy creates or updates the policy for one data type.
func (h *SecurityHandler) UpsertRetentionPolicy(c echo.Context) error {
	var req retentionPolicyRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid policy input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	policy := &entity.DataRetentionPolicy{
		DataType:      c.Param("dataType"),
		RetentionDays: req.RetentionDays,
		AutoDelete:    req.AutoDelete,
		IsActive:      req.IsActive,
	}
	if err := h.compliance.UpsertRetentionPolicy(c.Request().Context(), policy); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, policy, "Retention policy saved")
}

// ListViolations computes current compliance violations on demand.
func (h *SecurityHandler) ListViolations(c echo.Context) error {
	violations, err := h.compliance.DetectComplianceViolations(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, violations, "Violations retrieved")
}

func auditFilterFromQuery(c echo.Context) (repository.AuditFilter, error) {
	filter := repository.AuditFilter{
		Action:         c.QueryParam("action"),
		EntityType:     c.QueryParam("entityType"),
		EntityID:       c.QueryParam("entityId"),
		ComplianceType: entity.ComplianceType(c.QueryParam("complianceType")),
		Severity:       entity.Severity(c.QueryParam("severity")),
		IPAddress:      c.QueryParam("ip"),
	}

	if raw := c.QueryParam("actorId"); raw != "" {
		actorID, err := uuid.Parse(raw)
		if err != nil {
			return filter, response.BadRequest(c, "INVALID_INPUT", "Invalid actor id")
		}
		filter.ActorID = &actorID
	}
	if raw := c.QueryParam("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, response.BadRequest(c, "INVALID_INPUT", "Invalid from timestamp")
		}
		filter.From = &from
	}
	if raw := c.QueryParam("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, response.BadRequest(c, "INVALID_INPUT", "Invalid to timestamp")
		}
		filter.To = &to
	}
	filter.Limit, filter.Offset = pagination(c)

	return filter, nil
}

func pagination(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))

	return limit, offset
}
