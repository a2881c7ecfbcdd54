package impl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"propguard/internal/domain/entity"
	domainerrors "propguard/internal/domain/errors"
	"propguard/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type complianceFixtures struct {
	service    usecase.ComplianceUsecase
	compliance *fakeComplianceRepo
	audits     *fakeAuditRepo
	sessions   *fakeSessionRepo
	rbac       *fakeRBACRepo
	audit      *recordingAudit
	clock      *movableClock
}

func createTestComplianceService(t *testing.T) *complianceFixtures {
	t.Helper()

	compliance := newFakeComplianceRepo()
	audits := newFakeAuditRepo()
	sessions := newFakeSessionRepo()
	rbac := newFakeRBACRepo()
	audit := &recordingAudit{}
	clock := newMovableClock()

	service := NewComplianceService(ComplianceServiceParams{
		ComplianceRepo: compliance,
		AuditRepo:      audits,
		SessionRepo:    sessions,
		RBACRepo:       rbac,
		Audit:          audit,
		Config:         newTestConfig(),
		Clock:          clock.Now,
		Logger:         newDiscardLogger(),
	})

	return &complianceFixtures{
		service:    service,
		compliance: compliance,
		audits:     audits,
		sessions:   sessions,
		rbac:       rbac,
		audit:      audit,
		clock:      clock,
	}
}

func (f *complianceFixtures) addPolicy(dataType string, retentionDays int, autoDelete, isActive bool) {
	f.compliance.policies[dataType] = &entity.DataRetentionPolicy{
		ID:            uuid.New(),
		DataType:      dataType,
		RetentionDays: retentionDays,
		AutoDelete:    autoDelete,
		IsActive:      isActive,
	}
}

func TestComplianceService_ExecuteDataRetentionCleanup(t *testing.T) {
	t.Run("missing policy", func(t *testing.T) {
		f := createTestComplianceService(t)

		_, err := f.service.ExecuteDataRetentionCleanup(context.Background(), entity.DataTypeAuditLogs)
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})

	t.Run("inactive policy is a recorded no-op", func(t *testing.T) {
		f := createTestComplianceService(t)
		f.addPolicy(entity.DataTypeAuditLogs, 90, true, false)
		f.audits.entries = append(f.audits.entries, &entity.AuditEntry{
			Severity:  entity.SeverityInfo,
			CreatedAt: f.clock.Now().AddDate(0, 0, -365),
		})

		output, err := f.service.ExecuteDataRetentionCleanup(context.Background(), entity.DataTypeAuditLogs)

		require.NoError(t, err)
		assert.True(t, output.Skipped)
		assert.Zero(t, output.Deleted)
		assert.Len(t, f.audits.entries, 1)
	})

	t.Run("audit purge removes only aged INFO entries", func(t *testing.T) {
		f := createTestComplianceService(t)
		f.addPolicy(entity.DataTypeAuditLogs, 90, true, true)

		now := f.clock.Now()
		f.audits.entries = append(f.audits.entries,
			&entity.AuditEntry{ID: uuid.New(), Severity: entity.SeverityInfo, CreatedAt: now.AddDate(0, 0, -100)},
			&entity.AuditEntry{ID: uuid.New(), Severity: entity.SeverityWarning, CreatedAt: now.AddDate(0, 0, -100)},
			&entity.AuditEntry{ID: uuid.New(), Severity: entity.SeverityInfo, CreatedAt: now.AddDate(0, 0, -10)},
		)

		output, err := f.service.ExecuteDataRetentionCleanup(context.Background(), entity.DataTypeAuditLogs)

		require.NoError(t, err)
		assert.False(t, output.Skipped)
		assert.Equal(t, int64(1), output.Deleted)
		assert.Equal(t, 90, output.RetentionDays)
		assert.Len(t, f.audits.entries, 2)

		// The run itself is recorded.
		assert.Contains(t, f.compliance.cleanups, entity.DataTypeAuditLogs)
		event, ok := f.audit.findAction(entity.ActionRetentionCleanup)
		require.True(t, ok)
		assert.Equal(t, int64(1), event.Details["deleted"])
	})

	t.Run("session purge goes by age alone", func(t *testing.T) {
		f := createTestComplianceService(t)
		f.addPolicy(entity.DataTypeSessions, 30, true, true)

		now := f.clock.Now()
		f.sessions.sessions = append(f.sessions.sessions,
			&entity.Session{ID: uuid.New(), CreatedAt: now.AddDate(0, 0, -40)},
			&entity.Session{ID: uuid.New(), CreatedAt: now.AddDate(0, 0, -5)},
		)

		output, err := f.service.ExecuteDataRetentionCleanup(context.Background(), entity.DataTypeSessions)

		require.NoError(t, err)
		assert.Equal(t, int64(1), output.Deleted)
		assert.Len(t, f.sessions.sessions, 1)
	})

	t.Run("policy for an unhandled data type", func(t *testing.T) {
		f := createTestComplianceService(t)
		f.addPolicy("invoices", 30, true, true)

		_, err := f.service.ExecuteDataRetentionCleanup(context.Background(), "invoices")
		assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	})
}

func TestComplianceService_DetectComplianceViolations(t *testing.T) {
	activePolicies := func(f *complianceFixtures) {
		f.addPolicy(entity.DataTypeAuditLogs, 90, true, true)
		f.addPolicy(entity.DataTypeSessions, 30, true, true)
	}

	t.Run("clean state yields no violations", func(t *testing.T) {
		f := createTestComplianceService(t)
		activePolicies(f)

		violations, err := f.service.DetectComplianceViolations(context.Background())

		require.NoError(t, err)
		assert.Empty(t, violations)
	})

	t.Run("overdue data subject request is critical", func(t *testing.T) {
		f := createTestComplianceService(t)
		activePolicies(f)
		f.compliance.requests = append(f.compliance.requests, &entity.DataSubjectRequest{
			ID:          uuid.New(),
			UserID:      uuid.New(),
			RequestType: "erasure",
			RequestedAt: f.clock.Now().AddDate(0, 0, -45),
		})

		violations, err := f.service.DetectComplianceViolations(context.Background())

		require.NoError(t, err)
		require.Len(t, violations, 1)
		assert.Equal(t, violationOverdueDSR, violations[0].Type)
		assert.Equal(t, entity.SeverityCritical, violations[0].Severity)
	})

	t.Run("answered requests are not overdue", func(t *testing.T) {
		f := createTestComplianceService(t)
		activePolicies(f)
		respondedAt := f.clock.Now().AddDate(0, 0, -10)
		f.compliance.requests = append(f.compliance.requests, &entity.DataSubjectRequest{
			ID:          uuid.New(),
			UserID:      uuid.New(),
			RequestType: "access",
			RequestedAt: f.clock.Now().AddDate(0, 0, -45),
			RespondedAt: &respondedAt,
		})

		violations, err := f.service.DetectComplianceViolations(context.Background())

		require.NoError(t, err)
		assert.Empty(t, violations)
	})

	t.Run("each required data type needs an active policy", func(t *testing.T) {
		f := createTestComplianceService(t)
		f.addPolicy(entity.DataTypeAuditLogs, 90, true, false) // Present but inactive.

		violations, err := f.service.DetectComplianceViolations(context.Background())

		require.NoError(t, err)
		require.Len(t, violations, len(entity.RequiredRetentionDataTypes))
		for _, violation := range violations {
			assert.Equal(t, violationMissingPolicy, violation.Type)
			assert.Equal(t, entity.SeverityWarning, violation.Severity)
		}
	})

	t.Run("unresolved off-hours incidents surface as violations", func(t *testing.T) {
		f := createTestComplianceService(t)
		activePolicies(f)
		userID := uuid.New()
		f.audits.incidents = append(f.audits.incidents,
			&entity.SecurityIncident{
				ID:          uuid.New(),
				Type:        incidentOffHoursFinance,
				Severity:    entity.SeverityWarning,
				Description: "financial data access at hour 23",
				UserID:      &userID,
				CreatedAt:   f.clock.Now(),
			},
			&entity.SecurityIncident{
				ID:        uuid.New(),
				Type:      incidentBruteForce,
				Severity:  entity.SeverityCritical,
				CreatedAt: f.clock.Now(),
			},
			&entity.SecurityIncident{
				ID:        uuid.New(),
				Type:      incidentOffHoursFinance,
				Severity:  entity.SeverityWarning,
				Resolved:  true,
				CreatedAt: f.clock.Now(),
			},
		)

		violations, err := f.service.DetectComplianceViolations(context.Background())

		require.NoError(t, err)
		require.Len(t, violations, 1)
		assert.Equal(t, violationFinancialAccess, violations[0].Type)
		assert.Equal(t, userID.String(), violations[0].Details["userID"])
	})
}

func TestComplianceService_GenerateReport(t *testing.T) {
	period := func(f *complianceFixtures) (time.Time, time.Time) {
		return f.clock.Now().AddDate(0, -12, 0), f.clock.Now()
	}

	t.Run("unsupported report type", func(t *testing.T) {
		f := createTestComplianceService(t)
		from, to := period(f)

		_, err := f.service.GenerateReport(context.Background(), entity.ComplianceGeneral, from, to)
		assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	})

	t.Run("checksum matches the payload and generation is deterministic", func(t *testing.T) {
		f := createTestComplianceService(t)
		from, to := period(f)

		first, err := f.service.GenerateReport(context.Background(), entity.ComplianceGDPR, from, to)
		require.NoError(t, err)

		sum := sha256.Sum256(first.Payload)
		assert.Equal(t, hex.EncodeToString(sum[:]), first.Checksum)
		assert.Equal(t, f.clock.Now(), first.GeneratedAt)
		assert.Equal(t, f.clock.Now().Add(365*24*time.Hour), first.ValidUntil)

		second, err := f.service.GenerateReport(context.Background(), entity.ComplianceGDPR, from, to)
		require.NoError(t, err)
		assert.Equal(t, first.Payload, second.Payload)
		assert.Equal(t, first.Checksum, second.Checksum)

		event, ok := f.audit.findAction(entity.ActionComplianceReport)
		require.True(t, ok)
		assert.Equal(t, entity.ComplianceGDPR, event.ComplianceType)
	})

	t.Run("gdpr body classifies data subject requests", func(t *testing.T) {
		f := createTestComplianceService(t)
		from, to := period(f)

		inWindow := f.clock.Now().AddDate(0, -1, 0)
		for _, requestType := range []string{"access", "access", "erasure", "portability", "opt_out"} {
			f.compliance.requests = append(f.compliance.requests, &entity.DataSubjectRequest{
				ID:          uuid.New(),
				UserID:      uuid.New(),
				RequestType: requestType,
				RequestedAt: inWindow,
			})
		}
		f.audits.entries = append(f.audits.entries,
			&entity.AuditEntry{ComplianceType: entity.ComplianceGDPR, CreatedAt: inWindow},
			&entity.AuditEntry{Action: entity.ActionDataExport, ComplianceType: entity.ComplianceGeneral, CreatedAt: inWindow},
		)
		f.audits.incidents = append(f.audits.incidents, &entity.SecurityIncident{
			ID:        uuid.New(),
			Type:      incidentBruteForce,
			Severity:  entity.SeverityCritical,
			CreatedAt: inWindow,
		})

		report, err := f.service.GenerateReport(context.Background(), entity.ComplianceGDPR, from, to)
		require.NoError(t, err)

		var body struct {
			DataProcessingActivities int64 `json:"dataProcessingActivities"`
			DataExports              int64 `json:"dataExports"`
			SubjectAccessRequests    int   `json:"subjectAccessRequests"`
			ErasureRequests          int   `json:"erasureRequests"`
			PortabilityRequests      int   `json:"portabilityRequests"`
			BreachIncidents          int   `json:"breachIncidents"`
		}
		require.NoError(t, json.Unmarshal(report.Payload, &body))
		assert.Equal(t, int64(1), body.DataProcessingActivities)
		assert.Equal(t, int64(1), body.DataExports)
		assert.Equal(t, 2, body.SubjectAccessRequests)
		assert.Equal(t, 1, body.ErasureRequests)
		assert.Equal(t, 1, body.PortabilityRequests)
		assert.Equal(t, 1, body.BreachIncidents)
	})

	t.Run("ccpa body counts opt-outs and never reports data sales", func(t *testing.T) {
		f := createTestComplianceService(t)
		from, to := period(f)

		inWindow := f.clock.Now().AddDate(0, -1, 0)
		f.compliance.requests = append(f.compliance.requests,
			&entity.DataSubjectRequest{ID: uuid.New(), UserID: uuid.New(), RequestType: "opt_out", RequestedAt: inWindow},
			&entity.DataSubjectRequest{ID: uuid.New(), UserID: uuid.New(), RequestType: "access", RequestedAt: inWindow},
		)

		report, err := f.service.GenerateReport(context.Background(), entity.ComplianceCCPA, from, to)
		require.NoError(t, err)

		var body struct {
			OptOutRequests  int   `json:"optOutRequests"`
			DataSaleRecords int64 `json:"dataSaleRecords"`
		}
		require.NoError(t, json.Unmarshal(report.Payload, &body))
		assert.Equal(t, 1, body.OptOutRequests)
		assert.Zero(t, body.DataSaleRecords)
	})

	t.Run("sox body carries segregation conflicts in stable order", func(t *testing.T) {
		f := createTestComplianceService(t)
		from, to := period(f)

		// Seeded in descending order; the payload must not depend on how the
		// store happens to return them.
		first := uuid.MustParse("0b7d8f3a-1c6e-4a2b-9d5f-3e8a1b4c6d7e")
		second := uuid.MustParse("f4a9c2e1-7b3d-4f8a-a1c5-9e2d6b8f0a3c")
		f.rbac.conflicts = []uuid.UUID{second, first}
		inWindow := f.clock.Now().AddDate(0, -1, 0)
		f.audits.entries = append(f.audits.entries,
			&entity.AuditEntry{Action: entity.ActionFinancialDataRead, CreatedAt: inWindow},
			&entity.AuditEntry{Action: entity.ActionFinancialDataWrite, CreatedAt: inWindow},
			&entity.AuditEntry{Action: entity.ActionRoleAssigned, CreatedAt: inWindow},
		)

		report, err := f.service.GenerateReport(context.Background(), entity.ComplianceSOX, from, to)
		require.NoError(t, err)

		var body struct {
			FinancialReads       int64    `json:"financialReads"`
			FinancialWrites      int64    `json:"financialWrites"`
			AccessControlChanges int64    `json:"accessControlChanges"`
			SegregationConflicts []string `json:"segregationConflicts"`
		}
		require.NoError(t, json.Unmarshal(report.Payload, &body))
		assert.Equal(t, int64(1), body.FinancialReads)
		assert.Equal(t, int64(1), body.FinancialWrites)
		assert.Equal(t, int64(1), body.AccessControlChanges)
		assert.Equal(t, []string{first.String(), second.String()}, body.SegregationConflicts)
	})
}

func TestComplianceService_UpsertRetentionPolicy(t *testing.T) {
	t.Run("requires a data type and positive retention", func(t *testing.T) {
		f := createTestComplianceService(t)

		err := f.service.UpsertRetentionPolicy(context.Background(), &entity.DataRetentionPolicy{RetentionDays: 30})
		assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)

		err = f.service.UpsertRetentionPolicy(context.Background(), &entity.DataRetentionPolicy{DataType: entity.DataTypeSessions})
		assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	})

	t.Run("stamps the update time", func(t *testing.T) {
		f := createTestComplianceService(t)

		policy := &entity.DataRetentionPolicy{DataType: entity.DataTypeSessions, RetentionDays: 30}
		require.NoError(t, f.service.UpsertRetentionPolicy(context.Background(), policy))
		assert.Equal(t, f.clock.Now(), policy.UpdatedAt)

		policies, err := f.service.ListRetentionPolicies(context.Background())
		require.NoError(t, err)
		assert.Len(t, policies, 1)
	})
}
