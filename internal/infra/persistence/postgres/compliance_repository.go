package postgres

import (
	"context"
	"time"

	"propguard/internal/domain/entity"
	domainerrors "propguard/internal/domain/errors"
	"propguard/internal/domain/repository"
	"propguard/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// complianceRepository implements the domain's ComplianceRepository interface using GORM.
type complianceRepository struct {
	db *gorm.DB
}

// NewComplianceRepository is the constructor for complianceRepository.
func NewComplianceRepository(db *gorm.DB) repository.ComplianceRepository {
	return &complianceRepository{db: db}
}

// FindPolicyByDataType retrieves the retention policy for one data type.
func (repo *complianceRepository) FindPolicyByDataType(ctx context.Context, dataType string) (*entity.DataRetentionPolicy, error) {
	var policyM model.DataRetentionPolicyModel
	err := repo.db.WithContext(ctx).First(&policyM, "data_type = ?", dataType).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrPolicyNotFound
		}

		return nil, errors.Wrap(err, "failed to find retention policy")
	}

	return toRetentionPolicyDomain(&policyM), nil
}

// ListPolicies returns all retention policies.
func (repo *complianceRepository) ListPolicies(ctx context.Context) ([]*entity.DataRetentionPolicy, error) {
	var policyMs []*model.DataRetentionPolicyModel
	err := repo.db.WithContext(ctx).Order("data_type ASC").Find(&policyMs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list retention policies")
	}

	policies := make([]*entity.DataRetentionPolicy, 0, len(policyMs))
	for _, policyM := range policyMs {
		policies = append(policies, toRetentionPolicyDomain(policyM))
	}

	return policies, nil
}

// UpsertPolicy creates or replaces a retention policy, keyed by data type.
func (repo *complianceRepository) UpsertPolicy(ctx context.Context, policy *entity.DataRetentionPolicy) error {
	policyM := fromRetentionPolicyDomain(policy)

	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "data_type"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"retention_days",
				"auto_delete",
				"is_active",
				"updated_at",
			}),
		}).
		Create(policyM).Error
	if err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to upsert retention policy")
	}

	policy.ID = policyM.ID
	policy.UpdatedAt = policyM.UpdatedAt

	return nil
}

// MarkCleanup records when cleanup last ran for a data type.
func (repo *complianceRepository) MarkCleanup(ctx context.Context, dataType string, ranAt time.Time) error {
	err := repo.db.WithContext(ctx).Model(&model.DataRetentionPolicyModel{}).
		Where("data_type = ?", dataType).
		Update("last_cleanup", ranAt).Error
	if err != nil {
		return errors.Wrap(err, "failed to mark cleanup")
	}

	return nil
}

// CreateReport persists a generated compliance report.
func (repo *complianceRepository) CreateReport(ctx context.Context, report *entity.ComplianceReport) error {
	reportM := fromComplianceReportDomain(report)

	if err := repo.db.WithContext(ctx).Create(reportM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to create compliance report")
	}

	report.ID = reportM.ID
	report.GeneratedAt = reportM.GeneratedAt

	return nil
}

// ListReports returns reports of one type, newest first. Empty type lists all.
func (repo *complianceRepository) ListReports(ctx context.Context, reportType entity.ComplianceType, limit int) ([]*entity.ComplianceReport, error) {
	query := repo.db.WithContext(ctx).Model(&model.ComplianceReportModel{})
	if reportType != "" {
		query = query.Where("type = ?", string(reportType))
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var reportMs []*model.ComplianceReportModel
	if err := query.Order("generated_at DESC").Find(&reportMs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list compliance reports")
	}

	reports := make([]*entity.ComplianceReport, 0, len(reportMs))
	for _, reportM := range reportMs {
		reports = append(reports, toComplianceReportDomain(reportM))
	}

	return reports, nil
}

// ListOverdueRequests returns data-subject requests still unanswered past the
// respond-by cutoff.
func (repo *complianceRepository) ListOverdueRequests(ctx context.Context, requestedBefore time.Time) ([]*entity.DataSubjectRequest, error) {
	var requestMs []*model.DataSubjectRequestModel
	err := repo.db.WithContext(ctx).
		Where("requested_at < ? AND status IN ?", requestedBefore, []string{"pending", "in_progress"}).
		Order("requested_at ASC").
		Find(&requestMs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list overdue requests")
	}

	requests := make([]*entity.DataSubjectRequest, 0, len(requestMs))
	for _, requestM := range requestMs {
		requests = append(requests, toDataSubjectRequestDomain(requestM))
	}

	return requests, nil
}

// ListRequestsInWindow returns requests made inside the window, optionally
// narrowed to one request type.
func (repo *complianceRepository) ListRequestsInWindow(ctx context.Context, from, to time.Time, requestType string) ([]*entity.DataSubjectRequest, error) {
	query := repo.db.WithContext(ctx).
		Where("requested_at >= ? AND requested_at <= ?", from, to)
	if requestType != "" {
		query = query.Where("request_type = ?", requestType)
	}

	var requestMs []*model.DataSubjectRequestModel
	if err := query.Order("requested_at ASC").Find(&requestMs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list requests in window")
	}

	requests := make([]*entity.DataSubjectRequest, 0, len(requestMs))
	for _, requestM := range requestMs {
		requests = append(requests, toDataSubjectRequestDomain(requestM))
	}

	return requests, nil
}

// --- Mapper Functions ---

// toRetentionPolicyDomain converts a GORM model to a domain DataRetentionPolicy.
func toRetentionPolicyDomain(data *model.DataRetentionPolicyModel) *entity.DataRetentionPolicy {
	if data == nil {
		return nil
	}

	return &entity.DataRetentionPolicy{
		ID:            data.ID,
		DataType:      data.DataType,
		RetentionDays: data.RetentionDays,
		AutoDelete:    data.AutoDelete,
		IsActive:      data.IsActive,
		LastCleanup:   data.LastCleanup,
		UpdatedAt:     data.UpdatedAt,
	}
}

// fromRetentionPolicyDomain converts a domain DataRetentionPolicy to a GORM model.
func fromRetentionPolicyDomain(data *entity.DataRetentionPolicy) *model.DataRetentionPolicyModel {
	if data == nil {
		return nil
	}

	return &model.DataRetentionPolicyModel{
		ID:            data.ID,
		DataType:      data.DataType,
		RetentionDays: data.RetentionDays,
		AutoDelete:    data.AutoDelete,
		IsActive:      data.IsActive,
		LastCleanup:   data.LastCleanup,
		UpdatedAt:     data.UpdatedAt,
	}
}

// toComplianceReportDomain converts a GORM model to a domain ComplianceReport.
func toComplianceReportDomain(data *model.ComplianceReportModel) *entity.ComplianceReport {
	if data == nil {
		return nil
	}

	return &entity.ComplianceReport{
		ID:          data.ID,
		Type:        entity.ComplianceType(data.Type),
		PeriodStart: data.PeriodStart,
		PeriodEnd:   data.PeriodEnd,
		Payload:     data.Payload,
		Checksum:    data.Checksum,
		ValidUntil:  data.ValidUntil,
		GeneratedAt: data.GeneratedAt,
	}
}

// fromComplianceReportDomain converts a domain ComplianceReport to a GORM model.
func fromComplianceReportDomain(data *entity.ComplianceReport) *model.ComplianceReportModel {
	if data == nil {
		return nil
	}

	return &model.ComplianceReportModel{
		ID:          data.ID,
		Type:        string(data.Type),
		PeriodStart: data.PeriodStart,
		PeriodEnd:   data.PeriodEnd,
		Payload:     data.Payload,
		Checksum:    data.Checksum,
		ValidUntil:  data.ValidUntil,
		GeneratedAt: data.GeneratedAt,
	}
}

// toDataSubjectRequestDomain converts a GORM model to a domain DataSubjectRequest.
func toDataSubjectRequestDomain(data *model.DataSubjectRequestModel) *entity.DataSubjectRequest {
	if data == nil {
		return nil
	}

	return &entity.DataSubjectRequest{
		ID:          data.ID,
		UserID:      data.UserID,
		RequestType: data.RequestType,
		Status:      data.Status,
		RequestedAt: data.RequestedAt,
		RespondedAt: data.RespondedAt,
	}
}
