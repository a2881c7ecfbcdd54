package postgres

import (
	"context"
	"encoding/json"
	"time"

	"propguard/internal/domain/entity"
	domainerrors "propguard/internal/domain/errors"
	"propguard/internal/domain/repository"
	"propguard/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// auditRepository implements the domain's AuditRepository interface using GORM.
// The audit_entries table is append-only; this repository issues no UPDATEs
// against it.
type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository is the constructor for auditRepository.
func NewAuditRepository(db *gorm.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

// Create appends one audit entry.
func (repo *auditRepository) Create(ctx context.Context, entry *entity.AuditEntry) error {
	entryM := fromAuditEntryDomain(entry)

	if err := repo.db.WithContext(ctx).Create(entryM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to create audit entry")
	}

	entry.ID = entryM.ID
	entry.CreatedAt = entryM.CreatedAt

	return nil
}

// Query lists entries matching the filter, newest first, with the total
// match count for pagination.
func (repo *auditRepository) Query(ctx context.Context, filter repository.AuditFilter) ([]*entity.AuditEntry, int64, error) {
	query := repo.applyFilter(repo.db.WithContext(ctx).Model(&model.AuditEntryModel{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count audit entries")
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var entryMs []*model.AuditEntryModel
	if err := query.Order("created_at DESC").Find(&entryMs).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to query audit entries")
	}

	entries := make([]*entity.AuditEntry, 0, len(entryMs))
	for _, entryM := range entryMs {
		entries = append(entries, toAuditEntryDomain(entryM))
	}

	return entries, total, nil
}

// Count returns only the number of entries matching the filter.
func (repo *auditRepository) Count(ctx context.Context, filter repository.AuditFilter) (int64, error) {
	var count int64
	query := repo.applyFilter(repo.db.WithContext(ctx).Model(&model.AuditEntryModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "failed to count audit entries")
	}

	return count, nil
}

// DeleteOlderThan removes entries created before the cutoff, optionally
// narrowed to one severity.
func (repo *auditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, severity entity.Severity) (int64, error) {
	query := repo.db.WithContext(ctx).Where("created_at < ?", cutoff)
	if severity != "" {
		query = query.Where("severity = ?", string(severity))
	}

	result := query.Delete(&model.AuditEntryModel{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete audit entries")
	}

	return result.RowsAffected, nil
}

// CreateIncident persists a derived security incident.
func (repo *auditRepository) CreateIncident(ctx context.Context, incident *entity.SecurityIncident) error {
	incidentM := fromSecurityIncidentDomain(incident)

	if err := repo.db.WithContext(ctx).Create(incidentM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to create security incident")
	}

	incident.ID = incidentM.ID
	incident.CreatedAt = incidentM.CreatedAt

	return nil
}

// ListIncidents returns incidents matching the filter, newest first.
func (repo *auditRepository) ListIncidents(ctx context.Context, filter repository.IncidentFilter) ([]*entity.SecurityIncident, error) {
	query := repo.db.WithContext(ctx).Model(&model.SecurityIncidentModel{})
	if filter.Resolved != nil {
		query = query.Where("resolved = ?", *filter.Resolved)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", string(filter.Severity))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var incidentMs []*model.SecurityIncidentModel
	if err := query.Order("created_at DESC").Find(&incidentMs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list security incidents")
	}

	incidents := make([]*entity.SecurityIncident, 0, len(incidentMs))
	for _, incidentM := range incidentMs {
		incidents = append(incidents, toSecurityIncidentDomain(incidentM))
	}

	return incidents, nil
}

// applyFilter translates an AuditFilter into WHERE clauses.
func (repo *auditRepository) applyFilter(query *gorm.DB, filter repository.AuditFilter) *gorm.DB {
	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.ComplianceType != "" {
		query = query.Where("compliance_type = ?", string(filter.ComplianceType))
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", string(filter.Severity))
	}
	if filter.IPAddress != "" {
		query = query.Where("ip_address = ?", filter.IPAddress)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}

	return query
}

// --- Mapper Functions ---

// toAuditEntryDomain converts a GORM AuditEntryModel to a domain AuditEntry.
func toAuditEntryDomain(data *model.AuditEntryModel) *entity.AuditEntry {
	if data == nil {
		return nil
	}

	var details map[string]any
	if len(data.Details) > 0 {
		_ = json.Unmarshal(data.Details, &details)
	}

	return &entity.AuditEntry{
		ID:             data.ID,
		Action:         data.Action,
		EntityType:     data.EntityType,
		EntityID:       data.EntityID,
		ActorID:        data.ActorID,
		Details:        details,
		IPAddress:      data.IPAddress,
		UserAgent:      data.UserAgent,
		Severity:       entity.Severity(data.Severity),
		ComplianceType: entity.ComplianceType(data.ComplianceType),
		CreatedAt:      data.CreatedAt,
	}
}

// fromAuditEntryDomain converts a domain AuditEntry to a GORM AuditEntryModel.
func fromAuditEntryDomain(data *entity.AuditEntry) *model.AuditEntryModel {
	if data == nil {
		return nil
	}

	var detailsJSON []byte
	if data.Details != nil {
		detailsJSON, _ = json.Marshal(data.Details)
	}

	return &model.AuditEntryModel{
		ID:             data.ID,
		Action:         data.Action,
		EntityType:     data.EntityType,
		EntityID:       data.EntityID,
		ActorID:        data.ActorID,
		Details:        detailsJSON,
		IPAddress:      data.IPAddress,
		UserAgent:      data.UserAgent,
		Severity:       string(data.Severity),
		ComplianceType: string(data.ComplianceType),
		CreatedAt:      data.CreatedAt,
	}
}

// toSecurityIncidentDomain converts a GORM model to a domain SecurityIncident.
func toSecurityIncidentDomain(data *model.SecurityIncidentModel) *entity.SecurityIncident {
	if data == nil {
		return nil
	}

	return &entity.SecurityIncident{
		ID:           data.ID,
		Type:         data.Type,
		Severity:     entity.Severity(data.Severity),
		Description:  data.Description,
		AuditEntryID: data.AuditEntryID,
		UserID:       data.UserID,
		Resolved:     data.Resolved,
		CreatedAt:    data.CreatedAt,
	}
}

// fromSecurityIncidentDomain converts a domain SecurityIncident to a GORM model.
func fromSecurityIncidentDomain(data *entity.SecurityIncident) *model.SecurityIncidentModel {
	if data == nil {
		return nil
	}

	return &model.SecurityIncidentModel{
		ID:           data.ID,
		Type:         data.Type,
		Severity:     string(data.Severity),
		Description:  data.Description,
		AuditEntryID: data.AuditEntryID,
		UserID:       data.UserID,
		Resolved:     data.Resolved,
		CreatedAt:    data.CreatedAt,
	}
}
