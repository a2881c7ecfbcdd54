package model

import (
	"time"

	"github.com/google/uuid"
)

// DataRetentionPolicyModel mirrors the 'data_retention_policies' table.
type DataRetentionPolicyModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	DataType      string    `gorm:"type:varchar(100);unique;not null"`
	RetentionDays int       `gorm:"not null"`
	AutoDelete    bool      `gorm:"not null;default:false"`
	IsActive      bool      `gorm:"not null;default:true"`
	LastCleanup   *time.Time
	UpdatedAt     time.Time
}

// TableName explicitly sets the table name for GORM.
func (DataRetentionPolicyModel) TableName() string {
	return "data_retention_policies"
}

// ComplianceReportModel mirrors the 'compliance_reports' table. Reports are
// immutable once written; regeneration inserts a fresh row.
type ComplianceReportModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	Type        string    `gorm:"type:varchar(20);not null;index"`
	PeriodStart time.Time `gorm:"not null"`
	PeriodEnd   time.Time `gorm:"not null"`
	Payload     []byte    `gorm:"type:bytea;not null"`
	Checksum    string    `gorm:"type:varchar(64);not null"`
	ValidUntil  time.Time `gorm:"not null"`
	GeneratedAt time.Time
}

// TableName explicitly sets the table name for GORM.
func (ComplianceReportModel) TableName() string {
	return "compliance_reports"
}

// DataSubjectRequestModel mirrors the 'data_subject_requests' table.
type DataSubjectRequestModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index"`
	RequestType string    `gorm:"type:varchar(20);not null"`
	Status      string    `gorm:"type:varchar(20);not null;default:'pending'"`
	RequestedAt time.Time `gorm:"not null;index"`
	RespondedAt *time.Time
}

// TableName explicitly sets the table name for GORM.
func (DataSubjectRequestModel) TableName() string {
	return "data_subject_requests"
}
