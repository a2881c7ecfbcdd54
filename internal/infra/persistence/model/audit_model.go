package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditEntryModel mirrors the 'audit_entries' table. Rows are append-only;
// nothing in the codebase issues UPDATEs against this table.
type AuditEntryModel struct {
	ID             uuid.UUID      `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	Action         string         `gorm:"type:varchar(100);not null;index"`
	EntityType     string         `gorm:"type:varchar(100);index:idx_audit_entity"`
	EntityID       string         `gorm:"type:varchar(255);index:idx_audit_entity"`
	ActorID        *uuid.UUID     `gorm:"type:uuid;index"`
	Details        datatypes.JSON `gorm:"type:jsonb"`
	IPAddress      string         `gorm:"type:varchar(45);index"`
	UserAgent      string         `gorm:"type:varchar(512)"`
	Severity       string         `gorm:"type:varchar(20);not null;index"`
	ComplianceType string         `gorm:"type:varchar(20);not null;index"`
	CreatedAt      time.Time      `gorm:"index"`
}

// TableName explicitly sets the table name for GORM.
func (AuditEntryModel) TableName() string {
	return "audit_entries"
}

// SecurityIncidentModel mirrors the 'security_incidents' table.
type SecurityIncidentModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	Type         string     `gorm:"type:varchar(100);not null;index"`
	Severity     string     `gorm:"type:varchar(20);not null"`
	Description  string     `gorm:"type:text"`
	AuditEntryID uuid.UUID  `gorm:"type:uuid;not null"`
	UserID       *uuid.UUID `gorm:"type:uuid;index"`
	Resolved     bool       `gorm:"not null;default:false"`
	CreatedAt    time.Time
}

// TableName explicitly sets the table name for GORM.
func (SecurityIncidentModel) TableName() string {
	return "security_incidents"
}
