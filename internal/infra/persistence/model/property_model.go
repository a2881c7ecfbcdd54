package model

import (
	"github.com/google/uuid"
)

// The property tables are owned by business modules outside this core; the
// structs below map only the columns the ownership-based permission checks
// read. No migrations or writes happen here.

// PropertyModel reads owner/manager columns from the 'properties' table.
type PropertyModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	OwnerID   uuid.UUID `gorm:"type:uuid"`
	ManagerID uuid.UUID `gorm:"type:uuid"`
}

// TableName explicitly sets the table name for GORM.
func (PropertyModel) TableName() string {
	return "properties"
}

// UnitModel reads the property linkage from the 'units' table.
type UnitModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	PropertyID uuid.UUID `gorm:"type:uuid"`
}

// TableName explicitly sets the table name for GORM.
func (UnitModel) TableName() string {
	return "units"
}

// MaintenanceRequestModel reads requester and property linkage from the
// 'maintenance_requests' table.
type MaintenanceRequestModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	PropertyID  uuid.UUID `gorm:"type:uuid"`
	RequesterID uuid.UUID `gorm:"type:uuid"`
}

// TableName explicitly sets the table name for GORM.
func (MaintenanceRequestModel) TableName() string {
	return "maintenance_requests"
}
