package postgres

import (
	"context"

	"propguard/internal/domain/repository"
	"propguard/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ownershipReader resolves owner/manager edges from the property tables,
// which are written by business modules outside this core.
type ownershipReader struct {
	db *gorm.DB
}

// NewOwnershipReader is the constructor for ownershipReader.
func NewOwnershipReader(db *gorm.DB) repository.OwnershipReader {
	return &ownershipReader{db: db}
}

// FindPropertyAccess returns owner/manager for a property.
func (repo *ownershipReader) FindPropertyAccess(ctx context.Context, propertyID uuid.UUID) (*repository.PropertyAccess, error) {
	var propertyM model.PropertyModel
	err := repo.db.WithContext(ctx).First(&propertyM, "id = ?", propertyID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrPropertyNotFound
		}

		return nil, errors.Wrap(err, "failed to find property access")
	}

	return &repository.PropertyAccess{
		OwnerID:   propertyM.OwnerID,
		ManagerID: propertyM.ManagerID,
	}, nil
}

// FindUnitPropertyAccess returns owner/manager of the property a unit belongs to.
func (repo *ownershipReader) FindUnitPropertyAccess(ctx context.Context, unitID uuid.UUID) (*repository.PropertyAccess, error) {
	var unitM model.UnitModel
	err := repo.db.WithContext(ctx).First(&unitM, "id = ?", unitID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrPropertyNotFound
		}

		return nil, errors.Wrap(err, "failed to find unit")
	}

	return repo.FindPropertyAccess(ctx, unitM.PropertyID)
}

// FindMaintenanceAccess returns the requester and the owning property's
// owner/manager for a maintenance request.
func (repo *ownershipReader) FindMaintenanceAccess(ctx context.Context, requestID uuid.UUID) (uuid.UUID, *repository.PropertyAccess, error) {
	var requestM model.MaintenanceRequestModel
	err := repo.db.WithContext(ctx).First(&requestM, "id = ?", requestID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, nil, repository.ErrPropertyNotFound
		}

		return uuid.Nil, nil, errors.Wrap(err, "failed to find maintenance request")
	}

	access, err := repo.FindPropertyAccess(ctx, requestM.PropertyID)
	if err != nil {
		return uuid.Nil, nil, err
	}

	return requestM.RequesterID, access, nil
}
