package repository

import (
	"context"
	"errors"

	"propguard/internal/domain/entity"

	"github.com/google/uuid"
)

// Domain-specific errors for the role/permission graph.
var (
	// ErrRoleNotFound is returned when a dynamic role does not exist.
	ErrRoleNotFound = errors.New("role not found")
	// ErrPermissionNotFound is returned when a permission does not exist.
	ErrPermissionNotFound = errors.New("permission not found")
	// ErrPropertyNotFound is returned when an ownership lookup misses.
	ErrPropertyNotFound = errors.New("property not found")
)

// RBACRepository defines persistence for the dynamic role/permission graph.
// Mutations carry no invariants beyond referential integrity enforced by the store.
type RBACRepository interface {
	// CreateRole persists a new role. Role names are unique.
	CreateRole(ctx context.Context, role *entity.Role) error

	// FindRoleByID retrieves a role with its permissions preloaded.
	FindRoleByID(ctx context.Context, id uuid.UUID) (*entity.Role, error)

	// FindRoleByName retrieves a role by its unique name.
	FindRoleByName(ctx context.Context, name string) (*entity.Role, error)

	// ListRoles returns all roles with permissions preloaded.
	ListRoles(ctx context.Context) ([]*entity.Role, error)

	// ReplaceRolePermissions overwrites the permission set of a role.
	ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error

	// CreatePermission persists a new permission.
	CreatePermission(ctx context.Context, permission *entity.Permission) error

	// ListPermissions returns all permissions.
	ListPermissions(ctx context.Context) ([]*entity.Permission, error)

	// AssignRoleToUser adds a user-role edge. Assigning twice is a no-op.
	AssignRoleToUser(ctx context.Context, userID, roleID uuid.UUID) error

	// RemoveRoleFromUser deletes a user-role edge.
	RemoveRoleFromUser(ctx context.Context, userID, roleID uuid.UUID) error

	// ListRolesByUserID returns the dynamic roles assigned to a user,
	// with permissions preloaded.
	ListRolesByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.Role, error)

	// ListSegregationConflicts returns IDs of users simultaneously holding
	// administrative authority and a tenant role, in either the static or the
	// dynamic role system.
	ListSegregationConflicts(ctx context.Context) ([]uuid.UUID, error)
}

// PropertyAccess identifies the owner and manager of a property, used by
// ownership-based access checks. The property tables themselves belong to
// business modules outside this core.
type PropertyAccess struct {
	OwnerID   uuid.UUID
	ManagerID uuid.UUID
}

// OwnershipReader resolves ownership edges for the resource types the
// permission resolver understands.
type OwnershipReader interface {
	// FindPropertyAccess returns owner/manager for a property.
	FindPropertyAccess(ctx context.Context, propertyID uuid.UUID) (*PropertyAccess, error)

	// FindUnitPropertyAccess returns owner/manager of the property a unit belongs to.
	FindUnitPropertyAccess(ctx context.Context, unitID uuid.UUID) (*PropertyAccess, error)

	// FindMaintenanceAccess returns the requester and the owning property's
	// owner/manager for a maintenance request.
	FindMaintenanceAccess(ctx context.Context, requestID uuid.UUID) (requesterID uuid.UUID, property *PropertyAccess, err error)
}
