package usecase

import (
	"context"

	"propguard/internal/domain/entity"

	"github.com/google/uuid"
)

// PermissionCheckInput asks whether a user may perform an action.
type PermissionCheckInput struct {
	UserID   uuid.UUID
	Resource string
	Action   string
	Scope    string
}

// OwnershipCheckInput asks whether a user stands in an ownership relation to
// a concrete resource instance.
type OwnershipCheckInput struct {
	UserID       uuid.UUID
	ResourceType string // "property", "unit", "tenant", "maintenance".
	ResourceID   uuid.UUID
}

// CreateRoleInput defines a new dynamic role and its initial permissions.
type CreateRoleInput struct {
	Name          string
	Description   string
	PermissionIDs []uuid.UUID
}

// CreatePermissionInput defines a new permission triple.
type CreatePermissionInput struct {
	Resource    string
	Action      string
	Scope       string
	Description string
}

// UserPermissionsOutput aggregates everything a user can do.
type UserPermissionsOutput struct {
	AccountRole entity.AccountRole
	Roles       []*entity.Role
	Permissions []string // Canonical "resource:action" names, deduplicated.
}

// RBACUsecase defines permission resolution and role administration.
type RBACUsecase interface {
	// CheckPermission resolves the provider chain: static account-role table
	// first, then the dynamic role graph. Unknown users fail closed.
	CheckPermission(ctx context.Context, input PermissionCheckInput) (bool, error)

	// CheckOwnership resolves instance-level access. Unknown resource types
	// fail closed.
	CheckOwnership(ctx context.Context, input OwnershipCheckInput) (bool, error)

	// GetUserPermissions aggregates static and dynamic grants for a user.
	GetUserPermissions(ctx context.Context, userID uuid.UUID) (*UserPermissionsOutput, error)

	CreateRole(ctx context.Context, input CreateRoleInput) (*entity.Role, error)
	ListRoles(ctx context.Context) ([]*entity.Role, error)
	ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error
	CreatePermission(ctx context.Context, input CreatePermissionInput) (*entity.Permission, error)
	ListPermissions(ctx context.Context) ([]*entity.Permission, error)
	AssignRole(ctx context.Context, actorID, userID, roleID uuid.UUID, device DeviceInfo) error
	RemoveRole(ctx context.Context, actorID, userID, roleID uuid.UUID, device DeviceInfo) error
}
