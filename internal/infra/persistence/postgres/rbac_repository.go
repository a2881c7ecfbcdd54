package postgres

import (
	"context"

	"propguard/internal/domain/entity"
	domainerrors "propguard/internal/domain/errors"
	"propguard/internal/domain/repository"
	"propguard/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// rbacRepository implements the domain's RBACRepository interface using GORM.
type rbacRepository struct {
	db *gorm.DB
}

// NewRBACRepository is the constructor for rbacRepository.
func NewRBACRepository(db *gorm.DB) repository.RBACRepository {
	return &rbacRepository{db: db}
}

// CreateRole persists a new role. Role names are unique.
func (repo *rbacRepository) CreateRole(ctx context.Context, role *entity.Role) error {
	roleM := fromRoleDomain(role)

	if err := repo.db.WithContext(ctx).Omit("Permissions").Create(roleM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return domainerrors.ErrRoleConflict.WrapMessage("role name already exists")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create role")
	}

	role.ID = roleM.ID
	role.CreatedAt = roleM.CreatedAt
	role.UpdatedAt = roleM.UpdatedAt

	return nil
}

// FindRoleByID retrieves a role with its permissions preloaded.
func (repo *rbacRepository) FindRoleByID(ctx context.Context, id uuid.UUID) (*entity.Role, error) {
	var roleM model.RoleModel
	err := repo.db.WithContext(ctx).Preload("Permissions").First(&roleM, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoleNotFound
		}

		return nil, errors.Wrap(err, "failed to find role by id")
	}

	return toRoleDomain(&roleM), nil
}

// FindRoleByName retrieves a role by its unique name.
func (repo *rbacRepository) FindRoleByName(ctx context.Context, name string) (*entity.Role, error) {
	var roleM model.RoleModel
	err := repo.db.WithContext(ctx).Preload("Permissions").First(&roleM, "name = ?", name).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoleNotFound
		}

		return nil, errors.Wrap(err, "failed to find role by name")
	}

	return toRoleDomain(&roleM), nil
}

// ListRoles returns all roles with permissions preloaded.
func (repo *rbacRepository) ListRoles(ctx context.Context) ([]*entity.Role, error) {
	var roleMs []*model.RoleModel
	err := repo.db.WithContext(ctx).Preload("Permissions").Order("name ASC").Find(&roleMs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list roles")
	}

	roles := make([]*entity.Role, 0, len(roleMs))
	for _, roleM := range roleMs {
		roles = append(roles, toRoleDomain(roleM))
	}

	return roles, nil
}

// ReplaceRolePermissions overwrites the permission set of a role.
func (repo *rbacRepository) ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	var roleM model.RoleModel
	err := repo.db.WithContext(ctx).First(&roleM, "id = ?", roleID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrRoleNotFound
		}

		return errors.Wrap(err, "failed to find role")
	}

	permissions := make([]*model.PermissionModel, 0, len(permissionIDs))
	for _, id := range permissionIDs {
		permissions = append(permissions, &model.PermissionModel{ID: id})
	}

	err = repo.db.WithContext(ctx).Model(&roleM).Association("Permissions").Replace(permissions)
	if err != nil {
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrPermissionNotFound
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to replace role permissions")
	}

	return nil
}

// CreatePermission persists a new permission.
func (repo *rbacRepository) CreatePermission(ctx context.Context, permission *entity.Permission) error {
	permissionM := fromPermissionDomain(permission)

	if err := repo.db.WithContext(ctx).Create(permissionM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return domainerrors.ErrRoleConflict.WrapMessage("permission already exists")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create permission")
	}

	permission.ID = permissionM.ID
	permission.CreatedAt = permissionM.CreatedAt

	return nil
}

// ListPermissions returns all permissions.
func (repo *rbacRepository) ListPermissions(ctx context.Context) ([]*entity.Permission, error) {
	var permissionMs []*model.PermissionModel
	err := repo.db.WithContext(ctx).Order("resource ASC, action ASC").Find(&permissionMs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list permissions")
	}

	permissions := make([]*entity.Permission, 0, len(permissionMs))
	for _, permissionM := range permissionMs {
		permissions = append(permissions, toPermissionDomain(permissionM))
	}

	return permissions, nil
}

// AssignRoleToUser adds a user-role edge. Assigning twice is a no-op.
func (repo *rbacRepository) AssignRoleToUser(ctx context.Context, userID, roleID uuid.UUID) error {
	edge := &model.UserRoleModel{UserID: userID, RoleID: roleID}

	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(edge).Error
	if err != nil {
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrRoleNotFound
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to assign role")
	}

	return nil
}

// RemoveRoleFromUser deletes a user-role edge.
func (repo *rbacRepository) RemoveRoleFromUser(ctx context.Context, userID, roleID uuid.UUID) error {
	err := repo.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&model.UserRoleModel{}).Error
	if err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to remove role")
	}

	return nil
}

// ListRolesByUserID returns the dynamic roles assigned to a user, with
// permissions preloaded.
func (repo *rbacRepository) ListRolesByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.Role, error) {
	var roleMs []*model.RoleModel
	err := repo.db.WithContext(ctx).
		Preload("Permissions").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Find(&roleMs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user roles")
	}

	roles := make([]*entity.Role, 0, len(roleMs))
	for _, roleM := range roleMs {
		roles = append(roles, toRoleDomain(roleM))
	}

	return roles, nil
}

// ListSegregationConflicts returns users holding administrative authority and
// a tenant role at the same time, across the static and dynamic role systems.
func (repo *rbacRepository) ListSegregationConflicts(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := repo.db.WithContext(ctx).Raw(`
		SELECT u.id FROM users u
		WHERE (
			u.role IN ('admin', 'property_manager')
			OR EXISTS (
				SELECT 1 FROM user_roles ur
				JOIN roles r ON r.id = ur.role_id
				WHERE ur.user_id = u.id AND r.name IN ('admin', 'property_manager')
			)
		)
		AND (
			u.role = 'tenant'
			OR EXISTS (
				SELECT 1 FROM user_roles ur
				JOIN roles r ON r.id = ur.role_id
				WHERE ur.user_id = u.id AND r.name = 'tenant'
			)
		)
		ORDER BY u.id`).Scan(&ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list segregation conflicts")
	}

	return ids, nil
}

// --- Mapper Functions ---

// toRoleDomain converts a GORM RoleModel to a domain Role entity.
func toRoleDomain(data *model.RoleModel) *entity.Role {
	if data == nil {
		return nil
	}

	permissions := make([]*entity.Permission, 0, len(data.Permissions))
	for _, permissionM := range data.Permissions {
		permissions = append(permissions, toPermissionDomain(permissionM))
	}

	return &entity.Role{
		ID:          data.ID,
		Name:        data.Name,
		Description: data.Description,
		Permissions: permissions,
		CreatedAt:   data.CreatedAt,
		UpdatedAt:   data.UpdatedAt,
	}
}

// fromRoleDomain converts a domain Role entity to a GORM RoleModel.
func fromRoleDomain(data *entity.Role) *model.RoleModel {
	if data == nil {
		return nil
	}

	return &model.RoleModel{
		ID:          data.ID,
		Name:        data.Name,
		Description: data.Description,
		CreatedAt:   data.CreatedAt,
		UpdatedAt:   data.UpdatedAt,
	}
}

// toPermissionDomain converts a GORM PermissionModel to a domain Permission.
func toPermissionDomain(data *model.PermissionModel) *entity.Permission {
	if data == nil {
		return nil
	}

	return &entity.Permission{
		ID:          data.ID,
		Resource:    data.Resource,
		Action:      data.Action,
		Scope:       data.Scope,
		Description: data.Description,
		CreatedAt:   data.CreatedAt,
	}
}

// fromPermissionDomain converts a domain Permission to a GORM PermissionModel.
func fromPermissionDomain(data *entity.Permission) *model.PermissionModel {
	if data == nil {
		return nil
	}

	return &model.PermissionModel{
		ID:          data.ID,
		Resource:    data.Resource,
		Action:      data.Action,
		Scope:       data.Scope,
		Description: data.Description,
		CreatedAt:   data.CreatedAt,
	}
}
