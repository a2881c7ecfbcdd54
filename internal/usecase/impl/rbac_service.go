package impl

import (
	"context"
	"log/slog"
	"sort"

	deliverycontext "propguard/internal/delivery/context"
	"propguard/internal/domain/entity"
	domainerrors "propguard/internal/domain/errors"
	"propguard/internal/domain/repository"
	"propguard/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// permissionProvider answers one layer of the permission resolution chain.
type permissionProvider interface {
	hasPermission(ctx context.Context, user *entity.User, resource, action, scope string) (bool, error)
}

// staticGrant is one entry in the compiled role-to-permission table.
type staticGrant struct {
	resource string
	action   string
	scope    string
}

func (g staticGrant) matches(resource, action, scope string) bool {
	p := entity.Permission{Resource: g.resource, Action: g.action, Scope: g.scope}

	return p.Matches(resource, action, scope)
}

// staticRoleGrants is the built-in permission table keyed by account role.
// Dynamic roles extend it at runtime; this table never shrinks an account's
// access below its primary role.
var staticRoleGrants = map[entity.AccountRole][]staticGrant{
	entity.AccountRoleAdmin: {
		{resource: entity.PermissionWildcard, action: entity.PermissionWildcard},
	},
	entity.AccountRoleManager: {
		{resource: "properties", action: entity.PermissionWildcard},
		{resource: "units", action: entity.PermissionWildcard},
		{resource: "tenants", action: entity.PermissionWildcard},
		{resource: "maintenance", action: entity.PermissionWildcard},
		{resource: "payments", action: "read"},
		{resource: "reports", action: "read"},
	},
	entity.AccountRoleOwner: {
		{resource: "properties", action: "read", scope: "own"},
		{resource: "units", action: "read", scope: "own"},
		{resource: "maintenance", action: "read", scope: "own"},
		{resource: "payments", action: "read", scope: "own"},
		{resource: "reports", action: "read", scope: "own"},
	},
	entity.AccountRoleTenant: {
		{resource: "maintenance", action: "create"},
		{resource: "maintenance", action: "read", scope: "own"},
		{resource: "payments", action: "create"},
		{resource: "payments", action: "read", scope: "own"},
		{resource: "profile", action: entity.PermissionWildcard, scope: "own"},
	},
	entity.AccountRoleMaintenance: {
		{resource: "maintenance", action: "read"},
		{resource: "maintenance", action: "update"},
		{resource: "units", action: "read"},
	},
}

// staticRoleProvider matches against the in-memory account-role table.
type staticRoleProvider struct {
	grants map[entity.AccountRole][]staticGrant
}

func newStaticRoleProvider() *staticRoleProvider {
	return &staticRoleProvider{grants: staticRoleGrants}
}

func (p *staticRoleProvider) hasPermission(_ context.Context, user *entity.User, resource, action, scope string) (bool, error) {
	for _, grant := range p.grants[user.Role] {
		if grant.matches(resource, action, scope) {
			return true, nil
		}
	}

	return false, nil
}

// dynamicGraphProvider matches against the database-backed role graph.
type dynamicGraphProvider struct {
	rbacRepo repository.RBACRepository
}

func newDynamicGraphProvider(rbacRepo repository.RBACRepository) *dynamicGraphProvider {
	return &dynamicGraphProvider{rbacRepo: rbacRepo}
}

func (p *dynamicGraphProvider) hasPermission(ctx context.Context, user *entity.User, resource, action, scope string) (bool, error) {
	roles, err := p.rbacRepo.ListRolesByUserID(ctx, user.ID)
	if err != nil {
		return false, errors.Wrap(err, "failed to load user roles")
	}

	for _, role := range roles {
		for _, permission := range role.Permissions {
			if permission.Matches(resource, action, scope) {
				return true, nil
			}
		}
	}

	return false, nil
}

// rbacService implements the RBACUsecase interface through a provider chain:
// the static account-role table first, then the dynamic role graph. Absence
// of permission is a boolean result, never an error.
type rbacService struct {
	txManager repository.TransactionManager
	userRepo  repository.UserRepository
	rbacRepo  repository.RBACRepository
	ownership repository.OwnershipReader
	providers []permissionProvider
	audit     usecase.AuditUsecase
	logger    *slog.Logger
}

// RBACServiceParams holds dependencies for rbacService, injected by Fx.
type RBACServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	UserRepo  repository.UserRepository
	RBACRepo  repository.RBACRepository
	Ownership repository.OwnershipReader
	Audit     usecase.AuditUsecase
	Logger    *slog.Logger
}

// NewRBACService is the constructor for rbacService.
func NewRBACService(params RBACServiceParams) usecase.RBACUsecase {
	return &rbacService{
		txManager: params.TxManager,
		userRepo:  params.UserRepo,
		rbacRepo:  params.RBACRepo,
		ownership: params.Ownership,
		providers: []permissionProvider{
			newStaticRoleProvider(),
			newDynamicGraphProvider(params.RBACRepo),
		},
		audit:  params.Audit,
		logger: params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *rbacService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// CheckPermission walks the provider chain. The first provider granting
// access short-circuits; a full miss is recorded as a denial.
func (srv *rbacService) CheckPermission(ctx context.Context, input usecase.PermissionCheckInput) (bool, error) {
	user, err := srv.userRepo.FindByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, nil
		}

		return false, errors.Wrap(err, "failed to find user")
	}

	for _, provider := range srv.providers {
		granted, err := provider.hasPermission(ctx, user, input.Resource, input.Action, input.Scope)
		if err != nil {
			return false, err
		}
		if granted {
			return true, nil
		}
	}

	srv.auditDenial(ctx, input)

	return false, nil
}

// CheckOwnership resolves instance-level access by resource type. Unknown
// types and missing resources both fail closed.
func (srv *rbacService) CheckOwnership(ctx context.Context, input usecase.OwnershipCheckInput) (bool, error) {
	switch input.ResourceType {
	case "property":
		access, err := srv.ownership.FindPropertyAccess(ctx, input.ResourceID)
		if err != nil {
			return false, ownershipMiss(err)
		}

		return access.OwnerID == input.UserID || access.ManagerID == input.UserID, nil

	case "unit":
		access, err := srv.ownership.FindUnitPropertyAccess(ctx, input.ResourceID)
		if err != nil {
			return false, ownershipMiss(err)
		}

		return access.OwnerID == input.UserID || access.ManagerID == input.UserID, nil

	case "tenant":
		return input.UserID == input.ResourceID, nil

	case "maintenance":
		requesterID, access, err := srv.ownership.FindMaintenanceAccess(ctx, input.ResourceID)
		if err != nil {
			return false, ownershipMiss(err)
		}

		return requesterID == input.UserID || access.OwnerID == input.UserID || access.ManagerID == input.UserID, nil

	default:
		return false, nil
	}
}

// GetUserPermissions aggregates the static table and the dynamic graph into
// deduplicated canonical permission names.
func (srv *rbacService) GetUserPermissions(ctx context.Context, userID uuid.UUID) (*usecase.UserPermissionsOutput, error) {
	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	roles, err := srv.rbacRepo.ListRolesByUserID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load user roles")
	}

	seen := make(map[string]struct{})
	for _, grant := range staticRoleGrants[user.Role] {
		seen[grant.resource+":"+grant.action] = struct{}{}
	}
	for _, role := range roles {
		for _, permission := range role.Permissions {
			seen[permission.Name()] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	return &usecase.UserPermissionsOutput{
		AccountRole: user.Role,
		Roles:       roles,
		Permissions: names,
	}, nil
}

// CreateRole creates a role and binds its initial permission set atomically.
func (srv *rbacService) CreateRole(ctx context.Context, input usecase.CreateRoleInput) (*entity.Role, error) {
	if input.Name == "" {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("role name is required")
	}

	role := &entity.Role{
		Name:        input.Name,
		Description: input.Description,
	}

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		rbacRepo := repoFactory.NewRBACRepository()

		if err := rbacRepo.CreateRole(ctx, role); err != nil {
			return err
		}
		if len(input.PermissionIDs) > 0 {
			if err := rbacRepo.ReplaceRolePermissions(ctx, role.ID, input.PermissionIDs); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return srv.findRole(ctx, role.ID)
}

// ListRoles returns all dynamic roles with their permissions.
func (srv *rbacService) ListRoles(ctx context.Context) ([]*entity.Role, error) {
	roles, err := srv.rbacRepo.ListRoles(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list roles")
	}

	return roles, nil
}

// ReplaceRolePermissions overwrites the permission set of a role.
func (srv *rbacService) ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	err := srv.rbacRepo.ReplaceRolePermissions(ctx, roleID, permissionIDs)
	if err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			return domainerrors.ErrNotFound.WrapMessage("role not found")
		}
		if errors.Is(err, repository.ErrPermissionNotFound) {
			return domainerrors.ErrNotFound.WrapMessage("permission not found")
		}

		return errors.Wrap(err, "failed to replace role permissions")
	}

	return nil
}

// CreatePermission persists a new permission triple.
func (srv *rbacService) CreatePermission(ctx context.Context, input usecase.CreatePermissionInput) (*entity.Permission, error) {
	if input.Resource == "" || input.Action == "" {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("resource and action are required")
	}

	permission := &entity.Permission{
		Resource:    input.Resource,
		Action:      input.Action,
		Scope:       input.Scope,
		Description: input.Description,
	}
	if err := srv.rbacRepo.CreatePermission(ctx, permission); err != nil {
		return nil, err
	}

	return permission, nil
}

// ListPermissions returns all permissions.
func (srv *rbacService) ListPermissions(ctx context.Context) ([]*entity.Permission, error) {
	permissions, err := srv.rbacRepo.ListPermissions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list permissions")
	}

	return permissions, nil
}

// AssignRole adds a user-role edge. Assigning twice is a no-op.
func (srv *rbacService) AssignRole(ctx context.Context, actorID, userID, roleID uuid.UUID, device usecase.DeviceInfo) error {
	role, err := srv.findRole(ctx, roleID)
	if err != nil {
		return err
	}

	if err := srv.rbacRepo.AssignRoleToUser(ctx, userID, roleID); err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			return domainerrors.ErrNotFound.WrapMessage("role not found")
		}

		return errors.Wrap(err, "failed to assign role")
	}

	srv.auditRoleChange(ctx, entity.ActionRoleAssigned, actorID, userID, role, device)

	return nil
}

// RemoveRole deletes a user-role edge.
func (srv *rbacService) RemoveRole(ctx context.Context, actorID, userID, roleID uuid.UUID, device usecase.DeviceInfo) error {
	role, err := srv.findRole(ctx, roleID)
	if err != nil {
		return err
	}

	if err := srv.rbacRepo.RemoveRoleFromUser(ctx, userID, roleID); err != nil {
		return errors.Wrap(err, "failed to remove role")
	}

	srv.auditRoleChange(ctx, entity.ActionRoleRemoved, actorID, userID, role, device)

	return nil
}

func (srv *rbacService) findRole(ctx context.Context, roleID uuid.UUID) (*entity.Role, error) {
	role, err := srv.rbacRepo.FindRoleByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			return nil, domainerrors.ErrNotFound.WrapMessage("role not found")
		}

		return nil, errors.Wrap(err, "failed to find role")
	}

	return role, nil
}

func (srv *rbacService) auditDenial(ctx context.Context, input usecase.PermissionCheckInput) {
	err := srv.audit.LogEvent(ctx, usecase.LogEventInput{
		Action:     entity.ActionPermissionDenied,
		EntityType: "permission",
		EntityID:   input.Resource + ":" + input.Action,
		ActorID:    &input.UserID,
		Details: map[string]any{
			"resource": input.Resource,
			"action":   input.Action,
			"scope":    input.Scope,
		},
		Severity: entity.SeverityWarning,
	})
	if err != nil {
		srv.log(ctx).Error("Failed to audit permission denial", slog.Any("error", err))
	}
}

func (srv *rbacService) auditRoleChange(ctx context.Context, action string, actorID, userID uuid.UUID, role *entity.Role, device usecase.DeviceInfo) {
	err := srv.audit.LogEvent(ctx, usecase.LogEventInput{
		Action:     action,
		EntityType: "user",
		EntityID:   userID.String(),
		ActorID:    &actorID,
		Details: map[string]any{
			"roleID":   role.ID.String(),
			"roleName": role.Name,
		},
		IPAddress: device.IPAddress,
		UserAgent: device.UserAgent,
	})
	if err != nil {
		srv.log(ctx).Error("Failed to audit role change", slog.String("action", action), slog.Any("error", err))
	}
}

// ownershipMiss maps a missing resource to a closed (false, nil) result while
// passing real store failures through.
func ownershipMiss(err error) error {
	if errors.Is(err, repository.ErrPropertyNotFound) {
		return nil
	}

	return errors.Wrap(err, "failed to resolve ownership")
}
