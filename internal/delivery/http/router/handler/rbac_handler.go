package handler

import (
	"log/slog"
	"net/http"

	"propguard/internal/delivery/http/response"
	"propguard/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// RBACHandler holds dependencies for role and permission handlers.
type RBACHandler struct {
	rbac   usecase.RBACUsecase
	logger *slog.Logger
}

// NewRBACHandler is the constructor for RBACHandler, injected by Fx.
func NewRBACHandler(rbac usecase.RBACUsecase, logger *slog.Logger) *RBACHandler {
	return &RBACHandler{rbac: rbac, logger: logger}
}

type createRoleRequest struct {
	Name          string   `json:"name" validate:"required"`
	Description   string   `json:"description"`
	PermissionIDs []string `json:"permissionIds"`
}

// CreateRole creates a dynamic role with an initial permission set.
func (h *RBACHandler) CreateRole(c echo.Context) error {
	var req createRoleRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid role input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	permissionIDs, err := parseUUIDs(req.PermissionIDs)
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid permission id")
	}

	role, err := h.rbac.CreateRole(c.Request().Context(), usecase.CreateRoleInput{
		Name:          req.Name,
		Description:   req.Description,
		PermissionIDs: permissionIDs,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, role, "Role created")
}

// ListRoles returns all dynamic roles with their permissions.
func (h *RBACHandler) ListRoles(c echo.Context) error {
	roles, err := h.rbac.ListRoles(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, roles, "Roles retrieved")
}

type replacePermissionsRequest struct {
	PermissionIDs []string `json:"permissionIds"`
}

// ReplaceRolePermissions overwrites the permission set of a role.
func (h *RBACHandler) ReplaceRolePermissions(c echo.Context) error {
	roleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid role id")
	}

	var req replacePermissionsRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid permissions input")
	}

	permissionIDs, err := parseUUIDs(req.PermissionIDs)
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid permission id")
	}

	if err := h.rbac.ReplaceRolePermissions(c.Request().Context(), roleID, permissionIDs); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Permissions replaced"}, "Role permissions updated")
}

type createPermissionRequest struct {
	Resource    string `json:"resource" validate:"required"`
	Action      string `json:"action" validate:"required"`
	Scope       string `json:"scope"`
	Description string `json:"description"`
}

// CreatePermission persists a new permission triple.
func (h *RBACHandler) CreatePermission(c echo.Context) error {
	var req createPermissionRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid permission input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	permission, err := h.rbac.CreatePermission(c.Request().Context(), usecase.CreatePermissionInput{
		Resource:    req.Resource,
		Action:      req.Action,
		Scope:       req.Scope,
		Description: req.Description,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, permission, "Permission created")
}

// ListPermissions returns all permissions.
func (h *RBACHandler) ListPermissions(c echo.Context) error {
	permissions, err := h.rbac.ListPermissions(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, permissions, "Permissions retrieved")
}

type roleAssignmentRequest struct {
	UserID string `json:"userId" validate:"required"`
	RoleID string `json:"roleId" validate:"required"`
}

// AssignRole adds a user-role edge.
func (h *RBACHandler) AssignRole(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	userID, roleID, err := h.bindAssignment(c)
	if err != nil {
		return err
	}

	if err := h.rbac.AssignRole(c.Request().Context(), claims.UserID, userID, roleID, deviceInfo(c, "")); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Role assigned"}, "Role assigned")
}

// RemoveRole deletes a user-role edge.
func (h *RBACHandler) RemoveRole(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	userID, roleID, err := h.bindAssignment(c)
	if err != nil {
		return err
	}

	if err := h.rbac.RemoveRole(c.Request().Context(), claims.UserID, userID, roleID, deviceInfo(c, "")); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Role removed"}, "Role removed")
}

type checkPermissionRequest struct {
	UserID   string `json:"userId"`
	Resource string `json:"resource" validate:"required"`
	Action   string `json:"action" validate:"required"`
	Scope    string `json:"scope"`
}

// CheckPermission resolves one permission question. Without an explicit
// userId the check runs against the caller.
func (h *RBACHandler) CheckPermission(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	var req checkPermissionRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid check input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	userID := claims.UserID
	if req.UserID != "" {
		parsed, err := uuid.Parse(req.UserID)
		if err != nil {
			return response.BadRequest(c, "INVALID_INPUT", "Invalid user id")
		}
		userID = parsed
	}

	granted, err := h.rbac.CheckPermission(c.Request().Context(), usecase.PermissionCheckInput{
		UserID:   userID,
		Resource: req.Resource,
		Action:   req.Action,
		Scope:    req.Scope,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]bool{"granted": granted}, "Permission check completed")
}

type checkOwnershipRequest struct {
	UserID       string `json:"userId"`
	ResourceType string `json:"resourceType" validate:"required"`
	ResourceID   string `json:"resourceId" validate:"required"`
}

// CheckOwnership resolves one instance-level access question.
func (h *RBACHandler) CheckOwnership(c echo.Context) error {
	claims, ok := authClaims(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_SESSION", "Authentication required")
	}

	var req checkOwnershipRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid check input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	userID := claims.UserID
	if req.UserID != "" {
		parsed, err := uuid.Parse(req.UserID)
		if err != nil {
			return response.BadRequest(c, "INVALID_INPUT", "Invalid user id")
		}
		userID = parsed
	}

	resourceID, err := uuid.Parse(req.ResourceID)
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid resource id")
	}

	granted, err := h.rbac.CheckOwnership(c.Request().Context(), usecase.OwnershipCheckInput{
		UserID:       userID,
		ResourceType: req.ResourceType,
		ResourceID:   resourceID,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]bool{"granted": granted}, "Ownership check completed")
}

// GetUserPermissions aggregates static and dynamic grants for one user.
func (h *RBACHandler) GetUserPermissions(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid user id")
	}

	output, err := h.rbac.GetUserPermissions(c.Request().Context(), userID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, output, "User permissions retrieved")
}

func (h *RBACHandler) bindAssignment(c echo.Context) (userID, roleID uuid.UUID, err error) {
	var req roleAssignmentRequest
	if err := c.Bind(&req); err != nil {
		return uuid.Nil, uuid.Nil, response.BindingError(c, "INVALID_INPUT", "Invalid assignment input")
	}
	if err := c.Validate(&req); err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	userID, err = uuid.Parse(req.UserID)
	if err != nil {
		return uuid.Nil, uuid.Nil, response.BadRequest(c, "INVALID_INPUT", "Invalid user id")
	}
	roleID, err = uuid.Parse(req.RoleID)
	if err != nil {
		return uuid.Nil, uuid.Nil, response.BadRequest(c, "INVALID_INPUT", "Invalid role id")
	}

	return userID, roleID, nil
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, value := range values {
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}
