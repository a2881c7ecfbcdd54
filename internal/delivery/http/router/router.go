// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"propguard/internal/delivery/http/middleware"
	"propguard/internal/delivery/http/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler      *handler.AuthHandler
	BiometricHandler *handler.BiometricHandler
	SSOHandler       *handler.SSOHandler
	SessionHandler   *handler.SessionHandler
	RBACHandler      *handler.RBACHandler
	SecurityHandler  *handler.SecurityHandler
	AuthMiddleware   *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	auth       *handler.AuthHandler
	biometric  *handler.BiometricHandler
	sso        *handler.SSOHandler
	sessions   *handler.SessionHandler
	rbac       *handler.RBACHandler
	security   *handler.SecurityHandler
	middleware *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		auth:       params.AuthHandler,
		biometric:  params.BiometricHandler,
		sso:        params.SSOHandler,
		sessions:   params.SessionHandler,
		rbac:       params.RBACHandler,
		security:   params.SecurityHandler,
		middleware: params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)

	// Public authentication routes.
	authGroup := e.Group("/auth")
	{
		authGroup.POST("/register", r.auth.Register)
		authGroup.POST("/login", r.auth.Login)
		authGroup.POST("/mfa/verify", r.auth.VerifyMFA)
		authGroup.POST("/refresh", r.auth.Refresh)
		authGroup.POST("/forgot-password", r.auth.ForgotPassword)
		authGroup.POST("/reset-password", r.auth.ResetPassword)
		authGroup.POST("/biometric/login/options", r.biometric.AuthenticationOptions)
		authGroup.POST("/biometric/login", r.biometric.Login)
		authGroup.GET("/sso/:provider/authorize", r.sso.Authorize)
		authGroup.GET("/sso/:provider/callback", r.sso.Callback)
		authGroup.POST("/sso/:provider/callback", r.sso.Callback)
	}

	// Authenticated account routes.
	accountGroup := e.Group("/auth")
	accountGroup.Use(r.middleware.Authenticate)
	{
		accountGroup.POST("/logout", r.auth.Logout)
		accountGroup.POST("/password", r.auth.ChangePassword)
		accountGroup.POST("/mfa/enroll", r.auth.StartMFAEnrollment)
		accountGroup.POST("/mfa/enable", r.auth.EnableMFA)
		accountGroup.POST("/mfa/disable", r.auth.DisableMFA)
		accountGroup.POST("/biometric/register/options", r.biometric.RegistrationOptions)
		accountGroup.POST("/biometric/register", r.biometric.RegisterCredential)
		accountGroup.GET("/biometric/credentials", r.biometric.ListCredentials)
		accountGroup.DELETE("/biometric/credentials/:credentialId", r.biometric.RemoveCredential)
		accountGroup.GET("/sessions", r.sessions.ListSessions)
		accountGroup.DELETE("/sessions", r.sessions.RevokeAllSessions)
		accountGroup.DELETE("/sessions/:id", r.sessions.RevokeSession)
		accountGroup.POST("/sessions/:id/extend", r.sessions.ExtendSession)
		accountGroup.GET("/security-settings", r.sessions.GetSecuritySettings)
		accountGroup.PUT("/security-settings", r.sessions.UpdateSecuritySettings)
	}

	// Role and permission administration.
	rbacGroup := e.Group("/rbac")
	rbacGroup.Use(r.middleware.Authenticate)
	{
		rbacGroup.POST("/check-permission", r.rbac.CheckPermission)
		rbacGroup.POST("/check-ownership", r.rbac.CheckOwnership)

		adminGroup := rbacGroup.Group("")
		adminGroup.Use(r.middleware.RequirePermission("roles", "manage"))
		{
			adminGroup.GET("/roles", r.rbac.ListRoles)
			adminGroup.POST("/roles", r.rbac.CreateRole)
			adminGroup.PUT("/roles/:id/permissions", r.rbac.ReplaceRolePermissions)
			adminGroup.GET("/permissions", r.rbac.ListPermissions)
			adminGroup.POST("/permissions", r.rbac.CreatePermission)
			adminGroup.POST("/assign-role", r.rbac.AssignRole)
			adminGroup.POST("/remove-role", r.rbac.RemoveRole)
			adminGroup.GET("/users/:id/permissions", r.rbac.GetUserPermissions)
		}
	}

	// Audit and compliance surface, admin only.
	securityGroup := e.Group("/security")
	securityGroup.Use(r.middleware.Authenticate)
	securityGroup.Use(r.middleware.RequirePermission("security", "read"))
	{
		securityGroup.GET("/overview", r.security.Overview)
		securityGroup.GET("/auth-metrics", r.security.AuthMetrics)
		securityGroup.GET("/incidents", r.security.ListIncidents)
		securityGroup.GET("/audit-logs", r.security.QueryAuditLogs)
		securityGroup.POST("/audit-logs/export", r.security.ExportAuditLogs)
		securityGroup.GET("/compliance-reports", r.security.ListComplianceReports)
		securityGroup.POST("/compliance-reports/:type", r.security.GenerateComplianceReport)
		securityGroup.GET("/retention", r.security.ListRetentionPolicies)
		securityGroup.PUT("/retention/:dataType", r.security.UpsertRetentionPolicy)
		securityGroup.POST("/retention/:dataType/cleanup", r.security.RunRetentionCleanup)
		securityGroup.GET("/violations", r.security.ListViolations)
	}
}
