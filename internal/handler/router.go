package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lexfirm/lexcase-api/internal/middleware"
	"github.com/lexfirm/lexcase-api/internal/models"
	"github.com/lexfirm/lexcase-api/internal/service"
)

// Handlers groups everything RegisterRoutes needs.
type Handlers struct {
	Auth        *AuthHandler
	Identity    *IdentityHandler
	Permission  *PermissionHandler
	Approval    *ApprovalHandler
	AuthService *service.AuthService
	Permissions *service.PermissionService
}

// RegisterRoutes mounts the API under the given prefix. The public group
// carries the login lifecycle; everything else sits behind the access token.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers) {
	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/classify", h.Auth.Classify)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/verify", h.Auth.Verify)
		auth.POST("/logout", h.Auth.Logout)
		auth.POST("/register", h.Identity.Register)
		auth.POST("/credentials", h.Auth.SetCredentials)
		auth.POST("/reset/complete", h.Auth.CompleteReset)
		auth.POST("/forgot-password", h.Approval.ForgotPassword)
		auth.GET("/recover/question", h.Auth.SecretQuestion)
		auth.POST("/recover", h.Auth.Recover)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(h.AuthService))

	// Every administrative route derives its gate from the caller's resolved
	// permission record; RequireRoles survives only where SELF access applies.
	identities := protected.Group("/identities")
	{
		identities.GET("", middleware.RequirePermission(h.Permissions, models.ModuleSettings, ""), h.Identity.List)
		identities.POST("", middleware.RequirePermission(h.Permissions, models.ModuleSettings, models.ActionCreate), h.Identity.Create)
		identities.GET("/:id", middleware.RequireRoles(string(models.RoleAdmin), string(models.RoleManager), "SELF"), h.Identity.Get)
		identities.PATCH("/:id", middleware.RequirePermission(h.Permissions, models.ModuleSettings, models.ActionUpdate), h.Identity.Update)
		identities.DELETE("/:id", middleware.RequirePermission(h.Permissions, models.ModuleSettings, models.ActionDelete), h.Identity.Delete)

		identities.GET("/:id/permissions", middleware.RequireRoles(string(models.RoleAdmin), "SELF"), h.Permission.Resolve)
		identities.GET("/:id/permissions/override", middleware.RequirePermission(h.Permissions, models.ModuleSettings, models.ActionUpdate), h.Permission.Override)
		identities.PUT("/:id/permissions/override", middleware.RequirePermission(h.Permissions, models.ModuleSettings, models.ActionUpdate), h.Permission.SaveOverride)
		identities.DELETE("/:id/permissions/override", middleware.RequirePermission(h.Permissions, models.ModuleSettings, models.ActionUpdate), h.Permission.ClearOverride)
	}

	permissions := protected.Group("/permissions")
	{
		permissions.GET("/me", h.Permission.Mine)
		permissions.POST("/apply-role", middleware.RequirePermission(h.Permissions, models.ModuleSettings, models.ActionUpdate), h.Permission.ApplyToRole)
	}

	approvals := protected.Group("/approvals")
	approvals.Use(middleware.RequirePermission(h.Permissions, models.ModuleSettings, models.ActionApprove))
	{
		approvals.GET("/pending", h.Approval.Pending)
		approvals.POST("/:id/approve", h.Approval.Approve)
		approvals.GET("/:id/dependents", h.Approval.Dependents)
		approvals.POST("/:id/reject", h.Approval.Reject)
		approvals.GET("/resets", h.Approval.ResetRequests)
		approvals.POST("/resets/:id", h.Approval.ReviewReset)
	}
}
