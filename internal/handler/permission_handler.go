package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lexfirm/lexcase-api/internal/models"
	"github.com/lexfirm/lexcase-api/internal/service"
	appErrors "github.com/lexfirm/lexcase-api/pkg/errors"
	"github.com/lexfirm/lexcase-api/pkg/response"
)

// PermissionHandler wires the permission endpoints.
type PermissionHandler struct {
	permissions *service.PermissionService
}

// NewPermissionHandler creates a new handler.
func NewPermissionHandler(permissions *service.PermissionService) *PermissionHandler {
	return &PermissionHandler{permissions: permissions}
}

type applyRoleRequest struct {
	Role   models.Role             `json:"role" binding:"required"`
	Record models.PermissionRecord `json:"record" binding:"required"`
}

// Mine godoc
// @Summary Resolve the caller's permissions
// @Tags Permissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /permissions/me [get]
func (h *PermissionHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	record, err := h.permissions.ResolveByID(c.Request.Context(), claims.IdentityID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Resolve godoc
// @Summary Resolve effective permissions for an identity
// @Tags Permissions
// @Produce json
// @Param id path string true "Identity ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /identities/{id}/permissions [get]
func (h *PermissionHandler) Resolve(c *gin.Context) {
	record, err := h.permissions.ResolveByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Override godoc
// @Summary Get the stored override
// @Description Return the stored per-identity override, or null when role defaults apply
// @Tags Permissions
// @Produce json
// @Param id path string true "Identity ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /identities/{id}/permissions/override [get]
func (h *PermissionHandler) Override(c *gin.Context) {
	record, err := h.permissions.Override(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// SaveOverride godoc
// @Summary Save a per-identity override
// @Description Validate, cascade-clear and persist the override
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path string true "Identity ID"
// @Param payload body models.PermissionRecord true "Permission record"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /identities/{id}/permissions/override [put]
func (h *PermissionHandler) SaveOverride(c *gin.Context) {
	var record models.PermissionRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid permission payload"))
		return
	}

	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.permissions.SaveOverride(c.Request.Context(), c.Param("id"), record, claims.IdentityID); err != nil {
		response.Error(c, err)
		return
	}

	record, err := h.permissions.ResolveByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// ClearOverride godoc
// @Summary Remove a per-identity override
// @Description Drop the stored override so the identity falls back to its role default
// @Tags Permissions
// @Param id path string true "Identity ID"
// @Success 204 "override cleared"
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /identities/{id}/permissions/override [delete]
func (h *PermissionHandler) ClearOverride(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.permissions.ClearOverride(c.Request.Context(), c.Param("id"), claims.IdentityID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// ApplyToRole godoc
// @Summary Apply a record to every holder of a role
// @Description Bulk-apply a permission record; partial failure is reported, not rolled back
// @Tags Permissions
// @Accept json
// @Produce json
// @Param payload body applyRoleRequest true "Role and record"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /permissions/apply-role [post]
func (h *PermissionHandler) ApplyToRole(c *gin.Context) {
	var req applyRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk apply payload"))
		return
	}

	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	result, err := h.permissions.ApplyToRole(c.Request.Context(), req.Role, req.Record, claims.IdentityID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}
