package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lexfirm/lexcase-api/internal/models"
	"github.com/lexfirm/lexcase-api/internal/service"
	appErrors "github.com/lexfirm/lexcase-api/pkg/errors"
	"github.com/lexfirm/lexcase-api/pkg/response"
)

// IdentityHandler wires the identity CRUD endpoints.
type IdentityHandler struct {
	identities *service.IdentityService
}

// NewIdentityHandler creates a new handler.
func NewIdentityHandler(identities *service.IdentityService) *IdentityHandler {
	return &IdentityHandler{identities: identities}
}

// Register godoc
// @Summary Self-register an account
// @Description Create an account that waits for administrator approval
// @Tags Identities
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *IdentityHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	info, err := h.identities.Register(c.Request.Context(), req, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, info)
}

// Create godoc
// @Summary Create an identity
// @Description Administrator-side account creation; the account is approved but awaits first login
// @Tags Identities
// @Accept json
// @Produce json
// @Param payload body models.CreateIdentityRequest true "Identity payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /identities [post]
func (h *IdentityHandler) Create(c *gin.Context) {
	var req models.CreateIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid identity payload"))
		return
	}

	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	info, err := h.identities.Create(c.Request.Context(), req, claims.IdentityID, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, info)
}

// List godoc
// @Summary List identities
// @Description List identities with filtering and pagination
// @Tags Identities
// @Produce json
// @Param role query string false "Role filter"
// @Param approved query bool false "Approval filter"
// @Param search query string false "Search in email and display name"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /identities [get]
func (h *IdentityHandler) List(c *gin.Context) {
	filter := models.IdentityFilter{
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if roleParam := c.Query("role"); roleParam != "" {
		role := models.Role(roleParam)
		filter.Role = &role
	}
	if approvedParam := c.Query("approved"); approvedParam != "" {
		approved, err := strconv.ParseBool(approvedParam)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "approved must be a boolean"))
			return
		}
		filter.Approved = &approved
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	list, err := h.identities.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, list.Identities, &list.Pagination)
}

// Get godoc
// @Summary Get one identity
// @Tags Identities
// @Produce json
// @Param id path string true "Identity ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /identities/{id} [get]
func (h *IdentityHandler) Get(c *gin.Context) {
	info, err := h.identities.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, info, nil)
}

// Update godoc
// @Summary Update an identity
// @Description Partial profile update; omitted fields are left unchanged
// @Tags Identities
// @Accept json
// @Produce json
// @Param id path string true "Identity ID"
// @Param payload body models.UpdateIdentityRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /identities/{id} [patch]
func (h *IdentityHandler) Update(c *gin.Context) {
	var req models.UpdateIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}

	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	info, err := h.identities.Update(c.Request.Context(), c.Param("id"), req, claims.IdentityID, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, info, nil)
}

// Delete godoc
// @Summary Delete an identity
// @Description Delete an identity, reassigning its work items when a replacement is given
// @Tags Identities
// @Produce json
// @Param id path string true "Identity ID"
// @Param replacement_id query string false "Replacement assignee for outstanding work items"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /identities/{id} [delete]
func (h *IdentityHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var replacementID *string
	if replacement := c.Query("replacement_id"); replacement != "" {
		replacementID = &replacement
	}

	if err := h.identities.Delete(c.Request.Context(), c.Param("id"), replacementID, claims.IdentityID, c.ClientIP(), c.GetHeader("User-Agent")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
