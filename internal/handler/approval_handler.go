package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lexfirm/lexcase-api/internal/models"
	"github.com/lexfirm/lexcase-api/internal/service"
	appErrors "github.com/lexfirm/lexcase-api/pkg/errors"
	"github.com/lexfirm/lexcase-api/pkg/response"
)

// ApprovalHandler wires the administrator review endpoints.
type ApprovalHandler struct {
	approvals *service.ApprovalService
}

// NewApprovalHandler creates a new handler.
func NewApprovalHandler(approvals *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals}
}

type rejectRequest struct {
	ReplacementID *string `json:"replacement_id,omitempty"`
}

// Pending godoc
// @Summary List accounts awaiting approval
// @Tags Approvals
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /approvals/pending [get]
func (h *ApprovalHandler) Pending(c *gin.Context) {
	infos, err := h.approvals.PendingApprovals(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, infos, nil)
}

// Approve godoc
// @Summary Approve a pending account
// @Tags Approvals
// @Produce json
// @Param id path string true "Identity ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /approvals/{id}/approve [post]
func (h *ApprovalHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	info, err := h.approvals.Approve(c.Request.Context(), c.Param("id"), claims.IdentityID, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, info, nil)
}

// Dependents godoc
// @Summary List work items blocking a rejection
// @Tags Approvals
// @Produce json
// @Param id path string true "Identity ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /approvals/{id}/dependents [get]
func (h *ApprovalHandler) Dependents(c *gin.Context) {
	items, err := h.approvals.Dependents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, items, nil)
}

// Reject godoc
// @Summary Reject a pending account
// @Description Delete the account; outstanding work items require a replacement assignee
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Identity ID"
// @Param payload body rejectRequest false "Optional replacement assignee"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /approvals/{id}/reject [post]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req rejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reject payload"))
			return
		}
	}

	if err := h.approvals.Reject(c.Request.Context(), c.Param("id"), req.ReplacementID, claims.IdentityID, c.ClientIP(), c.GetHeader("User-Agent")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// ForgotPassword godoc
// @Summary File a password-reset request
// @Description Always succeed so the endpoint cannot probe for accounts
// @Tags Recovery
// @Accept json
// @Produce json
// @Param payload body models.ForgotPasswordRequest true "Reset request payload"
// @Success 202 {object} response.Envelope
// @Router /auth/forgot-password [post]
func (h *ApprovalHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reset request payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	if err := h.approvals.CreateResetRequest(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusAccepted, gin.H{"status": "accepted"}, nil)
}

// ResetRequests godoc
// @Summary List reset requests
// @Description Return the pending queue and the decided history
// @Tags Approvals
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /approvals/resets [get]
func (h *ApprovalHandler) ResetRequests(c *gin.Context) {
	queue, err := h.approvals.ResetRequests(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, queue, nil)
}

// ReviewReset godoc
// @Summary Decide on a reset request
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Reset request ID"
// @Param payload body models.ReviewResetRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /approvals/resets/{id} [post]
func (h *ApprovalHandler) ReviewReset(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ReviewResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	request, err := h.approvals.ReviewResetRequest(c.Request.Context(), c.Param("id"), req, claims.IdentityID, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, request, nil)
}
