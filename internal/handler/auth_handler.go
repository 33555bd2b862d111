package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lexfirm/lexcase-api/internal/models"
	"github.com/lexfirm/lexcase-api/internal/service"
	appErrors "github.com/lexfirm/lexcase-api/pkg/errors"
	"github.com/lexfirm/lexcase-api/pkg/response"
)

// AuthHandler wires the login lifecycle endpoints to their services.
type AuthHandler struct {
	auth      *service.AuthService
	lifecycle *service.LifecycleService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(auth *service.AuthService, lifecycle *service.LifecycleService) *AuthHandler {
	return &AuthHandler{auth: auth, lifecycle: lifecycle}
}

// Classify godoc
// @Summary Classify an identifier
// @Description Decide which login flow applies to an identifier before any password is collected
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ClassifyRequest true "Classify payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/classify [post]
func (h *AuthHandler) Classify(c *gin.Context) {
	var req models.ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid classify payload"))
		return
	}

	result, err := h.lifecycle.Classify(c.Request.Context(), req.Identifier)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Login godoc
// @Summary Authenticate an identity
// @Description Authenticate by identifier and password and issue a session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Verify godoc
// @Summary Verify a session token
// @Description Exchange a persisted session token for a fresh access token and permissions
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.VerifySessionRequest true "Verify payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/verify [post]
func (h *AuthHandler) Verify(c *gin.Context) {
	var req models.VerifySessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verify payload"))
		return
	}

	res, err := h.auth.VerifySession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Logout godoc
// @Summary Log out
// @Description Revoke a session token; unknown tokens succeed as well
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LogoutRequest true "Logout payload"
// @Success 204 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req models.LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid logout payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	if err := h.auth.Logout(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// SetCredentials godoc
// @Summary First-login credential setup
// @Description Store the first password and the secret question/answer, then log in
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.SetCredentialsRequest true "Credentials payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/credentials [post]
func (h *AuthHandler) SetCredentials(c *gin.Context) {
	var req models.SetCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid credentials payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.lifecycle.SetInitialCredentials(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// CompleteReset godoc
// @Summary Complete an approved password reset
// @Description Set the new password after administrator approval, then log in
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.SetPasswordRequest true "Reset payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/reset/complete [post]
func (h *AuthHandler) CompleteReset(c *gin.Context) {
	var req models.SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reset payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.lifecycle.CompleteReset(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// SecretQuestion godoc
// @Summary Fetch the recovery question
// @Description Return the stored secret question for an identifier
// @Tags Recovery
// @Produce json
// @Param identifier query string true "Account identifier"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/recover/question [get]
func (h *AuthHandler) SecretQuestion(c *gin.Context) {
	identifier := c.Query("identifier")
	if identifier == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "identifier is required"))
		return
	}

	res, err := h.lifecycle.SecretQuestion(c.Request.Context(), identifier)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Recover godoc
// @Summary Recover through the secret answer
// @Description Reset the password by answering the secret question, then log in
// @Tags Recovery
// @Accept json
// @Produce json
// @Param payload body models.RecoverRequest true "Recovery payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/recover [post]
func (h *AuthHandler) Recover(c *gin.Context) {
	var req models.RecoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid recovery payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.lifecycle.RecoverWithSecretAnswer(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}
