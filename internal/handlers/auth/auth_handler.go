// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"cuscatlan-service/internal/domain/auth"
	"cuscatlan-service/internal/middleware"
	"cuscatlan-service/internal/pkg/response"
	authUsecase "cuscatlan-service/internal/service/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *authUsecase.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService *authUsecase.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// ========== Registration ==========

// Register handles user registration (public endpoint)
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	req.IPAddress = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	loginResp, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("registration failed",
			zap.String("email", req.Email),
			zap.Error(err),
		)
		response.FromError(c, "registration failed", err)
		return
	}

	response.Success(c, http.StatusCreated, "registration successful", loginResp)
}

// ========== Login ==========

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	req.IPAddress = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	loginResp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("login failed",
			zap.String("email", req.Email),
			zap.String("ip", req.IPAddress),
			zap.Error(err),
		)
		response.FromError(c, "login failed", err)
		return
	}

	h.logger.Info("user logged in", zap.String("email", loginResp.User.Email))

	response.Success(c, http.StatusOK, "login successful", loginResp)
}

// ========== Password Reset ==========

// ForgotPassword issues a reset token (public endpoint)
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req auth.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	resp, err := h.authService.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Warn("forgot password failed",
			zap.String("email", req.Email),
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		response.FromError(c, "password reset failed", err)
		return
	}

	response.Success(c, http.StatusOK, resp.Message, resp)
}

// ResetPassword sets a new password from a reset token (public endpoint)
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req auth.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		h.logger.Warn("reset password failed", zap.String("ip", c.ClientIP()), zap.Error(err))
		response.FromError(c, "password reset failed", err)
		return
	}

	response.Success(c, http.StatusOK, "password has been reset, please log in again", nil)
}

// ========== Logout ==========

// Logout handles user logout (requires auth)
func (h *AuthHandler) Logout(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)
	jti := middleware.MustGetJTI(c)

	if err := h.authService.Logout(c.Request.Context(), identity, jti, middleware.GetTokenExpiry(c)); err != nil {
		h.logger.Error("logout failed",
			zap.String("identity", identity),
			zap.Error(err),
		)
		response.Error(c, http.StatusInternalServerError, "logout failed", err)
		return
	}

	response.Success(c, http.StatusOK, "logout successful", nil)
}

// LogoutAll handles logging out all sessions (requires auth)
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)

	if err := h.authService.LogoutAllSessions(c.Request.Context(), identity); err != nil {
		response.Error(c, http.StatusInternalServerError, "logout all failed", err)
		return
	}

	response.Success(c, http.StatusOK, "all sessions logged out", nil)
}

// ========== Profile ==========

// GetMe returns the current account
func (h *AuthHandler) GetMe(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)

	me, err := h.authService.Me(c.Request.Context(), identity)
	if err != nil {
		response.FromError(c, "failed to load account", err)
		return
	}

	response.Success(c, http.StatusOK, "account retrieved", me)
}

// GetActiveSessions lists the caller's open sessions
func (h *AuthHandler) GetActiveSessions(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)

	sessions, err := h.authService.GetActiveSessions(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to get sessions", err)
		return
	}

	response.Success(c, http.StatusOK, "sessions retrieved", sessions)
}

// ========== Admin ==========

// SetRole promotes or demotes an account (admin only)
func (h *AuthHandler) SetRole(c *gin.Context) {
	var req auth.SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	info, err := h.authService.SetRole(c.Request.Context(), c.Param("email"), req.Role)
	if err != nil {
		response.FromError(c, "failed to update role", err)
		return
	}

	h.logger.Info("role changed by admin",
		zap.String("admin", middleware.MustGetIdentity(c)),
		zap.String("email", info.Email),
		zap.String("role", string(info.Role)),
	)

	response.Success(c, http.StatusOK, "role updated", info)
}
