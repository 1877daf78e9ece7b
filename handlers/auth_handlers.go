package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"novytek/api/middleware"
	"novytek/api/models"
	"novytek/api/store"
	"novytek/api/utils"
)

type AuthHandlers struct {
	Auth          store.Authenticator
	Admins        store.AdminStore
	Tokens        *utils.TokenIssuer
	secureCookies bool
	logger        *zap.Logger
}

func NewAuthHandlers(auth store.Authenticator, admins store.AdminStore, tokens *utils.TokenIssuer, secureCookies bool, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		Auth:          auth,
		Admins:        admins,
		Tokens:        tokens,
		secureCookies: secureCookies,
		logger:        logger.Named("auth"),
	}
}

// Login signs an administrator in. Valid credentials without an active
// admin row are refused with access_denied.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	identity, err := h.Auth.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			h.logger.Info("login failed", zap.String("email", req.Email))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "code": middleware.CodeNotSignedIn})
			return
		}
		h.logger.Error("sign-in failed", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sign-in failed, please try again", "retryable": true})
		return
	}

	admin, err := h.Admins.GetActiveAdmin(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.logger.Info("login refused, not an active admin", zap.String("user_id", identity.UserID))
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied", "code": middleware.CodeAccessDenied})
			return
		}
		h.logger.Error("admin lookup failed", zap.String("user_id", identity.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify admin status", "retryable": true})
		return
	}

	token, err := h.Tokens.GenerateJWT(admin)
	if err != nil {
		h.logger.Error("failed to issue token", zap.String("user_id", admin.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate authentication token"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(utils.TokenCookie, token, int(utils.TokenTTL/time.Second), "/", "", h.secureCookies, true)

	h.logger.Info("admin signed in", zap.String("user_id", admin.UserID), zap.String("role", string(admin.Role)))
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "admin": admin})
}

func (h *AuthHandlers) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(utils.TokenCookie, "", -1, "/", "", h.secureCookies, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Me returns the administrator behind the current session.
func (h *AuthHandlers) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentAdmin(c))
}

// ListAdmins lists every administrator, active or not. Super admins only.
func (h *AuthHandlers) ListAdmins(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	admins, err := h.Admins.ListAdmins(ctx)
	if err != nil {
		h.logger.Error("failed to list admin users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load administrators", "retryable": true})
		return
	}
	c.JSON(http.StatusOK, nonNil(admins))
}
