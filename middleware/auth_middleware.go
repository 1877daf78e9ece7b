package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"novytek/api/models"
	"novytek/api/store"
	"novytek/api/utils"
)

const (
	AdminKey = "admin"

	CodeNotSignedIn         = "not_signed_in"
	CodeAccessDenied        = "access_denied"
	CodeSuperAdminRequired  = "super_admin_required"
	serviceKeyAdminIdentity = "service-key"
)

// AdminGate guards the dashboard routes.
type AdminGate struct {
	admins     store.AdminStore
	tokens     *utils.TokenIssuer
	apiKeyHash []byte
	logger     *zap.Logger
}

// NewAdminGate builds the gate. An empty apiKeyHash disables X-API-KEY access.
func NewAdminGate(admins store.AdminStore, tokens *utils.TokenIssuer, apiKeyHash string, logger *zap.Logger) *AdminGate {
	return &AdminGate{
		admins:     admins,
		tokens:     tokens,
		apiKeyHash: []byte(apiKeyHash),
		logger:     logger.Named("auth"),
	}
}

// AdminRequired lets through active administrators, and only super
// administrators when requireSuperAdmin is set. Failures map to three states:
// 401 not_signed_in, 403 access_denied and 403 super_admin_required.
func (g *AdminGate) AdminRequired(requireSuperAdmin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := g.resolve(c)
		if !ok {
			return
		}

		if requireSuperAdmin && !admin.IsSuperAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Super administrator role required",
				"code":  CodeSuperAdminRequired,
			})
			return
		}

		c.Set(AdminKey, admin)
		c.Next()
	}
}

func (g *AdminGate) resolve(c *gin.Context) (*models.AdminUser, bool) {
	if key := c.GetHeader("X-API-KEY"); key != "" && len(g.apiKeyHash) > 0 {
		if bcrypt.CompareHashAndPassword(g.apiKeyHash, []byte(key)) == nil {
			return &models.AdminUser{UserID: serviceKeyAdminIdentity, Role: models.RoleAdmin, IsActive: true}, true
		}
		g.logger.Warn("rejected API key", zap.String("ip", c.ClientIP()))
	}

	tokenString, err := c.Cookie(utils.TokenCookie)
	if err != nil || tokenString == "" {
		tokenString = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not signed in", "code": CodeNotSignedIn})
		return nil, false
	}

	claims, err := g.tokens.ValidateJWT(tokenString)
	if err != nil {
		g.logger.Debug("invalid token", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session", "code": CodeNotSignedIn})
		return nil, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	admin, err := g.admins.GetActiveAdmin(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		g.logger.Info("access denied", zap.String("user_id", claims.UserID))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied", "code": CodeAccessDenied})
		return nil, false
	}
	if err != nil {
		g.logger.Error("admin lookup failed", zap.String("user_id", claims.UserID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify admin status", "retryable": true})
		return nil, false
	}
	return admin, true
}

// CurrentAdmin returns the administrator set by AdminRequired.
func CurrentAdmin(c *gin.Context) *models.AdminUser {
	v, ok := c.Get(AdminKey)
	if !ok {
		return nil
	}
	admin, _ := v.(*models.AdminUser)
	return admin
}
