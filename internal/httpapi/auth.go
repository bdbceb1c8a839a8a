package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/storagehub/internal/store/gormstore"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	headerAPIKey     = "x-api-key"
	contextClaimsKey = "auth_claims"
)

// sessionClaims is the JWT payload carried in the auth cookie.
type sessionClaims struct {
	Role      string  `json:"role"`
	CompanyID *string `json:"companyId,omitempty"`
	jwt.RegisteredClaims
}

// apiKeyMiddleware gates every API route behind the shared service key.
func (handler *httpHandler) apiKeyMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetHeader(headerAPIKey) != handler.cfg.APIKey {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(codeUnauthorized, "missing or invalid api key"))
			return
		}
		ctx.Next()
	}
}

// sessionMiddleware parses the auth cookie and stores its claims on the
// request context.
func (handler *httpHandler) sessionMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, err := ctx.Cookie(handler.cfg.CookieName)
		if err != nil || tokenString == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(codeUnauthorized, "missing session"))
			return
		}
		claims := &sessionClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(handler.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(codeUnauthorized, "invalid session"))
			return
		}
		ctx.Set(contextClaimsKey, claims)
		ctx.Next()
	}
}

// requireRoles allows the request through when the session role is listed.
// System roles also pass any company_admin route; the company scope check
// happens in canAccessCompany.
func requireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(ctx *gin.Context) {
		claims := getClaims(ctx)
		if claims == nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(codeUnauthorized, "missing session"))
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			ctx.AbortWithStatusJSON(http.StatusForbidden, errorResponse(codeForbidden, "role not permitted"))
			return
		}
		ctx.Next()
	}
}

func getClaims(ctx *gin.Context) *sessionClaims {
	value, exists := ctx.Get(contextClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*sessionClaims)
	if !ok {
		return nil
	}
	return claims
}

// isSystemRole reports whether the role bypasses company scoping.
func isSystemRole(role string) bool {
	return role == gormstore.RoleSystemAdmin || role == gormstore.RoleSystemUser
}

// canAccessCompany checks the session against a target company. Company
// admins only reach their own company's resources.
func canAccessCompany(claims *sessionClaims, companyID string) bool {
	if claims == nil {
		return false
	}
	if isSystemRole(claims.Role) {
		return true
	}
	return claims.CompanyID != nil && *claims.CompanyID == companyID
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleLogin verifies credentials and issues the session cookie.
func (handler *httpHandler) handleLogin(ctx *gin.Context) {
	var request loginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidation, "email and password are required"))
		return
	}
	user, err := handler.store.GetUserByEmail(ctx.Request.Context(), strings.ToLower(strings.TrimSpace(request.Email)))
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse(codeUnauthorized, "invalid credentials"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(request.Password)) != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse(codeUnauthorized, "invalid credentials"))
		return
	}

	now := time.Now().UTC()
	claims := sessionClaims{
		Role:      user.Role,
		CompanyID: user.CompanyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(handler.cfg.SessionTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(handler.cfg.JWTSecret))
	if err != nil {
		handler.logger.Error("token signing failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse(codeInternal, "internal error"))
		return
	}

	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(handler.cfg.CookieName, signed, int(handler.cfg.SessionTTL.Seconds()), "/", "", handler.cfg.CookieSecure, true)
	ctx.JSON(http.StatusOK, gin.H{
		"userId":    user.UserID,
		"role":      user.Role,
		"companyId": user.CompanyID,
	})
}

// handleLogout clears the session cookie.
func (handler *httpHandler) handleLogout(ctx *gin.Context) {
	ctx.SetCookie(handler.cfg.CookieName, "", -1, "/", "", handler.cfg.CookieSecure, true)
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HashPassword produces a bcrypt hash for user provisioning.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
