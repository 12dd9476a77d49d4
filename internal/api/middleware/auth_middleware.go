package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"park_api/internal/service"
)

const (
	AuthorizationHeaderKey  = "Authorization"
	AuthorizationTypeBearer = "Bearer"
	UserIDKey               = "userID"
	UserRoleKey             = "userRole"
	UsernameKey             = "username"
)

type AuthMiddleware struct {
	authService *service.AuthService
}

func NewAuthMiddleware(authService *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeaderKey)
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		fields := strings.Fields(authHeader)
		if len(fields) < 2 || !strings.EqualFold(fields[0], AuthorizationTypeBearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		_, claims, err := m.authService.ValidateToken(fields[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token is invalid or expired"})
			return
		}

		userID, okUserID := claims["sub"].(string)
		userRole, okUserRole := claims["role"].(string)
		username, okUsername := claims["username"].(string)
		if !okUserID || !okUserRole || !okUsername {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user information in token"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(UserRoleKey, userRole)
		c.Set(UsernameKey, username)
		c.Next()
	}
}

func (m *AuthMiddleware) AuthorizeRole(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRoleVal, exists := c.Get(UserRoleKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied (missing role)"})
			return
		}

		userRole, ok := userRoleVal.(string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied (invalid role)"})
			return
		}

		for _, role := range requiredRoles {
			if userRole == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied (insufficient role)"})
	}
}
