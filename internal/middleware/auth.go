package middleware

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/internal/features/user"
	"github.com/enrollhub/enrollment-server-go/internal/utils/jwt"
	"github.com/enrollhub/enrollment-server-go/pkg/response"
	"github.com/enrollhub/enrollment-server-go/pkg/types"
)

const userContextKey = "auth_user"

// Auth holds dependencies for the authentication middleware. It is
// constructed once at startup and injected where needed.
type Auth struct {
	db        *gorm.DB
	jwtSecret string
	logger    *slog.Logger
}

// NewAuth constructs the auth middleware.
func NewAuth(db *gorm.DB, jwtSecret string, logger *slog.Logger) *Auth {
	return &Auth{db: db, jwtSecret: jwtSecret, logger: logger}
}

// Authenticate verifies the bearer token and loads the user into the context.
func (a *Auth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.Error(c, http.StatusUnauthorized, "Missing or malformed authorization header", nil)
			c.Abort()
			return
		}

		claims, err := jwt.VerifyToken(strings.TrimPrefix(header, "Bearer "), a.jwtSecret)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "Invalid or expired token", nil)
			c.Abort()
			return
		}

		u, err := user.Get(a.db, claims.UserID)
		if err != nil {
			if err == user.ErrUserNotFound {
				response.Error(c, http.StatusUnauthorized, "User no longer exists", nil)
			} else {
				response.ErrorWithLog(a.logger, c, http.StatusInternalServerError, "failed to load user", err)
			}
			c.Abort()
			return
		}
		if !u.Active {
			response.Error(c, http.StatusForbidden, "Account is deactivated", nil)
			c.Abort()
			return
		}

		c.Set(userContextKey, u)
		c.Next()
	}
}

// RequireRoles allows only the listed roles. Superadmin always passes.
func (a *Auth) RequireRoles(roles ...types.UserType) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := GetUserFromContext(c)
		if !ok {
			response.Error(c, http.StatusUnauthorized, "Authentication required", nil)
			c.Abort()
			return
		}
		if u.UserType == types.UserTypeSuperAdmin {
			c.Next()
			return
		}
		for _, role := range roles {
			if u.UserType == role || role == types.UserTypeAll {
				c.Next()
				return
			}
		}
		response.Error(c, http.StatusForbidden, "Insufficient permissions", nil)
		c.Abort()
	}
}

// GetUserFromContext returns the authenticated user attached to the context.
func GetUserFromContext(c *gin.Context) (user.User, bool) {
	value, exists := c.Get(userContextKey)
	if !exists {
		return user.User{}, false
	}
	u, ok := value.(user.User)
	return u, ok
}

// CurrentUserID returns the authenticated user's ID, or uuid.Nil.
func CurrentUserID(c *gin.Context) uuid.UUID {
	if u, ok := GetUserFromContext(c); ok {
		return u.ID
	}
	return uuid.Nil
}
