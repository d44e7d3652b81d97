package middleware

import (
	"net/http"
	"strings"

	"library/internal/domain"
	"library/internal/pkg/jwt"
	"library/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID  = "user_id"
	ContextIsStaff = "is_staff"
)

// JWTAuth requires a valid "Bearer <access token>" header and stores the
// caller in the gin context.
func JWTAuth(tokens *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			response.Abort(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Authentication credentials were not provided")
			return
		}

		scheme, tokenStr, found := strings.Cut(h, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenStr) == "" {
			response.Abort(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be: Bearer <token>")
			return
		}

		claims, err := tokens.ValidateToken(strings.TrimSpace(tokenStr), jwt.TokenTypeAccess)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Given token not valid for any token type")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextIsStaff, claims.IsStaff)
		c.Next()
	}
}

// StaffOnly must run after JWTAuth.
func StaffOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ContextUserID); !ok {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication credentials were not provided")
			return
		}
		if !c.GetBool(ContextIsStaff) {
			response.Abort(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action")
			return
		}
		c.Next()
	}
}

// CurrentActor returns the authenticated caller set by JWTAuth.
func CurrentActor(c *gin.Context) (domain.Actor, bool) {
	userID := c.GetInt64(ContextUserID)
	if userID == 0 {
		return domain.Actor{}, false
	}
	return domain.Actor{UserID: userID, IsStaff: c.GetBool(ContextIsStaff)}, true
}
