package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"scholarai/internal/model"
	"scholarai/internal/pkg/jwtutil"
	"scholarai/internal/transport/http/response"
)

const ContextUserIDKey = "user_id"

// ActiveUsers resolves the token subject.
type ActiveUsers interface {
	GetUserByID(id uint) (*model.User, error)
}

// AuthJWT accepts access tokens only. When users is set the subject must still
// exist; isForbidden classifies errors that should map to 403.
func AuthJWT(secret string, users ActiveUsers, isForbidden func(error) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		claims, err := jwtutil.ParseToken(secret, token, jwtutil.TokenTypeAccess)
		if err != nil {
			msg := "invalid or expired token"
			if errors.Is(err, jwtutil.ErrWrongTokenType) {
				msg = "access token required"
			}
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidToken, msg)
			c.Abort()
			return
		}

		if users != nil {
			if _, err := users.GetUserByID(claims.UserID); err != nil {
				if isForbidden != nil && isForbidden(err) {
					response.Error(c, http.StatusForbidden, response.CodeInactiveUser, "user account is inactive")
				} else {
					response.Error(c, http.StatusUnauthorized, response.CodeInvalidToken, "user not found")
				}
				c.Abort()
				return
			}
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Next()
	}
}

// UserID reads the authenticated user id set by AuthJWT.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
