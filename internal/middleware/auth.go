package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/response"
	"github.com/stemsi/exstem-runner/internal/session"
)

const (
	// ContextKeyUser is the Gin context key for the logged-in user.
	ContextKeyUser = "user"
)

// SessionSource exposes the process-wide login state.
type SessionSource interface {
	State() session.State
	User() *model.User
}

// RequireSession rejects requests while nobody is logged in. The response carries
// a redirect to the login page.
func RequireSession(src SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := src.User()
		if src.State() != session.StateAuthenticated || user == nil {
			response.AbortSessionLost(c, response.ErrTokenRequired)
			return
		}

		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

// GetUser retrieves the logged-in user from the Gin context.
func GetUser(c *gin.Context) *model.User {
	val, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil
	}
	user, ok := val.(*model.User)
	if !ok {
		return nil
	}
	return user
}

// RequireAdmin allows only administrators. It must run after RequireSession.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetUser(c)
		if user == nil {
			response.AbortSessionLost(c, response.ErrTokenRequired)
			return
		}
		if !user.IsAdmin() {
			response.AbortFail(c, http.StatusForbidden, response.ErrAdminAccessOnly)
			return
		}
		c.Next()
	}
}
