package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-runner/internal/response"
	"github.com/stemsi/exstem-runner/internal/runner"
)

const (
	// ContextKeyRun is the Gin context key for the run resolved from :id.
	ContextKeyRun = "run"
)

// RunLookup finds an open run by test session id.
type RunLookup interface {
	Get(testSessionID string) (*runner.Runner, error)
}

// LoadRun resolves the :id path param to an open run.
func LoadRun(runs RunLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id == "" {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}

		r, err := runs.Get(id)
		if err != nil {
			response.AbortFail(c, http.StatusNotFound, response.ErrRunNotFound)
			return
		}

		c.Set(ContextKeyRun, r)
		c.Next()
	}
}

// GetRun retrieves the run set by LoadRun.
func GetRun(c *gin.Context) *runner.Runner {
	val, exists := c.Get(ContextKeyRun)
	if !exists {
		return nil
	}
	r, ok := val.(*runner.Runner)
	if !ok {
		return nil
	}
	return r
}
