package gateway

import (
	"strings"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/auth"
	"github.com/gin-gonic/gin"
)

const capabilityKey = "capability"

// requireAuth authorizes the bearer token and threads the resulting
// capability to the handlers as a context value.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(c, apperr.Unauthorized("missing bearer token"))
			return
		}

		capability, err := s.auth.Authorize(c.Request.Context(), token)
		if err != nil {
			s.writeError(c, err)
			return
		}

		c.Set(capabilityKey, capability)
		c.Next()
	}
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !capabilityFrom(c).IsAdmin() {
			s.writeError(c, apperr.Forbidden("admin role required"))
			return
		}
		c.Next()
	}
}

// capabilityFrom returns the zero Capability when requireAuth did not run.
func capabilityFrom(c *gin.Context) auth.Capability {
	value, exists := c.Get(capabilityKey)
	if !exists {
		return auth.Capability{}
	}
	capability, _ := value.(auth.Capability)
	return capability
}

// bearerToken extracts the raw token, empty when absent.
func bearerToken(c *gin.Context) string {
	token, _ := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	return token
}
