package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rnProCoder/ControlledBrowsing/internal/control/domain"
)

// userHeader carries the identity resolved by the fronting auth layer.
const userHeader = "X-User-ID"

const ctxUserKey = "httpapi.user"

// identity resolves the caller from the identity header and aborts with 401
// when it is missing or does not name a known user. A store failure aborts
// with 503: an unverifiable identity is treated as no identity.
func (s *Server) identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(userHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "authentication required"})
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid identity"})
			return
		}
		user, err := s.store.GetUser(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unknown user"})
				return
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": "cannot verify identity"})
			return
		}
		c.Set(ctxUserKey, user)
		c.Next()
	}
}

// requireAdmin gates admin-only routes. Runs after identity.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentUser(c).IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "admin access required"})
			return
		}
		c.Next()
	}
}

// currentUser returns the identity the middleware resolved.
func currentUser(c *gin.Context) domain.User {
	u, _ := c.Get(ctxUserKey)
	user, _ := u.(domain.User)
	return user
}
