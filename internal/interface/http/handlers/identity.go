package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/career-roadmap/roadmap-hub/internal/infrastructure/auth"
)

const identityKey = "identity"

// SetIdentity stores the authenticated caller on the request.
func SetIdentity(c *gin.Context, id auth.Identity) {
	c.Set(identityKey, id)
}

// IdentityFrom returns the authenticated caller, if any.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}
