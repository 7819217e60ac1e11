// internal/middleware/subscription_gate.go
package middleware

import (
	"context"
	"time"

	"cuscatlan-service/internal/domain/subscription"
	"cuscatlan-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const ctxAccess = "access"

// AccessReader evaluates the entitlement gates for an identity.
type AccessReader interface {
	Access(ctx context.Context, identity string, now time.Time) subscription.Access
}

// RequireSubscription lets the request through only while the caller is subscribed
// (active trial or lifetime purchase). MUST be used after Auth()
func RequireSubscription(engine AccessReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			response.Unauthorized(c, "authentication required")
			return
		}

		access := engine.Access(c.Request.Context(), identity, time.Now())
		c.Set(ctxAccess, access)

		if !access.IsSubscribed {
			response.PaymentRequired(c, "subscription required", access)
			return
		}

		c.Next()
	}
}

// GetAccess returns the access evaluated by RequireSubscription
func GetAccess(c *gin.Context) (subscription.Access, bool) {
	v, ok := c.Get(ctxAccess)
	if !ok {
		return subscription.Access{}, false
	}
	access, ok := v.(subscription.Access)
	return access, ok
}
