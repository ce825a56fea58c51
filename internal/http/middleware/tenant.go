package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/newsforge/newsforge-backend/internal/http/response"
	"github.com/newsforge/newsforge-backend/internal/platform/ctxutil"
)

const tenantHeader = "X-Tenant-ID"

// Tenant resolves the calling tenant from the X-Tenant-ID header and binds
// it to the request context. Tenanted routes reject requests without it;
// there is no default tenant.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(tenantHeader))
		if raw == "" {
			response.RespondError(c, http.StatusUnauthorized, "tenant_missing",
				fmt.Errorf("missing %s header", tenantHeader))
			c.Abort()
			return
		}
		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			response.RespondError(c, http.StatusUnauthorized, "tenant_invalid",
				fmt.Errorf("invalid %s header", tenantHeader))
			c.Abort()
			return
		}
		ctx := ctxutil.WithTenant(c.Request.Context(), &ctxutil.TenantData{TenantID: tenantID})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
