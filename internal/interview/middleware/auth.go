package middleware

import (
	"context"
	"strings"

	"assesy/internal/interview/service"
	pkgerrors "assesy/pkg/errors"
	"assesy/pkg/utils/contextkey"
	"assesy/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Authenticator validates admin bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (service.Operator, error)
}

// AuthMiddleware requires a valid admin bearer token.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth == nil {
			response.AbortWithErrorCode(c, pkgerrors.ServiceUnavailable, "auth service unavailable")
			return
		}
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			response.AbortWithErrorCode(c, pkgerrors.Unauthorized, "missing bearer token")
			return
		}
		op, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}

		c.Set(string(contextkey.UserID), op.Username)
		c.Set("user_role", op.Role)
		ctx := context.WithValue(c.Request.Context(), contextkey.UserID, op.Username)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearerToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
