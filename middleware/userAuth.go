package middleware

import (
	"errors"
	"net/http"
	"strings"

	"mia/models"
	"mia/services/identity"
	"mia/services/session"
	"mia/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{
		Message: message,
		Code:    "unauthenticated",
	})
}

// UserAuth validates the bearer token and binds it to the client session.
// With required false, requests without a token continue anonymously; a
// token that is present but invalid is still rejected.
func UserAuth(ids identity.Service, gate session.Gate, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := utils.GetLogger()
		ctx := c.Request.Context()

		tokenString := bearerToken(c)
		if tokenString == "" {
			if required {
				abortUnauthorized(c, "Insufficient authorization")
				return
			}
			c.Next()
			return
		}

		sessionID := SessionID(c)
		claims, err := utils.ParseClaims(tokenString)
		if err != nil || claims.Subject == "" {
			abortUnauthorized(c, "Insufficient authorization")
			return
		}
		// A token is only valid for the client session it was issued to.
		if claims.SessionID != sessionID {
			abortUnauthorized(c, "Insufficient authorization")
			return
		}

		ident, err := ids.GetSession(ctx, tokenString)
		if err != nil {
			var authErr *identity.AuthError
			if errors.As(err, &authErr) {
				abortUnauthorized(c, authErr.Message)
				return
			}
			logger.Error("UserAuth: failed to verify session", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, utils.ErrorResponse{
				Message: "Authentication is temporarily unavailable",
				Code:    "unavailable",
			})
			return
		}

		// The gate may have lost the binding (TTL expiry); restore it from the token.
		current, err := gate.GetCurrentSession(ctx, sessionID)
		if err == nil && current.UserID != ident.UserID {
			if err := gate.HandleIdentityEvent(ctx, models.IdentityEvent{
				Type:            models.IdentityRefreshed,
				ClientSessionID: sessionID,
				Identity:        ident,
			}); err != nil {
				logger.Warn("UserAuth: failed to rebind session", zap.String("sessionID", sessionID), zap.Error(err))
			}
		}

		c.Set(utils.CtxUserID, ident.UserID)
		c.Set(utils.CtxEmail, ident.Email)
		c.Next()
	}
}
