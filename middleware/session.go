package middleware

import (
	"regexp"

	"mia/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// ClientSession resolves the client session id from X-Session-ID, minting
// a new one when the header is missing or malformed. The id is echoed back
// so the client can persist it.
func ClientSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(utils.SessionHeader)
		if !sessionIDPattern.MatchString(id) {
			id = uuid.New().String()
		}
		c.Set(utils.CtxSessionID, id)
		c.Header(utils.SessionHeader, id)
		c.Next()
	}
}

// SessionID returns the id set by ClientSession.
func SessionID(c *gin.Context) string {
	return c.GetString(utils.CtxSessionID)
}

// UserID returns the authenticated user id, empty for anonymous requests.
func UserID(c *gin.Context) string {
	return c.GetString(utils.CtxUserID)
}
