package handlers

import (
	"mia/middleware"
	"mia/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// getLogger returns the global logger annotated with the request's client session.
func getLogger(c *gin.Context) *zap.Logger {
	logger := utils.GetLogger()
	if sid := middleware.SessionID(c); sid != "" {
		logger = logger.With(zap.String("sessionID", sid))
	}
	if uid := middleware.UserID(c); uid != "" {
		logger = logger.With(zap.String("userID", uid))
	}
	return logger
}
