package handlers

import (
	"net/http"
	"strings"

	"mia/middleware"
	"mia/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

// authResponse pairs the issued identity with the client session it is bound to.
type authResponse struct {
	Identity *models.Identity `json:"identity"`
	Session  models.Session   `json:"session"`
}

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func (hb *HandlerBundle) currentSession(c *gin.Context) (models.Session, bool) {
	s, err := hb.Gate.GetCurrentSession(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		respondError(c, err)
		return models.Session{}, false
	}
	return s, true
}

// RegisterHandler creates an account and signs it in on the calling client session.
func (hb *HandlerBundle) RegisterHandler(c *gin.Context) {
	logger := getLogger(c)

	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid registration request", zap.Error(err))
		badRequest(c, err)
		return
	}

	ident, err := hb.Identity.SignUp(c.Request.Context(), middleware.SessionID(c), req.Email, req.Password, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	s, ok := hb.currentSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, authResponse{Identity: ident, Session: s})
}

// LoginHandler signs in on the calling client session.
func (hb *HandlerBundle) LoginHandler(c *gin.Context) {
	logger := getLogger(c)

	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid login request", zap.Error(err))
		badRequest(c, err)
		return
	}

	ident, err := hb.Identity.SignIn(c.Request.Context(), middleware.SessionID(c), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	s, ok := hb.currentSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, authResponse{Identity: ident, Session: s})
}

// LogoutHandler revokes the token, if any, and resets the client session.
func (hb *HandlerBundle) LogoutHandler(c *gin.Context) {
	if err := hb.Identity.SignOut(c.Request.Context(), middleware.SessionID(c), bearer(c)); err != nil {
		respondError(c, err)
		return
	}
	s, ok := hb.currentSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s})
}

// RefreshHandler exchanges a still valid token for a new one.
func (hb *HandlerBundle) RefreshHandler(c *gin.Context) {
	ident, err := hb.Identity.Refresh(c.Request.Context(), middleware.SessionID(c), bearer(c))
	if err != nil {
		respondError(c, err)
		return
	}
	s, ok := hb.currentSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, authResponse{Identity: ident, Session: s})
}

// SessionHandler returns the current client session.
func (hb *HandlerBundle) SessionHandler(c *gin.Context) {
	s, ok := hb.currentSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s, "authenticated": s.Authenticated()})
}

// RegisterFCMTokenHandler stores the caller's push notification token.
func (hb *HandlerBundle) RegisterFCMTokenHandler(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := hb.Identity.RegisterFCMToken(c.Request.Context(), middleware.UserID(c), req.Token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "FCM token registered"})
}
