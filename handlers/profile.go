package handlers

import (
	"net/http"

	"mia/middleware"
	"mia/services/profile"

	"github.com/gin-gonic/gin"
)

// GetProfileHandler returns the caller's company, preferences and payment history.
func (hb *HandlerBundle) GetProfileHandler(c *gin.Context) {
	p, err := hb.Profiles.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SavePreferencesHandler stores the caller's travel preferences.
func (hb *HandlerBundle) SavePreferencesHandler(c *gin.Context) {
	var in profile.PreferencesInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	prefs, err := hb.Profiles.SavePreferences(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}
