package handlers

import (
	"errors"
	"net/http"

	"mia/middleware"
	"mia/services/conversation"
	"mia/utils"

	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// SendMessageHandler runs one conversation turn for the client session.
func (hb *HandlerBundle) SendMessageHandler(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := hb.Chat.Send(c.Request.Context(), middleware.SessionID(c), req.Message)
	if err != nil {
		// Backend failures still produced a fallback turn worth rendering.
		if res != nil && (errors.Is(err, conversation.ErrUpstreamUnavailable) || errors.Is(err, conversation.ErrMalformedResponse)) {
			resp := classify(err)
			getLogger(c).Warn("Conversation backend failed")
			c.JSON(resp.Status, gin.H{
				"message":  resp.Message,
				"code":     resp.Code,
				"reply":    res.Reply,
				"messages": res.Messages,
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListMessagesHandler returns the transcript of the client session.
func (hb *HandlerBundle) ListMessagesHandler(c *gin.Context) {
	msgs, err := hb.Chat.History(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// ClearMessagesHandler drops the transcript of the client session.
func (hb *HandlerBundle) ClearMessagesHandler(c *gin.Context) {
	if err := hb.Chat.Clear(c.Request.Context(), middleware.SessionID(c)); err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "Failed to clear messages", "")
		return
	}
	c.Status(http.StatusNoContent)
}
