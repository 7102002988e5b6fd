package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gopherchat/gopherchat/internal/common"
)

type chatReq struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversation_id"`
}

func (h *Handler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.ChatSvc.Send(c.Request.Context(), req.ConversationID, req.Message)
	if err != nil {
		h.Logger.Warn("chat turn failed",
			zap.String("conversation_id", req.ConversationID), zap.Error(err))
		common.FailErr(c, err)
		return
	}

	if result.RetrievedContext == nil {
		result.RetrievedContext = []string{}
	}
	c.JSON(http.StatusOK, result)
}
