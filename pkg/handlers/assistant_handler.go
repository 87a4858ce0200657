package handlers

import (
	"net/http"

	"breathguard-api/pkg/models"
	"breathguard-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// AssistantHandler 健康アシスタントチャットAPIのハンドラ
type AssistantHandler struct {
	assistant *services.AssistantService
}

// NewAssistantHandler 新しいAssistantHandlerを生成する
func NewAssistantHandler(assistant *services.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

// Chat ユーザーのメッセージに定型アドバイスで応答する
func (h *AssistantHandler) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "メッセージが必要です",
		})
		return
	}

	reply := h.assistant.Reply(req.Message)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    reply,
	})
}
