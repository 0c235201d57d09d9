package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/quantachat/internal/services"
	"github.com/yoockh/quantachat/internal/utils"
)

type ChatHandler struct {
	svc services.ChatService
}

func NewChatHandler(svc services.ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Message string `json:"message" form:"message"`
}

// bindMessage accepts a JSON body or a ?message= query parameter.
func bindMessage(c *gin.Context, op string) (string, bool) {
	var req ChatRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
			return "", false
		}
	}
	if req.Message == "" {
		req.Message = c.Query("message")
	}
	return req.Message, true
}

func (h *ChatHandler) Chat(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	msg, ok := bindMessage(c, "ChatHandler.Chat")
	if !ok {
		return
	}

	reply, err := h.svc.Process(c.Request.Context(), userID, msg)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *ChatHandler) History(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit := 20
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.History", "limit must be a positive integer", err))
			return
		}
		limit = n
	}

	msgs, err := h.svc.History(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type QuantumChatResponse struct {
	Response           string `json:"response"`
	QuantumOptimized   bool   `json:"quantum_optimized"`
	PersonalityProfile any    `json:"personality_profile"`
	*services.ChatReply
}

func (h *ChatHandler) QuantumChat(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	msg, ok := bindMessage(c, "ChatHandler.QuantumChat")
	if !ok {
		return
	}

	reply, personality, err := h.svc.QuantumChat(c.Request.Context(), userID, msg)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, QuantumChatResponse{
		Response:           reply.Content,
		QuantumOptimized:   true,
		PersonalityProfile: personality,
		ChatReply:          reply,
	})
}
