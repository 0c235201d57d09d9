package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/quantachat/internal/services"
	"github.com/yoockh/quantachat/internal/utils"
)

type VoiceSessionHandler struct {
	svc    services.VoiceSessionService
	chunks services.VoiceChunkService
}

func NewVoiceSessionHandler(svc services.VoiceSessionService, chunks services.VoiceChunkService) *VoiceSessionHandler {
	return &VoiceSessionHandler{svc: svc, chunks: chunks}
}

type StartVoiceSessionRequest struct {
	Language string `json:"language"` // en-US|en-GB|id-ID
}

type StartVoiceSessionResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Language  string `json:"language"`
	CreatedAt string `json:"created_at"`
}

func (h *VoiceSessionHandler) Start(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req StartVoiceSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "VoiceSessionHandler.Start", "invalid request body", err))
			return
		}
	}

	sess, err := h.svc.Start(c.Request.Context(), userID, req.Language)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, StartVoiceSessionResponse{
		SessionID: sess.SessionID,
		Status:    sess.Status,
		Language:  sess.Language,
		CreatedAt: sess.CreatedAt.Format(time.RFC3339),
	})
}

func (h *VoiceSessionHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sess, err := h.svc.Get(c.Request.Context(), userID, c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := gin.H{"session": sess}
	if h.chunks != nil {
		chunks, err := h.chunks.ListBySession(c.Request.Context(), sess.SessionID, 0)
		if err != nil {
			writeError(c, err)
			return
		}
		resp["chunks"] = chunks
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VoiceSessionHandler) End(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	ended, err := h.svc.End(c.Request.Context(), userID, c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ended)
}
