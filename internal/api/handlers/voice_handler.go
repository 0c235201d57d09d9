package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/quantachat/internal/services"
	"github.com/yoockh/quantachat/internal/utils"
)

type VoiceHandler struct {
	svc      services.VoiceService
	maxBytes int64
}

func NewVoiceHandler(svc services.VoiceService, maxBytes int64) *VoiceHandler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &VoiceHandler{svc: svc, maxBytes: maxBytes}
}

func (h *VoiceHandler) Process(c *gin.Context) {
	const op = "VoiceHandler.Process"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("audio_file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "audio_file is required", err))
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "cannot read audio_file", err))
		return
	}
	defer f.Close()

	// one byte past the limit lets the service reject oversize uploads
	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "cannot read audio_file", err))
		return
	}

	res, err := h.svc.Process(c.Request.Context(), userID, services.VoiceUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
