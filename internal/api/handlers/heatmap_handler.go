package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yoockh/quantachat/internal/services"
	"github.com/yoockh/quantachat/internal/utils"
)

type HeatmapHandler struct {
	svc services.HeatmapService
}

func NewHeatmapHandler(svc services.HeatmapService) *HeatmapHandler {
	return &HeatmapHandler{svc: svc}
}

func (h *HeatmapHandler) Raw(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	series, err := h.svc.Raw(c.Request.Context(), userID, c.Query("timeframe"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

func (h *HeatmapHandler) Summary(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sum, err := h.svc.Summary(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// targetUserID reads the :user_id path segment, which must be a uuid.
func targetUserID(c *gin.Context, op string) (string, bool) {
	raw := c.Param("user_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "user_id must be a uuid", err))
		return "", false
	}
	return id.String(), true
}

// Inspect is the admin view of any user's profile and recent interactions.
func (h *HeatmapHandler) Inspect(c *gin.Context) {
	userID, ok := targetUserID(c, "HeatmapHandler.Inspect")
	if !ok {
		return
	}

	in, err := h.svc.Inspect(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}

func (h *HeatmapHandler) Rebuild(c *gin.Context) {
	userID, ok := targetUserID(c, "HeatmapHandler.Rebuild")
	if !ok {
		return
	}

	profile, ok, err := h.svc.Refresh(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		writeError(c, utils.E(utils.CodeNotFound, "HeatmapHandler.Rebuild", "no interactions in window", nil))
		return
	}
	c.JSON(http.StatusOK, profile)
}
