package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/quantachat/internal/utils"
)

type APIError struct {
	Code      utils.Code `json:"code"`
	Message   string     `json:"message"`
	RequestID string     `json:"request_id,omitempty"`
}

// publicError strips err down to what is safe to show a client. Internal
// failures never leak their wrapped cause.
func publicError(err error) (utils.Code, string) {
	code := utils.CodeOf(err)

	var ae *utils.AppError
	if errors.As(err, &ae) && ae.Message != "" && code != utils.CodeInternal {
		return code, ae.Message
	}
	return code, http.StatusText(utils.HTTPStatus(err))
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		// picked up by the request logger
		_ = c.Error(err)
	}

	code, msg := publicError(err)
	c.JSON(status, APIError{
		Code:      code,
		Message:   msg,
		RequestID: c.GetString("request_id"),
	})
}

func requireUserID(c *gin.Context) (string, bool) {
	if s := c.GetString("user_id"); s != "" {
		return s, true
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}
