package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/quantachat/internal/services"
	"github.com/yoockh/quantachat/internal/utils"
)

type AuthHandler struct {
	svc services.AuthService
}

func NewAuthHandler(svc services.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AuthHandler.Register", "invalid request body", err))
		return
	}

	u, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// Token is the OAuth2 password-form flow; username carries the email.
func (h *AuthHandler) Token(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AuthHandler.Token", "username and password are required", nil))
		return
	}
	h.login(c, username, password)
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AuthHandler.Login", "invalid request body", err))
		return
	}
	h.login(c, req.Email, req.Password)
}

func (h *AuthHandler) login(c *gin.Context, email, password string) {
	tok, err := h.svc.Login(c.Request.Context(), email, password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}
