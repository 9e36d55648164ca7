package handler

import (
	"github.com/gin-gonic/gin"

	"scholarai/internal/app"
	"scholarai/internal/model"
	"scholarai/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=128"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	FullName string `json:"full_name" binding:"max=128"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,max=128"`
	Password string `json:"password" binding:"required,max=128"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func NewAuthHandler(authService *app.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func userView(u *model.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"email":      u.Email,
		"full_name":  u.FullName,
		"is_active":  u.IsActive,
		"created_at": u.CreatedAt,
	}
}

func tokenView(r *app.AuthResult) gin.H {
	return gin.H{
		"access_token":  r.AccessToken,
		"refresh_token": r.RefreshToken,
		"token_type":    r.TokenType,
		"expires_in":    r.ExpiresIn,
		"user":          userView(r.User),
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}

	result, err := h.authService.Register(app.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		writeError(c, err, "register failed")
		return
	}
	response.OK(c, tokenView(result))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}

	result, err := h.authService.Login(app.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err, "login failed")
		return
	}
	response.OK(c, tokenView(result))
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	result, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, err, "refresh failed")
		return
	}
	response.OK(c, tokenView(result))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		writeError(c, err, "logout failed")
		return
	}
	response.OK(c, nil)
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		writeError(c, err, "fetch current user failed")
		return
	}
	response.OK(c, userView(user))
}
