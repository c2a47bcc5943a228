package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"support_chat/internal/models"
	"support_chat/internal/service"
	"support_chat/pkg/utils"
)

// AuthHandler 處理註冊與登入，簽發 JWT
type AuthHandler struct {
	userService *service.UserService
	jwt         *utils.JWT
}

func NewAuthHandler(userService *service.UserService, jwt *utils.JWT) *AuthHandler {
	return &AuthHandler{userService: userService, jwt: jwt}
}

type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterInput struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required,min=6"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email" binding:"omitempty,email"`
}

type tokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register 建立一般用戶並直接回傳 token
func (h *AuthHandler) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), input.Username, input.Password, input.DisplayName, input.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	h.issue(c, http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.issue(c, http.StatusOK, user)
}

func (h *AuthHandler) issue(c *gin.Context, status int, user *models.User) {
	token, err := h.jwt.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, tokenResponse{Token: token, User: user})
}
