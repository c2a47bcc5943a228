package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"support_chat/internal/middleware"
	"support_chat/internal/models"
	"support_chat/internal/service"
)

// respondError 將服務層錯誤轉成 HTTP 狀態碼；未預期的錯誤只回傳通用訊息
func respondError(c *gin.Context, err error) {
	var inputErr *service.InputError
	switch {
	case errors.As(err, &inputErr):
		body := gin.H{"error": inputErr.Reason}
		if inputErr.Code != "" {
			body["code"] = inputErr.Code
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// currentCaller 由驗證中間件放入的資訊組出 Caller
func currentCaller(c *gin.Context) (service.Caller, error) {
	id, ok := c.Get(middleware.ContextUserID)
	if !ok {
		return service.Caller{}, service.ErrUnauthenticated
	}
	userID, ok := id.(uint)
	if !ok || userID == 0 {
		return service.Caller{}, service.ErrUnauthenticated
	}

	role, err := models.ParseRole(c.GetString(middleware.ContextUserRole))
	if err != nil {
		return service.Caller{}, errors.Wrap(service.ErrInvalidInput, err.Error())
	}
	return service.Caller{UserID: userID, Role: role}, nil
}

// pathID 解析路徑上的數字 id
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}
