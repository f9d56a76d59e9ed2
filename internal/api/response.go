// internal/api/response.go
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/TutorMindMCP/internal/errors"
)

// APIResponse 统一响应结构
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// respondSuccess 成功响应
func respondSuccess(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(http.StatusOK, response)
}

// respondError 错误响应，根据错误类型映射HTTP状态码
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		switch appErr.Type {
		case apperrors.ErrorTypeValidation:
			status = http.StatusBadRequest
		case apperrors.ErrorTypeNotFound, apperrors.ErrorTypeInvalidSession:
			status = http.StatusNotFound
		case apperrors.ErrorTypeProviderFailure:
			status = http.StatusBadGateway
		case apperrors.ErrorTypeTimeout:
			status = http.StatusGatewayTimeout
		}
	}

	c.JSON(status, &APIResponse{
		Success:   false,
		Error:     err.Error(),
		Code:      code,
		Timestamp: time.Now(),
	})
}

// respondBadRequest 请求格式错误响应
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, &APIResponse{
		Success:   false,
		Error:     message,
		Code:      "VALIDATION_ERROR",
		Timestamp: time.Now(),
	})
}
