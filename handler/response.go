package handler

import (
	"errors"
	"net/http"

	"github.com/diyapandey-1623/meme-ip-vault/model"
	"github.com/diyapandey-1623/meme-ip-vault/service"
	"github.com/diyapandey-1623/meme-ip-vault/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor 错误分类到 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrGeneratorAuth):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrGeneratorCredits):
		return http.StatusPaymentRequired
	}
	switch service.KindOf(err) {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNetwork:
		return http.StatusBadGateway
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindUnauthorized:
		return http.StatusForbidden
	case service.KindQueueFull:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError 按错误分类返回统一的错误响应
func respondError(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		utils.Logger.Error(message, zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, model.ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	})
}

func badRequest(c *gin.Context, message string, err error) {
	resp := model.ErrorResponse{Success: false, Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}

func respondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, model.DataResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}
