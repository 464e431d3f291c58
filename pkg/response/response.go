// Package response 统一 HTTP JSON 响应格式
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 响应体
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// Success 返回 200 与数据
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
		TraceID: c.GetString("trace_id"),
	})
}

// ErrorWithStatus 返回指定状态码的错误，errorCode 为业务错误码，可为空
func ErrorWithStatus(c *gin.Context, status int, message, errorCode string) {
	c.AbortWithStatusJSON(status, Response{
		Code:    status,
		Message: message,
		Error:   errorCode,
		TraceID: c.GetString("trace_id"),
	})
}
