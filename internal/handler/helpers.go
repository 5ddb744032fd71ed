package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/careline/medrag/internal/pkg/errcode"
	appErr "github.com/careline/medrag/internal/pkg/errors"
	"github.com/careline/medrag/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get("request_id")
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case appErr.IsInvalidInput(err):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case appErr.IsNotFound(err):
		response.Error(c, errcode.ErrNotFound, "not found")
	case appErr.IsProviderUnavailable(err):
		response.Error(c, errcode.ErrProviderUnavailable, "provider unavailable")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
