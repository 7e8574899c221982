package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gopherbazaar.com/pkg/logger"
	"gopherbazaar.com/pkg/xerr"
)

// Response is the envelope every HTTP answer uses.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// FailErr answers with the code carried by err. Uncoded errors become a
// generic 500 and are logged; the client never sees their text.
func FailErr(c *gin.Context, err error) {
	ce, ok := xerr.As(err)
	if !ok {
		logger.Error(c.Request.Context(), "http unexpected error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		Fail(c, http.StatusInternalServerError, xerr.ServerCommonError, xerr.MapErrMsg(xerr.ServerCommonError))
		return
	}
	if ce.Code >= xerr.ServerCommonError {
		logger.Warn(c.Request.Context(), "http error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("biz_code", ce.Code),
			zap.Error(err),
		)
	}
	Fail(c, xerr.HTTPStatus(ce.Code), ce.Code, ce.Msg)
}
