package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess          = 0
	CodeParamError       = 400
	CodeNotFound         = 404
	CodeServerError      = 500
	CodeStoreUnavailable = 503
)

const (
	CodeRequestNotFound      = 1001
	CodeInvalidTransition    = 1002
	CodePreconditionFailed   = 1003
	CodeInvalidConfiguration = 1004
	CodeCategoryNotFinanced  = 1005
	CodeInvalidPayment       = 1006
	CodeConcurrentUpdate     = 1007
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
