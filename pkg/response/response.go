package response

import (
	"net/http"

	"crowdfund/pkg/errno"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Error writes err with the HTTP status and code of its errno kind. Errors
// without a kind are reported as internal errors and their text is not
// exposed.
func Error(c *gin.Context, err error) {
	status, code, message := errno.Decode(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Response{
		Code:    code,
		Message: message,
	})
}

// ParamError reports a malformed request.
func ParamError(c *gin.Context, message string) {
	Error(c, errno.Wrapf(errno.ErrBind, "%s", message))
}
