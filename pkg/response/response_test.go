package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"crowdfund/pkg/errno"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, fn func(c *gin.Context)) (int, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestErrorUsesErrnoKind(t *testing.T) {
	status, body := render(t, func(c *gin.Context) {
		Error(c, errno.Wrapf(errno.ErrInsufficientBalance, "requested ₱50.00, available ₱30.00"))
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, errno.ErrInsufficientBalance.Code, body.Code)
	assert.Equal(t, "insufficient balance: requested ₱50.00, available ₱30.00", body.Message)
}

func TestErrorHidesUnknownErrors(t *testing.T) {
	status, body := render(t, func(c *gin.Context) {
		Error(c, errors.New("dial tcp 10.0.0.1:3306: connection refused"))
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, errno.InternalServerError.Message, body.Message)
}

func TestSuccessAndParamError(t *testing.T) {
	status, body := render(t, func(c *gin.Context) { Success(c, gin.H{"ok": true}) })
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, body.Code)

	status, body = render(t, func(c *gin.Context) { ParamError(c, "amount is required") })
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid request body: amount is required", body.Message)
}
