package executor

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// WriteResult serializes a Result as the HTTP response body. The Result is
// the wire contract: callers always receive the operation id and the typed
// error, whatever the status code.
//
// Validation failures map to 422 and retryable storage failures to 503.
// statusOf, when set, maps the operation's underlying domain error to a more
// specific status; returning 0 keeps the default.
func WriteResult(c *gin.Context, res Result, okStatus int, statusOf func(error) int) {
	if res.Success {
		c.JSON(okStatus, res)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case res.Error.Code == CodeValidation:
		status = http.StatusUnprocessableEntity
	case res.Error.Retryable:
		status = http.StatusServiceUnavailable
	}
	if statusOf != nil && res.Error.cause != nil {
		if s := statusOf(res.Error.cause); s != 0 {
			status = s
		}
	}

	c.JSON(status, res)
}
