package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inkpress/account-service/pkg/apperr"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Envelope is the uniform wire shape for every response, success or failure.
type Envelope struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// Success writes a success envelope with the given payload.
func Success(c *gin.Context, status int, data any) {
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, Envelope{Status: StatusSuccess, Data: data})
}

// Failed writes a failure envelope with an explicit status and message.
func Failed(c *gin.Context, status int, msg string) {
	c.JSON(status, Envelope{Status: StatusFailed, Data: msg})
}

// FromError renders a domain error using the taxonomy-to-status table.
// Untyped errors render as internal failures with a generic message so
// collaborator details never leak to clients.
func FromError(c *gin.Context, err error) {
	ae := apperr.From(err)
	msg := ae.Message
	if ae.Kind == apperr.KindInternal {
		msg = "internal server error"
	}
	Failed(c, ae.HTTPStatus(), msg)
}

// AbortError renders err and aborts the middleware chain.
func AbortError(c *gin.Context, err error) {
	FromError(c, err)
	c.Abort()
}
