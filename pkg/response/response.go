package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/partypay/pkg/apperr"
)

const CodeOK = "OK"

// APIResponse is the generic response envelope used by HTTP APIs.
// Use OKT / ErrorT helpers to construct instances.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// OKT returns a successful response with data.
func OKT[T any](data T) *APIResponse[T] {
	return &APIResponse[T]{Success: true, Code: CodeOK, Message: "ok", Data: data}
}

// ErrorT returns an error response with message and optional data.
func ErrorT[T any](code apperr.Code, message string, data T) *APIResponse[T] {
	if message == "" {
		message = apperr.MetadataFor(code).PublicMessage
	}
	return &APIResponse[T]{Success: false, Code: string(code), Message: message, Data: data}
}

// OK writes a 200 envelope.
func OK[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, OKT(data))
}

// Fail maps err to its code and HTTP status and writes the envelope.
func Fail(c *gin.Context, err error) {
	FailWith[any](c, err, nil)
}

// FailWith is Fail with a data payload (for example the unmodified transaction).
func FailWith[T any](c *gin.Context, err error, data T) {
	code := apperr.CodeOf(err)
	c.JSON(apperr.MetadataFor(code).HTTPStatus, ErrorT(code, apperr.PublicMessage(err), data))
}

// Abort writes the error envelope and stops the handler chain.
func Abort(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	c.AbortWithStatusJSON(apperr.MetadataFor(code).HTTPStatus, ErrorT[any](code, apperr.PublicMessage(err), nil))
}
