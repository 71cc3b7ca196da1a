package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/edusphere/enrollment-api/pkg/errors"
)

// Envelope represents the common response contract consumed by transports.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// JSON sends a success response with the given status and optional data.
func JSON(c *gin.Context, status int, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, Envelope{Success: true, Data: data})
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Error sends an error response, converting the error to the common structure.
// The status comes from the typed error; anything untyped maps to 500.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, Envelope{Success: false, Error: appErr.Message})
}
