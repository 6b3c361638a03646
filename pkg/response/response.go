package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/grantportal/backend/pkg/apperr"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err})
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	c.JSON(http.StatusConflict, Body{Success: false, Error: err})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// Err maps an apperr kind to its status code. Unclassified errors become 500 with fallback as the message,
// unless they carry a user-facing message from the identity provider, which is surfaced as a 400.
func Err(c *gin.Context, err error, fallback string) {
	var e *apperr.Error
	if errors.As(err, &e) && e.Kind != apperr.KindUpstream {
		switch e.Kind {
		case apperr.KindUnauthenticated:
			Unauthorized(c, e.Message)
		case apperr.KindForbidden:
			Forbidden(c, e.Message)
		case apperr.KindInvalidInput:
			BadRequest(c, e.Message)
		case apperr.KindNotFound:
			NotFound(c, e.Message)
		}
		return
	}
	var um apperr.UserMessager
	if errors.As(err, &um) && um.UserMessage() != "" {
		BadRequest(c, um.UserMessage())
		return
	}
	Internal(c, fallback)
}
