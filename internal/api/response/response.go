// Package response defines the JSON envelope shared by every handler:
// successes wrap their payload in {data, message}, errors in {error, details,
// trace_id} so clients can correlate failures with server logs.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SuccessResponse is the envelope for 2xx payloads.
type SuccessResponse struct {
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

// ErrorResponse is the envelope for error payloads.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
}

// Success writes data under the success envelope with the given status.
func Success(c *gin.Context, statusCode int, data interface{}, message string) {
	c.JSON(statusCode, SuccessResponse{Data: data, Message: message})
}

// Error writes an error envelope carrying the request's trace id.
func Error(c *gin.Context, statusCode int, err string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		Error:   err,
		Details: details,
		TraceID: GetRequestID(c),
	})
}

// OK writes a 200 with data and no message.
func OK(c *gin.Context, data interface{}) {
	Success(c, http.StatusOK, data, "")
}

// Created writes a 201 with data and a message.
func Created(c *gin.Context, data interface{}, message string) {
	Success(c, http.StatusCreated, data, message)
}

// Accepted writes a 202 with a message and no data.
func Accepted(c *gin.Context, message string) {
	Success(c, http.StatusAccepted, nil, message)
}

// NoContent writes an empty 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest writes a 400 with optional details.
func BadRequest(c *gin.Context, err string, details interface{}) {
	Error(c, http.StatusBadRequest, err, details)
}

// Unauthorized writes a 401.
func Unauthorized(c *gin.Context, err string) {
	Error(c, http.StatusUnauthorized, err, nil)
}

// Forbidden writes a 403.
func Forbidden(c *gin.Context, err string) {
	Error(c, http.StatusForbidden, err, nil)
}

// NotFound writes a 404.
func NotFound(c *gin.Context, err string) {
	Error(c, http.StatusNotFound, err, nil)
}

// TooManyRequests writes a 429.
func TooManyRequests(c *gin.Context, err string) {
	Error(c, http.StatusTooManyRequests, err, nil)
}

// InternalServerError writes a 500.
func InternalServerError(c *gin.Context, err string) {
	Error(c, http.StatusInternalServerError, err, nil)
}

// GetRequestID returns the id set by the request-id middleware, or a fresh
// UUID when the middleware did not run (direct handler tests, internal calls).
func GetRequestID(c *gin.Context) string {
	if value, exists := c.Get("request_id"); exists {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return uuid.New().String()
}
