package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return c, w
}

func decodeSuccess(t *testing.T, w *httptest.ResponseRecorder) SuccessResponse {
	t.Helper()
	var resp SuccessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	return resp
}

func TestSuccess_WrapsDataAndMessage(t *testing.T) {
	// Arrange
	c, w := newContext()

	// Act
	Success(c, http.StatusOK, map[string]string{"id": "rule-1"}, "rule created")

	// Assert
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	resp := decodeSuccess(t, w)
	if resp.Message != "rule created" {
		t.Errorf("expected message 'rule created', got '%s'", resp.Message)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok || data["id"] != "rule-1" {
		t.Errorf("expected data {id: rule-1}, got %v", resp.Data)
	}
}

func TestError_CarriesDetailsAndTraceID(t *testing.T) {
	// Arrange
	c, w := newContext()
	c.Set("request_id", "req-42")

	// Act
	Error(c, http.StatusBadRequest, "invalid body", "name is required")

	// Assert
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	resp := decodeError(t, w)
	if resp.Error != "invalid body" {
		t.Errorf("expected error 'invalid body', got '%s'", resp.Error)
	}
	if resp.Details != "name is required" {
		t.Errorf("expected details 'name is required', got '%v'", resp.Details)
	}
	if resp.TraceID != "req-42" {
		t.Errorf("expected trace id 'req-42', got '%s'", resp.TraceID)
	}
}

func TestOK_OmitsMessage(t *testing.T) {
	c, w := newContext()

	OK(c, []string{"a", "b"})

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if resp := decodeSuccess(t, w); resp.Message != "" {
		t.Errorf("expected no message, got '%s'", resp.Message)
	}
}

func TestCreated_Returns201(t *testing.T) {
	c, w := newContext()

	Created(c, map[string]string{"id": "wh-1"}, "webhook created")

	if w.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", w.Code)
	}
	if resp := decodeSuccess(t, w); resp.Message != "webhook created" {
		t.Errorf("expected message 'webhook created', got '%s'", resp.Message)
	}
}

func TestAccepted_Returns202WithNilData(t *testing.T) {
	c, w := newContext()

	Accepted(c, "queued")

	if w.Code != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", w.Code)
	}
	resp := decodeSuccess(t, w)
	if resp.Data != nil {
		t.Errorf("expected nil data, got %v", resp.Data)
	}
	if resp.Message != "queued" {
		t.Errorf("expected message 'queued', got '%s'", resp.Message)
	}
}

func TestNoContent_Returns204WithEmptyBody(t *testing.T) {
	c, w := newContext()

	NoContent(c)
	// CreateTestContext bypasses the engine, which normally flushes the
	// buffered status after the handler chain; flush it here so the
	// recorder observes the code set via c.Status.
	c.Writer.WriteHeaderNow()

	if w.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got '%s'", w.Body.String())
	}
}

func TestStatusHelpers_MapToExpectedCodes(t *testing.T) {
	cases := []struct {
		name string
		call func(c *gin.Context)
		want int
	}{
		{"bad request", func(c *gin.Context) { BadRequest(c, "bad", nil) }, http.StatusBadRequest},
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "no") }, http.StatusUnauthorized},
		{"forbidden", func(c *gin.Context) { Forbidden(c, "blocked") }, http.StatusForbidden},
		{"not found", func(c *gin.Context) { NotFound(c, "missing") }, http.StatusNotFound},
		{"too many requests", func(c *gin.Context) { TooManyRequests(c, "slow down") }, http.StatusTooManyRequests},
		{"internal error", func(c *gin.Context) { InternalServerError(c, "boom") }, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := newContext()
			tc.call(c)
			if w.Code != tc.want {
				t.Errorf("expected status %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestGetRequestID_ReturnsMiddlewareValue(t *testing.T) {
	c, _ := newContext()
	c.Set("request_id", "req-from-middleware")

	if got := GetRequestID(c); got != "req-from-middleware" {
		t.Errorf("expected 'req-from-middleware', got '%s'", got)
	}
}

func TestGetRequestID_GeneratesWhenAbsent(t *testing.T) {
	c, _ := newContext()

	first := GetRequestID(c)
	second := GetRequestID(c)

	if first == "" || second == "" {
		t.Fatal("expected generated ids to be non-empty")
	}
	if first == second {
		t.Error("expected each fallback call to mint a fresh id")
	}
}

func TestGetRequestID_IgnoresNonStringValue(t *testing.T) {
	c, _ := newContext()
	c.Set("request_id", 12345)

	if got := GetRequestID(c); got == "" {
		t.Error("expected a generated id when the stored value is not a string")
	}
}
