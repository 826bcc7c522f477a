package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/relaycrm/relaycrm/internal/api/response"
)

// HealthResponse is the liveness probe payload.
type HealthResponse struct {
	Status  string `json:"status" example:"ok"`
	Service string `json:"service" example:"relaycrm"`
	Version string `json:"version" example:"1.0.0"`
} // @name HealthResponse

// Health godoc
// @Summary Service liveness
// @Description Reports that the API process is up and serving requests
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func Health(c *gin.Context) {
	response.OK(c, HealthResponse{
		Status:  "ok",
		Service: "relaycrm",
		Version: "1.0.0",
	})
}
