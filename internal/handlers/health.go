package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"contact-guard-go/internal/models"
)

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := models.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Metrics:   make(map[string]string),
	}

	if h.db == nil {
		response.Database = "not configured"
	} else if err := h.db.Raw("SELECT 1").Error; err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	if h.janitor != nil && h.janitor.IsRunning() {
		response.Metrics["janitor"] = "running"
		response.Metrics["next_run"] = h.janitor.GetNextRun().Format(time.RFC3339)
		response.Metrics["last_run"] = h.janitor.GetLastRun().Format(time.RFC3339)
	} else {
		response.Metrics["janitor"] = "stopped"
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
