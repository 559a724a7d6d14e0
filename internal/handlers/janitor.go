package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RunJanitor triggers one pruning sweep immediately
func (h *Handlers) RunJanitor(c *gin.Context) {
	if h.janitor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "janitor not configured"})
		return
	}
	h.janitor.RunOnce()
	c.Status(http.StatusOK)
}

// GetJanitorStatus returns janitor status
func (h *Handlers) GetJanitorStatus(c *gin.Context) {
	if h.janitor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "janitor not configured"})
		return
	}
	status := "stopped"
	if h.janitor.IsRunning() {
		status = "running"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"next_run": h.janitor.GetNextRun(),
		"last_run": h.janitor.GetLastRun(),
	})
}
