package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"contact-guard-go/internal/models"
)

// Default and ceiling for the events listing page size.
const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// GetEvents returns recent guard decisions, newest first
func (h *Handlers) GetEvents(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "no_database",
			Message: "Audit trail requires a configured database",
			Code:    http.StatusServiceUnavailable,
		})
		return
	}

	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid_limit", Message: "Invalid limit", Code: http.StatusBadRequest})
			return
		}
		if n > maxEventLimit {
			n = maxEventLimit
		}
		limit = n
	}

	query := h.db.Order("created_at desc").Limit(limit)
	if outcome := c.Query("outcome"); outcome != "" {
		query = query.Where("outcome = ?", outcome)
	}

	var events []models.GuardEvent
	if err := query.Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch events",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, events)
}

// GetEvent returns a single guard decision by ID
func (h *Handlers) GetEvent(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "no_database", Message: "Audit trail requires a configured database", Code: http.StatusServiceUnavailable})
		return
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid_id", Message: "Invalid event ID", Code: http.StatusBadRequest})
		return
	}
	var event models.GuardEvent
	if err := h.db.First(&event, id).Error; err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not_found", Message: "Event not found", Code: http.StatusNotFound})
		return
	}
	c.JSON(http.StatusOK, event)
}
