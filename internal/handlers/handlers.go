package handlers

import (
	"gorm.io/gorm"

	"contact-guard-go/internal/guard"
	"contact-guard-go/internal/metrics"
	"contact-guard-go/internal/scheduler"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db      *gorm.DB // nil when no database is configured
	guard   *guard.Guard
	janitor *scheduler.Janitor
	metrics *metrics.Metrics
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *gorm.DB, g *guard.Guard, j *scheduler.Janitor, m *metrics.Metrics) *Handlers {
	return &Handlers{db: db, guard: g, janitor: j, metrics: m}
}
