package database

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"contact-guard-go/internal/models"
)

// AuditRecorder writes one guard_events row per decision. Failures are
// logged and swallowed; the audit trail must never change a
// submission's outcome.
type AuditRecorder struct {
	db *gorm.DB
}

// NewAuditRecorder creates a database-backed audit recorder.
func NewAuditRecorder(db *gorm.DB) *AuditRecorder {
	return &AuditRecorder{db: db}
}

func (r *AuditRecorder) Record(outcome, stage, clientIP string) {
	event := models.GuardEvent{
		Outcome:  outcome,
		Stage:    stage,
		ClientIP: clientIP,
	}
	if err := r.db.Create(&event).Error; err != nil {
		logrus.Errorf("Failed to record guard event: %v", err)
	}
}
