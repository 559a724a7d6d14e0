package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// FormTypeContact is the sentinel value the contact form tags its
// submissions with. Anything else hitting the endpoint is rejected.
const FormTypeContact = "contact"

// EpochMillis is an epoch-millisecond timestamp that decodes from
// either a JSON number or a numeric string, since browsers serialize
// Date.now() both ways depending on how the form is posted.
type EpochMillis int64

// UnmarshalJSON implements json.Unmarshaler.
func (e *EpochMillis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = ParseEpochMillis(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*e = EpochMillis(int64(f))
	return nil
}

// ParseEpochMillis parses a form-field value into epoch milliseconds,
// returning 0 for anything non-numeric (which the timing check then
// rejects).
func ParseEpochMillis(raw string) EpochMillis {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return EpochMillis(v)
}

// Submission is the inbound contact-form payload, normalized from the
// URL-encoded, multipart, or JSON request body. It is request-scoped
// and never persisted.
type Submission struct {
	FormType        string      `json:"form_type"`
	Honeypot        string      `json:"website"`
	FormStartedAt   EpochMillis `json:"form_started_at"`
	FullName        string      `json:"full_name"`
	FirstName       string      `json:"first_name"`
	LastName        string      `json:"last_name"`
	Email           string      `json:"email"`
	Subject         string      `json:"subject"`
	Message         string      `json:"message"`
	CaptchaToken    string      `json:"captcha_token"`
	CaptchaProvider string      `json:"captcha_provider"`
}

// RateLimitHit is one consumed slot of an IP's sliding-window quota,
// used by the database-backed ledger store.
type RateLimitHit struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	IP        string    `json:"ip" gorm:"type:varchar(45);not null;index"`
	HitAt     int64     `json:"hit_at" gorm:"not null;index"` // epoch seconds
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for RateLimitHit
func (RateLimitHit) TableName() string {
	return "rate_limit_hits"
}

// GuardEvent is an audit row recording one guard decision. Only the
// outcome and the stage that decided it are kept; the submission body
// itself is never stored.
type GuardEvent struct {
	ID        uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	Outcome   string         `json:"outcome" gorm:"type:varchar(20);not null"` // accepted, rejected
	Stage     string         `json:"stage" gorm:"type:varchar(50);not null"`
	ClientIP  string         `json:"client_ip" gorm:"type:varchar(45);index"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for GuardEvent
func (GuardEvent) TableName() string {
	return "guard_events"
}

// ErrorResponse represents an error response on the admin API. The
// public contact endpoint never uses it.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Metrics   map[string]string `json:"metrics"`
}
