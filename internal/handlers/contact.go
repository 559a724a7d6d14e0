package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"contact-guard-go/internal/guard"
	"contact-guard-go/internal/models"
	"contact-guard-go/internal/session"
)

// Submissions larger than this are not worth parsing.
const maxBodyBytes = 1 << 20 // 1MB

// How long the session cookie sticks around.
const sessionCookieMaxAge = 30 * 24 * 60 * 60 // seconds

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	// Health check
	router.GET("/healthz", h.HealthCheck)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The contact endpoint answers every method itself so that
	// non-POST probes get the same generic rejection body instead of
	// a distinguishable 404/405.
	router.Any("/contact", h.SubmitContact)

	// Admin API. Unlike /contact this reports real status codes; it is
	// meant to sit behind the reverse proxy, not face the public form.
	admin := router.Group("/admin")
	{
		admin.GET("/events", h.GetEvents)
		admin.GET("/events/:id", h.GetEvent)
		admin.POST("/janitor/run", h.RunJanitor)
		admin.GET("/janitor/status", h.GetJanitorStatus)
	}
}

// SubmitContact handles one contact form submission. The response is
// always HTTP 200 with a body of "1" (accepted) or "0" (rejected),
// with no detail about which check failed.
func (h *Handlers) SubmitContact(c *gin.Context) {
	// Non-POST is rejected before the body is even parsed, with no
	// side effects (no cookie, no ledger slot).
	if c.Request.Method != http.MethodPost {
		c.String(http.StatusOK, guard.RejectedBody)
		return
	}

	sub, err := parseSubmission(c)
	if err != nil {
		c.String(http.StatusOK, guard.RejectedBody)
		return
	}

	result := h.guard.Process(c.Request.Context(), guard.Request{
		Submission: sub,
		ClientIP:   guard.ClientIP(c.Request),
		SessionID:  h.resolveSession(c),
	})

	c.String(http.StatusOK, result.Body())
}

// resolveSession returns the caller's stable session identifier,
// issuing a fresh cookie when none is present.
func (h *Handlers) resolveSession(c *gin.Context) string {
	id, err := c.Cookie(session.CookieName)
	if err == nil && id != "" {
		return id
	}
	id = uuid.NewString()
	c.SetCookie(session.CookieName, id, sessionCookieMaxAge, "/", "", false, true)
	return id
}

// parseSubmission normalizes the three supported body encodings into
// one Submission record.
func parseSubmission(c *gin.Context) (models.Submission, error) {
	var sub models.Submission

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	if strings.HasPrefix(c.ContentType(), "application/json") {
		if err := json.NewDecoder(c.Request.Body).Decode(&sub); err != nil {
			return sub, err
		}
		return sub, nil
	}

	// PostForm reads both application/x-www-form-urlencoded and
	// multipart/form-data.
	sub = models.Submission{
		FormType:        c.PostForm("form_type"),
		Honeypot:        c.PostForm("website"),
		FormStartedAt:   models.ParseEpochMillis(c.PostForm("form_started_at")),
		FullName:        c.PostForm("full_name"),
		FirstName:       c.PostForm("first_name"),
		LastName:        c.PostForm("last_name"),
		Email:           c.PostForm("email"),
		Subject:         c.PostForm("subject"),
		Message:         c.PostForm("message"),
		CaptchaToken:    c.PostForm("captcha_token"),
		CaptchaProvider: c.PostForm("captcha_provider"),
	}
	return sub, nil
}
