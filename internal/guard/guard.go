package guard

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"contact-guard-go/internal/clock"
	"contact-guard-go/internal/config"
	"contact-guard-go/internal/mailer"
	"contact-guard-go/internal/metrics"
	"contact-guard-go/internal/models"
	"contact-guard-go/internal/ratelimit"
	"contact-guard-go/internal/session"
)

// The two values a caller ever sees. Every rejection collapses to the
// same signal so a probe cannot learn which check blocked it.
const (
	AcceptedBody = "1"
	RejectedBody = "0"
)

// Pipeline stages, recorded internally for diagnosis and metrics only.
const (
	StageFormType   = "form_type"
	StageRateLimit  = "rate_limit"
	StageHoneypot   = "honeypot"
	StageTiming     = "timing"
	StageCooldown   = "cooldown"
	StageCaptcha    = "captcha"
	StageValidation = "validation"
	StageDispatch   = "dispatch"
	StageAccepted   = "accepted"
)

// Request is one inbound submission plus the transport-level facts the
// checks need.
type Request struct {
	Submission models.Submission
	ClientIP   string
	SessionID  string
}

// Result is the pipeline outcome. Stage names the check that decided
// it and never leaves the process.
type Result struct {
	Accepted bool
	Stage    string
}

// Body returns the response body for this result.
func (r Result) Body() string {
	if r.Accepted {
		return AcceptedBody
	}
	return RejectedBody
}

// AuditRecorder persists one guard decision for operator diagnosis.
type AuditRecorder interface {
	Record(outcome, stage, clientIP string)
}

// CaptchaVerifier checks a client-supplied token server-side.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// Guard is the contact submission pipeline: an ordered chain of
// checks, cheapest first, each short-circuiting to rejection, followed
// by email dispatch and success recording.
type Guard struct {
	cfg      config.GuardConfig
	ledger   ratelimit.Store
	sessions session.Store
	verifier CaptchaVerifier
	enforce  bool
	mailer   mailer.Mailer
	content  *mailer.Content
	timeout  time.Duration
	clock    clock.Clock
	metrics  *metrics.Metrics
	audit    AuditRecorder
}

// Options carries the guard's injected dependencies.
type Options struct {
	Config         config.GuardConfig
	Ledger         ratelimit.Store
	Sessions       session.Store
	Verifier       CaptchaVerifier
	EnforceCaptcha bool
	Mailer         mailer.Mailer
	Content        *mailer.Content
	MailTimeout    time.Duration
	Clock          clock.Clock
	Metrics        *metrics.Metrics
	Audit          AuditRecorder
}

// New creates a guard.
func New(opts Options) *Guard {
	c := opts.Clock
	if c == nil {
		c = clock.Real()
	}
	timeout := opts.MailTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Guard{
		cfg:      opts.Config,
		ledger:   opts.Ledger,
		sessions: opts.Sessions,
		verifier: opts.Verifier,
		enforce:  opts.EnforceCaptcha,
		mailer:   opts.Mailer,
		content:  opts.Content,
		timeout:  timeout,
		clock:    c,
		metrics:  opts.Metrics,
		audit:    opts.Audit,
	}
}

// Process runs the full check pipeline for one submission. It always
// returns exactly one of the two outcomes; no error escapes.
func (g *Guard) Process(ctx context.Context, req Request) Result {
	start := time.Now()
	g.metrics.SubmissionCount.Inc()

	result := g.run(ctx, req)

	g.metrics.ProcessingTime.Observe(time.Since(start).Seconds())
	if result.Accepted {
		g.metrics.AcceptedCount.Inc()
	} else {
		g.metrics.RejectedCount.WithLabelValues(result.Stage).Inc()
		logrus.WithFields(logrus.Fields{
			"stage":     result.Stage,
			"client_ip": req.ClientIP,
		}).Info("Submission rejected")
	}
	if g.audit != nil {
		outcome := "rejected"
		if result.Accepted {
			outcome = "accepted"
		}
		g.audit.Record(outcome, result.Stage, req.ClientIP)
	}
	return result
}

func (g *Guard) run(ctx context.Context, req Request) Result {
	sub := req.Submission
	now := g.clock.Now()

	if sub.FormType != models.FormTypeContact {
		return Result{Stage: StageFormType}
	}

	// The ledger slot is consumed here, before the cheaper bot checks
	// below, so every request that gets this far eats into the IP's
	// quota whether or not it survives the rest of the pipeline.
	if req.ClientIP != "" {
		limited, err := g.ledger.Hit(req.ClientIP, now)
		if err != nil {
			// Cannot confirm quota: fail closed.
			logrus.Errorf("Rate-limit ledger error: %v", err)
			return Result{Stage: StageRateLimit}
		}
		if limited {
			return Result{Stage: StageRateLimit}
		}
	}

	if strings.TrimSpace(sub.Honeypot) != "" {
		return Result{Stage: StageHoneypot}
	}

	startedAt := int64(sub.FormStartedAt)
	elapsed := now.UnixMilli() - startedAt
	if startedAt <= 0 || elapsed < g.cfg.MinSubmitDelay.Milliseconds() || elapsed > g.cfg.MaxFormLifetime.Milliseconds() {
		return Result{Stage: StageTiming}
	}

	if req.SessionID != "" {
		if last, ok := g.sessions.LastSubmit(req.SessionID); ok {
			if now.Sub(last) < g.cfg.SessionCooldown {
				return Result{Stage: StageCooldown}
			}
		}
	}

	if g.enforce {
		g.metrics.CaptchaVerifications.Inc()
		ok, err := g.verifier.Verify(ctx, sub.CaptchaToken, req.ClientIP)
		if err != nil {
			logrus.Warnf("Captcha verification error: %v", err)
		}
		if err != nil || !ok {
			g.metrics.CaptchaFailures.Inc()
			return Result{Stage: StageCaptcha}
		}
	}

	fullName := SanitizeSingleLine(sub.FullName, MaxFullNameLen)
	firstName := SanitizeSingleLine(sub.FirstName, MaxFirstNameLen)
	lastName := SanitizeSingleLine(sub.LastName, MaxLastNameLen)
	emailAddr := strings.TrimSpace(sub.Email)
	subject := SanitizeSingleLine(sub.Subject, MaxSubjectLen)
	message := SanitizeMultiline(sub.Message, MaxMessageLen)

	if fullName == "" {
		fullName = strings.TrimSpace(firstName + " " + lastName)
	}
	if !ValidEmail(emailAddr) || message == "" {
		return Result{Stage: StageValidation}
	}

	greetName := firstName
	if greetName == "" {
		greetName = "there"
	}
	if fullName == "" {
		fullName = greetName
	}

	sendCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	// Acknowledgment is best-effort; only the owner notification
	// decides the outcome.
	ack := g.content.Acknowledgment(greetName, subject, emailAddr)
	if err := g.mailer.Send(sendCtx, ack); err != nil {
		g.metrics.EmailFailures.Inc()
		logrus.Warnf("Acknowledgment email failed: %v", err)
	} else {
		g.metrics.EmailSuccesses.Inc()
	}

	notification := g.content.OwnerNotification(fullName, emailAddr, subject, message)
	if err := g.mailer.Send(sendCtx, notification); err != nil {
		g.metrics.EmailFailures.Inc()
		logrus.Errorf("Owner notification email failed: %v", err)
		return Result{Stage: StageDispatch}
	}
	g.metrics.EmailSuccesses.Inc()

	// Success state is recorded only after the notification went out,
	// so a failed send never charges the session a cooldown.
	if req.SessionID != "" {
		g.sessions.RecordSubmit(req.SessionID, now)
	}

	return Result{Accepted: true, Stage: StageAccepted}
}
