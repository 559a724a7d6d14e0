package guard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contact-guard-go/internal/clock"
	"contact-guard-go/internal/config"
	"contact-guard-go/internal/mailer"
	"contact-guard-go/internal/metrics"
	"contact-guard-go/internal/models"
	"contact-guard-go/internal/ratelimit"
	"contact-guard-go/internal/session"
)

type fakeMailer struct {
	sent      []mailer.Email
	failAll   bool
	failOwner bool
}

func (f *fakeMailer) Send(ctx context.Context, msg mailer.Email) error {
	if f.failAll {
		return fmt.Errorf("relay unavailable")
	}
	if f.failOwner && msg.Subject != mailer.AckSubject {
		return fmt.Errorf("relay unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeVerifier struct {
	ok     bool
	err    error
	calls  int
	tokens []string
}

func (f *fakeVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	f.calls++
	f.tokens = append(f.tokens, token)
	return f.ok, f.err
}

type errLedger struct{}

func (errLedger) Hit(ip string, now time.Time) (bool, error) {
	return false, fmt.Errorf("lock unavailable")
}
func (errLedger) Prune(now time.Time) (int, error) { return 0, fmt.Errorf("lock unavailable") }
func (errLedger) Close() error                     { return nil }

type testEnv struct {
	guard    *Guard
	mailer   *fakeMailer
	verifier *fakeVerifier
	ledger   ratelimit.Store
	sessions *session.MemoryStore
	clock    *clock.Mock
}

func testMailConfig() config.MailConfig {
	return config.MailConfig{
		FromEmail: "info@example.com",
		FromName:  "Example Portfolio",
		ToEmail:   "owner@example.com",
		SiteURL:   "https://example.com",
		Signature: "~Example",
	}
}

func newTestEnv(opts Options) *testEnv {
	env := &testEnv{
		mailer:   &fakeMailer{},
		verifier: &fakeVerifier{ok: true},
		sessions: session.NewMemoryStore(),
		clock:    clock.NewMock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	if opts.Config.MinSubmitDelay == 0 {
		opts.Config = config.GuardConfig{
			MinSubmitDelay:  1200 * time.Millisecond,
			MaxFormLifetime: 24 * time.Hour,
			SessionCooldown: 20 * time.Second,
		}
	}
	if opts.Ledger == nil {
		opts.Ledger = ratelimit.NewMemoryStore(600*time.Second, 12)
	}
	env.ledger = opts.Ledger
	opts.Sessions = env.sessions
	if opts.Verifier == nil {
		opts.Verifier = env.verifier
	} else {
		env.verifier = opts.Verifier.(*fakeVerifier)
	}
	opts.Mailer = env.mailer
	opts.Content = mailer.NewContent(testMailConfig())
	opts.Clock = env.clock
	opts.Metrics = metrics.NewMetricsWith(prometheus.NewRegistry())
	env.guard = New(opts)
	return env
}

func (env *testEnv) validRequest() Request {
	now := env.clock.Now()
	return Request{
		Submission: models.Submission{
			FormType:      models.FormTypeContact,
			FormStartedAt: models.EpochMillis(now.UnixMilli() - 2000),
			FirstName:     "Ada",
			LastName:      "Lovelace",
			Email:         "a@b.com",
			Subject:       "Engines",
			Message:       "I have a question about your work.",
		},
		ClientIP:  "203.0.113.5",
		SessionID: "session-1",
	}
}

func TestGuardAcceptsValidSubmission(t *testing.T) {
	env := newTestEnv(Options{})

	result := env.guard.Process(context.Background(), env.validRequest())

	require.True(t, result.Accepted)
	assert.Equal(t, "1", result.Body())
	require.Len(t, env.mailer.sent, 2)

	ack := env.mailer.sent[0]
	assert.Equal(t, []string{"a@b.com"}, ack.To)
	assert.Equal(t, mailer.AckSubject, ack.Subject)
	assert.Contains(t, ack.HTML, "Dear Ada,")

	notification := env.mailer.sent[1]
	assert.Equal(t, []string{"owner@example.com"}, notification.To)
	assert.Equal(t, "Engines", notification.Subject)
	assert.Equal(t, "a@b.com", notification.ReplyTo)
	assert.Contains(t, notification.HTML, "Ada Lovelace")

	last, ok := env.sessions.LastSubmit("session-1")
	require.True(t, ok)
	assert.Equal(t, env.clock.Now(), last)
}

func TestGuardRejectsWrongFormType(t *testing.T) {
	env := newTestEnv(Options{})
	req := env.validRequest()
	req.Submission.FormType = "newsletter"

	result := env.guard.Process(context.Background(), req)

	assert.False(t, result.Accepted)
	assert.Equal(t, "0", result.Body())
	assert.Equal(t, StageFormType, result.Stage)
	assert.Empty(t, env.mailer.sent)
}

func TestGuardRejectsHoneypot(t *testing.T) {
	env := newTestEnv(Options{})

	for _, value := range []string{"https://spam.example", "x", "  x  "} {
		req := env.validRequest()
		req.Submission.Honeypot = value
		result := env.guard.Process(context.Background(), req)
		assert.Equal(t, StageHoneypot, result.Stage, "honeypot %q", value)
	}

	// Whitespace-only trims to empty and passes this check.
	req := env.validRequest()
	req.Submission.Honeypot = "   "
	result := env.guard.Process(context.Background(), req)
	assert.True(t, result.Accepted)
}

func TestGuardTimingBoundaries(t *testing.T) {
	minDelay := 1200 * time.Millisecond
	maxLifetime := 24 * time.Hour

	cases := []struct {
		name     string
		elapsed  time.Duration
		accepted bool
	}{
		{"exactly min delay", minDelay, true},
		{"one ms too fast", minDelay - time.Millisecond, false},
		{"exactly max lifetime", maxLifetime, true},
		{"one ms too old", maxLifetime + time.Millisecond, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(Options{})
			req := env.validRequest()
			req.Submission.FormStartedAt = models.EpochMillis(env.clock.Now().UnixMilli() - tc.elapsed.Milliseconds())

			result := env.guard.Process(context.Background(), req)

			assert.Equal(t, tc.accepted, result.Accepted)
			if !tc.accepted {
				assert.Equal(t, StageTiming, result.Stage)
			}
		})
	}
}

func TestGuardRejectsMissingStartTimestamp(t *testing.T) {
	env := newTestEnv(Options{})
	req := env.validRequest()
	req.Submission.FormStartedAt = 0

	result := env.guard.Process(context.Background(), req)

	assert.Equal(t, StageTiming, result.Stage)
}

func TestGuardSessionCooldown(t *testing.T) {
	env := newTestEnv(Options{})

	first := env.guard.Process(context.Background(), env.validRequest())
	require.True(t, first.Accepted)

	// Same session again, 5s later: still cooling down.
	env.clock.Advance(5 * time.Second)
	second := env.guard.Process(context.Background(), env.validRequest())
	assert.False(t, second.Accepted)
	assert.Equal(t, StageCooldown, second.Stage)

	// A different session on the same IP is unaffected.
	other := env.validRequest()
	other.SessionID = "session-2"
	third := env.guard.Process(context.Background(), other)
	assert.True(t, third.Accepted)

	// After the cooldown the original session may submit again.
	env.clock.Advance(20 * time.Second)
	fourth := env.guard.Process(context.Background(), env.validRequest())
	assert.True(t, fourth.Accepted)
}

func TestGuardSessionTimestampIncreases(t *testing.T) {
	env := newTestEnv(Options{})

	require.True(t, env.guard.Process(context.Background(), env.validRequest()).Accepted)
	first, _ := env.sessions.LastSubmit("session-1")

	env.clock.Advance(30 * time.Second)
	req := env.validRequest()
	require.True(t, env.guard.Process(context.Background(), req).Accepted)
	second, _ := env.sessions.LastSubmit("session-1")

	assert.True(t, second.After(first))
}

func TestGuardIPRateLimit(t *testing.T) {
	env := newTestEnv(Options{
		Ledger: ratelimit.NewMemoryStore(600*time.Second, 12),
	})

	// Spread 12 accepted submissions across distinct sessions so only
	// the IP quota is in play.
	for i := 0; i < 12; i++ {
		req := env.validRequest()
		req.SessionID = fmt.Sprintf("session-%d", i)
		result := env.guard.Process(context.Background(), req)
		require.True(t, result.Accepted, "request %d", i)
		env.clock.Advance(time.Second)
	}

	req := env.validRequest()
	req.SessionID = "session-13"
	result := env.guard.Process(context.Background(), req)
	assert.False(t, result.Accepted)
	assert.Equal(t, StageRateLimit, result.Stage)
}

func TestGuardRateLimitSlotConsumedByRejectedRequests(t *testing.T) {
	env := newTestEnv(Options{
		Ledger: ratelimit.NewMemoryStore(600*time.Second, 2),
	})

	// Two bot probes eat the whole quota despite being rejected by the
	// honeypot check downstream.
	for i := 0; i < 2; i++ {
		req := env.validRequest()
		req.Submission.Honeypot = "bot"
		result := env.guard.Process(context.Background(), req)
		assert.Equal(t, StageHoneypot, result.Stage)
	}

	result := env.guard.Process(context.Background(), env.validRequest())
	assert.Equal(t, StageRateLimit, result.Stage)
}

func TestGuardLedgerErrorFailsClosed(t *testing.T) {
	env := newTestEnv(Options{Ledger: errLedger{}})

	result := env.guard.Process(context.Background(), env.validRequest())

	assert.False(t, result.Accepted)
	assert.Equal(t, StageRateLimit, result.Stage)
	assert.Empty(t, env.mailer.sent)
}

func TestGuardCaptchaRejection(t *testing.T) {
	env := newTestEnv(Options{
		EnforceCaptcha: true,
		Verifier:       &fakeVerifier{ok: false},
	})

	req := env.validRequest()
	req.Submission.CaptchaToken = ""
	result := env.guard.Process(context.Background(), req)

	assert.False(t, result.Accepted)
	assert.Equal(t, StageCaptcha, result.Stage)
	assert.Empty(t, env.mailer.sent)
}

func TestGuardCaptchaVerifierErrorRejects(t *testing.T) {
	env := newTestEnv(Options{
		EnforceCaptcha: true,
		Verifier:       &fakeVerifier{ok: false, err: fmt.Errorf("provider unreachable")},
	})

	result := env.guard.Process(context.Background(), env.validRequest())

	assert.Equal(t, StageCaptcha, result.Stage)
}

func TestGuardCaptchaSkippedWhenNotEnforced(t *testing.T) {
	env := newTestEnv(Options{})

	result := env.guard.Process(context.Background(), env.validRequest())

	require.True(t, result.Accepted)
	assert.Zero(t, env.verifier.calls)
}

func TestGuardValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.Submission)
	}{
		{"empty email", func(s *models.Submission) { s.Email = "" }},
		{"malformed email", func(s *models.Submission) { s.Email = "not-an-address" }},
		{"empty message", func(s *models.Submission) { s.Message = "" }},
		{"whitespace message", func(s *models.Submission) { s.Message = " \r\n \r\n " }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(Options{})
			req := env.validRequest()
			tc.mutate(&req.Submission)

			result := env.guard.Process(context.Background(), req)

			assert.False(t, result.Accepted)
			assert.Equal(t, StageValidation, result.Stage)
			assert.Empty(t, env.mailer.sent)
		})
	}
}

func TestGuardMessageLineEndingsNormalized(t *testing.T) {
	env := newTestEnv(Options{})
	req := env.validRequest()
	req.Submission.Message = "line one\r\nline two\rline three"

	result := env.guard.Process(context.Background(), req)

	require.True(t, result.Accepted)
	notification := env.mailer.sent[1]
	assert.Contains(t, notification.HTML, "line one<br>line two<br>line three")
}

func TestGuardFullNameFallback(t *testing.T) {
	env := newTestEnv(Options{})
	req := env.validRequest()
	req.Submission.FullName = ""
	req.Submission.FirstName = "Grace"
	req.Submission.LastName = "Hopper"

	result := env.guard.Process(context.Background(), req)

	require.True(t, result.Accepted)
	assert.Contains(t, env.mailer.sent[1].HTML, "Grace Hopper")
}

func TestGuardGreetsAnonymousSubmitter(t *testing.T) {
	env := newTestEnv(Options{})
	req := env.validRequest()
	req.Submission.FullName = "Somebody"
	req.Submission.FirstName = ""
	req.Submission.LastName = ""

	result := env.guard.Process(context.Background(), req)

	require.True(t, result.Accepted)
	assert.Contains(t, env.mailer.sent[0].HTML, "Dear there,")
}

func TestGuardOwnerSendFailureRejectsWithoutCooldown(t *testing.T) {
	env := newTestEnv(Options{})
	env.mailer.failOwner = true

	result := env.guard.Process(context.Background(), env.validRequest())

	assert.False(t, result.Accepted)
	assert.Equal(t, StageDispatch, result.Stage)

	// No cooldown consumed: an immediate retry that succeeds is accepted.
	_, ok := env.sessions.LastSubmit("session-1")
	assert.False(t, ok)

	env.mailer.failOwner = false
	retry := env.guard.Process(context.Background(), env.validRequest())
	assert.True(t, retry.Accepted)
}

func TestGuardAckFailureDoesNotReject(t *testing.T) {
	env := newTestEnv(Options{})
	env.mailer.failAll = false
	env.mailer.failOwner = false

	// Fail only the first (acknowledgment) send.
	failing := &fakeMailer{failAll: true}
	env.guard.mailer = &ackFailingMailer{inner: env.mailer, failing: failing}

	result := env.guard.Process(context.Background(), env.validRequest())

	assert.True(t, result.Accepted)
	require.Len(t, env.mailer.sent, 1)
	assert.Equal(t, []string{"owner@example.com"}, env.mailer.sent[0].To)
}

// ackFailingMailer fails acknowledgment sends and forwards the rest.
type ackFailingMailer struct {
	inner   *fakeMailer
	failing *fakeMailer
}

func (m *ackFailingMailer) Send(ctx context.Context, msg mailer.Email) error {
	if msg.Subject == mailer.AckSubject {
		return m.failing.Send(ctx, msg)
	}
	return m.inner.Send(ctx, msg)
}
