package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"contact-guard-go/internal/config"
)

// Verifier checks a client-supplied captcha token against the
// provider's server-side verification endpoint.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// Fixed siteverify endpoints per provider.
var verifyURLs = map[string]string{
	config.ProviderHCaptcha:  "https://hcaptcha.com/siteverify",
	config.ProviderRecaptcha: "https://www.google.com/recaptcha/api/siteverify",
	config.ProviderTurnstile: "https://challenges.cloudflare.com/turnstile/v0/siteverify",
}

// siteVerifyResponse is the providers' common response shape. Score is
// only populated by score-based providers (reCAPTCHA v3).
type siteVerifyResponse struct {
	Success bool     `json:"success"`
	Score   *float64 `json:"score"`
}

// HTTPVerifier verifies tokens over the provider's HTTP API with a
// bounded timeout. A timeout or transport error is a failed
// verification, never a pending one.
type HTTPVerifier struct {
	cfg    config.CaptchaConfig
	client *http.Client
	// overridden in tests to point at a local server
	verifyURL string
}

// NewHTTPVerifier creates a verifier for the configured provider.
func NewHTTPVerifier(cfg config.CaptchaConfig) *HTTPVerifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &HTTPVerifier{
		cfg:       cfg,
		client:    &http.Client{Timeout: timeout},
		verifyURL: verifyURLs[cfg.Provider],
	}
}

// Verify posts the token to the provider and decodes the result. An
// empty token or secret short-circuits to failure without a network
// call.
func (v *HTTPVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" || v.cfg.Secret == "" {
		return false, nil
	}
	if v.verifyURL == "" {
		return false, fmt.Errorf("no verification endpoint for provider %q", v.cfg.Provider)
	}

	payload := url.Values{}
	payload.Set("secret", v.cfg.Secret)
	payload.Set("response", token)
	if remoteIP != "" {
		payload.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL,
		strings.NewReader(payload.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("captcha verification call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("captcha provider returned status %d", resp.StatusCode)
	}

	var decoded siteVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return false, fmt.Errorf("failed to decode captcha response: %w", err)
	}

	if !decoded.Success {
		return false, nil
	}

	// The score threshold only applies to score-based providers, and
	// only when the provider actually returned a score.
	if v.cfg.Provider == config.ProviderRecaptcha && v.cfg.MinScore > 0 && decoded.Score != nil {
		if *decoded.Score < v.cfg.MinScore {
			logrus.Warnf("Captcha score %.2f below threshold %.2f", *decoded.Score, v.cfg.MinScore)
			return false, nil
		}
	}

	return true, nil
}
