package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"contact-guard-go/internal/captcha"
	"contact-guard-go/internal/clock"
	"contact-guard-go/internal/config"
	"contact-guard-go/internal/database"
	"contact-guard-go/internal/guard"
	"contact-guard-go/internal/handlers"
	"contact-guard-go/internal/mailer"
	"contact-guard-go/internal/metrics"
	"contact-guard-go/internal/ratelimit"
	"contact-guard-go/internal/scheduler"
	"contact-guard-go/internal/server"
	"contact-guard-go/internal/session"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Contact Guard Service")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	var dbConn *gorm.DB
	if cfg.Database.Enabled() {
		dbConn, err = database.InitDatabase(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
	} else {
		logrus.Info("No database configured, audit trail disabled")
	}

	m := metrics.NewMetrics()
	clk := clock.Real()

	ledger, err := buildLedger(cfg, dbConn)
	if err != nil {
		return fmt.Errorf("failed to initialize rate-limit ledger: %w", err)
	}
	defer ledger.Close()
	logrus.Infof("Using %s rate-limit store", cfg.RateLimit.Store)

	sessions := session.NewMemoryStore()

	var verifier guard.CaptchaVerifier
	if cfg.Captcha.CaptchaEnforced() {
		verifier = captcha.NewHTTPVerifier(cfg.Captcha)
		logrus.Infof("Captcha enforcement enabled with provider %q", cfg.Captcha.Provider)
	} else {
		logrus.Info("Captcha enforcement disabled")
	}

	sender, err := buildMailer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create mailer: %w", err)
	}
	logrus.Infof("Using %s mail transport", cfg.Mail.Transport)

	var audit guard.AuditRecorder
	if dbConn != nil {
		audit = database.NewAuditRecorder(dbConn)
	}

	g := guard.New(guard.Options{
		Config:         cfg.Guard,
		Ledger:         ledger,
		Sessions:       sessions,
		Verifier:       verifier,
		EnforceCaptcha: cfg.Captcha.CaptchaEnforced(),
		Mailer:         sender,
		Content:        mailer.NewContent(cfg.Mail),
		MailTimeout:    cfg.Mail.Timeout,
		Clock:          clk,
		Metrics:        m,
		Audit:          audit,
	})

	janitor := scheduler.NewJanitor(&cfg.Janitor, ledger, sessions, cfg.Guard.SessionCooldown, clk, m)

	h := handlers.NewHandlers(dbConn, g, janitor, m)
	router := server.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := janitor.Start(); err != nil {
		return fmt.Errorf("failed to start janitor: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := janitor.Stop(); err != nil {
		logrus.Errorf("Failed to stop janitor: %v", err)
	}
	janitor.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}

// buildLedger selects the configured rate-limit store backend.
func buildLedger(cfg *config.Config, db *gorm.DB) (ratelimit.Store, error) {
	window := cfg.RateLimit.Window
	max := cfg.RateLimit.MaxRequests

	switch cfg.RateLimit.Store {
	case config.StoreFile:
		return ratelimit.NewFileStore(cfg.RateLimit.StorePath, window, max)
	case config.StoreDatabase:
		if db == nil {
			return nil, fmt.Errorf("database store selected but no database configured")
		}
		return ratelimit.NewDatabaseStore(db, window, max), nil
	default:
		return ratelimit.NewMemoryStore(window, max), nil
	}
}

// buildMailer selects the configured mail transport.
func buildMailer(cfg *config.Config) (mailer.Mailer, error) {
	switch cfg.Mail.Transport {
	case config.MailerGmail:
		return mailer.NewGmailMailer(mailer.GmailOptions{
			ClientID:     cfg.Mail.Gmail.ClientID,
			ClientSecret: cfg.Mail.Gmail.ClientSecret,
			RefreshToken: cfg.Mail.Gmail.RefreshToken,
			UserEmail:    cfg.Mail.Gmail.UserEmail,
		})
	default:
		return mailer.NewSMTPMailer(cfg.Mail.SMTP), nil
	}
}
