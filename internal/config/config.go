package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Captcha providers the guard knows how to verify.
const (
	ProviderRecaptcha = "recaptcha"
	ProviderHCaptcha  = "hcaptcha"
	ProviderTurnstile = "turnstile"
)

// Rate-limit store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreDatabase = "database"
)

// Mailer transports.
const (
	MailerSMTP  = "smtp"
	MailerGmail = "gmail"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Guard     GuardConfig     `mapstructure:"guard"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Captcha   CaptchaConfig   `mapstructure:"captcha"`
	Mail      MailConfig      `mapstructure:"mail"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Janitor   JanitorConfig   `mapstructure:"janitor"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GuardConfig holds the timing and cooldown knobs of the submission
// pipeline.
type GuardConfig struct {
	MinSubmitDelay  time.Duration `mapstructure:"min_submit_delay"`
	MaxFormLifetime time.Duration `mapstructure:"max_form_lifetime"`
	SessionCooldown time.Duration `mapstructure:"session_cooldown"`
}

// RateLimitConfig holds the sliding-window IP quota configuration.
type RateLimitConfig struct {
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`
	Store       string        `mapstructure:"store"`      // memory, file, database
	StorePath   string        `mapstructure:"store_path"` // file store only
}

// CaptchaConfig holds the captcha verification configuration. An empty
// provider or secret disables enforcement entirely.
type CaptchaConfig struct {
	Provider string        `mapstructure:"provider"`
	Secret   string        `mapstructure:"secret"`
	MinScore float64       `mapstructure:"min_score"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MailConfig holds outbound email configuration.
type MailConfig struct {
	Transport string        `mapstructure:"transport"` // smtp or gmail
	FromEmail string        `mapstructure:"from_email"`
	FromName  string        `mapstructure:"from_name"`
	ToEmail   string        `mapstructure:"to_email"`
	SiteURL   string        `mapstructure:"site_url"`
	Signature string        `mapstructure:"signature"`
	Timeout   time.Duration `mapstructure:"timeout"`
	SMTP      SMTPConfig    `mapstructure:"smtp"`
	Gmail     GmailConfig   `mapstructure:"gmail"`
}

// SMTPConfig holds SMTP relay credentials.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSL      bool   `mapstructure:"ssl"`
}

// GmailConfig holds Gmail API configuration
type GmailConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	UserEmail    string `mapstructure:"user_email"`
}

// DatabaseConfig holds database connection configuration. The
// database is optional; it backs the rate-limit ledger and the guard
// audit trail when configured.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// JanitorConfig holds the background pruning configuration.
type JanitorConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	setDefaults()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()

	// Bind environment variables
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("guard.min_submit_delay", "1200ms")
	viper.SetDefault("guard.max_form_lifetime", "24h")
	viper.SetDefault("guard.session_cooldown", "20s")

	viper.SetDefault("ratelimit.window", "600s")
	viper.SetDefault("ratelimit.max_requests", 12)
	viper.SetDefault("ratelimit.store", StoreMemory)
	viper.SetDefault("ratelimit.store_path", "artifacts/contact-rate-limit.json")

	viper.SetDefault("captcha.timeout", "8s")

	viper.SetDefault("mail.transport", MailerSMTP)
	viper.SetDefault("mail.timeout", "15s")
	viper.SetDefault("mail.smtp.port", 587)

	viper.SetDefault("database.host", "")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("janitor.interval_minutes", 10)
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Guard
	viper.BindEnv("guard.min_submit_delay", "GUARD_MIN_SUBMIT_DELAY")
	viper.BindEnv("guard.max_form_lifetime", "GUARD_MAX_FORM_LIFETIME")
	viper.BindEnv("guard.session_cooldown", "GUARD_SESSION_COOLDOWN")

	// Rate limit (legacy PORTFOLIO_* names kept from the original deploy)
	viper.BindEnv("ratelimit.window", "PORTFOLIO_RATE_LIMIT_WINDOW_SECONDS")
	viper.BindEnv("ratelimit.max_requests", "PORTFOLIO_RATE_LIMIT_MAX_REQUESTS")
	viper.BindEnv("ratelimit.store", "RATE_LIMIT_STORE")
	viper.BindEnv("ratelimit.store_path", "RATE_LIMIT_STORE_PATH")

	// Captcha
	viper.BindEnv("captcha.provider", "PORTFOLIO_CAPTCHA_PROVIDER")
	viper.BindEnv("captcha.secret", "PORTFOLIO_CAPTCHA_SECRET")
	viper.BindEnv("captcha.min_score", "PORTFOLIO_CAPTCHA_MIN_SCORE")
	viper.BindEnv("captcha.timeout", "CAPTCHA_TIMEOUT")

	// Mail
	viper.BindEnv("mail.transport", "MAIL_TRANSPORT")
	viper.BindEnv("mail.from_email", "MAIL_FROM_EMAIL")
	viper.BindEnv("mail.from_name", "MAIL_FROM_NAME")
	viper.BindEnv("mail.to_email", "MAIL_TO_EMAIL")
	viper.BindEnv("mail.site_url", "MAIL_SITE_URL")
	viper.BindEnv("mail.signature", "MAIL_SIGNATURE")
	viper.BindEnv("mail.timeout", "MAIL_TIMEOUT")
	viper.BindEnv("mail.smtp.host", "SMTP_HOST")
	viper.BindEnv("mail.smtp.port", "SMTP_PORT")
	viper.BindEnv("mail.smtp.user", "SMTP_USER")
	viper.BindEnv("mail.smtp.password", "SMTP_PASS")
	viper.BindEnv("mail.smtp.ssl", "SMTP_SSL")
	viper.BindEnv("mail.gmail.client_id", "GMAIL_CLIENT_ID")
	viper.BindEnv("mail.gmail.client_secret", "GMAIL_CLIENT_SECRET")
	viper.BindEnv("mail.gmail.refresh_token", "GMAIL_REFRESH_TOKEN")
	viper.BindEnv("mail.gmail.user_email", "GMAIL_USER_EMAIL")

	// Database
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")
	viper.BindEnv("database.sslmode", "DB_SSLMODE")

	// Janitor
	viper.BindEnv("janitor.interval_minutes", "JANITOR_INTERVAL_MINUTES")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Enabled reports whether a database has been configured at all.
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// CaptchaEnforced reports whether captcha verification is active: a
// known provider must be selected and a secret must be present.
// "Not configured" is distinct from "configured but failing" — the
// former skips the check, the latter rejects.
func (c *CaptchaConfig) CaptchaEnforced() bool {
	if c.Secret == "" {
		return false
	}
	switch c.Provider {
	case ProviderRecaptcha, ProviderHCaptcha, ProviderTurnstile:
		return true
	}
	return false
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Guard.MinSubmitDelay <= 0 || c.Guard.MaxFormLifetime <= 0 {
		return fmt.Errorf("guard timing bounds must be greater than 0")
	}
	if c.Guard.MaxFormLifetime <= c.Guard.MinSubmitDelay {
		return fmt.Errorf("guard max form lifetime must exceed min submit delay")
	}
	if c.Guard.SessionCooldown <= 0 {
		return fmt.Errorf("guard session cooldown must be greater than 0")
	}

	if c.RateLimit.Window <= 0 || c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate limit window and max requests must be greater than 0")
	}
	switch c.RateLimit.Store {
	case StoreMemory:
	case StoreFile:
		if c.RateLimit.StorePath == "" {
			return fmt.Errorf("rate limit store path is required for the file store")
		}
	case StoreDatabase:
		if !c.Database.Enabled() {
			return fmt.Errorf("database configuration is required for the database store")
		}
	default:
		return fmt.Errorf("unknown rate limit store %q", c.RateLimit.Store)
	}

	if c.Database.Enabled() {
		if c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("database user and dbname are required")
		}
	}

	if c.Mail.FromEmail == "" || c.Mail.ToEmail == "" {
		return fmt.Errorf("mail from and to addresses are required")
	}
	switch c.Mail.Transport {
	case MailerSMTP:
		if c.Mail.SMTP.Host == "" {
			return fmt.Errorf("SMTP host is required for the smtp transport")
		}
	case MailerGmail:
		if c.Mail.Gmail.ClientID == "" || c.Mail.Gmail.ClientSecret == "" || c.Mail.Gmail.RefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required for the gmail transport")
		}
	default:
		return fmt.Errorf("unknown mail transport %q", c.Mail.Transport)
	}

	if c.Janitor.IntervalMinutes <= 0 {
		return fmt.Errorf("janitor interval must be greater than 0")
	}

	return nil
}
