package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	MailTransportSMTP    = "smtp"
	MailTransportMailgun = "mailgun"

	MailDeliveryDirect = "direct"
	MailDeliveryQueue  = "queue"
)

// Config holds application configuration loaded from environment variables.
// Secrets have no defaults; call Validate before use.
type Config struct {
	AppName string
	Env     string // development, staging, production
	Port    string
	GinMode string

	// Database
	DatabaseURL   string // takes precedence over the DB_* parts
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	DBMaxConns    int32
	DBMinConns    int32
	DBMaxConnLife time.Duration
	DBTimeout     time.Duration

	// Migrations
	MigrationsDir  string
	MigrateOnStart bool

	// Redis
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ProfileCacheTTL time.Duration

	// Session
	JWTSecret    string
	BcryptCost   int
	CookieDomain string

	// CORS
	CORSAllowedOrigins string // comma-separated

	// Mail
	MailSendEnabled bool
	MailTransport   string // smtp | mailgun
	MailDelivery    string // direct | queue
	MailTimeout     time.Duration
	SenderMail      string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	MailgunDomain  string
	MailgunAPIKey  string
	MailgunAPIBase string

	// RabbitMQ
	RabbitMQURL        string
	RabbitMQEmailQueue string

	// Company details for emails
	CompanyName    string
	CompanyAddress string
	SupportURL     string

	// Debug metrics (/api/debug/vars)
	DebugMetricsEnabled bool

	// HTTP access log toggle (Gin logger)
	HTTPLogEnabled bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("invalid boolean for %s: %v, using default %v", key, err, def)
			return def
		}
		return b
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid int for %s: %v, using default %d", key, err, def)
			return def
		}
		return i
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using default %v", key, err, def)
			return def
		}
		return d
	}
	return def
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		AppName: getenv("APP_NAME", "go-auth-service"),
		Env:     getenv("APP_ENV", "development"),
		Port:    getenv("PORT", "8080"),
		GinMode: getenv("GIN_MODE", "release"),

		DatabaseURL:   getenv("DATABASE_URL", ""),
		DBHost:        getenv("DB_HOST", ""),
		DBPort:        getenv("DB_PORT", "5432"),
		DBUser:        getenv("DB_USER", ""),
		DBPassword:    getenv("DB_PASSWORD", ""),
		DBName:        getenv("DB_NAME", ""),
		DBSSLMode:     getenv("DB_SSLMODE", "disable"),
		DBMaxConns:    int32(getint("DB_MAX_CONNS", 10)),
		DBMinConns:    int32(getint("DB_MIN_CONNS", 2)),
		DBMaxConnLife: getdur("DB_MAX_CONN_LIFETIME", time.Hour),
		DBTimeout:     getdur("DB_TIMEOUT", 5*time.Second),

		MigrationsDir:  getenv("MIGRATIONS_DIR", "db/migrations"),
		MigrateOnStart: getbool("MIGRATE_ON_START", true),

		RedisAddr:       getenv("REDIS_ADDR", ""),
		RedisPassword:   getenv("REDIS_PASSWORD", ""),
		RedisDB:         getint("REDIS_DB", 0),
		ProfileCacheTTL: getdur("PROFILE_CACHE_TTL", 10*time.Minute),

		JWTSecret:    getenv("JWT_SECRET", ""),
		BcryptCost:   getint("BCRYPT_COST", 10),
		CookieDomain: getenv("COOKIE_DOMAIN", ""),

		CORSAllowedOrigins: getenv("CORS_ALLOWED_ORIGINS", ""),

		MailSendEnabled: getbool("MAIL_SEND_ENABLED", true),
		MailTransport:   strings.ToLower(getenv("MAIL_TRANSPORT", MailTransportSMTP)),
		MailDelivery:    strings.ToLower(getenv("MAIL_DELIVERY", MailDeliveryDirect)),
		MailTimeout:     getdur("MAIL_TIMEOUT", 15*time.Second),
		SenderMail:      getenv("SENDER_MAIL", ""),

		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getint("SMTP_PORT", 587),
		SMTPUser:     getenv("SMTP_USER", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),

		MailgunDomain:  getenv("MAILGUN_DOMAIN", ""),
		MailgunAPIKey:  getenv("MAILGUN_API_KEY", ""),
		MailgunAPIBase: getenv("MAILGUN_API_BASE", ""),

		RabbitMQURL:        getenv("RABBITMQ_URL", ""),
		RabbitMQEmailQueue: getenv("RABBITMQ_EMAIL_QUEUE", "emails"),

		CompanyName:    getenv("COMPANY_NAME", ""),
		CompanyAddress: getenv("COMPANY_ADDRESS", ""),
		SupportURL:     getenv("SUPPORT_URL", ""),

		DebugMetricsEnabled: getbool("DEBUG_METRICS_ENABLED", false),
		HTTPLogEnabled:      getbool("HTTP_LOG_ENABLED", false),
	}
}

// Validate reports every missing or invalid setting the API server needs in one error.
func (c *Config) Validate() error {
	var p problems
	p.require("JWT_SECRET", c.JWTSecret)
	if c.DatabaseURL == "" {
		p.require("DB_HOST", c.DBHost)
		p.require("DB_USER", c.DBUser)
		p.require("DB_NAME", c.DBName)
	}
	c.checkMail(&p)
	return p.err()
}

// ValidateWorker checks what cmd/email_worker needs: the mail transport and the queue.
func (c *Config) ValidateWorker() error {
	var p problems
	c.checkMail(&p)
	p.require("RABBITMQ_URL", c.RabbitMQURL)
	p.require("RABBITMQ_EMAIL_QUEUE", c.RabbitMQEmailQueue)
	return p.err()
}

func (c *Config) checkMail(p *problems) {
	switch c.MailDelivery {
	case MailDeliveryDirect, MailDeliveryQueue:
	default:
		p.addf("MAIL_DELIVERY %q must be %s or %s", c.MailDelivery, MailDeliveryDirect, MailDeliveryQueue)
	}
	if !c.MailSendEnabled {
		return
	}
	p.require("SENDER_MAIL", c.SenderMail)
	switch c.MailTransport {
	case MailTransportSMTP:
		p.require("SMTP_HOST", c.SMTPHost)
		p.require("SMTP_USER", c.SMTPUser)
		p.require("SMTP_PASSWORD", c.SMTPPassword)
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			p.addf("SMTP_PORT %d is out of range", c.SMTPPort)
		}
	case MailTransportMailgun:
		p.require("MAILGUN_DOMAIN", c.MailgunDomain)
		p.require("MAILGUN_API_KEY", c.MailgunAPIKey)
	default:
		p.addf("MAIL_TRANSPORT %q must be %s or %s", c.MailTransport, MailTransportSMTP, MailTransportMailgun)
	}
	if c.MailDelivery == MailDeliveryQueue {
		p.require("RABBITMQ_URL", c.RabbitMQURL)
	}
}

type problems []string

func (p *problems) require(key, v string) {
	if strings.TrimSpace(v) == "" {
		p.addf("%s is required", key)
	}
}

func (p *problems) addf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	for _, existing := range *p {
		if existing == msg {
			return
		}
	}
	*p = append(*p, msg)
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(p, "; "))
}

func (c *Config) IsProduction() bool  { return c.Env == "production" }
func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// PostgresDSN returns a DSN compatible with pgx
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// CORSOrigins returns the allowed origins as slice
func (c *Config) CORSOrigins() []string {
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}
