package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Ledger  LedgerConfig
	Matcher MatcherConfig
	Writer  WriterConfig
	Source  SourceConfig
	S3      S3Config
	Email   EmailConfig
	Report  ReportConfig
	CORS    CORSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds local SQLite settings.
type DBConfig struct {
	Path    string `mapstructure:"path"`
	MaxOpen int    `mapstructure:"max_open"`
}

// DSN returns the SQLite connection string.
func (d *DBConfig) DSN() string {
	return "file:" + d.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// LedgerConfig holds the external accounting ledger API settings.
type LedgerConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	ClientName  string        `mapstructure:"client_name"`
	PageSize    int           `mapstructure:"page_size"`
	MaxPages    int           `mapstructure:"max_pages"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RatePerSec  float64       `mapstructure:"rate_per_sec"`
	RateBurst   int           `mapstructure:"rate_burst"`
}

// MatcherConfig holds confidence scoring thresholds and tolerances.
type MatcherConfig struct {
	MatchThreshold   int           `mapstructure:"match_threshold"`
	PartialThreshold int           `mapstructure:"partial_threshold"`
	AmountTolerance  float64       `mapstructure:"amount_tolerance"`
	DateTolerance    time.Duration `mapstructure:"date_tolerance"`
}

// WriterConfig holds write-back coordinator settings.
type WriterConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	DryRun         bool          `mapstructure:"dry_run"`
}

// SourceConfig holds the payment advice document source settings.
type SourceConfig struct {
	Dir         string `mapstructure:"dir"`
	Pattern     string `mapstructure:"pattern"`
	Concurrency int    `mapstructure:"concurrency"`
}

// S3Config holds AWS S3 archive settings.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
	Enabled   bool   `mapstructure:"enabled"`
}

// EmailConfig holds run summary email settings.
type EmailConfig struct {
	Provider    string   `mapstructure:"provider"`
	Region      string   `mapstructure:"region"`
	FromAddress string   `mapstructure:"from_address"`
	FromName    string   `mapstructure:"from_name"`
	Recipients  []string `mapstructure:"recipients"`
}

// ReportConfig holds report output settings.
type ReportConfig struct {
	Dir string `mapstructure:"dir"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration from environment variables with the PAYRECON_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAYRECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.path", "payrecon.db")
	v.SetDefault("db.max_open", 1)

	// Ledger defaults
	v.SetDefault("ledger.base_url", "")
	v.SetDefault("ledger.api_key", "")
	v.SetDefault("ledger.client_name", "")
	v.SetDefault("ledger.page_size", 100)
	v.SetDefault("ledger.max_pages", 200)
	v.SetDefault("ledger.timeout", "30s")
	v.SetDefault("ledger.rate_per_sec", 5.0)
	v.SetDefault("ledger.rate_burst", 5)

	// Matcher defaults
	v.SetDefault("matcher.match_threshold", 80)
	v.SetDefault("matcher.partial_threshold", 50)
	v.SetDefault("matcher.amount_tolerance", 1.0)
	v.SetDefault("matcher.date_tolerance", "720h")

	// Writer defaults
	v.SetDefault("writer.concurrency", 5)
	v.SetDefault("writer.max_retries", 3)
	v.SetDefault("writer.initial_backoff", "1s")
	v.SetDefault("writer.max_backoff", "30s")
	v.SetDefault("writer.dry_run", false)

	// Source defaults
	v.SetDefault("source.dir", "advices")
	v.SetDefault("source.pattern", "*.txt")
	v.SetDefault("source.concurrency", 4)

	// S3 defaults
	v.SetDefault("s3.region", "ap-south-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.prefix", "advices")
	v.SetDefault("s3.enabled", false)

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "ap-south-1")
	v.SetDefault("email.from_address", "noreply@payrecon.local")
	v.SetDefault("email.from_name", "PayRecon")
	v.SetDefault("email.recipients", "")

	// Report defaults
	v.SetDefault("report.dir", "reports")

	// CORS defaults
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":            "PAYRECON_SERVER_PORT",
		"server.read_timeout":    "PAYRECON_SERVER_READ_TIMEOUT",
		"server.write_timeout":   "PAYRECON_SERVER_WRITE_TIMEOUT",
		"server.environment":     "PAYRECON_SERVER_ENVIRONMENT",
		"db.path":                "PAYRECON_DB_PATH",
		"db.max_open":            "PAYRECON_DB_MAX_OPEN",
		"ledger.base_url":        "PAYRECON_LEDGER_BASE_URL",
		"ledger.api_key":         "PAYRECON_LEDGER_API_KEY",
		"ledger.client_name":     "PAYRECON_LEDGER_CLIENT_NAME",
		"ledger.page_size":       "PAYRECON_LEDGER_PAGE_SIZE",
		"ledger.max_pages":       "PAYRECON_LEDGER_MAX_PAGES",
		"ledger.timeout":         "PAYRECON_LEDGER_TIMEOUT",
		"ledger.rate_per_sec":    "PAYRECON_LEDGER_RATE_PER_SEC",
		"ledger.rate_burst":      "PAYRECON_LEDGER_RATE_BURST",
		"matcher.match_threshold":   "PAYRECON_MATCHER_MATCH_THRESHOLD",
		"matcher.partial_threshold": "PAYRECON_MATCHER_PARTIAL_THRESHOLD",
		"matcher.amount_tolerance":  "PAYRECON_MATCHER_AMOUNT_TOLERANCE",
		"matcher.date_tolerance":    "PAYRECON_MATCHER_DATE_TOLERANCE",
		"writer.concurrency":     "PAYRECON_WRITER_CONCURRENCY",
		"writer.max_retries":     "PAYRECON_WRITER_MAX_RETRIES",
		"writer.initial_backoff": "PAYRECON_WRITER_INITIAL_BACKOFF",
		"writer.max_backoff":     "PAYRECON_WRITER_MAX_BACKOFF",
		"writer.dry_run":         "PAYRECON_WRITER_DRY_RUN",
		"source.dir":             "PAYRECON_SOURCE_DIR",
		"source.pattern":         "PAYRECON_SOURCE_PATTERN",
		"source.concurrency":     "PAYRECON_SOURCE_CONCURRENCY",
		"s3.region":              "PAYRECON_S3_REGION",
		"s3.bucket":              "PAYRECON_S3_BUCKET",
		"s3.endpoint":            "PAYRECON_S3_ENDPOINT",
		"s3.access_key":          "PAYRECON_S3_ACCESS_KEY",
		"s3.secret_key":          "PAYRECON_S3_SECRET_KEY",
		"s3.prefix":              "PAYRECON_S3_PREFIX",
		"s3.enabled":             "PAYRECON_S3_ENABLED",
		"email.provider":         "PAYRECON_EMAIL_PROVIDER",
		"email.region":           "PAYRECON_EMAIL_REGION",
		"email.from_address":     "PAYRECON_EMAIL_FROM_ADDRESS",
		"email.from_name":        "PAYRECON_EMAIL_FROM_NAME",
		"email.recipients":       "PAYRECON_EMAIL_RECIPIENTS",
		"report.dir":             "PAYRECON_REPORT_DIR",
		"cors.allowed_origins":   "PAYRECON_CORS_ALLOWED_ORIGINS",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if PAYRECON_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("PAYRECON_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Path:    v.GetString("db.path"),
		MaxOpen: v.GetInt("db.max_open"),
	}
	cfg.Ledger = LedgerConfig{
		BaseURL:    v.GetString("ledger.base_url"),
		APIKey:     v.GetString("ledger.api_key"),
		ClientName: v.GetString("ledger.client_name"),
		PageSize:   v.GetInt("ledger.page_size"),
		MaxPages:   v.GetInt("ledger.max_pages"),
		Timeout:    v.GetDuration("ledger.timeout"),
		RatePerSec: v.GetFloat64("ledger.rate_per_sec"),
		RateBurst:  v.GetInt("ledger.rate_burst"),
	}
	cfg.Matcher = MatcherConfig{
		MatchThreshold:   v.GetInt("matcher.match_threshold"),
		PartialThreshold: v.GetInt("matcher.partial_threshold"),
		AmountTolerance:  v.GetFloat64("matcher.amount_tolerance"),
		DateTolerance:    v.GetDuration("matcher.date_tolerance"),
	}
	cfg.Writer = WriterConfig{
		Concurrency:    v.GetInt("writer.concurrency"),
		MaxRetries:     v.GetInt("writer.max_retries"),
		InitialBackoff: v.GetDuration("writer.initial_backoff"),
		MaxBackoff:     v.GetDuration("writer.max_backoff"),
		DryRun:         v.GetBool("writer.dry_run"),
	}
	cfg.Source = SourceConfig{
		Dir:         v.GetString("source.dir"),
		Pattern:     v.GetString("source.pattern"),
		Concurrency: v.GetInt("source.concurrency"),
	}
	cfg.S3 = S3Config{
		Region:    v.GetString("s3.region"),
		Bucket:    v.GetString("s3.bucket"),
		Endpoint:  v.GetString("s3.endpoint"),
		AccessKey: v.GetString("s3.access_key"),
		SecretKey: v.GetString("s3.secret_key"),
		Prefix:    v.GetString("s3.prefix"),
		Enabled:   v.GetBool("s3.enabled"),
	}
	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
		Recipients:  splitList(v.GetString("email.recipients")),
	}
	cfg.Report = ReportConfig{
		Dir: v.GetString("report.dir"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
