package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig encapsulates all runtime configuration knobs. It is built
// once at startup and passed into constructors; components never read
// the environment themselves.
type AppConfig struct {
	App        AppSettings
	HTTP       HTTPSettings
	Auth       AuthSettings
	Log        LogSettings
	Database   DatabaseSettings
	Burst      BurstSettings
	Validation ValidationSettings
	Processing ProcessingSettings
	Submission SubmissionSettings
}

type AppSettings struct {
	Name        string
	Version     string
	Environment string
}

type HTTPSettings struct {
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	WriteTimeoutMassive time.Duration // Extended timeout for bursts of thousands of documents
	IdleTimeout         time.Duration
	ShutdownTimeout     time.Duration
}

type AuthSettings struct {
	Enabled     bool
	IssuerURI   string
	JWKSetURI   string
	ClockSkew   time.Duration
	BypassPaths []string
}

type LogSettings struct {
	Level string
}

type DatabaseSettings struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// BurstSettings controls how one input file is split and scheduled.
type BurstSettings struct {
	Key            string // repeating XML tag delimiting one invoice per node
	WorkerPoolSize int    // fixed worker count for batch tasks
}

// ValidationSettings points at the validation resources loaded once per
// engine instance.
type ValidationSettings struct {
	SchemaPath          string
	ProfilePaths        []string
	CodeMapPath         string
	DefaultInternalCode string
}

// ProcessingSettings gates the per-document pipeline steps.
type ProcessingSettings struct {
	Mode                   string // render | dual | exchange | exchange-attach | validate-only
	PersistenceEnabled     bool
	AttachmentsEnabled     bool
	AttachmentPath         string
	TransformServiceURL    string // HTTP XSL-T service applying the stylesheets
	StylesheetIntermediate string
	StylesheetExchange     string
	PDFTemplate            string
	AmountScaleFactor      int64 // pre-scaling factor applied before storing amounts
	ReportPath             string
}

// SubmissionSettings configures the external platform client and its
// token lifecycle.
type SubmissionSettings struct {
	Mode           string // api | off | simulated
	Policy         string // off | on | force
	BaseURL        string
	ImportEndpoint string
	LoginEndpoint  string
	Username       string
	Password       string
	TokenTTL       time.Duration
	APITimeout     time.Duration
	// Simulated client behavior when Mode=simulated
	SimulatedBehavior string // succeed | fail | alternate | random
}

// Load resolves the application configuration from environment variables.
// It first attempts to load variables from a .env file if it exists.
// Environment variables set in the system take precedence over .env file
// values.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := AppConfig{
		App: AppSettings{
			Name:        getEnv("APP_NAME", "ms_einvoice_batch"),
			Version:     getEnv("APP_VERSION", "0.1.0"),
			Environment: getEnv("APP_ENV", "local"),
		},
		HTTP: HTTPSettings{
			Port:                getEnvAsInt("APP_PORT", 8080),
			ReadTimeout:         getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:        getEnvAsDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
			WriteTimeoutMassive: getEnvAsDuration("HTTP_WRITE_TIMEOUT_MASSIVE", 15*time.Minute),
			IdleTimeout:         getEnvAsDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:     getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Auth: AuthSettings{
			Enabled:     getEnvAsBool("AUTH_ENABLED", false),
			IssuerURI:   strings.TrimSpace(os.Getenv("JWT_ISSUER_URI")),
			JWKSetURI:   strings.TrimSpace(os.Getenv("JWT_JWK_SET_URI")),
			ClockSkew:   getEnvAsDuration("AUTH_CLOCK_SKEW", 2*time.Minute),
			BypassPaths: getEnvAsCSV("AUTH_BYPASS_PATHS", []string{"/health"}),
		},
		Log: LogSettings{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseSettings{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Database:        getEnv("DB_NAME", "ms_einvoice_batch"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Burst: BurstSettings{
			Key:            getEnv("BURST_KEY", "Invoice"),
			WorkerPoolSize: getEnvAsInt("BURST_WORKER_POOL_SIZE", 8),
		},
		Validation: ValidationSettings{
			SchemaPath:          getEnv("VALIDATION_SCHEMA_PATH", "resources/schema.xml"),
			ProfilePaths:        getEnvAsCSV("VALIDATION_PROFILE_PATHS", nil),
			CodeMapPath:         getEnv("STATUS_CODE_MAP_PATH", "resources/status.map"),
			DefaultInternalCode: getEnv("STATUS_DEFAULT_INTERNAL_CODE", "00"),
		},
		Processing: ProcessingSettings{
			Mode:                   getEnv("PROCESSING_MODE", "exchange"),
			PersistenceEnabled:     getEnvAsBool("PROCESSING_PERSISTENCE_ENABLED", true),
			AttachmentsEnabled:     getEnvAsBool("PROCESSING_ATTACHMENTS_ENABLED", false),
			AttachmentPath:         strings.TrimSpace(os.Getenv("PROCESSING_ATTACHMENT_PATH")),
			TransformServiceURL:    getEnv("PROCESSING_XSL_SERVICE_URL", "http://localhost:8081"),
			StylesheetIntermediate: getEnv("PROCESSING_XSL_INTERMEDIATE", "intermediate.xsl"),
			StylesheetExchange:     getEnv("PROCESSING_XSL_EXCHANGE", "ubl.xsl"),
			PDFTemplate:            getEnv("PROCESSING_PDF_TEMPLATE", "invoice-default"),
			AmountScaleFactor:      int64(getEnvAsInt("PROCESSING_AMOUNT_SCALE_FACTOR", 100)),
			ReportPath:             strings.TrimSpace(os.Getenv("PROCESSING_REPORT_PATH")),
		},
		Submission: SubmissionSettings{
			Mode:              getEnv("SUBMISSION_MODE", "off"),
			Policy:            getEnv("SUBMISSION_POLICY", "off"),
			BaseURL:           strings.TrimSpace(os.Getenv("PA_BASE_URL")),
			ImportEndpoint:    getEnv("PA_IMPORT_ENDPOINT", "/api/v1/documents/import"),
			LoginEndpoint:     getEnv("PA_LOGIN_ENDPOINT", "/api/v1/login"),
			Username:          strings.TrimSpace(os.Getenv("PA_USERNAME")),
			Password:          strings.TrimSpace(os.Getenv("PA_PASSWORD")),
			TokenTTL:          getEnvAsDuration("PA_TOKEN_TTL", 20*time.Minute),
			APITimeout:        getEnvAsDuration("PA_API_TIMEOUT", 60*time.Second),
			SimulatedBehavior: getEnv("SUBMISSION_SIMULATED_BEHAVIOR", "succeed"),
		},
	}

	if cfg.Burst.WorkerPoolSize <= 0 {
		return cfg, errors.New("invalid config: BURST_WORKER_POOL_SIZE must be greater than 0")
	}

	switch cfg.Processing.Mode {
	case "render", "dual", "exchange", "exchange-attach", "validate-only":
	default:
		return cfg, fmt.Errorf("invalid config: unknown PROCESSING_MODE %q", cfg.Processing.Mode)
	}

	switch cfg.Submission.Policy {
	case "off", "on", "force":
	default:
		return cfg, fmt.Errorf("invalid config: unknown SUBMISSION_POLICY %q", cfg.Submission.Policy)
	}

	switch cfg.Submission.Mode {
	case "off", "api", "simulated":
	default:
		return cfg, fmt.Errorf("invalid config: unknown SUBMISSION_MODE %q", cfg.Submission.Mode)
	}

	if cfg.Submission.Mode == "api" {
		if cfg.Submission.BaseURL == "" {
			return cfg, errors.New("invalid config: PA_BASE_URL is required when SUBMISSION_MODE=api")
		}
		if cfg.Submission.Username == "" || cfg.Submission.Password == "" {
			return cfg, errors.New("invalid config: PA_USERNAME and PA_PASSWORD are required when SUBMISSION_MODE=api")
		}
	}

	if cfg.Auth.Enabled {
		if cfg.Auth.IssuerURI == "" {
			return cfg, errors.New("invalid config: JWT_ISSUER_URI is required when AUTH_ENABLED=true")
		}
		if cfg.Auth.JWKSetURI == "" {
			return cfg, errors.New("invalid config: JWT_JWK_SET_URI is required when AUTH_ENABLED=true")
		}
	}

	return cfg, nil
}

// Address returns the HTTP listen address in host:port form.
func (h HTTPSettings) Address() string {
	return fmt.Sprintf(":%d", h.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsCSV(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}
