package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port                 string
	Env                  string
	PublicURL            string
	CORSAllowOrigin      []string
	CookieSecure         bool
	JWTSecret            string
	DatabaseURL          string
	AnalysisAPIURL       string
	AnalysisAPITimeout   time.Duration
	ObjectStoreType      string
	LocalStoreDir        string
	AWSRegion            string
	S3Bucket             string
	S3Prefix             string
	SSEKMSKeyID          string
	GoogleClientID       string
	GoogleClientSecret   string
	GoogleRedirectURL    string
	FacebookClientID     string
	FacebookClientSecret string
	FacebookRedirectURL  string
	QueueURL             string
	WorkerConcurrency    int
	Timezone             string
	LogLevel             string
	LogFormat            string
}

var defaults = map[string]any{
	"port":                   "8080",
	"env":                    "dev",
	"public_url":             "http://localhost:8080",
	"cors_allow_origins":     "",
	"cookie_secure":          true,
	"jwt_secret":             "",
	"database_url":           "",
	"analysis_api_url":       "http://localhost:8000",
	"analysis_api_timeout":   "30s",
	"object_store":           "local",
	"local_store_dir":        "./data",
	"aws_region":             "",
	"s3_bucket":              "",
	"s3_prefix":              "",
	"sse_kms_key_id":         "",
	"google_client_id":       "",
	"google_client_secret":   "",
	"google_redirect_url":    "",
	"facebook_client_id":     "",
	"facebook_client_secret": "",
	"facebook_redirect_url":  "",
	"ra_sqs_queue_url":       "",
	"worker_concurrency":     4,
	"timezone":               "America/Sao_Paulo",
	"log_level":              "info",
	"log_format":             "json",
}

// New returns a viper instance bound to the process environment with defaults applied.
// Local .env files are loaded first; values already present in the environment win.
func New() *viper.Viper {
	loadEnvFiles(".env", "cmd/.env")

	v := viper.New()
	v.AutomaticEnv()
	for key, def := range defaults {
		v.SetDefault(key, def)
	}
	return v
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return FromViper(New())
}

// FromViper builds a Config from an already-populated viper instance. CLI flags
// bound into v take precedence over the environment.
func FromViper(v *viper.Viper) Config {
	env := normalizeEnv(v.GetString("env"))
	dbURL := strings.TrimSpace(v.GetString("database_url"))

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	timeout := v.GetDuration("analysis_api_timeout")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return Config{
		Port:                 v.GetString("port"),
		Env:                  env,
		PublicURL:            strings.TrimRight(v.GetString("public_url"), "/"),
		CORSAllowOrigin:      splitAndTrim(v.GetString("cors_allow_origins")),
		CookieSecure:         v.GetBool("cookie_secure"),
		JWTSecret:            v.GetString("jwt_secret"),
		DatabaseURL:          dbURL,
		AnalysisAPIURL:       strings.TrimRight(v.GetString("analysis_api_url"), "/"),
		AnalysisAPITimeout:   timeout,
		ObjectStoreType:      normalizeStoreType(v.GetString("object_store")),
		LocalStoreDir:        v.GetString("local_store_dir"),
		AWSRegion:            v.GetString("aws_region"),
		S3Bucket:             v.GetString("s3_bucket"),
		S3Prefix:             v.GetString("s3_prefix"),
		SSEKMSKeyID:          v.GetString("sse_kms_key_id"),
		GoogleClientID:       v.GetString("google_client_id"),
		GoogleClientSecret:   v.GetString("google_client_secret"),
		GoogleRedirectURL:    v.GetString("google_redirect_url"),
		FacebookClientID:     v.GetString("facebook_client_id"),
		FacebookClientSecret: v.GetString("facebook_client_secret"),
		FacebookRedirectURL:  v.GetString("facebook_redirect_url"),
		QueueURL:             strings.TrimSpace(v.GetString("ra_sqs_queue_url")),
		WorkerConcurrency:    max(1, v.GetInt("worker_concurrency")),
		Timezone:             v.GetString("timezone"),
		LogLevel:             strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		LogFormat:            strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
	}
}

// DevLike reports whether the environment tolerates in-memory fallbacks.
func (c Config) DevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

// Location resolves the display timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("config: unknown timezone %q, using UTC", c.Timezone)
		return time.UTC
	}
	return loc
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
