package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains runtime configuration values.
type Config struct {
	Environment       string
	HTTPPort          string
	DatabaseURL       string
	BaseURL           string
	ServiceName       string
	AccessTokenTTL    time.Duration
	AuthCodeTTL       time.Duration
	CredentialTTL     time.Duration
	ClientSecretBytes int
	RateLimitRPM      int
	QuendooAPIKey     string
	QuendooAPIBaseURL string
	EmailAPIBaseURL   string
	VoiceAPIBaseURL   string
	VoiceAPIBearer    string
	TelemetryEndpoint string
	TelemetryInsecure bool

	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
// DATABASE_URL is optional: without it the server runs on in-memory stores,
// which is fine for local agent sessions but loses state on restart.
func Load() (Config, error) {
	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		BaseURL:              getEnv("BASE_URL", "http://localhost:8080"),
		ServiceName:          getEnv("SERVICE_NAME", "quendoo-mcp"),
		AccessTokenTTL:       getDuration("ACCESS_TOKEN_TTL", 30*24*time.Hour),
		AuthCodeTTL:          getDuration("AUTH_CODE_TTL", 10*time.Minute),
		CredentialTTL:        getDuration("CREDENTIAL_CACHE_TTL", 24*time.Hour),
		ClientSecretBytes:    getInt("CLIENT_SECRET_BYTES", 48),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		QuendooAPIKey:        os.Getenv("QUENDOO_API_KEY"),
		QuendooAPIBaseURL:    getEnv("QUENDOO_API_BASE_URL", "https://api.quendoo.com/api_pms"),
		EmailAPIBaseURL:      getEnv("EMAIL_API_BASE_URL", "https://api.quendoo.com/email"),
		VoiceAPIBaseURL:      getEnv("VOICE_API_BASE_URL", "https://api.quendoo.com/automation"),
		VoiceAPIBearer:       os.Getenv("QUENDOO_AUTOMATION_BEARER"),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "X-Tenant-ID"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.BaseURL == "" {
		return Config{}, fmt.Errorf("BASE_URL is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.ClientSecretBytes < 32 {
		cfg.ClientSecretBytes = 32
	}
	if cfg.AuthCodeTTL <= 0 {
		cfg.AuthCodeTTL = 10 * time.Minute
	}
	if cfg.CredentialTTL <= 0 {
		cfg.CredentialTTL = 24 * time.Hour
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
