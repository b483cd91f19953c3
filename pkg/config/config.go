package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the steward backend.
type Config struct {
	Port string

	// Postgres
	DatabaseURL string

	// IMAP transport
	IMAPHost     string
	IMAPPort     int
	IMAPUsername string
	IMAPPassword string
	IMAPMailbox  string
	IMAPArchive  string
	IMAPTimeout  time.Duration
	IMAPRetries  int

	// Ollama classifier
	OllamaBaseURL string
	OllamaModel   string
	OllamaTimeout time.Duration

	// Planner behaviour
	PollInterval         time.Duration
	SessionBucket        time.Duration
	Timezone             string
	ReviewFolder         string
	HintOverrideMin      float64 // classifier confidence needed to beat a stored hint
	FolderCreateMin      float64 // confidence needed before a new folder may be created
	FallbackConfidence   float64 // fixed confidence assigned by the rule fallback
	DefaultEventDuration time.Duration
	UndoTokenTTL         time.Duration

	// Notifier (Home Assistant style webhook)
	NotifyBaseURL string
	NotifyToken   string
	NotifyTarget  string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "host=localhost user=steward password=steward dbname=steward port=5432 sslmode=disable"),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPUsername: getEnv("IMAP_USERNAME", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMailbox:  getEnv("IMAP_MAILBOX", "INBOX"),
		IMAPArchive:  getEnv("IMAP_ARCHIVE", "Archive"),
		IMAPTimeout:  getEnvDuration("IMAP_TIMEOUT", 30*time.Second),
		IMAPRetries:  getEnvInt("IMAP_RETRIES", 3),

		OllamaBaseURL: getEnv("OLLAMA_ENDPOINT", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3"),
		OllamaTimeout: getEnvDuration("OLLAMA_TIMEOUT", 60*time.Second),

		PollInterval:         getEnvDuration("POLL_INTERVAL", 2*time.Minute),
		SessionBucket:        getEnvDuration("SESSION_BUCKET", 15*time.Minute),
		Timezone:             getEnv("TIMEZONE", "America/Vancouver"),
		ReviewFolder:         getEnv("REVIEW_FOLDER", "Misc/Review"),
		HintOverrideMin:      getEnvFloat("HINT_OVERRIDE_MIN", 0.85),
		FolderCreateMin:      getEnvFloat("FOLDER_CREATE_MIN", 0.6),
		FallbackConfidence:   getEnvFloat("FALLBACK_CONFIDENCE", 0.35),
		DefaultEventDuration: getEnvDuration("DEFAULT_EVENT_DURATION", time.Hour),
		UndoTokenTTL:         getEnvDuration("UNDO_TOKEN_TTL", 24*time.Hour),

		NotifyBaseURL: getEnv("NOTIFY_BASE_URL", ""),
		NotifyToken:   getEnv("NOTIFY_TOKEN", ""),
		NotifyTarget:  getEnv("NOTIFY_TARGET", "notify.mobile_app"),
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("[Config] Invalid TIMEZONE %q, using UTC: %v", c.Timezone, err)
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
