package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
)

const (
	StoreSQLite = "sqlite"
	StoreREST   = "rest"

	ImportModeCreate     = "create"
	ImportModeUpdateOnly = "update-only"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string
	LogLevel   string

	StoreBackend      string
	StoreAPIBaseURL   string
	StoreAPIKey       string
	StoreTable        string
	StoreRateLimitRPS int
	StoreTimeoutMs    int
	StorePageSize     int

	PhoneRegion       string
	CommitRoles       []string
	ImportMode        string
	IssuePreviewLimit int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerAutoExport   bool
	MailListenerAutoCommit   bool
	MailListenerActorRole    string
	MailDetectThreshold      float64
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, eris.Wrap(err, "resolve working directory")
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "posimport.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		StoreBackend:      strings.ToLower(getEnv("STORE_BACKEND", StoreSQLite)),
		StoreAPIBaseURL:   getEnv("STORE_API_BASE_URL", ""),
		StoreAPIKey:       getEnv("STORE_API_KEY", ""),
		StoreTable:        getEnv("STORE_TABLE", "customers"),
		StoreRateLimitRPS: getEnvInt("STORE_RATE_LIMIT_RPS", 5),
		StoreTimeoutMs:    getEnvInt("STORE_TIMEOUT_MS", 30000),
		StorePageSize:     getEnvInt("STORE_PAGE_SIZE", 1000),

		PhoneRegion:       strings.ToUpper(getEnv("PHONE_REGION", "TZ")),
		CommitRoles:       getEnvList("COMMIT_ROLES", []string{"admin"}),
		ImportMode:        strings.ToLower(getEnv("IMPORT_MODE", ImportModeCreate)),
		IssuePreviewLimit: getEnvInt("ISSUE_PREVIEW_LIMIT", 5),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "gmail"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 60),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
		MailListenerAutoCommit:   getEnvBool("MAIL_LISTENER_AUTO_COMMIT", false),
		MailListenerActorRole:    getEnv("MAIL_LISTENER_ACTOR_ROLE", "admin"),
		MailDetectThreshold:      getEnvFloat("MAIL_DETECT_THRESHOLD", 0.45),
	}

	if cfg.ImportMode != ImportModeCreate && cfg.ImportMode != ImportModeUpdateOnly {
		return Config{}, eris.Errorf("unsupported IMPORT_MODE: %s", cfg.ImportMode)
	}
	if cfg.StoreBackend != StoreSQLite && cfg.StoreBackend != StoreREST {
		return Config{}, eris.Errorf("unsupported STORE_BACKEND: %s", cfg.StoreBackend)
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return eris.Errorf("missing required env var: %s", name)
	}
	return nil
}

func (c Config) CreateMissing() bool {
	return c.ImportMode != ImportModeUpdateOnly
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := strings.TrimSpace(getEnv(key, ""))
	if value == "" {
		return fallback
	}
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
