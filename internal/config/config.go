package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env string

	// Client
	APIBaseURL  string
	HTTPTimeout time.Duration

	// Local cache
	CacheBackend    string
	CacheDir        string
	CacheSQLitePath string
	RedisURL        string

	// Server
	Port      string
	DBPath    string
	JWTSecret string
	SeedUsers []string

	// LLM
	LLMBaseURL string
	LLMModel   string
	LLMToken   string

	// Keycloak
	KeycloakURL         string
	KeycloakRealm       string
	KeycloakClientID    string
	KeycloakRedirectURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		Env:                 getEnvOrDefault("ENV", "production"),
		APIBaseURL:          getEnvOrDefault("API_BASE_URL", "http://localhost:3000"),
		HTTPTimeout:         getEnvAsDurationOrDefault("HTTP_TIMEOUT", 30*time.Second),
		CacheBackend:        getEnvOrDefault("CACHE_BACKEND", "file"),
		CacheDir:            getEnvOrDefault("CACHE_DIR", defaultCacheDir()),
		CacheSQLitePath:     getEnvOrDefault("CACHE_SQLITE_PATH", "aip-chat-cache.db"),
		RedisURL:            getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		Port:                getEnvOrDefault("PORT", "3000"),
		DBPath:              getEnvOrDefault("DB_PATH", "aip-chat.db"),
		JWTSecret:           getEnvOrDefault("JWT_SECRET", "dev-secret"),
		SeedUsers:           getEnvAsListOrDefault("SEED_USERS", []string{"demo@aipgenius.com"}),
		LLMBaseURL:          getEnvOrDefault("LLM_BASE_URL", ""),
		LLMModel:            getEnvOrDefault("LLM_MODEL", "llama3.1:8b"),
		LLMToken:            getEnvOrDefault("OPENAI_API_KEY", "fake"),
		KeycloakURL:         getEnvOrDefault("KEYCLOAK_URL", "http://localhost:8080"),
		KeycloakRealm:       getEnvOrDefault("KEYCLOAK_REALM", "my-app-realm"),
		KeycloakClientID:    getEnvOrDefault("KEYCLOAK_CLIENT_ID", "aip-genius-app"),
		KeycloakRedirectURL: getEnvOrDefault("KEYCLOAK_REDIRECT_URL", "http://localhost:8765/callback"),
	}
}

// IsDevelopment reports whether verbose development logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".aip-chat"
	}
	return dir + string(os.PathSeparator) + "aip-chat"
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvAsDurationOrDefault accepts Go durations ("30s") or a bare number of seconds.
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n := getEnvAsIntOrDefault(key, -1); n >= 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

// getEnvAsListOrDefault splits a comma-separated value, dropping blanks.
func getEnvAsListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
