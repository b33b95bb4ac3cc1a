package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	SQLitePath            string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	ReportCacheTTLSeconds int
	KafkaBrokers          string
	KafkaAuditTopic       string
	TaxRate               string
	LockTimeoutMS         int
	CheckoutMaxAttempts   int
	AuthSecret            string
	AccessTokenTTLMinutes int
	AdminUsername         string
	AdminPassword         string
	LogLevel              string
	LogFormat             string
}

// LoadDotEnv reads an optional .env file; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		SQLitePath:            os.Getenv("SQLITE_PATH"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		ReportCacheTTLSeconds: positiveInt("REPORT_CACHE_TTL_SECONDS", 600),
		KafkaBrokers:          strings.TrimSpace(os.Getenv("KAFKA_BROKERS")),
		KafkaAuditTopic:       getEnv("KAFKA_AUDIT_TOPIC", "pos.audit"),
		TaxRate:               getEnv("TAX_RATE", "0.08"),
		LockTimeoutMS:         positiveInt("LOCK_TIMEOUT_MS", 3000),
		CheckoutMaxAttempts:   positiveInt("CHECKOUT_MAX_ATTEMPTS", 3),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: positiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		AdminUsername:         getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:         os.Getenv("ADMIN_PASSWORD"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMS) * time.Millisecond
}

func (c Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func positiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
