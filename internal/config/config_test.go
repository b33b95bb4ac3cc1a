package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("ADMIN_PASSWORD", "")

	cfg := Load()
	assert.Empty(t, cfg.AuthSecret)
	assert.Empty(t, cfg.AdminPassword)
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "TAX_RATE", "LOCK_TIMEOUT_MS", "CHECKOUT_MAX_ATTEMPTS", "REPORT_CACHE_TTL_SECONDS", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, "0.08", cfg.TaxRate)
	assert.Equal(t, 3*time.Second, cfg.LockTimeout())
	assert.Equal(t, 3, cfg.CheckoutMaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.ReportCacheTTL())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("LOCK_TIMEOUT_MS", "-5")
	t.Setenv("CHECKOUT_MAX_ATTEMPTS", "many")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "0")

	cfg := Load()
	assert.Equal(t, 3000, cfg.LockTimeoutMS)
	assert.Equal(t, 3, cfg.CheckoutMaxAttempts)
	assert.Equal(t, 480*time.Minute, cfg.AccessTokenTTL())
}

func TestLoadDotEnvKeepsExistingVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TAX_RATE=0.16\nKAFKA_AUDIT_TOPIC=from-file\n"), 0o600))
	t.Setenv("TAX_RATE", "0.05")
	t.Setenv("KAFKA_AUDIT_TOPIC", "")
	require.NoError(t, os.Unsetenv("KAFKA_AUDIT_TOPIC"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "0.05", os.Getenv("TAX_RATE"))
	assert.Equal(t, "from-file", os.Getenv("KAFKA_AUDIT_TOPIC"))
}

func TestLoadDotEnvIgnoresMissingFile(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}
