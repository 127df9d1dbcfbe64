package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	for key, def := range defaults {
		v.SetDefault(key, def)
	}

	cfg := FromViper(v)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "dev", cfg.Env)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, "local", cfg.ObjectStoreType)
	assert.Equal(t, 30*time.Second, cfg.AnalysisAPITimeout)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Empty(t, cfg.CORSAllowOrigin)
	assert.True(t, cfg.DevLike())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("PORT", "9090")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("CORS_ALLOW_ORIGINS", " http://a.test , ,http://b.test")
	t.Setenv("OBJECT_STORE", "S3")
	t.Setenv("ANALYSIS_API_URL", "https://api.example.test/")
	t.Setenv("DATABASE_URL", "postgres://x")

	cfg := Load()

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowOrigin)
	assert.Equal(t, "s3", cfg.ObjectStoreType)
	assert.Equal(t, "https://api.example.test", cfg.AnalysisAPIURL)
	assert.False(t, cfg.DevLike())
}

func TestLoadEnvFilesKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ANALYZEIT_TEST_A=from-file\nANALYZEIT_TEST_B=\"quoted\"\n"), 0o600))

	t.Setenv("ANALYZEIT_TEST_A", "from-env")
	t.Setenv("ANALYZEIT_TEST_B", "")
	os.Unsetenv("ANALYZEIT_TEST_B")

	loadEnvFiles(path, filepath.Join(dir, "missing.env"))

	assert.Equal(t, "from-env", os.Getenv("ANALYZEIT_TEST_A"))
	assert.Equal(t, "quoted", os.Getenv("ANALYZEIT_TEST_B"))
}

func TestLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Config{}.Location())
	assert.Equal(t, time.UTC, Config{Timezone: "Nowhere/Invalid"}.Location())
}
