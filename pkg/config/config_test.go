package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("JWT_SECRET", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.Addr)
	assert.True(t, cfg.DBAutoMigrate)
	assert.Equal(t, 24*time.Hour, cfg.AccessTTL)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxUploadBytes)
	assert.Equal(t, "eng", cfg.OCR.Language)
	assert.Equal(t, 2, cfg.OCR.SharpenPasses)
	assert.Equal(t, 30*time.Second, cfg.OCR.Timeout)
	assert.True(t, cfg.UsesDevSecret())
	assert.Error(t, cfg.RequireDB())
}

func TestLoadFileAndEnvironment(t *testing.T) {
	p := filepath.Join(t.TempDir(), "reliclog.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
addr: ":9000"
log_level: debug
ocr:
  language: jpn
  sharpen_passes: 1
  timeout: 5s
`), 0o644))

	t.Setenv("DB_DSN", "postgres://localhost/relics")
	t.Setenv("RELICLOG_JWT_SECRET", "s3cret")
	t.Setenv("RELICLOG_OCR_SHARPEN_PASSES", "3")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "postgres://localhost/relics", cfg.DBDSN)
	assert.NoError(t, cfg.RequireDB())
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.False(t, cfg.UsesDevSecret())

	opts := cfg.OCROptions()
	assert.Equal(t, "jpn", opts.Language)
	assert.Equal(t, 3, opts.SharpenPasses, "environment wins over the file")
	assert.Equal(t, 5*time.Second, opts.Timeout)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestLoadDotEnvKeepsExistingVariables(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte("RELICLOG_TEST_A=from-file\nRELICLOG_TEST_B=from-file\n"), 0o644))
	t.Setenv("RELICLOG_TEST_A", "from-env")
	t.Setenv("RELICLOG_TEST_B", "")
	os.Unsetenv("RELICLOG_TEST_B")

	loadDotEnv(p)
	assert.Equal(t, "from-env", os.Getenv("RELICLOG_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("RELICLOG_TEST_B"))
}

func TestNewLookupDefaults(t *testing.T) {
	l, err := Config{}.NewLookup()
	require.NoError(t, err)
	assert.Positive(t, l.Len())
}
