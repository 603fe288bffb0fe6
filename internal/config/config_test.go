package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"HTTP_ADDR", "IMAGE_SIZE", "DB_DRIVER", "REDIS_ADDR", "CACHE_TTL", "UPLOAD_DIR"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":5000", cfg.HTTPAddr)
	require.Equal(t, 224, cfg.ImageSize)
	require.Equal(t, "sqlite", cfg.DBDriver)
	require.Equal(t, "uploads", cfg.UploadDir)
	require.Empty(t, cfg.RedisAddr)
	require.Equal(t, 5*time.Minute, cfg.CacheTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("IMAGE_SIZE", "160")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTPAddr)
	require.Equal(t, 160, cfg.ImageSize)
	require.Equal(t, "postgres", cfg.DBDriver)
	require.Equal(t, 90*time.Second, cfg.CacheTTL)
	require.EqualValues(t, 1024, cfg.MaxUploadBytes)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateRejectsNonPositiveImageSize(t *testing.T) {
	cfg := &Config{ImageSize: 0, MaxUploadBytes: 1, DBDriver: "sqlite", ModelPath: "m.onnx"}
	require.Error(t, cfg.Validate())
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("IMAGE_SIZE", "abc")
	t.Setenv("CACHE_TTL", "five minutes")
	t.Setenv("MAX_UPLOAD_BYTES", "10MB")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "IMAGE_SIZE")
	require.Contains(t, err.Error(), "CACHE_TTL")
	require.Contains(t, err.Error(), "MAX_UPLOAD_BYTES")
}
