package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/ftpstore/internal/thumbnail"
	apperrors "github.com/charlesng35/ftpstore/pkg/errors"
	"github.com/charlesng35/ftpstore/pkg/validator"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "console", cfg.LogFormat)

	ftp := cfg.Storage.FTP
	require.Equal(t, "ftp.example.com", ftp.Host)
	require.Equal(t, 2121, ftp.Port)
	require.Equal(t, "uploader", ftp.Username)
	require.Equal(t, "s3cret", ftp.Password)
	require.True(t, ftp.SSL)
	require.False(t, ftp.Passive)
	require.Equal(t, "/srv/uploads", ftp.Root)
	require.Equal(t, 10*time.Second, ftp.Timeout)

	require.Equal(t, "https://cdn.example.com/media", cfg.Storage.PublicURL)
	require.Equal(t, 3, cfg.Storage.PoolSize)
	require.Equal(t, "/var/tmp/ftpstore", cfg.Storage.TempDir)
	require.Equal(t, map[string]string{"small": "150x150", "cover": "800x400^"}, cfg.Storage.Thumbnails)

	require.Equal(t, "127.0.0.1:9000", cfg.Monitoring.Address)
	require.Equal(t, "@every 30s", cfg.Monitoring.Keepalive)
	require.Equal(t, 5*time.Second, cfg.Monitoring.CheckTimeout)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
	require.Empty(t, cfg.Storage.FTP.Host)
	require.Equal(t, 21, cfg.Storage.FTP.Port)
	require.Equal(t, "anonymous", cfg.Storage.FTP.Username)
	require.True(t, cfg.Storage.FTP.Passive)
	require.False(t, cfg.Storage.FTP.SSL)
	require.Equal(t, 30*time.Second, cfg.Storage.FTP.Timeout)
	require.Equal(t, 1, cfg.Storage.PoolSize)
	require.Equal(t, 85, cfg.Storage.JPEGQuality)
	require.Equal(t, thumbnail.DefaultMaxPixels, cfg.Storage.ThumbnailsMaxPixels)
	require.Empty(t, cfg.Storage.Thumbnails)
	require.Equal(t, ":9464", cfg.Monitoring.Address)
	require.Equal(t, "@every 1m", cfg.Monitoring.Keepalive)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("FTPSTORE_STORAGE_FTP_HOST", "env.example.com")
	t.Setenv("FTPSTORE_STORAGE_FTP_PASSIVE", "true")
	t.Setenv("FTPSTORE_STORAGE_POOL_SIZE", "5")
	t.Setenv("FTPSTORE_STORAGE_THUMBNAILS_MAX_PIXELS", "1000000")
	t.Setenv("FTPSTORE_STORAGE_THUMBNAILS", "small=100x100, Large=800x600^")

	cfg, err := LoadConfigFile(filepath.Join("testdata", "config.yaml"))
	require.NoError(t, err)

	require.Equal(t, "env.example.com", cfg.Storage.FTP.Host)
	require.True(t, cfg.Storage.FTP.Passive)
	require.Equal(t, 5, cfg.Storage.PoolSize)
	require.Equal(t, int64(1000000), cfg.Storage.ThumbnailsMaxPixels)
	require.Equal(t, int64(1000000), cfg.Storage.Thumbnailer().MaxPixels)
	require.Equal(t, map[string]string{"small": "100x100", "large": "800x600^"}, cfg.Storage.Thumbnails)
	require.Equal(t, "uploader", cfg.Storage.FTP.Username)
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func validConfig() Config {
	return Config{
		LogFormat: "json",
		Storage: StorageConfig{
			FTP:        FTPConfig{Host: "ftp.example.com", Port: 21, Passive: true},
			PoolSize:   1,
			Thumbnails: map[string]string{"thumb": "64x64"},
		},
		Monitoring: MonitoringConfig{Address: ":9464"},
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Storage.PoolSize = 0
	cfg.Storage.FTP.Port = 70000
	err := cfg.Validate()
	require.ErrorIs(t, err, apperrors.ErrConfiguration)

	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.ElementsMatch(t, []string{"storage.ftp.port", "storage.pool_size"}, verrs.Fields())

	cfg = validConfig()
	cfg.Storage.Thumbnails = map[string]string{"thumb": "huge"}
	require.ErrorIs(t, cfg.Validate(), apperrors.ErrConfiguration)

	cfg = validConfig()
	cfg.Storage.PublicURL = "ftp://files.example.com"
	require.ErrorIs(t, cfg.Validate(), apperrors.ErrConfiguration)

	cfg = validConfig()
	cfg.LogFormat = "xml"
	require.ErrorIs(t, cfg.Validate(), apperrors.ErrConfiguration)
}

func TestStorageConfigConversions(t *testing.T) {
	cfg, err := LoadConfig("testdata")
	require.NoError(t, err)

	backend := cfg.Storage.Backend()
	require.Equal(t, "/srv/uploads", backend.Root)
	require.Equal(t, "ftp.example.com:2121", backend.Remote.Address())
	require.True(t, backend.Remote.UseTLS)
	require.False(t, backend.Remote.Passive)
	require.Equal(t, 10*time.Second, backend.Remote.EffectiveTimeout())

	sizes, err := cfg.Storage.Sizes()
	require.NoError(t, err)
	require.Equal(t, thumbnail.Size{Width: 150, Height: 150}, sizes["small"])
	require.Equal(t, thumbnail.Size{Width: 800, Height: 400, Crop: true}, sizes["cover"])

	urls, err := cfg.Storage.URLBuilder()
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/media/a/b.png", urls.PublicURL("a/b.png"))

	opts, err := cfg.Storage.Options()
	require.NoError(t, err)
	require.Len(t, opts, 2)

	cfg.Storage.PublicURL = ""
	urls, err = cfg.Storage.URLBuilder()
	require.NoError(t, err)
	require.Nil(t, urls)
}
