package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/charlesng35/ftpstore/internal/remote"
	"github.com/charlesng35/ftpstore/internal/storage"
	"github.com/charlesng35/ftpstore/internal/thumbnail"
	apperrors "github.com/charlesng35/ftpstore/pkg/errors"
	"github.com/charlesng35/ftpstore/pkg/validator"
)

// EnvPrefix prefixes every environment override, e.g. FTPSTORE_STORAGE_FTP_HOST.
const EnvPrefix = "FTPSTORE"

// Config represents the runtime configuration of the ftpstore tool.
type Config struct {
	LogLevel   string           `mapstructure:"log_level"`
	LogFormat  string           `mapstructure:"log_format" validate:"omitempty,oneof=json console"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// StorageConfig configures the FTP backend and its collaborators.
type StorageConfig struct {
	FTP       FTPConfig `mapstructure:"ftp"`
	PublicURL string    `mapstructure:"public_url" validate:"omitempty,url"`
	PoolSize  int       `mapstructure:"pool_size" validate:"min=1,max=64"`
	// Thumbnails maps size keys to "WxH" (fit) or "WxH^" (fill and crop) specs.
	// Viper lowercases the keys.
	Thumbnails  map[string]string `mapstructure:"thumbnails"`
	TempDir     string            `mapstructure:"temp_dir"`
	JPEGQuality int               `mapstructure:"jpeg_quality" validate:"min=0,max=100"`
	// ThumbnailsMaxPixels refuses to decode sources declaring more pixels.
	ThumbnailsMaxPixels int64 `mapstructure:"thumbnails_max_pixels" validate:"gte=0"`
}

// FTPConfig holds the connection settings read once at startup.
type FTPConfig struct {
	Host                  string        `mapstructure:"host"`
	Port                  int           `mapstructure:"port" validate:"min=1,max=65535"`
	Username              string        `mapstructure:"username"`
	Password              string        `mapstructure:"password"`
	SSL                   bool          `mapstructure:"ssl"`
	TLSInsecureSkipVerify bool          `mapstructure:"tls_insecure_skip_verify"`
	Passive               bool          `mapstructure:"passive"`
	Root                  string        `mapstructure:"root"`
	Timeout               time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// MonitoringConfig configures the serve command.
type MonitoringConfig struct {
	Address string `mapstructure:"address" validate:"required"`
	// Keepalive is a cron spec for the NOOP job; empty disables it.
	Keepalive    string        `mapstructure:"keepalive"`
	CheckTimeout time.Duration `mapstructure:"check_timeout" validate:"gte=0"`
}

// LoadConfig searches ./config, the working directory and paths for config.yaml. A
// missing file is not an error; defaults and FTPSTORE_* variables still apply.
func LoadConfig(paths ...string) (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	return load(v, true)
}

// LoadConfigFile reads exactly the given file, which must exist.
func LoadConfigFile(file string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(file)
	return load(v, false)
}

func newViper() *viper.Viper {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Map keys are not known up front, so the whole section is bound explicitly.
	_ = v.BindEnv("storage.thumbnails")
	return v
}

func load(v *viper.Viper, optional bool) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !optional || !errors.As(err, &notFound) {
			return nil, apperrors.ErrConfiguration.WithMessage("config: read file").WithInternal(err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, apperrors.ErrConfiguration.WithMessage("config: unmarshal").WithInternal(err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("storage.ftp.host", "")
	v.SetDefault("storage.ftp.port", remote.DefaultPort)
	v.SetDefault("storage.ftp.username", "anonymous")
	v.SetDefault("storage.ftp.password", "")
	v.SetDefault("storage.ftp.ssl", false)
	v.SetDefault("storage.ftp.tls_insecure_skip_verify", false)
	v.SetDefault("storage.ftp.passive", true)
	v.SetDefault("storage.ftp.root", "")
	v.SetDefault("storage.ftp.timeout", "30s")

	v.SetDefault("storage.public_url", "")
	v.SetDefault("storage.pool_size", 1)
	v.SetDefault("storage.temp_dir", "")
	v.SetDefault("storage.jpeg_quality", 85)
	v.SetDefault("storage.thumbnails_max_pixels", thumbnail.DefaultMaxPixels)

	v.SetDefault("monitoring.address", ":9464")
	v.SetDefault("monitoring.keepalive", "@every 1m")
	v.SetDefault("monitoring.check_timeout", "5s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToSizeMapHookFunc(),
		)
	}
}

// stringToSizeMapHookFunc lets FTPSTORE_STORAGE_THUMBNAILS carry "small=100x100,large=800x600".
func stringToSizeMapHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(map[string]string{}) {
			return data, nil
		}
		raw := strings.TrimSpace(data.(string))
		out := map[string]string{}
		if raw == "" {
			return out, nil
		}
		for _, pair := range strings.Split(raw, ",") {
			key, spec, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, fmt.Errorf("thumbnail size %q: want key=WxH", strings.TrimSpace(pair))
			}
			out[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(spec)
		}
		return out, nil
	}
}

// Validate checks field constraints and that the thumbnail sizes and public URL parse.
func (c *Config) Validate() error {
	if err := validator.ValidateStruct(c); err != nil {
		return apperrors.ErrConfiguration.WithMessage("config: invalid").WithInternal(err)
	}
	if _, err := c.Storage.Sizes(); err != nil {
		return err
	}
	if _, err := c.Storage.URLBuilder(); err != nil {
		return err
	}
	return nil
}

// Remote converts the FTP section into session settings.
func (c FTPConfig) Remote() remote.Config {
	return remote.Config{
		Host:               c.Host,
		Port:               c.Port,
		Username:           c.Username,
		Password:           c.Password,
		UseTLS:             c.SSL,
		InsecureSkipVerify: c.TLSInsecureSkipVerify,
		Passive:            c.Passive,
		Timeout:            c.Timeout,
	}
}

// Backend returns the adapter configuration.
func (c StorageConfig) Backend() storage.Config {
	return storage.Config{Remote: c.FTP.Remote(), Root: c.FTP.Root}
}

// Sizes parses the configured thumbnail sizes.
func (c StorageConfig) Sizes() (thumbnail.Sizes, error) {
	sizes, err := thumbnail.ParseSizes(c.Thumbnails)
	if err != nil {
		return nil, apperrors.ErrConfiguration.WithMessage("config: storage.thumbnails").WithInternal(err)
	}
	return sizes, nil
}

// URLBuilder returns the public URL helper, or nil when storage.public_url is unset.
func (c StorageConfig) URLBuilder() (storage.URLBuilder, error) {
	if strings.TrimSpace(c.PublicURL) == "" {
		return nil, nil
	}
	base, err := storage.NewBaseURL(c.PublicURL)
	if err != nil {
		return nil, apperrors.ErrConfiguration.WithMessage("config: storage.public_url").WithInternal(err)
	}
	return base, nil
}

// Thumbnailer returns the default resizer configured by the storage section.
func (c StorageConfig) Thumbnailer() *thumbnail.Resizer {
	r := thumbnail.NewResizer(c.TempDir, c.JPEGQuality)
	r.MaxPixels = c.ThumbnailsMaxPixels
	return r
}

// Options builds the adapter options implied by the configuration.
func (c StorageConfig) Options() ([]storage.Option, error) {
	urls, err := c.URLBuilder()
	if err != nil {
		return nil, err
	}
	opts := []storage.Option{
		storage.WithThumbnailer(c.Thumbnailer()),
	}
	if urls != nil {
		opts = append(opts, storage.WithURLBuilder(urls))
	}
	return opts, nil
}
