package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bassista/go_gallery/internal/logger"
)

const (
	BackendJSON     = "json"
	BackendPostgres = "postgres"
)

// Config is the typed application configuration.
type Config struct {
	Server ServerConfig
	Data   DataConfig
	Cache  CacheConfig
	Auth   AuthConfig
	Media  MediaConfig
	Misc   MiscConfig
}

type ServerConfig struct {
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutDownTimeout    time.Duration
	RequestTimeout     time.Duration
	CORSAllowedOrigins string
}

// DataConfig selects the persistence backend.
type DataConfig struct {
	Backend         string
	FilePath        string
	PersistInterval time.Duration
	// WriteThrough saves every mutation of the json backend before it is acknowledged.
	WriteThrough bool
	PostgresDSN  string
	PageSize     int
}

// CacheConfig drives the tag-addressed read cache and the session table.
type CacheConfig struct {
	MaxEntries    int
	MaxSessions   int
	FeedShared    bool
	NotifyChannel string
}

type AuthConfig struct {
	JWTKey   string
	TokenTTL time.Duration
}

// MediaConfig points at S3-compatible object storage. Uploads are disabled when Endpoint is empty.
type MediaConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	MaxBytes  int64
}

type MiscConfig struct {
	GinMode   string
	LogLevel  string
	LogFormat string
}

// LoadConfig reads config.yaml (from ./config or the working dir), .env and GO_GALLERY_* env vars.
func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables always win
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("GO_GALLERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
		logger.WithComponent("config").Info("no config file found, using defaults and env vars")
	}

	cfg := fromViper(v)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.request_timeout", 2*time.Second)
	v.SetDefault("server.cors_allowed_origins", "*")

	v.SetDefault("data.backend", BackendJSON)
	v.SetDefault("data.file_path", "./config/data/gallery.json")
	v.SetDefault("data.persist_interval", 5*time.Second)
	v.SetDefault("data.write_through", true)
	v.SetDefault("data.postgres_dsn", "")
	v.SetDefault("data.page_size", 24)

	v.SetDefault("cache.max_entries", 4096)
	v.SetDefault("cache.max_sessions", 10000)
	v.SetDefault("cache.feed_shared", true)
	v.SetDefault("cache.notify_channel", "cache_invalidation")

	v.SetDefault("auth.jwt_key", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("media.endpoint", "")
	v.SetDefault("media.region", "us-east-1")
	v.SetDefault("media.bucket", "photos")
	v.SetDefault("media.use_ssl", false)
	v.SetDefault("media.max_bytes", int64(10<<20))

	v.SetDefault("misc.gin_mode", "release")
	v.SetDefault("misc.log_level", "info")
	v.SetDefault("misc.log_format", "text")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:               v.GetInt("server.port"),
			ReadTimeout:        v.GetDuration("server.read_timeout"),
			WriteTimeout:       v.GetDuration("server.write_timeout"),
			IdleTimeout:        v.GetDuration("server.idle_timeout"),
			ShutDownTimeout:    v.GetDuration("server.shutdown_timeout"),
			RequestTimeout:     v.GetDuration("server.request_timeout"),
			CORSAllowedOrigins: v.GetString("server.cors_allowed_origins"),
		},
		Data: DataConfig{
			Backend:         strings.ToLower(v.GetString("data.backend")),
			FilePath:        v.GetString("data.file_path"),
			PersistInterval: v.GetDuration("data.persist_interval"),
			WriteThrough:    v.GetBool("data.write_through"),
			PostgresDSN:     v.GetString("data.postgres_dsn"),
			PageSize:        v.GetInt("data.page_size"),
		},
		Cache: CacheConfig{
			MaxEntries:    v.GetInt("cache.max_entries"),
			MaxSessions:   v.GetInt("cache.max_sessions"),
			FeedShared:    v.GetBool("cache.feed_shared"),
			NotifyChannel: v.GetString("cache.notify_channel"),
		},
		Auth: AuthConfig{
			JWTKey:   v.GetString("auth.jwt_key"),
			TokenTTL: v.GetDuration("auth.token_ttl"),
		},
		Media: MediaConfig{
			Endpoint:  v.GetString("media.endpoint"),
			Region:    v.GetString("media.region"),
			AccessKey: v.GetString("media.access_key"),
			SecretKey: v.GetString("media.secret_key"),
			Bucket:    v.GetString("media.bucket"),
			UseSSL:    v.GetBool("media.use_ssl"),
			MaxBytes:  v.GetInt64("media.max_bytes"),
		},
		Misc: MiscConfig{
			GinMode:   v.GetString("misc.gin_mode"),
			LogLevel:  v.GetString("misc.log_level"),
			LogFormat: v.GetString("misc.log_format"),
		},
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		return errors.New("server read/write/idle timeouts must be positive")
	}
	if c.Server.ShutDownTimeout <= 0 {
		return errors.New("server shutdown timeout must be positive")
	}
	if c.Server.RequestTimeout < 0 {
		return errors.New("server request timeout must not be negative")
	}

	switch c.Data.Backend {
	case BackendJSON:
		if c.Data.FilePath == "" {
			return errors.New("data.file_path is required for the json backend")
		}
		if c.Data.PersistInterval <= 0 {
			return errors.New("data.persist_interval must be positive")
		}
	case BackendPostgres:
		if c.Data.PostgresDSN == "" {
			return errors.New("data.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown data backend: %s (supported: %s, %s)", c.Data.Backend, BackendJSON, BackendPostgres)
	}
	if c.Data.PageSize <= 0 {
		return errors.New("data.page_size must be positive")
	}

	if c.Cache.MaxEntries <= 0 {
		return errors.New("cache.max_entries must be positive")
	}
	if c.Cache.MaxSessions <= 0 {
		return errors.New("cache.max_sessions must be positive")
	}
	if c.Data.Backend == BackendPostgres && c.Cache.NotifyChannel == "" {
		return errors.New("cache.notify_channel is required for the postgres backend")
	}

	if c.Auth.JWTKey == "" {
		return errors.New("auth.jwt_key is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}

	if c.Media.Endpoint != "" && c.Media.Bucket == "" {
		return errors.New("media.bucket is required when media.endpoint is set")
	}
	return nil
}
