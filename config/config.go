package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/riders-api/riders/database"
	ridershttp "github.com/riders-api/riders/http"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for riders.
type Config struct {
	Env      string                `mapstructure:"env"`
	Server   ServerConfig          `mapstructure:"server"`
	Cache    CacheConfig           `mapstructure:"cache"`
	Redis    RedisConfig           `mapstructure:"redis"`
	Database database.Config       `mapstructure:"database"`
	AMQP     AMQPConfig            `mapstructure:"amqp"`
	AWS      AWSConfig             `mapstructure:"aws"`
	Auth     AuthConfig            `mapstructure:"auth"`
	HTTP     HTTPConfig            `mapstructure:"http"`
	CORS     ridershttp.CORSConfig `mapstructure:"cors"`
	Log      LogConfig             `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	StaticDir     string        `mapstructure:"static_dir"`
	MaxUploadSize int64         `mapstructure:"max_upload_size" validate:"min=0"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry" validate:"min=0"`
	ACL           string        `mapstructure:"acl"`
}

// CacheConfig selects the memoization backend.
type CacheConfig struct {
	Backend   string        `mapstructure:"backend" validate:"required,oneof=redis sqlite postgres"`
	BucketTTL time.Duration `mapstructure:"bucket_ttl" validate:"min=0"`
}

// RedisConfig holds the redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// AMQPConfig holds the broker settings. An empty URL disables the queue.
type AMQPConfig struct {
	URL            string `mapstructure:"url" validate:"omitempty,url"`
	Prefetch       int    `mapstructure:"prefetch" validate:"min=1"`
	Confirm        bool   `mapstructure:"confirm"`
	Durable        bool   `mapstructure:"durable"`
	ConnectRetries int    `mapstructure:"connect_retries" validate:"min=0"`
	EventsQueue    string `mapstructure:"events_queue"`
}

// AWSConfig holds S3 credentials. Empty keys fall back to the default AWS
// credential chain.
type AWSConfig struct {
	Region          string `mapstructure:"region" validate:"required"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required_with=AccessKeyID"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
}

// AuthConfig holds token settings.
type AuthConfig struct {
	TokenSecret string `mapstructure:"token_secret"`
	// Required protects the storage routes with bearer tokens.
	Required bool `mapstructure:"required"`
}

// HTTPConfig tunes the outbound HTTP client.
type HTTPConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" validate:"min=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"min=0"`
	UserAgent   string        `mapstructure:"user_agent"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"port":          "server.port",
	"static-dir":    "server.static_dir",
	"cache-backend": "cache.backend",
	"db-type":       "database.type",
	"db-dsn":        "database.dsn",
	"redis-host":    "redis.host",
	"redis-port":    "redis.port",
	"amqp-url":      "amqp.url",
	"aws-region":    "aws.region",
	"aws-endpoint":  "aws.endpoint",
	"log-level":     "log.level",
}

// legacyEnv lists the unprefixed variable names also honoured for each key.
var legacyEnv = map[string]string{
	"amqp.url":              "AMQP_URL",
	"redis.host":            "REDIS_HOST",
	"redis.port":            "REDIS_PORT",
	"redis.password":        "REDIS_PASSWORD",
	"aws.access_key_id":     "AWS_ACCESS_KEY_ID",
	"aws.secret_access_key": "AWS_SECRET_ACCESS_KEY",
	"aws.region":            "AWS_REGION",
	"database.dsn":          "DATABASE_URL",
	"auth.token_secret":     "TOKEN_SECRET",
}

const envPrefix = "RIDERS"

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// bindEnv binds RIDERS_<KEY> and, where one exists, the legacy name. The
// prefixed name wins when both are set.
func bindEnv(v *viper.Viper) {
	replacer := strings.NewReplacer(".", "_")
	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(replacer.Replace(key))
		_ = v.BindEnv(key, prefixed, legacy)
	}
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.max_upload_size", 32<<20)
	v.SetDefault("server.presign_expiry", time.Hour)
	v.SetDefault("server.acl", "public-read")

	v.SetDefault("cache.backend", "redis")
	v.SetDefault("cache.bucket_ttl", time.Minute)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "riders.db")
	v.SetDefault("database.table", database.DefaultTable)

	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.prefetch", 10)
	v.SetDefault("amqp.confirm", true)
	v.SetDefault("amqp.durable", true)
	v.SetDefault("amqp.connect_retries", 0)
	v.SetDefault("amqp.events_queue", "storage.events")

	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.access_key_id", "")
	v.SetDefault("aws.secret_access_key", "")
	v.SetDefault("aws.endpoint", "")

	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.required", false)

	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.concurrency", 0)
	v.SetDefault("http.user_agent", "")

	v.SetDefault("cors.enabled", true)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"*"})
	v.SetDefault("cors.exposed_headers", []string{})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if flags != nil {
		bindFlags(v, flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if cfg.Auth.Required && cfg.Auth.TokenSecret == "" {
		return nil, errors.New("validate config: auth.required needs auth.token_secret")
	}

	return &cfg, nil
}

// IsProduction reports whether env selects production logging.
func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}
