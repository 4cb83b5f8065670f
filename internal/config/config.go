package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrNotConfigured is returned by identity and storage stand-ins when the provider settings are
// missing. The service keeps running read-only in that case.
var ErrNotConfigured = errors.New("provider not configured")

const EnvPrefix = "JOURNEY"

type ServerConfig struct {
	Addr       string `mapstructure:"addr" validate:"required"`
	CORSOrigin string `mapstructure:"corsOrigin"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required|in:trace,debug,info,warn,error"`
	Format string `mapstructure:"format" validate:"required|in:console,json"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"accessKey"`
	SecretKey string `mapstructure:"secretKey"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"useSSL"`
}

type StoreConfig struct {
	Driver      string        `mapstructure:"driver" validate:"required|in:memory,sqlite,postgres,redis,minio"`
	DatabaseURL string        `mapstructure:"databaseURL"`
	RedisURL    string        `mapstructure:"redisURL"`
	Minio       MinioConfig   `mapstructure:"minio"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// CardsConfig sizes the cache of rendered greeting cards.
type CardsConfig struct {
	CacheTTL    time.Duration `mapstructure:"cacheTTL"`
	CacheSizeMB int           `mapstructure:"cacheSizeMB"`
}

type AuthConfig struct {
	TokenSecret          string        `mapstructure:"tokenSecret"`
	TokenTTL             time.Duration `mapstructure:"tokenTTL"`
	SessionRedisURL      string        `mapstructure:"sessionRedisURL"`
	OperatorEmail        string        `mapstructure:"operatorEmail"`
	OperatorPasswordHash string        `mapstructure:"operatorPasswordHash"`
}

type HistoryConfig struct {
	Dir string `mapstructure:"dir"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type MigrationsConfig struct {
	Dir string `mapstructure:"dir"`
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Store      StoreConfig      `mapstructure:"store"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Cards      CardsConfig      `mapstructure:"cards"`
	History    HistoryConfig    `mapstructure:"history"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Migrations MigrationsConfig `mapstructure:"migrations"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8787")
	v.SetDefault("server.corsOrigin", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.databaseURL", "")
	v.SetDefault("store.redisURL", "")
	v.SetDefault("store.minio.endpoint", "")
	v.SetDefault("store.minio.accessKey", "")
	v.SetDefault("store.minio.secretKey", "")
	v.SetDefault("store.minio.bucket", "journey")
	v.SetDefault("store.minio.useSSL", false)
	v.SetDefault("store.timeout", 10*time.Second)
	v.SetDefault("auth.tokenSecret", "")
	v.SetDefault("auth.tokenTTL", 12*time.Hour)
	v.SetDefault("auth.sessionRedisURL", "")
	v.SetDefault("auth.operatorEmail", "")
	v.SetDefault("auth.operatorPasswordHash", "")
	v.SetDefault("cards.cacheTTL", 10*time.Minute)
	v.SetDefault("cards.cacheSizeMB", 8)
	v.SetDefault("history.dir", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("migrations.dir", "")
}

// Load reads an optional .env file, an optional YAML file at path and JOURNEY_* environment
// variables, in increasing order of precedence.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional names used by hosting platforms.
	_ = v.BindEnv("store.databaseURL", "JOURNEY_STORE_DATABASEURL", "DATABASE_URL")
	_ = v.BindEnv("store.redisURL", "JOURNEY_STORE_REDISURL", "REDIS_URL")
	_ = v.BindEnv("server.addr", "JOURNEY_SERVER_ADDR", "API_ADDR")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with. Missing provider credentials are not
// validation errors; see Problems.
func (c *Config) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %s", v.Errors.One())
	}
	if c.Store.Timeout <= 0 {
		return errors.New("invalid config: store.timeout must be positive")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("invalid config: auth.tokenTTL must be positive")
	}
	return nil
}

// Problems lists missing provider settings. A non-empty list puts the service in degraded mode.
func (c Config) Problems() []string {
	var problems []string
	if strings.TrimSpace(c.Auth.TokenSecret) == "" {
		problems = append(problems, "auth.tokenSecret is not set; sign-in is disabled")
	}
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.databaseURL is required for the postgres driver")
		}
	case "redis":
		if c.Store.RedisURL == "" {
			problems = append(problems, "store.redisURL is required for the redis driver")
		}
	case "minio":
		if c.Store.Minio.Endpoint == "" || c.Store.Minio.Bucket == "" {
			problems = append(problems, "store.minio.endpoint and store.minio.bucket are required for the minio driver")
		}
	}
	return problems
}

func (c Config) Configured() bool {
	return len(c.Problems()) == 0
}

// SQLitePath is the database file used when the sqlite driver has no explicit URL.
func (c Config) SQLitePath() string {
	if c.Store.DatabaseURL != "" {
		return c.Store.DatabaseURL
	}
	return "file:journey.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}
