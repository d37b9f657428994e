package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/Alturino/storefront/internal/log"
)

type Application struct {
	Env       string `mapstructure:"env"        json:"env"`
	Host      string `mapstructure:"host"       json:"host"`
	SecretKey string `mapstructure:"secret_key" json:"-"`
	LogPath   string `mapstructure:"log_path"   json:"log_path"`
	Port      int    `mapstructure:"port"       json:"port"`
}

// Storage selects the durable backend for carts: redis, postgres or sqlite.
type Storage struct {
	Driver string        `mapstructure:"driver" json:"driver"`
	Name   string        `mapstructure:"name"   json:"name"`
	TTL    time.Duration `mapstructure:"ttl"    json:"ttl"`
}

type Database struct {
	Name           string `mapstructure:"name"            json:"name"`
	Host           string `mapstructure:"host"            json:"host"`
	MigrationPath  string `mapstructure:"migration_path"  json:"migration_path"`
	Password       string `mapstructure:"password"        json:"-"`
	TimeZone       string `mapstructure:"timezone"        json:"timezone"`
	Username       string `mapstructure:"username"        json:"username"`
	MaxConnections int    `mapstructure:"max_connections" json:"max_connections"`
	MinConnections int    `mapstructure:"min_connections" json:"min_connections"`
	Port           uint16 `mapstructure:"port"            json:"port"`
}

type Sqlite struct {
	Path          string `mapstructure:"path"           json:"path"`
	MigrationPath string `mapstructure:"migration_path" json:"migration_path"`
}

type Cache struct {
	Host     string `mapstructure:"host"     json:"host"`
	Password string `mapstructure:"password" json:"-"`
	Database int    `mapstructure:"database" json:"database"`
	Port     uint16 `mapstructure:"port"     json:"port"`
}

type Breaker struct {
	MaxFailures uint32        `mapstructure:"max_failures" json:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout" json:"open_timeout"`
}

type Gateway struct {
	OrderURL   string        `mapstructure:"order_url"   json:"order_url"`
	CatalogURL string        `mapstructure:"catalog_url" json:"catalog_url"`
	Timeout    time.Duration `mapstructure:"timeout"     json:"timeout"`
	Breaker    Breaker       `mapstructure:"breaker"     json:"breaker"`
}

type Otel struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

type Config struct {
	Application `mapstructure:"application" json:"application"`
	Storage     `mapstructure:"storage"     json:"storage"`
	Database    `mapstructure:"db"          json:"db"`
	Sqlite      `mapstructure:"sqlite"      json:"sqlite"`
	Cache       `mapstructure:"cache"       json:"cache"`
	Gateway     `mapstructure:"gateway"     json:"gateway"`
	Otel        `mapstructure:"otel"        json:"otel"`
}

var (
	once   sync.Once
	config *Config
)

func setDefaults() {
	viper.SetDefault("application.env", "production")
	viper.SetDefault("application.host", "0.0.0.0")
	viper.SetDefault("application.port", 8080)
	viper.SetDefault("application.log_path", "/var/log/storefront.log")
	viper.SetDefault("storage.driver", "redis")
	viper.SetDefault("storage.name", "storefront-cart-storage")
	viper.SetDefault("sqlite.path", "storefront.db")
	viper.SetDefault("sqlite.migration_path", "file://migrations/sqlite")
	viper.SetDefault("db.migration_path", "file://migrations/postgres")
	viper.SetDefault("gateway.timeout", 15*time.Second)
	viper.SetDefault("gateway.breaker.max_failures", 5)
	viper.SetDefault("gateway.breaker.open_timeout", 30*time.Second)
	viper.SetDefault("otel.host", "otel-collector")
	viper.SetDefault("otel.port", 4317)
}

func InitConfig(c context.Context, filename string) *Config {
	once.Do(func() {
		logger := zerolog.Ctx(c).
			With().
			Str(log.KeyTag, "config InitConfig").
			Str(log.KeyProcess, "init config").
			Str("filename", filename).
			Logger()

		setDefaults()
		viper.SetConfigName(filename)
		viper.AddConfigPath("./env")
		viper.SetConfigType("yaml")
		viper.AutomaticEnv()

		logger = logger.With().Str(log.KeyProcess, "reading config").Logger()
		logger.Info().Msg("reading config")
		err := viper.ReadInConfig()
		if err != nil {
			err = fmt.Errorf("error when reading config with error=%w", err)
			logger.Fatal().Err(err).Msg(err.Error())
		}
		logger.Info().Msg("read config")

		logger = logger.With().Str(log.KeyProcess, "unmarshaling config").Logger()
		logger.Info().Msg("unmarshaling config")
		cfg := Config{}
		err = viper.Unmarshal(&cfg)
		if err != nil {
			err = fmt.Errorf("error unmarshaling config with error=%w", err)
			logger.Fatal().Err(err).Msg(err.Error())
		}
		config = &cfg
		logger = logger.With().Any(log.KeyConfig, cfg).Logger()
		logger.Info().Msg("unmarshaled config")
	})
	return config
}
