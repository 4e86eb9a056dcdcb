package storefront

import (
	"time"

	"github.com/handicraft/storefront/pkg/api"
	"github.com/handicraft/storefront/pkg/config"
	"github.com/handicraft/storefront/pkg/kvstore"
)

// Storage backends selectable with STOREFRONT_STORAGE.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
)

type Config struct {
	APIURL      string        `env:"STOREFRONT_API_URL" envDefault:"https://handicraft-backend-azwn.onrender.com/api"`
	Storage     string        `env:"STOREFRONT_STORAGE" envDefault:"file"`
	DataDir     string        `env:"STOREFRONT_DATA_DIR" envDefault:".storefront"`
	SecretKey   string        `env:"STOREFRONT_SECRET_KEY"`
	Language    string        `env:"STOREFRONT_LANGUAGE" envDefault:"en"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string        `env:"LOG_FORMAT" envDefault:"text"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"0s"`

	Redis    kvstore.RedisConfig
	Postgres kvstore.PostgresConfig
	Mongo    kvstore.MongoConfig
}

// LoadConfig reads Config from the environment.
func LoadConfig(opts ...config.Option) (Config, error) {
	var cfg Config
	if err := config.Load(&cfg, opts...); err != nil {
		return Config{}, err
	}
	if cfg.APIURL == "" {
		cfg.APIURL = api.DefaultBaseURL
	}
	return cfg, nil
}
