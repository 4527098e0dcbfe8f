package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Client       ClientConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ClientSettings is the subset of configuration the CLI reads.
type ClientSettings struct {
	Client ClientConfig
	JWT    JWTConfig
	Redis  RedisConfig
}

// LoadClient reads only the client, JWT and redis sections, so the CLI runs
// without database settings.
func LoadClient() (*ClientSettings, error) {
	var cfg ClientSettings
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"NEXUS_APP_ENV" default:"dev"`
	Port         string `envconfig:"NEXUS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"NEXUS_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"NEXUS_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"NEXUS_LOG_WARN_STACK" default:"false"`

	CORSOrigins   []string `envconfig:"NEXUS_CORS_ORIGINS"`
	MaxQueryLimit int      `envconfig:"NEXUS_MAX_QUERY_LIMIT" default:"500"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"NEXUS_DB_DSN"`
	Driver string `envconfig:"NEXUS_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"NEXUS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NEXUS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NEXUS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NEXUS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) validate() error {
	switch strings.ToLower(db.Driver) {
	case DriverPostgres, DriverSQLite:
		return nil
	}
	return fmt.Errorf("unsupported %s %q (expected %s or %s)", EnvDBDriver, db.Driver, DriverPostgres, DriverSQLite)
}

// RedisConfig is optional; an empty URL and address disables change and notification fan-out.
type RedisConfig struct {
	URL                 string        `envconfig:"NEXUS_REDIS_URL"`
	Address             string        `envconfig:"NEXUS_REDIS_ADDR"`
	Password            string        `envconfig:"NEXUS_REDIS_PASSWORD"`
	DB                  int           `envconfig:"NEXUS_REDIS_DB" default:"0"`
	PoolSize            int           `envconfig:"NEXUS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns        int           `envconfig:"NEXUS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout         time.Duration `envconfig:"NEXUS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout         time.Duration `envconfig:"NEXUS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout        time.Duration `envconfig:"NEXUS_REDIS_WRITE_TIMEOUT" default:"5s"`
	ChangeChannel       string        `envconfig:"NEXUS_REDIS_CHANGE_CHANNEL" default:"changes"`
	NotificationChannel string        `envconfig:"NEXUS_REDIS_NOTIFICATION_CHANNEL" default:"notifications"`
	VersionTTL          time.Duration `envconfig:"NEXUS_REDIS_VERSION_TTL" default:"24h"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"NEXUS_JWT_SECRET"`
	Issuer            string `envconfig:"NEXUS_JWT_ISSUER" default:"nexus-familiar"`
	ExpirationMinutes int    `envconfig:"NEXUS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"NEXUS_AUTO_MIGRATE" default:"false"`
}

// ClientConfig configures the CLI's connection to the REST API.
type ClientConfig struct {
	BaseURL string        `envconfig:"NEXUS_API_URL" default:"http://localhost:8080"`
	Token   string        `envconfig:"NEXUS_TOKEN"`
	Timeout time.Duration `envconfig:"NEXUS_API_TIMEOUT" default:"10s"`

	PushgatewayURL string `envconfig:"NEXUS_PUSHGATEWAY_URL"`
}
