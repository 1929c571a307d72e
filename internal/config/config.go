package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gookit/validate"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
// Command-line flags override individual fields after Load.
type Config struct {
	App      AppConfig
	Broker   BrokerConfig
	Store    StoreConfig
	Server   ServerConfig
	Cache    CacheConfig
	Artifact ArtifactConfig
}

// AppConfig holds process-level settings.
type AppConfig struct {
	Name         string `envconfig:"APP_NAME" default:"dice-logger"`
	Environment  string `envconfig:"APP_ENV" default:"development" validate:"in:development,production,test"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info" validate:"in:trace,debug,info,warn,error,fatal,panic,disabled"`
	MetricsAddr  string `envconfig:"METRICS_ADDR" default:""` // empty disables the ingest metrics listener
	OTelEndpoint string `envconfig:"OTEL_ENDPOINT" default:""`
}

// BrokerConfig holds pub/sub connection settings.
type BrokerConfig struct {
	Transport string        `envconfig:"BROKER_TRANSPORT" default:"mqtt" validate:"required|in:mqtt,nats"`
	Host      string        `envconfig:"BROKER_HOST" default:"127.0.0.1" validate:"required"`
	Port      int           `envconfig:"BROKER_PORT" default:"1883" validate:"required|min:1|max:65535"`
	User      string        `envconfig:"BROKER_USER" default:""`
	Password  string        `envconfig:"BROKER_PASSWORD" default:""`
	Topic     string        `envconfig:"BROKER_TOPIC" default:""` // root; empty listens to everything
	ClientID  string        `envconfig:"BROKER_CLIENT_ID" default:""`
	KeepAlive time.Duration `envconfig:"BROKER_KEEPALIVE" default:"60s"`
	Timeout   time.Duration `envconfig:"BROKER_CONNECT_TIMEOUT" default:"10s"`
}

// StoreConfig holds roll store settings.
type StoreConfig struct {
	Driver    string `envconfig:"STORE_DRIVER" default:"sqlite" validate:"required|in:sqlite,postgres,mysql"`
	OutputDir string `envconfig:"OUTPUT_DIR" default:"datadir" validate:"required"`
	DSN       string `envconfig:"STORE_DSN" default:""` // postgres/mysql only
}

// ServerConfig holds report server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"2020" validate:"required|min:1|max:65535"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	ReportTimeout   time.Duration `envconfig:"REPORT_TIMEOUT" default:"30s"`
}

// CacheConfig holds report cache settings.
type CacheConfig struct {
	Type         string        `envconfig:"CACHE_TYPE" default:"memory" validate:"in:memory,redis"`
	TTL          time.Duration `envconfig:"REPORT_CACHE_TTL" default:"1m"`
	MemorySizeMB int           `envconfig:"CACHE_MEMORY_MB" default:"8"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// ArtifactConfig holds the optional S3 mirror for generated reports.
type ArtifactConfig struct {
	S3Bucket   string `envconfig:"ARTIFACT_S3_BUCKET" default:""`
	S3Prefix   string `envconfig:"ARTIFACT_S3_PREFIX" default:"reports"`
	S3Region   string `envconfig:"ARTIFACT_S3_REGION" default:"us-east-1"`
	S3Endpoint string `envconfig:"ARTIFACT_S3_ENDPOINT" default:""`
}

// Address returns the broker address in host:port format.
func (b *BrokerConfig) Address() string {
	return net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

// Target returns what the repository opens: the output directory for
// sqlite, the DSN otherwise.
func (s *StoreConfig) Target() string {
	if s.Driver == "sqlite" {
		return s.OutputDir
	}
	return s.DSN
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// MirrorEnabled reports whether reports are copied to S3.
func (a *ArtifactConfig) MirrorEnabled() bool {
	return a.S3Bucket != ""
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// Validate checks every section. Call it after flags are applied.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    interface{}
	}{
		{"app", &c.App},
		{"broker", &c.Broker},
		{"store", &c.Store},
		{"server", &c.Server},
		{"cache", &c.Cache},
	}
	for _, s := range sections {
		v := validate.Struct(s.v)
		if !v.Validate() {
			return fmt.Errorf("invalid %s config: %s", s.name, v.Errors.One())
		}
	}
	if c.Store.Driver != "sqlite" && c.Store.DSN == "" {
		return fmt.Errorf("invalid store config: STORE_DSN is required for %s", c.Store.Driver)
	}
	return nil
}
