package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

type GRPC struct {
	Addr          string        `yaml:"addr"` // пусто: grpc не поднимается
	CheckInterval time.Duration `yaml:"checkInterval"`
}

type Logging struct {
	Env              string `yaml:"env"`       // dev|stage|prod
	Service          string `yaml:"service"`   // meet-bridge
	Version          string `yaml:"version"`   // v0.1.0
	Backend          string `yaml:"backend"`   // std|zap
	Level            string `yaml:"level"`     // debug|info|warn|error
	AddSource        bool   `yaml:"addSource"` // false|true
	Debug            bool   `yaml:"debug"`     // false|true
	SampleInitial    int    `yaml:"sampleInitial"`
	SampleThereafter int    `yaml:"sampleThereafter"`
}

type Readiness struct {
	BackendURL           string        `yaml:"backendUrl"`
	Interval             time.Duration `yaml:"interval"`
	RequestTimeout       time.Duration `yaml:"requestTimeout"`
	MaxAttempts          int           `yaml:"maxAttempts"`
	MaxConsecutiveErrors int           `yaml:"maxConsecutiveErrors"`
	Deadline             time.Duration `yaml:"deadline"`
	CacheTTL             time.Duration `yaml:"cacheTtl"`
}

type Analytics struct {
	Driver            string        `yaml:"driver"` // postgres|mongo|memory|none
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	StaleAfter        time.Duration `yaml:"staleAfter"`
	WriteTimeout      time.Duration `yaml:"writeTimeout"`
}

type Postgres struct {
	DSN               string        `yaml:"dsn"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	ApplicationName   string        `yaml:"applicationName"`
}

type Mongo struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

type Redis struct {
	Addr     string `yaml:"addr"` // пусто: кеш готовности выключен
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RabbitMQ struct {
	URL      string `yaml:"url"` // пусто: события не публикуются
	Exchange string `yaml:"exchange"`
}

type Conference struct {
	Domain       string        `yaml:"domain"`
	MountTimeout time.Duration `yaml:"mountTimeout"`
	PingEvery    time.Duration `yaml:"pingEvery"`
}

type Meeting struct {
	ReturnURL string `yaml:"returnUrl"`
}

type Config struct {
	HTTP       HTTP       `yaml:"http"`
	GRPC       GRPC       `yaml:"grpc"`
	Logging    Logging    `yaml:"logging"`
	Readiness  Readiness  `yaml:"readiness"`
	Analytics  Analytics  `yaml:"analytics"`
	Postgres   Postgres   `yaml:"postgres"`
	Mongo      Mongo      `yaml:"mongo"`
	Redis      Redis      `yaml:"redis"`
	RabbitMQ   RabbitMQ   `yaml:"rabbitmq"`
	Conference Conference `yaml:"conference"`
	Meeting    Meeting    `yaml:"meeting"`
}

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
	DriverNone     = "none"
)

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv: секреты и адреса из окружения перекрывают файл.
func (c *Config) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"POSTGRES_DSN", &c.Postgres.DSN},
		{"MONGO_URI", &c.Mongo.URI},
		{"REDIS_ADDR", &c.Redis.Addr},
		{"REDIS_PASSWORD", &c.Redis.Password},
		{"RABBITMQ_URL", &c.RabbitMQ.URL},
		{"JITSI_BACKEND_URL", &c.Readiness.BackendURL},
		{"JITSI_DOMAIN", &c.Conference.Domain},
		{"ANALYTICS_DRIVER", &c.Analytics.Driver},
		{"APP_ENV", &c.Logging.Env},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.dst = v
		}
	}
	if v := os.Getenv("READINESS_DEADLINE"); v != "" {
		c.Readiness.Deadline = parseDurationOr(c.Readiness.Deadline, v)
	}
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Readiness.BackendURL == "" {
		return errors.New("readiness.backendUrl is required")
	}
	if c.Conference.Domain == "" {
		return errors.New("conference.domain is required")
	}

	c.Analytics.Driver = strings.ToLower(strings.TrimSpace(c.Analytics.Driver))
	switch c.Analytics.Driver {
	case "":
		c.Analytics.Driver = DriverNone
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for analytics.driver=postgres")
		}
	case DriverMongo:
		if c.Mongo.URI == "" {
			return errors.New("mongo.uri is required for analytics.driver=mongo")
		}
	case DriverMemory, DriverNone:
	default:
		return fmt.Errorf("analytics.driver: unknown driver %q", c.Analytics.Driver)
	}

	// установка дефолтов, если значения не указаны
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout <= 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 30 * time.Second
	}
	if c.GRPC.CheckInterval <= 0 {
		c.GRPC.CheckInterval = 10 * time.Second
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "meet-bridge"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}

	if c.Readiness.Interval <= 0 {
		c.Readiness.Interval = 5 * time.Second
	}
	if c.Readiness.RequestTimeout <= 0 {
		c.Readiness.RequestTimeout = 30 * time.Second
	}
	if c.Readiness.MaxAttempts <= 0 {
		c.Readiness.MaxAttempts = 60
	}
	if c.Readiness.MaxConsecutiveErrors <= 0 {
		c.Readiness.MaxConsecutiveErrors = 10
	}
	if c.Readiness.Deadline <= 0 {
		c.Readiness.Deadline = 5 * time.Minute
	}
	if c.Readiness.CacheTTL <= 0 {
		c.Readiness.CacheTTL = 30 * time.Second
	}

	if c.Analytics.HeartbeatInterval <= 0 {
		c.Analytics.HeartbeatInterval = 30 * time.Second
	}
	if c.Analytics.StaleAfter <= 0 {
		c.Analytics.StaleAfter = 2 * time.Minute
	}
	if c.Analytics.WriteTimeout <= 0 {
		c.Analytics.WriteTimeout = 10 * time.Second
	}
	if c.Analytics.StaleAfter <= c.Analytics.HeartbeatInterval {
		return errors.New("analytics.staleAfter must be greater than analytics.heartbeatInterval")
	}

	if c.Postgres.ApplicationName == "" {
		c.Postgres.ApplicationName = c.Logging.Service
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "meetbridge"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "meeting.events"
	}
	if c.Conference.MountTimeout <= 0 {
		c.Conference.MountTimeout = 30 * time.Second
	}
	if c.Conference.PingEvery <= 0 {
		c.Conference.PingEvery = 15 * time.Second
	}
	return nil
}

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil && d > 0 {
		return d
	}
	return def
}
