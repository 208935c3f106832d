package config

import (
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"log"
	"log/slog"
	"strings"
	"time"
)

type Config struct {
	LogLevel   string `env:"LOG_LEVEL" env-default:"debug"`
	Storage    Storage
	HTTPServer HTTPServer
	Fetcher    Fetcher
	Redis      Redis
	Kafka      Kafka
	Providers  Providers
}

type Storage struct {
	Timeout  time.Duration `env:"BD_TIMEOUT" env-default:"10s"`
	Host     string        `env:"BD_HOST" env-required:"true"`
	Port     int           `env:"BD_PORT" env-required:"true"`
	User     string        `env:"BD_USER" env-required:"true"`
	Password string        `env:"BD_PASSWORD" env-required:"true"`
	DBName   string        `env:"BD_DBNAME" env-required:"true"`
	SSLMode  string        `env:"BD_SSL_MODE" env-default:"disable"`
	Schema   string        `env:"BD_SCHEMA" env-default:"public"`
	Migrate  bool          `env:"BD_MIGRATE" env-default:"true"`
}

type HTTPServer struct {
	Port        string        `env:"HTTP_PORT" env-default:"8082"`
	Timeout     time.Duration `env:"HTTP_TIMEOUT" env-default:"2m"`
	IdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

type Fetcher struct {
	Timeout     time.Duration `env:"FETCHER_TIMEOUT" env-default:"10s"`
	TimeTickers time.Duration `env:"FETCHER_TIME_TICKERS" env-default:"1h"`
	Parallel    bool          `env:"FETCHER_PARALLEL" env-default:"false"`
	RunOnStart  bool          `env:"FETCHER_RUN_ON_START" env-default:"true"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" env-default:""`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

type Kafka struct {
	Brokers string `env:"KAFKA_BROKERS" env-default:""`
	Topic   string `env:"KAFKA_TOPIC" env-default:"exchange-rate-sync"`
}

type Providers struct {
	ECBURL            string `env:"ECB_URL" env-default:"https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"`
	ECBPriority       int    `env:"PROVIDER_ECB_PRIORITY" env-default:"10"`
	FixerURL          string `env:"FIXER_URL" env-default:"http://data.fixer.io/api/latest"`
	FixerAPIKey       string `env:"FIXER_API_KEY" env-default:""`
	FixerBaseCurrency string `env:"FIXER_BASE_CURRENCY" env-default:"EUR"`
	FixerPriority     int    `env:"PROVIDER_FIXER_PRIORITY" env-default:"20"`
}

func NewConfig() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatal("Error reading env: ", err)
	}

	return cfg
}

func Load() (*Config, error) {
	cfg := &Config{}

	_ = godotenv.Load(".env")

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// KafkaBrokers splits KAFKA_BROKERS; an empty list disables the publisher.
func (c *Config) KafkaBrokers() []string {
	if c.Kafka.Brokers == "" {
		return nil
	}

	var brokers []string
	for _, b := range strings.Split(c.Kafka.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return brokers
}

func (s Storage) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		s.Host,
		s.Port,
		s.User,
		s.Password,
		s.DBName,
		s.SSLMode,
		s.Schema,
	)
}

// LogValue keeps secrets out of the startup log.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("log_level", c.LogLevel),
		slog.String("db_host", c.Storage.Host),
		slog.Int("db_port", c.Storage.Port),
		slog.String("db_name", c.Storage.DBName),
		slog.String("db_password", mask(c.Storage.Password)),
		slog.String("http_port", c.HTTPServer.Port),
		slog.Duration("fetch_interval", c.Fetcher.TimeTickers),
		slog.Bool("parallel_fetch", c.Fetcher.Parallel),
		slog.String("redis_host", c.Redis.Host),
		slog.Any("kafka_brokers", c.KafkaBrokers()),
		slog.String("fixer_api_key", mask(c.Providers.FixerAPIKey)),
	)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
