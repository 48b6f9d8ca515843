package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type DB struct {
	User string `env:"DB_USER" envDefault:"postgres"`
	Pass string `env:"DB_PASS" envDefault:"postgres"`
	Host string `env:"DB_HOST" envDefault:"localhost"`
	Port string `env:"DB_PORT" envDefault:"5432"`
	Name string `env:"DB_NAME" envDefault:"vendorq"`
}

type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type Worker struct {
	Concurrency    int           `env:"WORKER_CONCURRENCY" envDefault:"5"`
	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY" envDefault:"1s"`
	HTTPAddr       string        `env:"WORKER_HTTP_ADDR" envDefault:":8082"`
}

type RateLimit struct {
	SyncCapacity  int           `env:"SYNC_VENDOR_RATE_LIMIT" envDefault:"10"`
	AsyncCapacity int           `env:"ASYNC_VENDOR_RATE_LIMIT" envDefault:"5"`
	Window        time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

type Vendors struct {
	SyncURL        string        `env:"SYNC_VENDOR_URL" envDefault:"http://localhost:8091/sync"`
	AsyncURL       string        `env:"ASYNC_VENDOR_URL" envDefault:"http://localhost:8091/async"`
	WebhookURL     string        `env:"ASYNC_WEBHOOK_URL" envDefault:"http://localhost:8080/api/v1/vendor-webhook/async"`
	RequestTimeout time.Duration `env:"VENDOR_REQUEST_TIMEOUT" envDefault:"5s"`
}

type Config struct {
	AppName   string `env:"APP_NAME" envDefault:"vendorq"`
	APIAddr   string `env:"API_ADDR" envDefault:":8080"`
	DB        DB
	Redis     Redis
	Worker    Worker
	RateLimit RateLimit
	Vendors   Vendors
}

// Load parses the full configuration surface from the environment.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DB.User, c.DB.Pass, c.DB.Host, c.DB.Port, c.DB.Name)
}

// Capacities returns the per-vendor rate limit capacities keyed by tag.
func (c Config) Capacities() map[string]int {
	return map[string]int{
		"sync":  c.RateLimit.SyncCapacity,
		"async": c.RateLimit.AsyncCapacity,
	}
}
