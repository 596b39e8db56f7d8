package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort        string        `yaml:"http_port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SessionTTL      time.Duration `yaml:"session_ttl"`

	API      APIConfig      `yaml:"api"`
	Payment  PaymentConfig  `yaml:"payment"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Store    StoreConfig    `yaml:"store"`
	Journal  JournalConfig  `yaml:"journal"`
	Log      LogConfig      `yaml:"log"`
}

type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	// AuthBaseURL is the root of the /auth endpoints, which are not versioned.
	AuthBaseURL string        `yaml:"auth_base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	RateLimit   float64       `yaml:"rate_limit"` // requests per second, 0 disables
}

type PaymentConfig struct {
	Mode           string        `yaml:"mode"` // "http" or "simulator"
	ProcessorURL   string        `yaml:"processor_url"`
	PublishableKey string        `yaml:"publishable_key"`
	Timeout        time.Duration `yaml:"timeout"`
}

type CheckoutConfig struct {
	Currency              string `yaml:"currency"`
	ShippingFee           int64  `yaml:"shipping_fee"`            // minor units
	FreeShippingThreshold int64  `yaml:"free_shipping_threshold"` // minor units
	// Timeout bounds a whole checkout: intent, charge and order write. It is
	// not tied to the client connection.
	Timeout time.Duration `yaml:"timeout"`
}

type StoreConfig struct {
	Backend       string        `yaml:"backend"` // memory, pebble, redis, mongo
	PebbleDir     string        `yaml:"pebble_dir"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisTTL      time.Duration `yaml:"redis_ttl"`
	MongoURI      string        `yaml:"mongo_uri"`
	MongoDBName   string        `yaml:"mongo_db_name"`
}

type JournalConfig struct {
	Driver       string        `yaml:"driver"` // sqlite or postgres
	DSN          string        `yaml:"dsn"`
	KafkaBrokers []string      `yaml:"kafka_brokers"`
	KafkaTopic   string        `yaml:"kafka_topic"`
	KafkaGroupID string        `yaml:"kafka_group_id"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		HTTPPort:        "8080",
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		SessionTTL:      30 * time.Minute,
		API: APIConfig{
			BaseURL:     "http://localhost:5000/api/v1",
			AuthBaseURL: "http://localhost:5000/api",
			Timeout:     10 * time.Second,
		},
		Payment: PaymentConfig{
			Mode:         "simulator",
			ProcessorURL: "https://api.stripe.com",
			Timeout:      15 * time.Second,
		},
		Checkout: CheckoutConfig{
			Currency:              "usd",
			ShippingFee:           500,
			FreeShippingThreshold: 10000,
			Timeout:               45 * time.Second,
		},
		Store: StoreConfig{
			Backend:     "pebble",
			PebbleDir:   "./data/carts",
			RedisAddr:   "localhost:6379",
			RedisTTL:    7 * 24 * time.Hour,
			MongoURI:    "mongodb://localhost:27017",
			MongoDBName: "storefront",
		},
		Journal: JournalConfig{
			Driver:       "sqlite",
			DSN:          "./data/journal.db",
			KafkaTopic:   "storefront-checkout",
			KafkaGroupID: "storefront-cart",
			PollInterval: time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load returns defaults, overlaid by the YAML file at path (if non-empty),
// overlaid by environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout, &errs)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout, &errs)
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", cfg.SessionTTL, &errs)

	cfg.API.BaseURL = getEnv("API_BASE_URL", cfg.API.BaseURL)
	cfg.API.AuthBaseURL = getEnv("API_AUTH_BASE_URL", cfg.API.AuthBaseURL)
	cfg.API.Timeout = getEnvDuration("API_TIMEOUT", cfg.API.Timeout, &errs)
	cfg.API.RateLimit = getEnvFloat("API_RATE_LIMIT", cfg.API.RateLimit, &errs)

	cfg.Payment.Mode = getEnv("PAYMENT_MODE", cfg.Payment.Mode)
	cfg.Payment.ProcessorURL = getEnv("PAYMENT_PROCESSOR_URL", cfg.Payment.ProcessorURL)
	cfg.Payment.PublishableKey = getEnv("PAYMENT_PUBLISHABLE_KEY", cfg.Payment.PublishableKey)
	cfg.Payment.Timeout = getEnvDuration("PAYMENT_TIMEOUT", cfg.Payment.Timeout, &errs)

	cfg.Checkout.Currency = getEnv("CHECKOUT_CURRENCY", cfg.Checkout.Currency)
	cfg.Checkout.ShippingFee = getEnvInt("CHECKOUT_SHIPPING_FEE", cfg.Checkout.ShippingFee, &errs)
	cfg.Checkout.FreeShippingThreshold = getEnvInt("CHECKOUT_FREE_SHIPPING_THRESHOLD", cfg.Checkout.FreeShippingThreshold, &errs)
	cfg.Checkout.Timeout = getEnvDuration("CHECKOUT_TIMEOUT", cfg.Checkout.Timeout, &errs)

	cfg.Store.Backend = getEnv("CART_STORE", cfg.Store.Backend)
	cfg.Store.PebbleDir = getEnv("PEBBLE_DIR", cfg.Store.PebbleDir)
	cfg.Store.RedisAddr = getEnv("REDIS_ADDR", cfg.Store.RedisAddr)
	cfg.Store.RedisPassword = getEnv("REDIS_PASSWORD", cfg.Store.RedisPassword)
	cfg.Store.RedisTTL = getEnvDuration("REDIS_TTL", cfg.Store.RedisTTL, &errs)
	cfg.Store.MongoURI = getEnv("MONGO_URI", cfg.Store.MongoURI)
	cfg.Store.MongoDBName = getEnv("MONGO_DB_NAME", cfg.Store.MongoDBName)

	cfg.Journal.Driver = getEnv("JOURNAL_DRIVER", cfg.Journal.Driver)
	cfg.Journal.DSN = getEnv("JOURNAL_DSN", cfg.Journal.DSN)
	cfg.Journal.KafkaTopic = getEnv("KAFKA_TOPIC", cfg.Journal.KafkaTopic)
	cfg.Journal.KafkaGroupID = getEnv("KAFKA_GROUP_ID", cfg.Journal.KafkaGroupID)
	cfg.Journal.PollInterval = getEnvDuration("OUTBOX_POLL_INTERVAL", cfg.Journal.PollInterval, &errs)
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.Journal.KafkaBrokers = splitList(brokers)
	}

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.AuthBaseURL == "" {
		errs = append(errs, errors.New("api.auth_base_url is required"))
	}
	switch c.Payment.Mode {
	case "simulator":
	case "http":
		if c.Payment.PublishableKey == "" {
			errs = append(errs, errors.New("payment.publishable_key is required in http mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown payment.mode %q", c.Payment.Mode))
	}
	switch c.Store.Backend {
	case "memory", "pebble", "redis", "mongo":
	default:
		errs = append(errs, fmt.Errorf("unknown store.backend %q", c.Store.Backend))
	}
	switch c.Journal.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown journal.driver %q", c.Journal.Driver))
	}
	if c.Checkout.ShippingFee < 0 || c.Checkout.FreeShippingThreshold < 0 {
		errs = append(errs, errors.New("checkout amounts must not be negative"))
	}
	if budget := c.CheckoutStepBudget(); c.Checkout.Timeout < budget {
		errs = append(errs, fmt.Errorf("checkout.timeout %s is shorter than its steps (%s)", c.Checkout.Timeout, budget))
	}
	return errors.Join(errs...)
}

// CheckoutStepBudget is the sum of the per-step timeouts of one checkout:
// two backend calls and one charge.
func (c *Config) CheckoutStepBudget() time.Duration {
	return 2*c.API.Timeout + c.Payment.Timeout
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return d
}

func getEnvInt(key string, defaultValue int64, errs *[]error) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64, errs *[]error) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
