package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "simulator", cfg.Payment.Mode)
	assert.Equal(t, int64(500), cfg.Checkout.ShippingFee)
	assert.Equal(t, "pebble", cfg.Store.Backend)
	assert.Equal(t, "http://localhost:5000/api", cfg.API.AuthBaseURL)
	assert.Equal(t, "storefront-cart", cfg.Journal.KafkaGroupID)
	assert.Equal(t, 45*time.Second, cfg.Checkout.Timeout)
	assert.GreaterOrEqual(t, cfg.Checkout.Timeout, cfg.CheckoutStepBudget())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	err := os.WriteFile(path, []byte(`
http_port: "9090"
api:
  base_url: http://backend.local/api/v1
  timeout: 3s
store:
  backend: redis
journal:
  kafka_brokers: [k1:9092]
`), 0o600)
	require.NoError(t, err)

	t.Setenv("HTTP_PORT", "9191")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("KAFKA_GROUP_ID", "carts-eu")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9191", cfg.HTTPPort)
	assert.Equal(t, "http://backend.local/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Journal.KafkaBrokers)
	assert.Equal(t, "carts-eu", cfg.Journal.KafkaGroupID)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("API_TIMEOUT", "soon")
	_, err := Load("")
	assert.ErrorContains(t, err, "invalid API_TIMEOUT")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Payment.Mode = "http"
	cfg.Store.Backend = "floppy"
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "publishable_key is required")
	assert.ErrorContains(t, err, `unknown store.backend "floppy"`)
}

func TestValidate_CheckoutTimeoutCoversSteps(t *testing.T) {
	cfg := Default()
	cfg.API.Timeout = 20 * time.Second
	err := cfg.Validate()
	assert.ErrorContains(t, err, "checkout.timeout 45s is shorter than its steps (55s)")

	t.Setenv("API_TIMEOUT", "20s")
	t.Setenv("CHECKOUT_TIMEOUT", "1m")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Checkout.Timeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config file")
}
