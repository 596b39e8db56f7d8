package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fjod/go_storefront/internal/config"
	"github.com/fjod/go_storefront/internal/journal"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/fjod/go_storefront/internal/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenKV(t *testing.T) {
	kv, closeKV, err := openKV(context.Background(), config.StoreConfig{Backend: "memory"})
	require.NoError(t, err)
	defer closeKV()
	assert.IsType(t, &persistence.MemoryKV{}, kv)

	kv, closeKV, err = openKV(context.Background(), config.StoreConfig{Backend: "pebble", PebbleDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &persistence.PebbleKV{}, kv)
	closeKV()

	_, _, err = openKV(context.Background(), config.StoreConfig{Backend: "floppy"})
	assert.ErrorContains(t, err, "unknown store backend")
}

func TestNewProcessor(t *testing.T) {
	assert.IsType(t, &payment.Simulator{}, newProcessor(config.PaymentConfig{Mode: "simulator"}, zap.NewNop()))
	assert.IsType(t, &payment.HTTPProcessor{}, newProcessor(config.PaymentConfig{Mode: "http", PublishableKey: "pk"}, zap.NewNop()))
}

func TestMigrateThenUnreconciled(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "journal.db")
	t.Setenv("JOURNAL_DRIVER", "sqlite")
	t.Setenv("JOURNAL_DSN", dsn)
	t.Setenv("LOG_LEVEL", "error")

	rootCmd.SetArgs([]string{"migrate"})
	require.NoError(t, rootCmd.Execute())

	repo, err := journal.Open("sqlite", dsn)
	require.NoError(t, err)
	_, err = repo.Append(context.Background(), "chk-1", journal.EventOrderPersistenceFailedAfterPayment, []byte(`{"payment_id":"pi_1"}`))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"unreconciled"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), `"checkout_id":"chk-1"`)
	assert.Contains(t, out.String(), `"payment_id":"pi_1"`)
}

func TestInstanceGroupID(t *testing.T) {
	id := instanceGroupID("storefront-cart")
	assert.True(t, strings.HasPrefix(id, "storefront-cart-"))
	assert.Greater(t, len(id), len("storefront-cart-"))
}
