package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dzpay/chargily-bridge/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL":          "postgres://localhost:5432/bridge",
		"CHARGILY_SECRET_KEY":   "sk_test",
		"CHARGILY_API_URL":      "",
		"PORT":                  "",
		"CHECKOUT_HTTP_TIMEOUT": "",
	})
	require.NoError(t, err)
	require.Equal(t, config.DefaultChargilyAPIURL, cfg.ChargilyAPIURL)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 10*time.Second, cfg.CheckoutTimeout)
	require.Equal(t, 24*time.Hour, cfg.WebhookReplayTTL)
}

func TestLoadRequiresSecretKey(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"DATABASE_URL":        "postgres://localhost:5432/bridge",
		"CHARGILY_SECRET_KEY": "",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "CHARGILY_SECRET_KEY")
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"DATABASE_URL":        "",
		"CHARGILY_SECRET_KEY": "sk_test",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "DATABASE_URL")
}

func TestHTTPAddrNormalisesPort(t *testing.T) {
	cfg := &config.Config{Port: "9090"}
	require.Equal(t, ":9090", cfg.HTTPAddr())
	cfg.Port = ":7070"
	require.Equal(t, ":7070", cfg.HTTPAddr())
}
