package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "SHUTDOWN_TIMEOUT", "ES_STREAM_NAME", "SUBSCRIPTION_ID"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	require.Equal(t, ":5000", cfg.HTTPAddr)
	require.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, "INVENTORY_ES", cfg.StreamName)
	require.Equal(t, "sub_inventory", cfg.SubscriptionID)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":8088")
	t.Setenv("SHUTDOWN_TIMEOUT", "30")

	cfg := Load()

	require.Equal(t, ":8088", cfg.HTTPAddr)
	require.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_InvalidNumericFallsBack(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")

	cfg := Load()

	require.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
}
