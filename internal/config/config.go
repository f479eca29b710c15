// Package config provides runtime configuration values for the service.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every knob of the service. Values come from the environment
// with sane defaults for local development.
type Config struct {
	HTTPAddr        string
	MetricsAddr     string
	ShutdownTimeout time.Duration

	NatsURL       string
	StreamName    string
	SubjectPrefix string

	PostgresDSN string

	SubscriptionID string

	Exchange   string
	RoutingKey string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring invalid numeric env value",
			slog.String("key", key),
			slog.String("value", v),
			slog.Int("default", def),
		)
		return def
	}
	return n
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// Load collects configuration from environment with defaults. A .env file
// in the working directory is merged in first when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":5000"),
		MetricsAddr:     getenv("METRICS_ADDR", ":9090"),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT", 15),

		NatsURL:       getenv("NATS_URL", "nats://localhost:4222"),
		StreamName:    getenv("ES_STREAM_NAME", "INVENTORY_ES"),
		SubjectPrefix: getenv("ES_SUBJECT_PREFIX", "inventory.es"),

		PostgresDSN: getenv("POSTGRES_DSN",
			"host=localhost port=5432 user=user password=pass dbname=inventory sslmode=disable"),

		SubscriptionID: getenv("SUBSCRIPTION_ID", "sub_inventory"),

		Exchange:   getenv("BROKER_EXCHANGE", "ONLINE_SHOPPING_CART"),
		RoutingKey: getenv("BROKER_ROUTING_KEY", "INVENTORY_SERVICE"),
	}
}
