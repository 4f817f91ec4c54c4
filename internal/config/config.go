package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/corray333/frameshop/order/pkg/logger"
)

// MustInit loads .env and config.yaml into viper and installs the default logger.
func MustInit() {
	if err := godotenv.Load("./.env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic("error while loading .env file: " + err.Error())
	}

	SetDefaults()
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/order-lifecycle")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic("error while reading config file: " + err.Error())
		}
	}
	SetupLogger()
}

// SetDefaults registers the value of every key the service reads.
func SetDefaults() {
	viper.SetDefault("server.http.port", "8080")
	viper.SetDefault("server.http.read_timeout_seconds", 10)
	viper.SetDefault("server.http.write_timeout_seconds", 0)
	viper.SetDefault("server.http.shutdown_timeout_seconds", 10)
	viper.SetDefault("server.http.cors.allowed_origins", []string{"*"})
	viper.SetDefault("server.http.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	viper.SetDefault("server.http.cors.allowed_headers", []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"})
	viper.SetDefault("server.http.cors.allow_credentials", false)
	viper.SetDefault("server.http.cors.max_age", 300)
	viper.SetDefault("server.grpc.port", "9090")
	viper.SetDefault("server.grpc.keepalive.max_connection_idle", 15)
	viper.SetDefault("server.grpc.keepalive.max_connection_age", 30)
	viper.SetDefault("server.grpc.keepalive.max_connection_age_grace", 5)
	viper.SetDefault("server.grpc.keepalive.time", 30)
	viper.SetDefault("server.grpc.keepalive.timeout", 10)
	viper.SetDefault("server.grpc.keepalive.min_time", 5)
	viper.SetDefault("server.grpc.keepalive.permit_without_stream", true)
	viper.SetDefault("server.grpc.health_interval_seconds", 5)

	viper.SetDefault("storage.driver", "postgres")
	viper.SetDefault("postgres.migrate_on_start", true)
	viper.SetDefault("postgres.max_conns", 10)

	viper.SetDefault("lifecycle.strict_transitions", true)
	viper.SetDefault("lifecycle.retry.max_attempts", 3)
	viper.SetDefault("lifecycle.retry.base_delay_ms", 50)

	viper.SetDefault("auth.signing_secret", "")
	viper.SetDefault("auth.token_ttl_minutes", 60)
	viper.SetDefault("auth.login.max_attempts", 5)
	viper.SetDefault("auth.login.window_seconds", 900)

	viper.SetDefault("events.driver", "local")
	viper.SetDefault("events.exchange", "orders.changes")
	viper.SetDefault("events.kafka.brokers", []string{"kafka:9092"})
	viper.SetDefault("events.kafka.topic", "orders.changes")

	viper.SetDefault("rabbitmq.host", "rabbitmq")
	viper.SetDefault("rabbitmq.port", 5672)

	viper.SetDefault("outbox.poll_interval_seconds", 1)
	viper.SetDefault("outbox.batch_size", 100)
	viper.SetDefault("outbox.max_retries", 5)
	viper.SetDefault("outbox.retry_interval_seconds", 30)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.jaeger_endpoint", "http://jaeger:14268/api/traces")
	viper.SetDefault("otel.jaeger_agent_port", "6831")

	viper.SetDefault("logger.level", "info")
}

func SetupLogger() {
	handler := logger.NewHandler(nil)
	log := slog.New(handler)
	slog.SetDefault(log)
}
