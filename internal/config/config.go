package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresDSN    string
	MongoURI       string
	RedisAddr      string
	RabbitURL      string
	HTTPAddr       string
	OTLPEndpoint   string
	IdempotencyTTL time.Duration
	// ReminderWindow is how far ahead the reminder worker looks for upcoming
	// events.
	ReminderWindow  time.Duration
	AvailabilityTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	idempTTL, _ := time.ParseDuration(os.Getenv("IDEMPOTENCY_TTL"))
	if idempTTL == 0 {
		idempTTL = time.Hour
	}

	reminderWindow, _ := time.ParseDuration(os.Getenv("REMINDER_WINDOW"))
	if reminderWindow == 0 {
		reminderWindow = 24 * time.Hour
	}

	availabilityTTL, _ := time.ParseDuration(os.Getenv("AVAILABILITY_TTL"))
	if availabilityTTL == 0 {
		availabilityTTL = 30 * time.Second
	}

	return &Config{
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		MongoURI:        os.Getenv("MONGO_URI"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RabbitURL:       os.Getenv("RABBIT_URL"),
		HTTPAddr:        httpAddr,
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		IdempotencyTTL:  idempTTL,
		ReminderWindow:  reminderWindow,
		AvailabilityTTL: availabilityTTL,
	}, nil
}
