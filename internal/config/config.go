package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the engine needs from the environment. A local .env
// file is honoured when present; real deployments inject plain env vars.
type Config struct {
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	Engine   EngineConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

type RabbitMQConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string
}

func (r RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", r.User, r.Password, r.Host, r.Port, r.VHost)
}

type EngineConfig struct {
	// FinalizeTimeout bounds the wait on the sale-finalization collaborator.
	// Past it the sale is failed-but-unknown and the order is retained.
	FinalizeTimeout time.Duration
	// OrphanPolicy decides what reconciliation does with a snapshot whose
	// table is libre: "reattach" or "discard".
	OrphanPolicy string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Database: DatabaseConfig{
			Host:     getenv("DB_HOST", "localhost"),
			Port:     getenvInt("DB_PORT", 5432),
			User:     getenv("DB_USER", "salon"),
			Password: os.Getenv("DB_PASSWORD"),
			Database: getenv("DB_NAME", "salon"),
			SSLMode:  getenv("DB_SSLMODE", "disable"),
		},
		RabbitMQ: RabbitMQConfig{
			Host:     getenv("RABBITMQ_HOST", "localhost"),
			Port:     getenvInt("RABBITMQ_PORT", 5672),
			User:     getenv("RABBITMQ_USER", "guest"),
			Password: getenv("RABBITMQ_PASSWORD", "guest"),
			VHost:    getenv("RABBITMQ_VHOST", ""),
		},
		Engine: EngineConfig{
			FinalizeTimeout: time.Duration(getenvInt("FINALIZE_TIMEOUT_SECONDS", 15)) * time.Second,
			OrphanPolicy:    getenv("ORPHAN_POLICY", "reattach"),
		},
	}

	if cfg.Engine.OrphanPolicy != "reattach" && cfg.Engine.OrphanPolicy != "discard" {
		return Config{}, fmt.Errorf("invalid ORPHAN_POLICY %q: want reattach or discard", cfg.Engine.OrphanPolicy)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
