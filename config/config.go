package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	JWTSecret   []byte
	Port        string
	GRPCPort    string
	RedisAddr   string
	LogLevel    string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	HeartbeatInterval    time.Duration
	AllowedOrigins       []string
	WSInsecureSkipVerify bool
	EventsPerSecond      float64
	EventBurst           int
	SendBuffer           int
	NotifyWorkers        int
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		JWTSecret:    []byte(os.Getenv("JWT_SECRET")),
		Port:         getEnv("PORT", "8443"),
		GRPCPort:     getEnv("GRPC_PORT", "9090"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),
	}

	var err error
	if cfg.SMTPPort, err = getInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.HeartbeatInterval, err = getDuration("HEARTBEAT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.EventBurst, err = getInt("WS_EVENT_BURST", 40); err != nil {
		return nil, err
	}
	if cfg.SendBuffer, err = getInt("WS_SEND_BUFFER", 64); err != nil {
		return nil, err
	}
	if cfg.NotifyWorkers, err = getInt("NOTIFY_WORKERS", 4); err != nil {
		return nil, err
	}
	rps, err := getInt("WS_EVENTS_PER_SECOND", 20)
	if err != nil {
		return nil, err
	}
	cfg.EventsPerSecond = float64(rps)
	cfg.WSInsecureSkipVerify = os.Getenv("WS_INSECURE_SKIP_VERIFY") == "true"
	if origins := os.Getenv("WS_ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = cfg.SMTPUsername
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if len(c.JWTSecret) == 0 {
		return errors.New("JWT_SECRET is required")
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("HEARTBEAT_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
