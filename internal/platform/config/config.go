// Package config loads service configuration from CERTTRACE_* environment
// variables, optionally layered over a TOML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"certtrace/pkg/domain"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Admin           string
	JWTSigningKey   string
	JWTIssuer       string
	JWTAudience     string
	ShutdownTimeout time.Duration
	Log             Log
	Database        Database
	Redis           RedisConfig
	Kafka           KafkaConfig
	Relay           Relay
}

type Log struct {
	Level  string
	Format string
}

// Database selects durable mode when URL is set.
type Database struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	Stream       string
	MaxLen       int64
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers    []string
	Topic      string
	ClientID   string
	Partitions int32
}

type Relay struct {
	Interval  time.Duration
	BatchSize int
}

// Default returns development defaults.
func Default() Server {
	return Server{
		Addr:            ":8080",
		JWTSigningKey:   "dev-secret-key-change-in-production",
		JWTIssuer:       "certtrace",
		JWTAudience:     "certtrace-api",
		ShutdownTimeout: 10 * time.Second,
		Log:             Log{Level: "info", Format: "json"},
		Database:        Database{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 30 * time.Minute},
		Redis: RedisConfig{
			Stream:       "certtrace:events",
			MaxLen:       100_000,
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{Topic: "certtrace.events", ClientID: "certtrace", Partitions: 1},
		Relay: Relay{Interval: time.Second, BatchSize: 100},
	}
}

// Load reads the TOML file named by CERTTRACE_CONFIG (if any) and then
// applies environment overrides.
func Load() (Server, error) {
	cfg := Default()
	if path := os.Getenv("CERTTRACE_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Server{}, fmt.Errorf("read config file: %w", err)
		}
		if err := Decode(raw, &cfg); err != nil {
			return Server{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Server{}, err
	}
	return cfg, cfg.Validate()
}

// FromEnv builds a config from defaults plus environment variables only.
func FromEnv() (Server, error) {
	cfg := Default()
	if err := applyEnv(&cfg); err != nil {
		return Server{}, err
	}
	return cfg, cfg.Validate()
}

// Decode merges a TOML document into cfg. Durations use Go syntax ("5s").
func Decode(raw []byte, cfg *Server) error {
	var file fileServer
	if err := toml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}
	return file.merge(cfg)
}

// Validate rejects configurations the service cannot start with.
func (c Server) Validate() error {
	admin, err := domain.ParseAddress(c.Admin)
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	if admin.IsZero() {
		return fmt.Errorf("admin must be a non-null address")
	}
	if c.JWTSigningKey == "" {
		return fmt.Errorf("jwt signing key is required")
	}
	if c.Relay.BatchSize <= 0 {
		return fmt.Errorf("relay batch size must be positive")
	}
	if c.Relay.Interval <= 0 {
		return fmt.Errorf("relay interval must be positive")
	}
	return nil
}

// AdminAddress returns the parsed administrator. Call after Validate.
func (c Server) AdminAddress() domain.Address {
	a, _ := domain.ParseAddress(c.Admin)
	return a
}

// Durable reports whether a database is configured.
func (c Server) Durable() bool {
	return c.Database.URL != ""
}

func applyEnv(cfg *Server) error {
	setString(&cfg.Addr, "CERTTRACE_ADDR")
	setString(&cfg.Admin, "CERTTRACE_ADMIN")
	setString(&cfg.JWTSigningKey, "CERTTRACE_JWT_SIGNING_KEY")
	setString(&cfg.JWTIssuer, "CERTTRACE_JWT_ISSUER")
	setString(&cfg.JWTAudience, "CERTTRACE_JWT_AUDIENCE")
	setString(&cfg.Log.Level, "CERTTRACE_LOG_LEVEL")
	setString(&cfg.Log.Format, "CERTTRACE_LOG_FORMAT")
	setString(&cfg.Database.URL, "CERTTRACE_DATABASE_URL")
	setString(&cfg.Redis.URL, "CERTTRACE_REDIS_URL")
	setString(&cfg.Redis.Stream, "CERTTRACE_REDIS_STREAM")
	setString(&cfg.Kafka.Topic, "CERTTRACE_KAFKA_TOPIC")
	if v := os.Getenv("CERTTRACE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if err := setDuration(&cfg.ShutdownTimeout, "CERTTRACE_SHUTDOWN_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Relay.Interval, "CERTTRACE_RELAY_INTERVAL"); err != nil {
		return err
	}
	if v := os.Getenv("CERTTRACE_RELAY_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CERTTRACE_RELAY_BATCH_SIZE: %w", err)
		}
		cfg.Relay.BatchSize = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
