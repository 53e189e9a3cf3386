package config

import (
	"fmt"
	"time"
)

// fileServer mirrors Server with optional fields and string durations so a
// partial file only overrides what it names.
type fileServer struct {
	Addr            *string `toml:"addr"`
	Admin           *string `toml:"admin"`
	JWTSigningKey   *string `toml:"jwt_signing_key"`
	JWTIssuer       *string `toml:"jwt_issuer"`
	JWTAudience     *string `toml:"jwt_audience"`
	ShutdownTimeout *string `toml:"shutdown_timeout"`
	Log             struct {
		Level  *string `toml:"level"`
		Format *string `toml:"format"`
	} `toml:"log"`
	Database struct {
		URL          *string `toml:"url"`
		MaxOpenConns *int    `toml:"max_open_conns"`
		MaxIdleConns *int    `toml:"max_idle_conns"`
	} `toml:"database"`
	Redis struct {
		URL    *string `toml:"url"`
		Stream *string `toml:"stream"`
		MaxLen *int64  `toml:"max_len"`
	} `toml:"redis"`
	Kafka struct {
		Brokers    []string `toml:"brokers"`
		Topic      *string  `toml:"topic"`
		ClientID   *string  `toml:"client_id"`
		Partitions *int32   `toml:"partitions"`
	} `toml:"kafka"`
	Relay struct {
		Interval  *string `toml:"interval"`
		BatchSize *int    `toml:"batch_size"`
	} `toml:"relay"`
}

func (f fileServer) merge(cfg *Server) error {
	assign(&cfg.Addr, f.Addr)
	assign(&cfg.Admin, f.Admin)
	assign(&cfg.JWTSigningKey, f.JWTSigningKey)
	assign(&cfg.JWTIssuer, f.JWTIssuer)
	assign(&cfg.JWTAudience, f.JWTAudience)
	assign(&cfg.Log.Level, f.Log.Level)
	assign(&cfg.Log.Format, f.Log.Format)
	assign(&cfg.Database.URL, f.Database.URL)
	assign(&cfg.Database.MaxOpenConns, f.Database.MaxOpenConns)
	assign(&cfg.Database.MaxIdleConns, f.Database.MaxIdleConns)
	assign(&cfg.Redis.URL, f.Redis.URL)
	assign(&cfg.Redis.Stream, f.Redis.Stream)
	assign(&cfg.Redis.MaxLen, f.Redis.MaxLen)
	assign(&cfg.Kafka.Topic, f.Kafka.Topic)
	assign(&cfg.Kafka.ClientID, f.Kafka.ClientID)
	assign(&cfg.Kafka.Partitions, f.Kafka.Partitions)
	assign(&cfg.Relay.BatchSize, f.Relay.BatchSize)
	if len(f.Kafka.Brokers) > 0 {
		cfg.Kafka.Brokers = f.Kafka.Brokers
	}
	if err := assignDuration(&cfg.ShutdownTimeout, f.ShutdownTimeout, "shutdown_timeout"); err != nil {
		return err
	}
	return assignDuration(&cfg.Relay.Interval, f.Relay.Interval, "relay.interval")
}

func assign[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func assignDuration(dst *time.Duration, src *string, name string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("config %s: %w", name, err)
	}
	*dst = d
	return nil
}
