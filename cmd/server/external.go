package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	jwttoken "certtrace/internal/jwt_token"
	"certtrace/internal/outbox/relay"
	kafkasink "certtrace/internal/outbox/sink/kafka"
	redissink "certtrace/internal/outbox/sink/redis"
	"certtrace/internal/platform/config"
	"certtrace/internal/platform/kafka"
	platformredis "certtrace/internal/platform/redis"
	"certtrace/pkg/platform/middleware/auth"
)

// external holds the optional brokers. Either may be nil.
type external struct {
	redis *platformredis.Client
	kafka *kgo.Client
	sinks []relay.Sink
	log   *slog.Logger
}

func openExternal(ctx context.Context, cfg config.Server, log *slog.Logger) (*external, error) {
	ext := &external{log: log}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		ext.redis = redisClient
		ext.sinks = append(ext.sinks, redissink.New(redisClient.Client, cfg.Redis.Stream,
			redissink.WithMaxLen(cfg.Redis.MaxLen)))
	}

	kafkaClient, err := kafka.New(ctx, cfg.Kafka, log)
	if err != nil {
		ext.Close()
		return nil, err
	}
	if kafkaClient != nil {
		ext.kafka = kafkaClient
		partitions := cfg.Kafka.Partitions
		if partitions <= 0 {
			partitions = -1
		}
		if err := kafkasink.EnsureTopic(ctx, kafkaClient, cfg.Kafka.Topic, partitions, -1); err != nil {
			ext.Close()
			return nil, fmt.Errorf("kafka: %w", err)
		}
		ext.sinks = append(ext.sinks, kafkasink.New(kafkaClient, cfg.Kafka.Topic))
	}

	if len(ext.sinks) == 0 {
		log.Warn("no notification sink configured, events stay in the outbox")
	}
	return ext, nil
}

// revocations returns the token denylist, or nil without Redis.
func (e *external) revocations() auth.TokenRevocationChecker {
	if e.redis == nil {
		return nil
	}
	return jwttoken.NewDenylist(e.redis.Client)
}

func (e *external) health() []healthCheck {
	var checks []healthCheck
	if e.redis != nil {
		checks = append(checks, healthCheck{name: "redis", check: e.redis.Health})
	}
	if e.kafka != nil {
		checks = append(checks, healthCheck{name: "kafka", check: e.kafka.Ping})
	}
	return checks
}

func (e *external) Close() {
	if e.kafka != nil {
		e.kafka.Close()
	}
	if e.redis != nil {
		closeQuietly(e.log, "redis", e.redis.Close)
	}
}
