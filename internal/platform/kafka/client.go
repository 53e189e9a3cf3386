// Package kafka builds the franz-go client used by the notification relay.
package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"certtrace/internal/platform/config"
)

// New creates a producer client and pings the seed brokers.
// Returns nil when no brokers are configured.
func New(ctx context.Context, cfg config.KafkaConfig, logger *slog.Logger) (*kgo.Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(0),
	}
	if logger != nil {
		opts = append(opts, kgo.WithLogger(slogAdapter{logger: logger}))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}
	return client, nil
}

type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Level() kgo.LogLevel {
	return kgo.LogLevelWarn
}

func (a slogAdapter) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	switch level {
	case kgo.LogLevelError:
		a.logger.Error(msg, keyvals...)
	case kgo.LogLevelWarn:
		a.logger.Warn(msg, keyvals...)
	case kgo.LogLevelInfo:
		a.logger.Info(msg, keyvals...)
	default:
		a.logger.Debug(msg, keyvals...)
	}
}
