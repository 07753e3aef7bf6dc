package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zonewatch/zonewatch/notifier/internal/config"
	"github.com/zonewatch/zonewatch/pkg/types"
)

// redisSource reads alert envelopes from a Redis Pub/Sub channel.
type redisSource struct {
	cfg      config.Source
	client   *redis.Client
	endpoint string
}

func newRedis(cfg config.Source) (*redisSource, error) {
	tlsCfg, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("source: redis tls: %w", err)
	}
	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Redis.Addr,
		Password:        cfg.Redis.Password(),
		DB:              cfg.Redis.DB,
		TLSConfig:       tlsCfg,
		DialTimeout:     handshakeTimeout,
		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: time.Second,
	})
	return &redisSource{
		cfg:      cfg,
		client:   client,
		endpoint: fmt.Sprintf("redis://%s/%s", cfg.Redis.Addr, cfg.Redis.Channel),
	}, nil
}

func (s *redisSource) Endpoint() string { return s.endpoint }

func (s *redisSource) Run(ctx context.Context, emit Emit) error {
	defer s.client.Close()
	return run(ctx, s.endpoint, s.cfg.Reconnect, emit, s.session)
}

func (s *redisSource) session(ctx context.Context, emit Emit) (bool, error) {
	// Fail fast when the server is unreachable.
	if err := s.client.Ping(ctx).Err(); err != nil {
		return false, fmt.Errorf("redis ping %s: %w", s.cfg.Redis.Addr, err)
	}

	ps := s.client.Subscribe(ctx, s.cfg.Redis.Channel)
	defer ps.Close()

	// The first reply confirms the subscription.
	if _, err := ps.Receive(ctx); err != nil {
		return false, fmt.Errorf("subscribe %q: %w", s.cfg.Redis.Channel, err)
	}
	emit(types.Connected(s.endpoint))

	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return true, nil
			}
			return true, fmt.Errorf("receive: %w", err)
		}
		if ev, ok := decodeEnvelope(s.endpoint, []byte(msg.Payload)); ok {
			emit(ev)
		}
	}
}
