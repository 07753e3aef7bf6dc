package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/zonewatch/zonewatch/notifier/internal/config"
	"github.com/zonewatch/zonewatch/pkg/types"
)

// kafkaSource reads alert envelopes from a Kafka topic.
type kafkaSource struct {
	cfg      config.Source
	dialer   *kafka.Dialer
	endpoint string
}

func newKafka(cfg config.Source) (*kafkaSource, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("source: kafka brokers are required")
	}
	tlsCfg, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("source: kafka tls: %w", err)
	}
	return &kafkaSource{
		cfg: cfg,
		dialer: &kafka.Dialer{
			Timeout:   handshakeTimeout,
			DualStack: true,
			TLS:       tlsCfg,
		},
		endpoint: "kafka://" + strings.Join(cfg.Kafka.Brokers, ",") + "/" + cfg.Kafka.Topic,
	}, nil
}

func (s *kafkaSource) Endpoint() string { return s.endpoint }

func (s *kafkaSource) Run(ctx context.Context, emit Emit) error {
	return run(ctx, s.endpoint, s.cfg.Reconnect, emit, s.session)
}

func (s *kafkaSource) session(ctx context.Context, emit Emit) (bool, error) {
	if err := s.ping(ctx); err != nil {
		return false, err
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        s.cfg.Kafka.Brokers,
		Topic:          s.cfg.Kafka.Topic,
		GroupID:        s.cfg.Kafka.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
		Dialer:         s.dialer,
	})
	defer r.Close()

	if s.cfg.Kafka.GroupID == "" {
		// Without a group the reader would replay the topic from the start.
		if err := r.SetOffset(kafka.LastOffset); err != nil {
			return false, fmt.Errorf("set offset: %w", err)
		}
	}

	emit(types.Connected(s.endpoint))

	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return true, nil
			}
			return true, fmt.Errorf("read message: %w", err)
		}
		if ev, ok := decodeEnvelope(s.endpoint, msg.Value); ok {
			emit(ev)
		}
	}
}

// ping checks that at least one broker accepts a connection.
func (s *kafkaSource) ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range s.cfg.Kafka.Brokers {
		conn, err := s.dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		conn.Close()
		return nil
	}
	return fmt.Errorf("dial kafka brokers: %w", lastErr)
}
