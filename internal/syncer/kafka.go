package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"revtrack/internal/config"
	"revtrack/internal/logging"
	"revtrack/internal/reviewstore"
)

const kafkaChunkSize = 100

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaTarget publishes one keyed message per review. Soft-deleted reviews
// are published as tombstones (nil value) so compacted topics drop them.
type KafkaTarget struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
	now    func() time.Time
}

// NewKafkaTarget builds a writer for the configured brokers and topic.
func NewKafkaTarget(cfg config.Kafka, logger *slog.Logger) (*KafkaTarget, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka target: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka target: topic is required")
	}
	timeout := time.Duration(cfg.WriteTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           timeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Transport:              &kafka.Transport{ClientID: cfg.ClientID},
	}
	return NewKafkaTargetWithWriter(writer, cfg.Topic, logger), nil
}

// NewKafkaTargetWithWriter wraps an existing writer.
func NewKafkaTargetWithWriter(writer messageWriter, topic string, logger *slog.Logger) *KafkaTarget {
	return &KafkaTarget{
		writer: writer,
		topic:  topic,
		logger: logging.NewComponentLogger(logger, "sync-kafka"),
		now:    time.Now,
	}
}

func (t *KafkaTarget) Name() string { return config.TargetKafka }

func (t *KafkaTarget) Close() error { return t.writer.Close() }

// Push writes the delta in order, in chunks.
func (t *KafkaTarget) Push(ctx context.Context, delta reviewstore.Delta) error {
	msgs := make([]kafka.Message, 0, len(delta.Reviews))
	now := t.now()
	for _, rv := range delta.Reviews {
		rec := RecordFor(rv, now)
		msg := kafka.Message{
			Key:  []byte(rec.Key()),
			Time: now,
			Headers: []kafka.Header{
				{Key: "op", Value: []byte(rec.Op)},
				{Key: "place_id", Value: []byte(rec.PlaceID)},
				{Key: "session_id", Value: []byte(strconv.FormatInt(rec.SessionID, 10))},
			},
		}
		if rec.Op == OpUpsert {
			value, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode review %s: %w", rec.Key(), err)
			}
			msg.Value = value
		}
		msgs = append(msgs, msg)
	}

	for start := 0; start < len(msgs); start += kafkaChunkSize {
		end := min(start+kafkaChunkSize, len(msgs))
		if err := t.writer.WriteMessages(ctx, msgs[start:end]...); err != nil {
			return fmt.Errorf("publish to %s: %w", t.topic, err)
		}
	}
	t.logger.Debug("published delta",
		logging.String(logging.FieldPlaceID, delta.PlaceID),
		logging.String("topic", t.topic),
		logging.Int("messages", len(msgs)),
	)
	return nil
}
