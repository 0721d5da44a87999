// internal/app/external/rewardsink/kafka.go
package rewardsink

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nestforge/missionhub/internal/domain/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaSink publishes reward events to a Kafka topic, keyed by group id
// so all events of one settlement land on one partition in order.
type KafkaSink struct {
	w   *kafka.Writer
	log *zap.Logger
}

// NewKafkaSink builds a sink over a comma-separated broker list.
func NewKafkaSink(brokers, topic string, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{
		w: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 10 * time.Second,
		},
		log: logger,
	}
}

func (s *KafkaSink) Emit(ctx context.Context, ev models.RewardEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(ev.GroupID.Hex()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.EventID)},
		},
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		s.log.Warn("kafka reward emit failed",
			zap.String("event_id", ev.EventID),
			zap.Error(err))
		return err
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.w.Close()
}
