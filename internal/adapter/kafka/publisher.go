package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/pet-microclimate/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces prediction events to a Kafka topic.
// It implements domain.EventPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the prediction topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes one event. Events at the same location share a key and so a
// partition.
func (p *Publisher) Publish(ctx context.Context, event domain.PredictionEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish prediction: %w", err)
	}
	p.logger.Debug("prediction published", "topic", p.writer.Topic, "key", string(msg.Key))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a PredictionEvent into a Kafka message.
func serializeToMessage(event domain.PredictionEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize prediction event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(locationKey(event.Lat, event.Lon)),
		Value: data,
		Time:  event.Timestamp,
		Headers: []kafkago.Header{
			{Key: "pet_selected", Value: []byte(event.PETSelected)},
			{Key: "logged_at", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}

func locationKey(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}
