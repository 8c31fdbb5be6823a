// Package kafka publishes ingested advisories to a Kafka topic so that
// downstream consumers can react to new or changed warnings.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/tbourn/go-meteo-warnings/internal/config"
	"github.com/tbourn/go-meteo-warnings/internal/domain"
)

// messageWriter is the part of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes one message per advisory, keyed by advisory id so that
// updates of the same advisory land on the same partition.
type Publisher struct {
	writer messageWriter
}

// NewPublisher creates a producer for the configured advisory topic.
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Publisher{writer: w}
}

// Event is the message payload.
type Event struct {
	ID          string     `json:"id"`
	EventName   string     `json:"event_name"`
	Level       int        `json:"level"`
	Probability int        `json:"probability"`
	ValidFrom   *time.Time `json:"valid_from"`
	ValidTo     *time.Time `json:"valid_to"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Office      string     `json:"office"`
	Regions     []string   `json:"regions"`
	IngestedAt  time.Time  `json:"ingested_at"`
}

// PublishAdvisories writes all advisories in a single batch.
func (p *Publisher) PublishAdvisories(ctx context.Context, advisories []domain.Advisory, ingestedAt time.Time) error {
	if len(advisories) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(advisories))
	for i := range advisories {
		msg, err := serializeToMessage(advisories[i], ingestedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes and closes the producer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func serializeToMessage(a domain.Advisory, ingestedAt time.Time) (kafkago.Message, error) {
	regions := a.Regions
	if regions == nil {
		regions = []string{}
	}
	data, err := json.Marshal(Event{
		ID:          a.ID,
		EventName:   a.EventName,
		Level:       a.Level,
		Probability: a.Probability,
		ValidFrom:   a.ValidFrom,
		ValidTo:     a.ValidTo,
		PublishedAt: a.PublishedAt,
		Office:      a.Office,
		Regions:     regions,
		IngestedAt:  ingestedAt.UTC(),
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize advisory %s: %w", a.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(a.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_name", Value: []byte(a.EventName)},
			{Key: "level", Value: []byte(strconv.Itoa(a.Level))},
			{Key: "ingested_at", Value: []byte(ingestedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
