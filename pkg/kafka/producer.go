// Package kafka carries outbox events over Kafka as an alternative to Pub/Sub.
package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
)

var producerTracer = otel.Tracer("marketplace/kafka/producer")

var errNoBrokers = errors.New("kafka brokers are required")

// Message is the transport-neutral shape of an outbound event.
type Message struct {
	Topic      string
	Key        string
	Value      []byte
	Attributes map[string]string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer writes messages to any topic through a single writer.
type Producer struct {
	writer  messageWriter
	brokers []string
}

// NewProducer builds a producer for the configured brokers.
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}
	return &Producer{
		brokers: brokers,
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Balancer:               &kafkago.Hash{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
			RequiredAcks:           kafkago.RequireAll,
			Transport:              &kafkago.Transport{ClientID: cfg.ClientID},
		},
	}, nil
}

// Publish writes one message synchronously. Messages with the same key land on the same partition.
func (p *Producer) Publish(ctx context.Context, msg Message) error {
	if p == nil || p.writer == nil {
		return errors.New("kafka producer not initialized")
	}
	if msg.Topic == "" {
		return errors.New("kafka topic is required")
	}
	out := toKafkaMessage(msg)

	ctx, span := producerTracer.Start(ctx, "send "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(msg.Topic),
			semconv.MessagingKafkaMessageKey(msg.Key),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{msg: &out})

	if err := p.writer.WriteMessages(ctx, out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Ping dials the first reachable broker.
func (p *Producer) Ping(ctx context.Context) error {
	if p == nil {
		return errors.New("kafka producer not initialized")
	}
	var lastErr error = errNoBrokers
	for _, broker := range p.brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return lastErr
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func toKafkaMessage(msg Message) kafkago.Message {
	out := kafkago.Message{
		Topic: msg.Topic,
		Key:   []byte(msg.Key),
		Value: msg.Value,
	}
	for k, v := range msg.Attributes {
		out.Headers = append(out.Headers, kafkago.Header{Key: k, Value: []byte(v)})
	}
	return out
}
