package kafka

import (
	"context"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
)

var consumerTracer = otel.Tracer("marketplace/kafka/consumer")

// Handler processes one delivered message. Returning an error stops the consumer
// before the offset is committed so the message is redelivered.
type Handler func(ctx context.Context, msg Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer reads one topic as part of a consumer group.
type Consumer struct {
	reader  messageReader
	topic   string
	groupID string
}

// NewConsumer builds a group reader for topic.
func NewConsumer(cfg config.KafkaConfig, topic string) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errNoBrokers
	}
	return &Consumer{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers: cfg.Brokers,
			Topic:   topic,
			GroupID: cfg.GroupID,
		}),
		topic:   topic,
		groupID: cfg.GroupID,
	}, nil
}

// Consume blocks until ctx is cancelled or the handler fails.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		if err := c.process(ctx, msg, handler); err != nil {
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafkago.Message, handler Handler) error {
	parent := otel.GetTextMapPropagator().Extract(ctx, headerCarrier{msg: &msg})
	spanCtx, span := consumerTracer.Start(parent, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
		),
	)
	defer span.End()

	if err := handler(spanCtx, fromKafkaMessage(msg)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Close stops the reader.
func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

func fromKafkaMessage(msg kafkago.Message) Message {
	attrs := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		attrs[h.Key] = string(h.Value)
	}
	return Message{
		Topic:      msg.Topic,
		Key:        string(msg.Key),
		Value:      msg.Value,
		Attributes: attrs,
	}
}
