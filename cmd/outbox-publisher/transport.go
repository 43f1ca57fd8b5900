package main

import (
	"context"
	"errors"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/kafka"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/registry"
	"github.com/angelmondragon/marketplace-backend/pkg/pubsub"
)

// outboundMessage is one outbox row ready for the wire. Key keeps events of
// the same aggregate ordered where the transport supports it.
type outboundMessage struct {
	Key        string
	Data       []byte
	Attributes map[string]string
}

type transport interface {
	Name() string
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg outboundMessage) error
}

type pubSubPublisher interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg pubsub.Message) (string, error)
}

type pubSubTransport struct {
	client pubSubPublisher
}

func (t *pubSubTransport) Name() string { return config.OutboxTransportPubSub }

func (t *pubSubTransport) Ping(ctx context.Context) error { return t.client.Ping(ctx) }

func (t *pubSubTransport) Publish(ctx context.Context, topic string, msg outboundMessage) error {
	_, err := t.client.Publish(ctx, topic, pubsub.Message{
		Data:        msg.Data,
		Attributes:  msg.Attributes,
		OrderingKey: msg.Key,
	})
	if errors.Is(err, pubsub.ErrTopicNotConfigured) {
		return registry.NewNonRetryableError(err)
	}
	return err
}

type kafkaProducer interface {
	Ping(context.Context) error
	Publish(ctx context.Context, msg kafka.Message) error
}

type kafkaTransport struct {
	producer kafkaProducer
}

func (t *kafkaTransport) Name() string { return config.OutboxTransportKafka }

func (t *kafkaTransport) Ping(ctx context.Context) error { return t.producer.Ping(ctx) }

func (t *kafkaTransport) Publish(ctx context.Context, topic string, msg outboundMessage) error {
	return t.producer.Publish(ctx, kafka.Message{
		Topic:      topic,
		Key:        msg.Key,
		Value:      msg.Data,
		Attributes: msg.Attributes,
	})
}
