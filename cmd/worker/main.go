package main

import (
	"context"
	"fmt"

	"github.com/angelmondragon/marketplace-backend/internal/notifications"
	"github.com/angelmondragon/marketplace-backend/pkg/bootstrap"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/idempotency"
	"github.com/angelmondragon/marketplace-backend/pkg/kafka"
	"github.com/angelmondragon/marketplace-backend/pkg/pubsub"
)

func main() {
	bootstrap.Main("worker", run)
}

func run(ctx context.Context, p *bootstrap.Process) error {
	res, err := p.Open(ctx, bootstrap.Needs{Redis: true, Tracing: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(context.Background()); err != nil {
			p.Logger.Error(ctx, "shutdown cleanup failed", err)
		}
	}()

	guard, err := idempotency.New(res.Redis, p.Config.Eventing.ConsumerIdempotencyTTL, notifications.ConsumerName)
	if err != nil {
		return fmt.Errorf("idempotency guard: %w", err)
	}
	consumer, err := notifications.NewConsumer(notifications.NewRepository(res.DB.DB()), guard, p.Logger)
	if err != nil {
		return fmt.Errorf("notification consumer: %w", err)
	}

	ready := map[string]pinger{"database": res.DB, "redis": res.Redis}
	sources, err := eventSources(ctx, p, res, consumer, ready)
	if err != nil {
		return err
	}

	service, err := NewService(ServiceParams{Config: p.Config, Logger: p.Logger, Ready: ready, Sources: sources})
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}
	ctx = p.Logger.WithField(ctx, "transport", p.Config.Outbox.TransportName())
	p.Logger.Info(ctx, "consuming notification events")
	return service.Run(ctx)
}

// eventSources mirrors the publisher's transport: one kafka reader per
// domain topic, or the single pubsub notification subscription.
func eventSources(ctx context.Context, p *bootstrap.Process, res *bootstrap.Resources, consumer *notifications.Consumer, ready map[string]pinger) ([]source, error) {
	cfg := p.Config
	if cfg.Outbox.TransportName() == config.OutboxTransportKafka {
		var sources []source
		for _, topic := range []string{cfg.PubSub.OrdersTopic, cfg.PubSub.PayoutsTopic} {
			reader, err := kafka.NewConsumer(cfg.Kafka, topic)
			if err != nil {
				return nil, fmt.Errorf("kafka consumer %s: %w", topic, err)
			}
			res.Defer(reader.Close)
			sources = append(sources, source{
				name: "kafka:" + topic,
				run:  func(ctx context.Context) error { return consumer.RunKafka(ctx, reader) },
			})
		}
		return sources, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap pubsub: %w", err)
	}
	res.Defer(client.Close)
	ready["pubsub"] = client
	return []source{{
		name: "pubsub:" + cfg.PubSub.NotificationSubscription,
		run: func(ctx context.Context) error {
			return consumer.RunPubSub(ctx, client.NotificationSubscription())
		},
	}}, nil
}
