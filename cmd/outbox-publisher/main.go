package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/marketplace-backend/pkg/bootstrap"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/kafka"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/registry"
	"github.com/angelmondragon/marketplace-backend/pkg/pubsub"
)

func main() {
	bootstrap.Main("outbox-publisher", run)
}

func run(ctx context.Context, p *bootstrap.Process) error {
	res, err := p.Open(ctx, bootstrap.Needs{Tracing: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(context.Background()); err != nil {
			p.Logger.Error(ctx, "shutdown cleanup failed", err)
		}
	}()

	tr, err := openTransport(ctx, p, res)
	if err != nil {
		return fmt.Errorf("outbox transport: %w", err)
	}
	events, err := registry.NewEventRegistry(p.Config.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}

	gdb := res.DB.DB()
	service, err := NewService(ServiceParams{
		Config:      p.Config,
		Logger:      p.Logger,
		DB:          res.DB,
		Transport:   tr,
		Store:       outbox.NewRepository(gdb),
		Registry:    events,
		DeadLetters: outbox.NewDLQRepository(gdb),
		Metrics:     metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fmt.Errorf("create outbox publisher: %w", err)
	}

	ctx = p.Logger.WithField(ctx, "transport", p.Config.Outbox.TransportName())
	p.Logger.Info(ctx, "publishing outbox events")
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return metrics.Serve(gctx, p.Config.Service.MetricsAddr, p.Logger) })
	group.Go(func() error { return service.Run(gctx) })
	return group.Wait()
}

func openTransport(ctx context.Context, p *bootstrap.Process, res *bootstrap.Resources) (transport, error) {
	if p.Config.Outbox.TransportName() == config.OutboxTransportKafka {
		producer, err := kafka.NewProducer(p.Config.Kafka)
		if err != nil {
			return nil, err
		}
		res.Defer(producer.Close)
		return &kafkaTransport{producer: producer}, nil
	}

	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Logger)
	if err != nil {
		return nil, err
	}
	res.Defer(client.Close)
	return &pubSubTransport{client: client}, nil
}
