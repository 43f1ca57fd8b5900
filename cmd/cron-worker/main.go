package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/marketplace-backend/internal/cron"
	"github.com/angelmondragon/marketplace-backend/pkg/bootstrap"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
)

func main() {
	bootstrap.Main("cron-worker", run)
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

	// One lock per environment so replicas never overlap a cycle.
	lock, err := cron.NewRedisLock(res.Redis, res.Redis.LockKey("cron-worker", envOrLocal(p.Config.App.Env)), p.Config.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	registry, err := buildRegistry(ctx, p.Config, p.Logger, res.DB, res.Redis)
	if err != nil {
		return fmt.Errorf("build cron jobs: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     p.Logger,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   p.Config.Cron.Interval,
		JobTimeout: p.Config.Cron.JobTimeout,
	})
	if err != nil {
		return fmt.Errorf("create cron service: %w", err)
	}

	p.Logger.Info(p.Logger.WithField(ctx, "jobs", registry.Names()), "cron schedule loaded")
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return metrics.Serve(gctx, p.Config.Service.MetricsAddr, p.Logger) })
	group.Go(func() error { return service.Run(gctx) })
	return group.Wait()
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
