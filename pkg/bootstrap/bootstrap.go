// Package bootstrap holds the process plumbing shared by every binary under
// cmd/: env loading, logger setup, tracing, and the database and redis
// handles with their shutdown order.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/migrate"
	"github.com/angelmondragon/marketplace-backend/pkg/redis"
	"github.com/angelmondragon/marketplace-backend/pkg/telemetry"
)

// Process is what a binary's run function receives.
type Process struct {
	Name   string
	Config *config.Config
	Logger *logger.Logger
}

// Load reads .env (when present) and the MARKETPLACE_ environment, then
// builds the configured logger for service.
func Load(service string) (*Process, error) {
	boot := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil {
		boot.Debug(context.Background(), "no .env file, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return &Process{Name: service, Logger: boot}, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = service

	return &Process{
		Name:   service,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: service,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
			Format:      cfg.App.LogFormat,
		}),
	}, nil
}

// Main loads the process, runs fn until SIGINT/SIGTERM and exits non-zero on
// failure. Cancellation is a clean stop.
func Main(service string, fn func(ctx context.Context, p *Process) error) {
	p, err := Load(service)
	if err != nil {
		p.Logger.Error(context.Background(), "startup failed", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = p.Logger.WithFields(ctx, map[string]any{"env": p.Config.App.Env, "serviceKind": service})

	if err := fn(ctx, p); err != nil && !errors.Is(err, context.Canceled) {
		p.Logger.Error(ctx, service+" stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	p.Logger.Info(ctx, service+" stopped")
}

// Needs selects the shared resources a binary opens.
type Needs struct {
	Redis   bool
	Tracing bool
}

// Resources are closed in reverse open order by Close.
type Resources struct {
	DB    *db.Client
	Redis *redis.Client

	closers []func(context.Context) error
}

// Open connects the database (running dev migrations when enabled) and
// whatever else needs asks for. On error everything opened so far is closed.
func (p *Process) Open(ctx context.Context, needs Needs) (*Resources, error) {
	res := &Resources{}
	fail := func(step string, err error) (*Resources, error) {
		return nil, multierr.Append(fmt.Errorf("%s: %w", step, err), res.Close(context.Background()))
	}

	if needs.Tracing {
		shutdown, err := telemetry.Init(ctx, p.Config.Telemetry, p.Name, p.Config.Service.Version)
		if err != nil {
			return fail("init tracing", err)
		}
		res.defer_(shutdown)
	}

	dbClient, err := db.New(ctx, p.Config.DB, p.Logger)
	if err != nil {
		return fail("bootstrap database", err)
	}
	res.DB = dbClient
	res.defer_(func(context.Context) error { return dbClient.Close() })
	if err := migrate.MaybeRunDev(ctx, p.Config, p.Logger, dbClient); err != nil {
		return fail("dev migrations", err)
	}

	if needs.Redis {
		redisClient, err := redis.New(ctx, p.Config.Redis, p.Logger)
		if err != nil {
			return fail("bootstrap redis", err)
		}
		res.Redis = redisClient
		res.defer_(func(context.Context) error { return redisClient.Close() })
	}
	return res, nil
}

// Defer registers an extra shutdown step, run before anything opened earlier.
func (r *Resources) Defer(fn func() error) {
	r.defer_(func(context.Context) error { return fn() })
}

func (r *Resources) defer_(fn func(context.Context) error) {
	r.closers = append(r.closers, fn)
}

// Close runs every shutdown step even if some fail.
func (r *Resources) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var errs error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, r.closers[i](ctx))
	}
	r.closers = nil
	return errs
}
