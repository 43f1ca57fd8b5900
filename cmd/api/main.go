package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/marketplace-backend/api/routes"
	"github.com/angelmondragon/marketplace-backend/pkg/bootstrap"
	"github.com/angelmondragon/marketplace-backend/pkg/instance"
)

const shutdownGrace = 15 * time.Second

func main() {
	bootstrap.Main("api", serve)
}

func serve(ctx context.Context, p *bootstrap.Process) error {
	res, err := p.Open(ctx, bootstrap.Needs{Redis: true, Tracing: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(context.Background()); err != nil {
			p.Logger.Error(ctx, "shutdown cleanup failed", err)
		}
	}()

	deps, err := buildRouterDeps(ctx, p.Config, p.Logger, res.DB, res.Redis)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	// Cloud Run injects PORT; it wins over the configured one.
	port := p.Config.App.Port
	if v := os.Getenv("PORT"); v != "" {
		port = v
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx = p.Logger.WithFields(ctx, map[string]any{"addr": server.Addr, "instance": instance.GetID()})

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		p.Logger.Info(ctx, "api listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		p.Logger.Info(ctx, "draining api server")
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
