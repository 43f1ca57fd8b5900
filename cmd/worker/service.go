package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// source feeds deliveries to the notification consumer until ctx ends.
type source struct {
	name string
	run  func(ctx context.Context) error
}

type pinger interface {
	Ping(context.Context) error
}

type ServiceParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	Ready   map[string]pinger
	Sources []source
}

type Service struct {
	cfg     *config.Config
	logg    *logger.Logger
	ready   map[string]pinger
	sources []source
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Sources) == 0 {
		return nil, errors.New("at least one event source is required")
	}
	return &Service{
		cfg:     params.Config,
		logg:    params.Logger,
		ready:   params.Ready,
		sources: params.Sources,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, dep := range s.ready {
		if dep == nil {
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

// Run blocks until ctx is cancelled or any source stops with an error; the
// remaining sources are then cancelled too.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, src := range s.sources {
		src := src
		group.Go(func() error {
			srcCtx := s.logg.WithField(groupCtx, "source", src.name)
			s.logg.Info(srcCtx, "event source started")
			err := src.run(srcCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(srcCtx, "event source stopped unexpectedly", err)
				return fmt.Errorf("%s: %w", src.name, err)
			}
			return err
		})
	}
	return group.Wait()
}
