package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func TestNewServiceRequiresSources(t *testing.T) {
	if _, err := NewService(ServiceParams{Config: &config.Config{}, Logger: testLogger()}); err == nil {
		t.Fatalf("expected error without sources")
	}
}

func TestRunFailsWhenDependencyIsDown(t *testing.T) {
	started := false
	svc, err := NewService(ServiceParams{
		Config: &config.Config{},
		Logger: testLogger(),
		Ready:  map[string]pinger{"redis": stubPinger{err: errors.New("refused")}},
		Sources: []source{{name: "noop", run: func(context.Context) error {
			started = true
			return nil
		}}},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected readiness error")
	}
	if started {
		t.Fatalf("sources must not start before readiness")
	}
}

func TestRunCancelsSiblingsWhenOneSourceFails(t *testing.T) {
	siblingStopped := make(chan struct{})
	svc, err := NewService(ServiceParams{
		Config: &config.Config{},
		Logger: testLogger(),
		Sources: []source{
			{name: "broken", run: func(context.Context) error { return errors.New("subscription deleted") }},
			{name: "healthy", run: func(ctx context.Context) error {
				<-ctx.Done()
				close(siblingStopped)
				return ctx.Err()
			}},
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected source failure to surface")
	}
	select {
	case <-siblingStopped:
	case <-time.After(time.Second):
		t.Fatalf("healthy source was not cancelled")
	}
}
