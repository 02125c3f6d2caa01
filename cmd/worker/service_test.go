package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/void1100/Bank-management-system/pkg/logger"
)

type fakeRunner struct {
	err   error
	block bool
}

func (f fakeRunner) Run(ctx context.Context) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func TestNewServiceRequiresDispatcher(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected missing dispatcher to fail")
	}
	if _, err := NewService(ServiceParams{Dispatcher: fakeRunner{}}); err == nil {
		t.Fatal("expected missing logger to fail")
	}
}

func TestRunReturnsDispatcherError(t *testing.T) {
	boom := errors.New("database ping failed")
	svc, err := NewService(ServiceParams{Logger: testLogger(), Dispatcher: fakeRunner{err: boom}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected dispatcher error, got %v", err)
	}
}

func TestRunStopsWhenMetricsFails(t *testing.T) {
	boom := errors.New("address in use")
	svc, err := NewService(ServiceParams{
		Logger:     testLogger(),
		Dispatcher: fakeRunner{block: true},
		Metrics:    func(context.Context) error { return boom },
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected metrics error, got %v", err)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	svc, err := NewService(ServiceParams{Logger: testLogger(), Dispatcher: fakeRunner{block: true}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
