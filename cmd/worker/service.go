package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/void1100/Bank-management-system/pkg/logger"
)

type loopRunner interface {
	Run(ctx context.Context) error
}

// ServiceParams groups the worker processes. Metrics is optional.
type ServiceParams struct {
	Logger     *logger.Logger
	Dispatcher loopRunner
	Metrics    func(ctx context.Context) error
}

type process struct {
	name string
	run  func(ctx context.Context) error
}

// Service runs the dispatcher loop next to the metrics endpoint. The first
// process to fail stops the others.
type Service struct {
	logg      *logger.Logger
	processes []process
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Dispatcher == nil {
		return nil, errors.New("dispatcher runner is required")
	}
	procs := []process{{name: "dispatcher", run: params.Dispatcher.Run}}
	if params.Metrics != nil {
		procs = append(procs, process{name: "metrics", run: params.Metrics})
	}
	return &Service{logg: params.Logger, processes: procs}, nil
}

func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range s.processes {
		g.Go(func() error {
			err := p.run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				s.logg.Error(s.logg.WithField(ctx, "process", p.name), "worker process stopped unexpectedly", err)
				return fmt.Errorf("%s: %w", p.name, err)
			}
			return err
		})
	}
	err := g.Wait()
	if ctx.Err() != nil {
		s.logg.Info(ctx, "worker context canceled")
	}
	return err
}
