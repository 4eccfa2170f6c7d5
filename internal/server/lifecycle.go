// Package server runs the tracker's network services under one lifecycle:
// start together, stop in reverse order on a signal, a cancelled context, or
// the first service failure.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component. Start blocks until Stop is called or
// the service fails.
type Service interface {
	Start() error
	Stop()
}

// FuncService adapts a start/stop function pair into the Service interface.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start calls the underlying start function.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop calls the underlying stop function.
func (f *FuncService) Stop() { f.StopFn() }

// Lifecycle owns a set of named services.
type Lifecycle struct {
	logger      *zap.Logger
	stopTimeout time.Duration
	signals     []os.Signal

	mu       sync.Mutex
	services []namedService
}

type namedService struct {
	name    string
	service Service
}

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithStopTimeout bounds how long Run waits for each Stop and for Start
// calls to return after shutdown. Zero waits forever.
func WithStopTimeout(d time.Duration) LifecycleOption {
	return func(l *Lifecycle) { l.stopTimeout = d }
}

// WithSignals replaces the default SIGINT/SIGTERM shutdown signals.
func WithSignals(sigs ...os.Signal) LifecycleOption {
	return func(l *Lifecycle) { l.signals = sigs }
}

// NewLifecycle creates a Lifecycle.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		logger:      logger.With(zap.String("component", "lifecycle")),
		stopTimeout: 30 * time.Second,
		signals:     []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add registers svc under name. Services start in the order added.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// Run starts every service and blocks until a shutdown signal, ctx
// cancellation, or a service failure.
//
// Postcondition: Every service has been stopped in reverse order. The result
// is the first service failure, or nil.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()
	l.mu.Lock()
	services := append([]namedService(nil), l.services...)
	l.mu.Unlock()

	errCh := make(chan error, len(services))
	var running sync.WaitGroup
	for _, ns := range services {
		ns := ns
		running.Add(1)
		go func() {
			defer running.Done()
			l.logger.Info("starting service", zap.String("service", ns.name))
			svcStart := time.Now()
			if err := ns.service.Start(); err != nil {
				l.logger.Error("service failed",
					zap.String("service", ns.name),
					zap.Duration("uptime", time.Since(svcStart)),
					zap.Error(err),
				)
				errCh <- fmt.Errorf("service %s: %w", ns.name, err)
			}
		}()
	}
	l.logger.Info("all services started",
		zap.Int("count", len(services)),
		zap.Duration("startup", time.Since(start)),
	)

	sigCh := make(chan os.Signal, 1)
	if len(l.signals) > 0 {
		signal.Notify(sigCh, l.signals...)
		defer signal.Stop(sigCh)
	}

	var runErr error
	select {
	case sig := <-sigCh:
		l.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case runErr = <-errCh:
		l.logger.Error("service error, shutting down", zap.Error(runErr))
	case <-ctx.Done():
		l.logger.Info("context cancelled, shutting down")
	}

	l.shutdown(services)
	if !l.wait(running.Wait) {
		l.logger.Warn("services still running after stop timeout")
	}

	l.logger.Info("shutdown complete", zap.Duration("total_uptime", time.Since(start)))
	return runErr
}

func (l *Lifecycle) shutdown(services []namedService) {
	shutdownStart := time.Now()
	for i := len(services) - 1; i >= 0; i-- {
		ns := services[i]
		svcStart := time.Now()
		l.logger.Info("stopping service", zap.String("service", ns.name))
		if !l.wait(ns.service.Stop) {
			l.logger.Warn("service stop timed out",
				zap.String("service", ns.name),
				zap.Duration("timeout", l.stopTimeout),
			)
			continue
		}
		l.logger.Info("service stopped",
			zap.String("service", ns.name),
			zap.Duration("elapsed", time.Since(svcStart)),
		)
	}
	l.logger.Info("all services stopped", zap.Duration("shutdown_elapsed", time.Since(shutdownStart)))
}

// wait runs fn and reports whether it returned within stopTimeout.
func (l *Lifecycle) wait(fn func()) bool {
	if l.stopTimeout <= 0 {
		fn()
		return true
	}
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(l.stopTimeout):
		return false
	}
}
