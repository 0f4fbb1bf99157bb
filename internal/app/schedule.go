package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-ingestor/internal/dispatcher"
)

const shutdownTimeout = 30 * time.Second

// ScheduleOptions controls periodic runs.
type ScheduleOptions struct {
	// Spec is a standard five-field cron expression or descriptor.
	Spec string
	// Addr is the ops server listen address.
	Addr string
	// RunAtStart triggers one run immediately.
	RunAtStart bool
}

// Schedule runs ingestion on opts.Spec and serves the ops API until ctx ends.
// A tick that fires while a run is still active is skipped. On shutdown the
// active run is canceled and allowed to drain.
func (a *App) Schedule(ctx context.Context, opts ScheduleOptions) error {
	logger := a.logger.Named("schedule")
	cronLog := cronLogger{logger: logger}

	runCtx, cancelRuns := context.WithCancel(ctx)
	defer cancelRuns()

	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(opts.Spec, func() { a.scheduledRun(runCtx, logger) }); err != nil {
		return fmt.Errorf("parse schedule %q: %w", opts.Spec, err)
	}

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", opts.Addr, err)
	}
	srv := &http.Server{
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("ops server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	c.Start()
	logger.Info("scheduler started", zap.String("spec", opts.Spec))
	var startRun sync.WaitGroup
	if opts.RunAtStart {
		startRun.Add(1)
		go func() {
			defer startRun.Done()
			a.scheduledRun(runCtx, logger)
		}()
	}

	var result error
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err, ok := <-serveErr:
		if ok && err != nil {
			logger.Error("ops server error", zap.Error(err))
			result = fmt.Errorf("ops server: %w", err)
		}
	}

	cancelRuns()
	stopped := c.Stop()
	drained := make(chan struct{})
	go func() {
		<-stopped.Done()
		startRun.Wait()
		close(drained)
	}()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		logger.Warn("scheduled run did not drain before shutdown timeout")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", zap.Error(err))
	}
	return result
}

// OpsHandler exposes the ops API handler.
func (a *App) OpsHandler() http.Handler {
	return a.apiServer.Handler()
}

func (a *App) scheduledRun(ctx context.Context, logger *zap.Logger) {
	if ctx.Err() != nil {
		return
	}
	rep, err := a.dispatch.Run(ctx)
	switch {
	case errors.Is(err, dispatcher.ErrRunInProgress):
		logger.Info("run already in progress, skipping tick")
	case err != nil:
		logger.Error("scheduled run failed", zap.String("run_id", rep.RunID), zap.Error(err))
	default:
		logger.Info("scheduled run finished",
			zap.String("run_id", rep.RunID),
			zap.String("status", string(rep.Status)),
			zap.Int("products", rep.ProductsPersisted),
		)
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
