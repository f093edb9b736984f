package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/cvflow"
	cvhttp "github.com/aretw0/cvflow/pkg/adapters/http"
	"github.com/aretw0/cvflow/pkg/observability"
	"github.com/aretw0/cvflow/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// stack is one engine bound to its store and session manager, shared by
// the HTTP and MCP commands.
type stack struct {
	engine   *cvflow.Engine
	backing  *backing
	sessions *session.Manager
	registry *prometheus.Registry
	streams  *cvhttp.StreamManager
	logger   *slog.Logger
	pipeline string
}

// newStack builds the engine with metrics and event hooks and opens the
// named pipeline, if any.
func newStack(ctx context.Context, opts ServeOptions, out io.Writer) (*stack, error) {
	logger := createLogger(opts.Options)

	b, err := openStore(opts.Options)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		b.close()
		return nil, err
	}
	streams := cvhttp.NewStreamManager(logger)

	eng, err := createEngine(ctx, opts.Options, logger, out, metrics.Hooks(), streams.Hooks())
	if err != nil {
		b.close()
		return nil, err
	}

	s := &stack{
		engine:   eng,
		backing:  b,
		sessions: b.manager(logger),
		registry: reg,
		streams:  streams,
		logger:   logger,
		pipeline: opts.Pipeline,
	}
	if opts.Pipeline != "" {
		loaded, err := s.sessions.Open(ctx, opts.Pipeline, eng)
		if err != nil {
			s.close(ctx)
			return nil, err
		}
		logger.Info("Pipeline opened", "pipeline", opts.Pipeline, "loaded", loaded)
	}
	return s, nil
}

func (s *stack) handler() http.Handler {
	return cvhttp.NewHandler(s.engine,
		cvhttp.WithStore(s.backing.store),
		cvhttp.WithMetrics(s.registry),
		cvhttp.WithStreams(s.streams),
		cvhttp.WithLogger(s.logger),
	)
}

// close halts the engine, commits the open pipeline and releases the store.
func (s *stack) close(ctx context.Context) error {
	s.engine.Stop()
	s.engine.Wait()

	var errs []error
	if s.pipeline != "" {
		if err := s.sessions.Commit(context.WithoutCancel(ctx), s.pipeline, s.engine); err != nil {
			errs = append(errs, fmt.Errorf("failed to save pipeline %s: %w", s.pipeline, err))
		}
	}
	errs = append(errs, s.engine.Close(), s.backing.close())
	return errors.Join(errs...)
}

// Serve exposes the engine over HTTP until ctx is cancelled.
func Serve(ctx context.Context, opts ServeOptions, out io.Writer) (err error) {
	s, err := newStack(ctx, opts, out)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.close(ctx))
	}()

	if opts.Autorun {
		s.engine.Run(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printSystemMessage(out, "Serving cvflow on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}
