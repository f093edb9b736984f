package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/cvflow/internal/dto"
	"github.com/aretw0/cvflow/internal/logging"
	"github.com/aretw0/cvflow/pkg/domain"
	"golang.org/x/term"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts like signal.NotifyContext but lets the caller read the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sc.sigCh:
			sc.mu.Lock()
			sc.sigVal = sig
			sc.mu.Unlock()
			sc.Cancel()
		case <-sc.Context.Done():
		}
		sc.stop.Do(func() {
			signal.Stop(sc.sigCh)
		})
	}()

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// createLogger configures the application logger. Records go to stderr so
// they never mix with pipeline output on stdout.
func createLogger(opts Options) *slog.Logger {
	level := slog.LevelWarn
	if opts.Debug {
		level = slog.LevelDebug
	}
	return logging.NewWithWriter(os.Stderr, level, opts.JSONLogs)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

func printFailures(w io.Writer, failures map[string]*domain.ProcessorError) {
	for _, f := range dto.Failures(failures) {
		printSystemMessage(w, "Node '%s' (%s) failed on cycle %d: %s", f.NodeID, f.NodeType, f.Cycle, f.Error)
	}
}

// outputSource is the part of the engine the summary reads.
type outputSource interface {
	Order() []string
	Outputs(nodeID string) ([]domain.Buffer, error)
}

// printOutputs writes the last outputs of every node in scheduling order.
func printOutputs(w io.Writer, eng outputSource) {
	for _, id := range eng.Order() {
		bufs, err := eng.Outputs(id)
		if err != nil || len(bufs) == 0 {
			continue
		}
		for _, o := range dto.Outputs(bufs) {
			fmt.Fprintf(w, "%s[%d] = %v\n", id, o.Port, o.Value)
		}
	}
}
