package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/cvflow"
)

// Execute handles the 'run' command, dispatching to a bounded, continuous or
// watched run.
func Execute(ctx context.Context, opts RunOptions, out io.Writer) error {
	if opts.Watch {
		if opts.Cycles > 0 {
			return errors.New("--watch and --cycles cannot be used together")
		}
		return RunWatch(ctx, opts, out)
	}
	return RunPipeline(ctx, opts, out)
}

// RunPipeline loads the target pipeline and runs it for opts.Cycles cycles,
// or until ctx is cancelled when Cycles is zero. The last outputs and
// failures are printed to out.
func RunPipeline(ctx context.Context, opts RunOptions, out io.Writer) error {
	logger := createLogger(opts.Options)

	b, err := openStore(opts.Options)
	if err != nil {
		return err
	}
	defer b.close()

	doc, err := resolveDocument(ctx, opts.Target, b.store)
	if err != nil {
		return err
	}

	eng, err := createEngine(ctx, opts.Options, logger, out)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.Import(doc); err != nil {
		return fmt.Errorf("pipeline %q: %w", opts.Target, err)
	}
	if !opts.Quiet {
		printSystemMessage(out, "Pipeline '%s' loaded: %d nodes, %d connections.", eng.Name, len(doc.Nodes), len(doc.Connections))
	}

	if opts.Cycles > 0 {
		runCycles(ctx, eng, opts.Cycles)
	} else {
		eng.Run(ctx)
		<-ctx.Done()
		eng.Stop()
		eng.Wait()
	}

	report(out, eng, opts.Quiet)
	return nil
}

// runCycles steps the engine n times, stopping early when ctx is cancelled.
func runCycles(ctx context.Context, eng *cvflow.Engine, n int) {
	for i := 0; i < n && ctx.Err() == nil; i++ {
		if err := eng.Step(ctx); err != nil {
			return
		}
	}
}

func report(out io.Writer, eng *cvflow.Engine, quiet bool) {
	printOutputs(out, eng)
	printFailures(out, eng.Failures())
	if !quiet {
		printSystemMessage(out, "Finished after %d cycles.", eng.Cycle())
	}
}
