package cli

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/cvflow"
	"github.com/aretw0/cvflow/internal/presentation/tui"
	"github.com/aretw0/cvflow/pkg/adapters/file"
)

// watchInterval is how often the pipeline file is checked for changes.
var watchInterval = 500 * time.Millisecond

// RunWatch runs a pipeline file continuously and re-imports it whenever the
// file changes. A file that fails to load or import is reported and the
// previous graph keeps running.
func RunWatch(ctx context.Context, opts RunOptions, out io.Writer) error {
	logger := createLogger(opts.Options)
	if !opts.Quiet && isTerminal(out) {
		tui.PrintBanner(out, cvflow.Version)
	}

	sum, err := fileSum(opts.Target)
	if err != nil {
		return fmt.Errorf("--watch needs a pipeline file: %w", err)
	}
	doc, err := file.LoadDocument(opts.Target)
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

	logger.Info("Starting watcher", "path", opts.Target)
	printSystemMessage(out, "Watching '%s'.", opts.Target)
	eng.Run(ctx)

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			eng.Stop()
			eng.Wait()
			report(out, eng, opts.Quiet)
			return nil
		case <-ticker.C:
			next, err := fileSum(opts.Target)
			if err != nil || bytes.Equal(next, sum) {
				continue
			}
			sum = next
			printSystemMessage(out, "Change detected in '%s'.", opts.Target)
			reload(ctx, eng, opts.Target, logger, out)
		}
	}
}

// reload stops the engine, imports the file again and resumes the run.
func reload(ctx context.Context, eng *cvflow.Engine, path string, logger *slog.Logger, out io.Writer) {
	eng.Stop()
	eng.Wait()
	defer eng.Run(ctx)

	doc, err := file.LoadDocument(path)
	if err == nil {
		err = eng.Import(doc)
	}
	if err != nil {
		logger.Error("Reload failed", "path", path, "err", err)
		printSystemMessage(out, "Reload failed, keeping the previous graph: %v", err)
		return
	}
	eng.ClearFailures()
	printSystemMessage(out, "Reloaded: %d nodes, %d connections.", len(doc.Nodes), len(doc.Connections))
}

func fileSum(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sum := md5.Sum(data)
	return sum[:], nil
}
