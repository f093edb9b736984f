package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/cvflow/internal/logging"
	"github.com/aretw0/cvflow/pkg/adapters/file"
)

// ListPipelines prints the names of the stored pipelines.
func ListPipelines(ctx context.Context, opts Options, out io.Writer) error {
	b, err := openStore(opts)
	if err != nil {
		return err
	}
	defer b.close()

	names, err := b.store.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing pipelines: %w", err)
	}
	if len(names) == 0 {
		fmt.Fprintln(out, "No stored pipelines found.")
		return nil
	}
	fmt.Fprintln(out, "Stored pipelines:")
	for _, n := range names {
		fmt.Fprintln(out, "- "+n)
	}
	return nil
}

// ShowPipeline prints a stored pipeline as JSON or YAML.
func ShowPipeline(ctx context.Context, opts Options, name string, format file.Format, out io.Writer) error {
	b, err := openStore(opts)
	if err != nil {
		return err
	}
	defer b.close()

	doc, err := b.store.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("pipeline %q: %w", name, err)
	}
	data, err := file.Encode(doc, format)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// SavePipeline validates a pipeline file against the compiled-in node types
// and stores it under name. An empty name keeps the document's own name.
func SavePipeline(ctx context.Context, opts Options, path, name string, out io.Writer) error {
	doc, err := file.LoadDocument(path)
	if err != nil {
		return err
	}
	if name == "" {
		name = doc.Name
	}

	eng, err := createEngine(ctx, opts, logging.NewNop(), io.Discard)
	if err != nil {
		return err
	}
	defer eng.Close()
	if err := eng.Import(doc); err != nil {
		return fmt.Errorf("pipeline %q: %w", path, err)
	}

	b, err := openStore(opts)
	if err != nil {
		return err
	}
	defer b.close()

	doc.Name = name
	if err := b.manager(logging.NewNop()).Save(ctx, name, doc); err != nil {
		return fmt.Errorf("error saving pipeline: %w", err)
	}
	printSystemMessage(out, "Pipeline '%s' saved.", name)
	return nil
}

// DeletePipeline removes a stored pipeline.
func DeletePipeline(ctx context.Context, opts Options, name string, out io.Writer) error {
	b, err := openStore(opts)
	if err != nil {
		return err
	}
	defer b.close()

	if err := b.manager(logging.NewNop()).Delete(ctx, name); err != nil {
		return fmt.Errorf("error deleting pipeline: %w", err)
	}
	printSystemMessage(out, "Pipeline '%s' deleted.", name)
	return nil
}
