// Package builtin loads the plugins compiled into the binary.
package builtin

import (
	"context"
	"io"
	"os"

	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/plugins/arithmetic"
	"github.com/aretw0/cvflow/pkg/plugins/tools"
	"github.com/aretw0/cvflow/pkg/ports"
)

// PluginFunc builds one plugin descriptor or reports why it cannot.
type PluginFunc func() (*domain.PluginDescriptor, error)

type source struct {
	id    string
	build PluginFunc
}

// Loader is a ports.PluginLoader over in-process plugin constructors.
type Loader struct {
	sources []source
}

var _ ports.PluginLoader = (*Loader)(nil)

// Option configures a Loader.
type Option func(*loaderConfig)

type loaderConfig struct {
	out   io.Writer
	extra []source
}

// WithOutput sets where the Print node writes. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(c *loaderConfig) {
		c.out = w
	}
}

// WithPlugin adds another plugin source after the built-in ones.
func WithPlugin(id string, build PluginFunc) Option {
	return func(c *loaderConfig) {
		c.extra = append(c.extra, source{id: id, build: build})
	}
}

// New returns a loader for the arithmetic and tools plugins plus any extras.
func New(opts ...Option) *Loader {
	cfg := &loaderConfig{out: os.Stdout}
	for _, opt := range opts {
		opt(cfg)
	}
	out := cfg.out
	l := &Loader{sources: []source{
		{id: "builtin:" + arithmetic.Name, build: func() (*domain.PluginDescriptor, error) {
			return arithmetic.Plugin(), nil
		}},
		{id: "builtin:" + tools.Name, build: func() (*domain.PluginDescriptor, error) {
			return tools.Plugin(out), nil
		}},
	}}
	l.sources = append(l.sources, cfg.extra...)
	return l
}

// Load builds every source. A failing source yields a failed result and does
// not affect the others.
func (l *Loader) Load(ctx context.Context) ([]domain.PluginLoadResult, error) {
	results := make([]domain.PluginLoadResult, 0, len(l.sources))
	for _, src := range l.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		plugin, err := src.build()
		if err != nil {
			results = append(results, domain.LoadFailed(src.id, err))
			continue
		}
		results = append(results, domain.Loaded(src.id, plugin))
	}
	return results, nil
}
