package ports

import (
	"context"

	"github.com/aretw0/cvflow/pkg/domain"
)

// PluginLoader locates plugin sources and turns each into a load result.
// A source that cannot be loaded yields a failed result rather than an error;
// the returned error is reserved for the loader itself being unusable.
type PluginLoader interface {
	Load(ctx context.Context) ([]domain.PluginLoadResult, error)
}
