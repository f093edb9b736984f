package tests

import (
	"context"
	"testing"

	"github.com/aretw0/cvflow/pkg/ports"
)

// PluginLoaderContractTest verifies that an adapter complies with ports.PluginLoader.
// wantSources lists the sources the loader is expected to report, in order.
func PluginLoaderContractTest(t *testing.T, loader ports.PluginLoader, wantSources []string) {
	t.Helper()

	results, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected loader error: %v", err)
	}

	t.Run("Sources", func(t *testing.T) {
		if len(results) != len(wantSources) {
			t.Fatalf("got %d results, want %d", len(results), len(wantSources))
		}
		for i, r := range results {
			if r.Source != wantSources[i] {
				t.Errorf("result %d: source = %q, want %q", i, r.Source, wantSources[i])
			}
		}
	})

	t.Run("Exactly one of error or plugin", func(t *testing.T) {
		for _, r := range results {
			hasErr, hasPlugin := r.Error != "", r.Plugin != nil
			if hasErr == hasPlugin {
				t.Errorf("source %q: error=%v plugin=%v, want exactly one", r.Source, hasErr, hasPlugin)
			}
		}
	})

	t.Run("Components are valid", func(t *testing.T) {
		for _, r := range results {
			if r.Plugin == nil {
				continue
			}
			if r.Plugin.Name == "" {
				t.Errorf("source %q: plugin has no name", r.Source)
			}
			for _, c := range r.Plugin.Components {
				if c.ComponentID() == "" {
					t.Errorf("source %q: component with empty id", r.Source)
				}
			}
		}
	})

	t.Run("Load is repeatable", func(t *testing.T) {
		again, err := loader.Load(context.Background())
		if err != nil {
			t.Fatalf("second Load failed: %v", err)
		}
		if len(again) != len(results) {
			t.Errorf("second Load returned %d results, want %d", len(again), len(results))
		}
	})
}
