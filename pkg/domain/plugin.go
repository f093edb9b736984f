package domain

import (
	"errors"
	"fmt"
)

// PluginDescriptor is a named bundle of components.
type PluginDescriptor struct {
	Name       string
	Components []Component
}

// PluginLoadResult is what an external loader produces for one plugin source.
// Exactly one of Error and Plugin is set.
type PluginLoadResult struct {
	Source string
	Error  string
	Plugin *PluginDescriptor
}

// Loaded builds a successful load result.
func Loaded(source string, plugin *PluginDescriptor) PluginLoadResult {
	return PluginLoadResult{Source: source, Plugin: plugin}
}

// LoadFailed builds a failed load result.
func LoadFailed(source string, err error) PluginLoadResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return PluginLoadResult{Source: source, Error: msg}
}

// Check returns nil for a usable result and a *PluginLoadFailure otherwise.
func (r PluginLoadResult) Check() error {
	switch {
	case r.Error != "" && r.Plugin != nil:
		return &PluginLoadFailure{Source: r.Source, Err: fmt.Errorf("%w: both error and plugin set", ErrInvalidPlugin)}
	case r.Error != "":
		return &PluginLoadFailure{Source: r.Source, Err: errors.New(r.Error)}
	case r.Plugin == nil:
		return &PluginLoadFailure{Source: r.Source, Err: fmt.Errorf("%w: neither error nor plugin set", ErrInvalidPlugin)}
	}
	return nil
}
