package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/cvflow/internal/logging"
	"github.com/aretw0/cvflow/pkg/domain"
)

// Registry catalogs node types and menu actions grouped by category.
// It never rejects a registration with an error: malformed components are
// logged and skipped.
type Registry struct {
	mu         sync.RWMutex
	logger     *slog.Logger
	categories []*domain.Category
	index      map[string]*domain.Category
	seen       map[domain.Component]bool
	plugins    []string
	failures   []*domain.PluginLoadFailure
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report skipped components and plugin failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a new empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger: logging.NewNop(),
		index:  make(map[string]*domain.Category),
		seen:   make(map[domain.Component]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a node type under its category.
// Registering the same pointer again is a no-op. Distinct descriptors sharing
// an id are all listed.
func (r *Registry) Register(nt *domain.NodeType) {
	if nt == nil {
		r.logger.Warn("Skipping nil node type")
		return
	}
	if err := nt.Validate(); err != nil {
		r.logger.Warn("Skipping malformed node type", "node_type", nt.ID, "err", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[nt] {
		return
	}
	r.seen[nt] = true
	cat := r.category(nt.ComponentCategory())
	cat.NodeTypes = append(cat.NodeTypes, nt)
}

// RegisterAction adds a menu action under its category.
func (r *Registry) RegisterAction(action *domain.MenuAction) {
	if action == nil || action.ID == "" || action.Run == nil {
		r.logger.Warn("Skipping malformed menu action", "action", actionID(action))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[action] {
		return
	}
	r.seen[action] = true
	cat := r.category(action.ComponentCategory())
	cat.Actions = append(cat.Actions, action)
}

// Ingest registers the components of every successful load result and records
// a failure for every failed one. Failures never prevent other plugins from loading.
// The failures recorded by this call are returned.
func (r *Registry) Ingest(results ...domain.PluginLoadResult) []*domain.PluginLoadFailure {
	var failed []*domain.PluginLoadFailure
	for _, res := range results {
		if err := res.Check(); err != nil {
			var f *domain.PluginLoadFailure
			if !errors.As(err, &f) {
				f = &domain.PluginLoadFailure{Source: res.Source, Err: err}
			}
			failed = append(failed, r.fail(f))
			continue
		}

		r.logger.Debug("Loading plugin", "plugin", res.Plugin.Name, "source", res.Source)
		for _, c := range res.Plugin.Components {
			switch comp := c.(type) {
			case *domain.NodeType:
				if err := comp.Validate(); err != nil {
					failed = append(failed, r.fail(&domain.PluginLoadFailure{Source: res.Source, Err: err}))
					continue
				}
				r.Register(comp)
			case *domain.MenuAction:
				r.RegisterAction(comp)
			default:
				failed = append(failed, r.fail(&domain.PluginLoadFailure{
					Source: res.Source,
					Err:    fmt.Errorf("unsupported component %T", c),
				}))
			}
		}

		r.mu.Lock()
		r.plugins = append(r.plugins, res.Plugin.Name)
		r.mu.Unlock()
	}
	return failed
}

func (r *Registry) fail(f *domain.PluginLoadFailure) *domain.PluginLoadFailure {
	r.logger.Error("Plugin failed to load", "source", f.Source, "err", f.Err)
	r.mu.Lock()
	r.failures = append(r.failures, f)
	r.mu.Unlock()
	return f
}

// category returns the named category, creating it in first-seen order. Callers hold mu.
func (r *Registry) category(name string) *domain.Category {
	if cat, ok := r.index[name]; ok {
		return cat
	}
	cat := &domain.Category{Name: name}
	r.index[name] = cat
	r.categories = append(r.categories, cat)
	return cat
}

// Categories returns the grouped view in first-seen order.
// Descriptors are shared; the slices are copies.
func (r *Registry) Categories() []domain.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Category, len(r.categories))
	for i, cat := range r.categories {
		out[i] = domain.Category{
			Name:      cat.Name,
			NodeTypes: append([]*domain.NodeType(nil), cat.NodeTypes...),
			Actions:   append([]*domain.MenuAction(nil), cat.Actions...),
		}
	}
	return out
}

// Lookup returns the first registered node type with the given id.
func (r *Registry) Lookup(id string) (*domain.NodeType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cat := range r.categories {
		for _, nt := range cat.NodeTypes {
			if nt.ID == id {
				return nt, true
			}
		}
	}
	return nil, false
}

// LookupIn returns the first node type with the given id inside one category.
// An empty category name means the default category.
func (r *Registry) LookupIn(category, id string) (*domain.NodeType, bool) {
	if category == "" {
		category = domain.DefaultCategory
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cat, ok := r.index[category]
	if !ok {
		return nil, false
	}
	for _, nt := range cat.NodeTypes {
		if nt.ID == id {
			return nt, true
		}
	}
	return nil, false
}

// Action returns the first registered menu action with the given id.
func (r *Registry) Action(id string) (*domain.MenuAction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cat := range r.categories {
		for _, a := range cat.Actions {
			if a.ID == id {
				return a, true
			}
		}
	}
	return nil, false
}

// Actions returns every registered menu action.
func (r *Registry) Actions() []*domain.MenuAction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.MenuAction
	for _, cat := range r.categories {
		out = append(out, cat.Actions...)
	}
	return out
}

// Failures returns every plugin failure recorded so far.
func (r *Registry) Failures() []*domain.PluginLoadFailure {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*domain.PluginLoadFailure(nil), r.failures...)
}

// ClearFailures forgets the recorded plugin failures.
func (r *Registry) ClearFailures() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = nil
}

// Plugins returns the names of the plugins ingested successfully.
func (r *Registry) Plugins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.plugins...)
}

func actionID(a *domain.MenuAction) string {
	if a == nil {
		return ""
	}
	return a.ID
}
