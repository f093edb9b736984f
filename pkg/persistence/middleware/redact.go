package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/ports"
)

// Mask replaces redacted property values.
const Mask = "***"

type redactionMiddleware struct {
	next     ports.GraphStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks node properties
// whose names match any of the patterns before they are stored. Nested maps
// are masked too. Loaded documents are returned as stored.
func NewRedactionMiddleware(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		compiled[i] = re
	}
	return func(next ports.GraphStore) ports.GraphStore {
		return &redactionMiddleware{next: next, patterns: compiled}
	}, nil
}

func (m *redactionMiddleware) Save(ctx context.Context, name string, doc *domain.GraphDocument) error {
	// The caller's document may be the engine's live export.
	cloned := doc.Clone()
	for i := range cloned.Nodes {
		m.mask(cloned.Nodes[i].Properties)
	}
	return m.next.Save(ctx, name, cloned)
}

func (m *redactionMiddleware) Load(ctx context.Context, name string) (*domain.GraphDocument, error) {
	return m.next.Load(ctx, name)
}

func (m *redactionMiddleware) Delete(ctx context.Context, name string) error {
	return m.next.Delete(ctx, name)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *redactionMiddleware) mask(props map[string]any) {
	for k, v := range props {
		if m.matches(k) {
			props[k] = Mask
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			m.mask(sub)
		}
	}
}

func (m *redactionMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
